package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits for events to settle
const DefaultDebounce = 500 * time.Millisecond

// WatchOptions configures Watch
type WatchOptions struct {
	Discover DiscoverOptions
	Debounce time.Duration
	// Flushed, when set, receives the statistics of every flush
	Flushed func(*Statistics)
}

// Watch keeps collection in sync with the tree under root until ctx is
// done. Changed files are re-indexed and removed files dropped, in batches
// once events have been quiet for the debounce interval. A flush that
// meets a running index is retried after the next interval.
func (idx *Indexer) Watch(ctx context.Context, collection, root string, opts WatchOptions) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Discover.Logger == nil {
		opts.Discover.Logger = idx.logger
	}

	coll, err := idx.store.EnsureCollection(ctx, collection, rootPathOf([]string{root}))
	if err != nil {
		return fmt.Errorf("failed to open collection: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := idx.addWatchDirs(watcher, root, opts.Discover); err != nil {
		return fmt.Errorf("failed to add watch directories: %w", err)
	}

	idx.logger.Info("watching for changes", "root", root, "collection", coll.Name)

	pending := make(map[string]struct{})
	timer := time.NewTimer(opts.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			if event.Op&fsnotify.Create != 0 && opts.Discover.Recursive {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := idx.addWatchDirs(watcher, event.Name, opts.Discover); err != nil {
						idx.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
					continue
				}
			}

			if !ShouldIndex(root, event.Name, opts.Discover) {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(opts.Debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			idx.logger.Warn("watcher error", "error", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			if !idx.lock.TryAcquire() {
				timer.Reset(opts.Debounce)
				continue
			}
			files := make([]string, 0, len(pending))
			for path := range pending {
				files = append(files, path)
			}
			sort.Strings(files)
			pending = make(map[string]struct{})

			stats := idx.flush(ctx, coll.ID, coll.Name, files)
			idx.lock.Release()
			if stats != nil && opts.Flushed != nil {
				opts.Flushed(stats)
			}
		}
	}
}

// flush re-indexes files; vanished ones yield no chunks and are dropped
func (idx *Indexer) flush(ctx context.Context, collectionID int64, name string, files []string) *Statistics {
	start := time.Now()
	var c counters
	if err := idx.indexFiles(ctx, collectionID, files, false, &c); err != nil {
		return nil
	}
	if err := idx.store.TouchCollection(ctx, collectionID, time.Now()); err != nil {
		idx.logger.Warn("failed to update collection", "collection", name, "error", err)
	}
	idx.notify(name)

	stats := &Statistics{Collection: name, Duration: time.Since(start)}
	c.fill(stats)
	idx.logger.Info("re-indexed changes",
		"collection", name,
		"files", len(files),
		"indexed", stats.FilesIndexed,
		"removed", stats.FilesEmpty,
		"failed", stats.FilesFailed)
	return stats
}

// addWatchDirs registers root and, when recursive, every non-ignored
// directory below it
func (idx *Indexer) addWatchDirs(watcher *fsnotify.Watcher, root string, opts DiscoverOptions) error {
	if !opts.Recursive {
		return watcher.Add(root)
	}
	ignore := opts.ignorePatterns()
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (isHidden(d.Name()) || shouldIgnore(root, path, d.Name(), ignore)) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
