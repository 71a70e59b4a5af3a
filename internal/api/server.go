package api

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/dshills/coldstart/internal/chunker"
	"github.com/dshills/coldstart/internal/indexer"
	"github.com/dshills/coldstart/internal/searcher"
	"github.com/dshills/coldstart/internal/storage"
)

// Deps are the pipeline components the handlers call into
type Deps struct {
	Chunker  *chunker.Chunker
	Indexer  *indexer.Indexer
	Searcher *searcher.Searcher
	Store    storage.Store
	// Discover supplies discovery defaults (ignore patterns) for index jobs
	Discover func(recursive bool, extensions []string) indexer.DiscoverOptions
	Logger   *slog.Logger
}

// Options configures the HTTP surface
type Options struct {
	AppName           string
	Version           string
	CORSOrigins       []string
	DefaultCollection string
	StreamTimeout     time.Duration
	// AllowedRoots bounds the host paths the chunk and index routes may read
	AllowedRoots      []string
}

// Server is the coldstart HTTP API
type Server struct {
	app    *fiber.App
	deps   Deps
	opts   Options
	logger *slog.Logger
	jobs   *JobTracker
	roots  []string

	// ctx outlives requests; index jobs run under it
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds the fiber app and registers every route
func New(deps Deps, opts Options) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.AppName == "" {
		opts.AppName = "coldstart"
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	if opts.StreamTimeout <= 0 {
		opts.StreamTimeout = 5 * time.Minute
	}
	if deps.Discover == nil {
		deps.Discover = func(recursive bool, extensions []string) indexer.DiscoverOptions {
			return indexer.DiscoverOptions{Recursive: recursive, Extensions: extensions, Logger: logger}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		deps:   deps,
		opts:   opts,
		logger: logger,
		jobs:   NewJobTracker(),
		roots:  resolveRoots(opts.AllowedRoots),
		ctx:    ctx,
		cancel: cancel,
	}

	s.app = fiber.New(fiber.Config{
		AppName:      opts.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: errorHandler(logger),
	})

	s.app.Use(recover.New())
	s.app.Use(traceMiddleware())
	s.app.Use(requestLogger(logger))
	s.app.Use(cors.New(corsConfig(opts.CORSOrigins)))

	s.routes()
	return s
}

// corsConfig allows credentials only for an explicit origin list; the
// wildcard cannot be combined with credentials
func corsConfig(origins []string) cors.Config {
	return cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", TraceHeader},
		ExposeHeaders:    []string{TraceHeader},
		AllowCredentials: !slices.Contains(origins, "*"),
	}
}

func (s *Server) routes() {
	s.app.Get("/healthz", s.healthz)

	v1 := s.app.Group("/api/v1")
	v1.Get("/health", s.health)
	v1.Get("/healthz", s.healthz)

	v1.Post("/chunks", s.chunk)

	v1.Get("/collections", s.listCollections)
	v1.Get("/collections/:name", s.getCollection)

	v1.Get("/index-jobs", s.listJobs)
	v1.Post("/index-jobs", s.createJob)
	v1.Get("/index-jobs/:id", s.getJob)
	v1.Get("/index-jobs/:id/stream", s.streamJob)

	v1.Post("/search", s.search)
}

// App exposes the fiber app, mainly for app.Test
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until ctx is canceled, then shuts down gracefully
// and waits for running index jobs
func (s *Server) Listen(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- s.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.app.ShutdownWithContext(shutdownCtx)
	s.Close()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Close cancels running index jobs and waits for them to stop
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}
