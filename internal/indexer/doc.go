// Package indexer drives chunking and indexing over files and directories.
//
// Discover expands paths into files. ChunkFiles runs the chunker over them
// with a bounded worker pool and keeps file order. An Indexer goes further:
// each file's chunks are embedded through the shared embedding cache and
// swapped into a storage collection in one transaction, so a collection
// never holds a half-written file. Files whose chunk IDs match what is
// stored are skipped unless the request forces re-embedding.
//
// Watch keeps a collection in sync with a directory using fsnotify.
package indexer
