package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidCollection is returned for an empty collection name
	ErrInvalidCollection = errors.New("invalid collection name")
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	if dbPath != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// single connection: also keeps an in-memory database alive across calls
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and
// brings its schema up to date.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Collection operations

const collectionColumns = `id, name, root_path, total_files, total_chunks, last_indexed_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollection(row rowScanner) (*Collection, error) {
	var c Collection
	var indexed sql.NullTime
	if err := row.Scan(&c.ID, &c.Name, &c.RootPath, &c.TotalFiles, &c.TotalChunks, &indexed, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if indexed.Valid {
		c.LastIndexedAt = indexed.Time
	}
	return &c, nil
}

func (s *SQLiteStore) getCollectionWithQuerier(ctx context.Context, q querier, name string) (*Collection, error) {
	row := q.QueryRowContext(ctx, `SELECT `+collectionColumns+` FROM collections WHERE name = ?`, name)
	c, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("collection %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetCollection looks a collection up by name
func (s *SQLiteStore) GetCollection(ctx context.Context, name string) (*Collection, error) {
	return s.getCollectionWithQuerier(ctx, s.db, name)
}

// EnsureCollection returns the named collection, creating it when absent.
// A non-empty rootPath replaces the stored one.
func (s *SQLiteStore) EnsureCollection(ctx context.Context, name, rootPath string) (*Collection, error) {
	if name == "" {
		return nil, ErrInvalidCollection
	}

	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collections (name, root_path, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			root_path = CASE WHEN excluded.root_path = '' THEN collections.root_path ELSE excluded.root_path END,
			updated_at = excluded.updated_at
	`, name, rootPath, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure collection %q: %w", name, err)
	}

	return s.getCollectionWithQuerier(ctx, s.db, name)
}

// ListCollections returns every collection ordered by name
func (s *SQLiteStore) ListCollections(ctx context.Context) ([]*Collection, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+collectionColumns+` FROM collections ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var collections []*Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		collections = append(collections, c)
	}
	return collections, rows.Err()
}

// TouchCollection records an indexing run and refreshes the cached totals
func (s *SQLiteStore) TouchCollection(ctx context.Context, collectionID int64, indexedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE collections SET
			last_indexed_at = ?,
			updated_at = ?,
			total_files = (SELECT COUNT(DISTINCT file_path) FROM chunks WHERE collection_id = ?),
			total_chunks = (SELECT COUNT(*) FROM chunks WHERE collection_id = ?)
		WHERE id = ?
	`, indexedAt, time.Now(), collectionID, collectionID, collectionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("collection %d: %w", collectionID, ErrNotFound)
	}
	return nil
}

// Chunk operations

func (s *SQLiteStore) insertChunkWithQuerier(ctx context.Context, q querier, chunk *Chunk) error {
	meta := chunk.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode metadata for %s: %w", chunk.ChunkID, err)
	}

	now := time.Now()
	err = q.QueryRowContext(ctx, `
		INSERT INTO chunks (collection_id, chunk_id, file_path, language, chunk_type,
			start_line, end_line, content, content_hash, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection_id, chunk_id) DO UPDATE SET
			file_path = excluded.file_path,
			language = excluded.language,
			chunk_type = excluded.chunk_type,
			start_line = excluded.start_line,
			end_line = excluded.end_line,
			content = excluded.content,
			content_hash = excluded.content_hash,
			metadata = excluded.metadata
		RETURNING id
	`, chunk.CollectionID, chunk.ChunkID, chunk.FilePath, chunk.Language, chunk.ChunkType,
		chunk.StartLine, chunk.EndLine, chunk.Content, chunk.ContentHash[:], string(metaJSON), now,
	).Scan(&chunk.RowID)
	if err != nil {
		return fmt.Errorf("failed to insert chunk %s: %w", chunk.ChunkID, err)
	}
	chunk.CreatedAt = now

	if len(chunk.Vector) == 0 {
		_, err = q.ExecContext(ctx, `DELETE FROM embeddings WHERE chunk_row = ?`, chunk.RowID)
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO embeddings (chunk_row, vector, dimension, model, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chunk_row) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			model = excluded.model
	`, chunk.RowID, serializeVector(chunk.Vector), len(chunk.Vector), chunk.Model, now)
	if err != nil {
		return fmt.Errorf("failed to insert embedding for %s: %w", chunk.ChunkID, err)
	}
	return nil
}

func (s *SQLiteStore) deleteFileWithQuerier(ctx context.Context, q querier, collectionID int64, filePath string) (int, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM chunks WHERE collection_id = ? AND file_path = ?`, collectionID, filePath)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// ReplaceFileChunks atomically swaps every stored chunk of filePath for chunks.
// An empty chunks slice removes the file from the collection.
func (s *SQLiteStore) ReplaceFileChunks(ctx context.Context, collectionID int64, filePath string, chunks []*Chunk) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = s.deleteFileWithQuerier(ctx, tx, collectionID, filePath); err != nil {
		return fmt.Errorf("failed to clear chunks for %s: %w", filePath, err)
	}

	for _, chunk := range chunks {
		chunk.CollectionID = collectionID
		chunk.FilePath = filePath
		if err = s.insertChunkWithQuerier(ctx, tx, chunk); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunks for %s: %w", filePath, err)
	}
	return nil
}

// DeleteFile removes every chunk of filePath and reports how many went
func (s *SQLiteStore) DeleteFile(ctx context.Context, collectionID int64, filePath string) (int, error) {
	return s.deleteFileWithQuerier(ctx, s.db, collectionID, filePath)
}

const chunkSelect = `
	SELECT c.id, c.collection_id, c.chunk_id, c.file_path, c.language, c.chunk_type,
		c.start_line, c.end_line, c.content, c.content_hash, c.metadata, c.created_at,
		e.vector, e.model
	FROM chunks c
	LEFT JOIN embeddings e ON e.chunk_row = c.id
`

func scanChunk(row rowScanner) (*Chunk, error) {
	var c Chunk
	var hash []byte
	var meta string
	var vector []byte
	var model sql.NullString
	err := row.Scan(&c.RowID, &c.CollectionID, &c.ChunkID, &c.FilePath, &c.Language, &c.ChunkType,
		&c.StartLine, &c.EndLine, &c.Content, &hash, &meta, &c.CreatedAt, &vector, &model)
	if err != nil {
		return nil, err
	}
	copy(c.ContentHash[:], hash)
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &c.Metadata); err != nil {
			return nil, fmt.Errorf("corrupt metadata for %s: %w", c.ChunkID, err)
		}
	}
	if len(vector) > 0 {
		c.Vector = deserializeVector(vector)
		c.Model = model.String
	}
	return &c, nil
}

// GetChunk retrieves a chunk by its content-addressed ID
func (s *SQLiteStore) GetChunk(ctx context.Context, collectionID int64, chunkID string) (*Chunk, error) {
	row := s.db.QueryRowContext(ctx, chunkSelect+` WHERE c.collection_id = ? AND c.chunk_id = ?`, collectionID, chunkID)
	c, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chunk %s: %w", chunkID, ErrNotFound)
	}
	return c, err
}

// ListFileChunks returns the chunks of one file in line order
func (s *SQLiteStore) ListFileChunks(ctx context.Context, collectionID int64, filePath string) ([]*Chunk, error) {
	rows, err := s.db.QueryContext(ctx, chunkSelect+`
		WHERE c.collection_id = ? AND c.file_path = ?
		ORDER BY c.start_line, c.end_line
	`, collectionID, filePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var chunks []*Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// ListFiles returns the distinct file paths stored in a collection
func (s *SQLiteStore) ListFiles(ctx context.Context, collectionID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT file_path FROM chunks WHERE collection_id = ? ORDER BY file_path
	`, collectionID)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var files []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		files = append(files, path)
	}
	return files, rows.Err()
}

// Search operations

// SearchVector ranks the collection's embedded chunks by cosine similarity
func (s *SQLiteStore) SearchVector(ctx context.Context, collectionID int64, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	return searchVector(ctx, s.db, collectionID, vector, limit, filters)
}

// SearchText runs an FTS5 keyword query over chunk content and paths
func (s *SQLiteStore) SearchText(ctx context.Context, collectionID int64, query string, limit int, filters *SearchFilters) ([]TextResult, error) {
	return searchText(ctx, s.db, collectionID, query, limit, filters)
}

// Status operations

// Status gathers counts and health for one collection
func (s *SQLiteStore) Status(ctx context.Context, collectionID int64) (*CollectionStatus, error) {
	status := &CollectionStatus{ByLanguage: map[string]int{}}

	row := s.db.QueryRowContext(ctx, `SELECT `+collectionColumns+` FROM collections WHERE id = ?`, collectionID)
	collection, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("collection %d: %w", collectionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load collection: %w", err)
	}
	status.Collection = collection
	status.Health.DatabaseAccessible = true

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT file_path), COUNT(*) FROM chunks WHERE collection_id = ?
	`, collectionID).Scan(&status.FilesCount, &status.ChunksCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM embeddings e
		JOIN chunks c ON c.id = e.chunk_row
		WHERE c.collection_id = ?
	`, collectionID).Scan(&status.EmbeddingsCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count embeddings: %w", err)
	}
	status.Health.EmbeddingsAvailable = status.EmbeddingsCount > 0

	rows, err := s.db.QueryContext(ctx, `
		SELECT language, COUNT(*) FROM chunks WHERE collection_id = ? GROUP BY language
	`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to group languages: %w", err)
	}
	for rows.Next() {
		var lang string
		var n int
		if err := rows.Scan(&lang, &n); err != nil {
			_ = rows.Close()
			return nil, err
		}
		status.ByLanguage[lang] = n
	}
	_ = rows.Close()

	var ftsName string
	err = s.db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name='chunks_fts'`).Scan(&ftsName)
	status.Health.FTSIndexesBuilt = err == nil

	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err == nil {
			status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
		}
	}

	return status, nil
}
