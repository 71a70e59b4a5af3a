package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/viterin/vek/vek32"
)

// searchVector performs a brute-force cosine ranking of a collection's
// embeddings. Rows whose dimension differs from the query are skipped.
func searchVector(ctx context.Context, db *sql.DB, collectionID int64, queryVector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	if len(queryVector) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}

	query := `
		SELECT c.chunk_id, e.vector
		FROM chunks c
		INNER JOIN embeddings e ON e.chunk_row = c.id
		WHERE c.collection_id = ? AND e.dimension = ?
	`
	args := []any{collectionID, len(queryVector)}
	query, args = applyFilters(query, args, filters)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates, err := computeSimilarityScores(rows, queryVector, filters)
	if err != nil {
		return nil, err
	}
	sortCandidates(candidates)

	return buildVectorResults(candidates, limit), nil
}

// searchText performs BM25 full-text search using FTS5
func searchText(ctx context.Context, db *sql.DB, collectionID int64, query string, limit int, filters *SearchFilters) ([]TextResult, error) {
	sanitized := sanitizeFTSQuery(query)
	if sanitized == "" {
		return nil, fmt.Errorf("empty search query")
	}

	sqlQuery := `
		SELECT c.chunk_id, bm25(chunks_fts) AS score
		FROM chunks_fts
		INNER JOIN chunks c ON c.id = chunks_fts.rowid
		WHERE chunks_fts MATCH ? AND c.collection_id = ?
	`
	args := []any{sanitized, collectionID}
	sqlQuery, args = applyFilters(sqlQuery, args, filters)

	sqlQuery += " ORDER BY score"
	if limit > 0 {
		sqlQuery += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute text search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectTextResults(rows, filters)
}

// applyFilters appends the language, chunk type and path conditions
func applyFilters(query string, args []any, filters *SearchFilters) (string, []any) {
	if filters == nil {
		return query, args
	}

	if len(filters.Languages) > 0 {
		query += " AND c.language IN (" + placeholders(len(filters.Languages)) + ")"
		for _, lang := range filters.Languages {
			args = append(args, lang)
		}
	}
	if len(filters.ChunkTypes) > 0 {
		query += " AND c.chunk_type IN (" + placeholders(len(filters.ChunkTypes)) + ")"
		for _, ct := range filters.ChunkTypes {
			args = append(args, ct)
		}
	}
	if filters.FilePattern != "" {
		query += " AND c.file_path GLOB ?"
		args = append(args, filters.FilePattern)
	}

	return query, args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// computeSimilarityScores processes rows and computes cosine similarity
func computeSimilarityScores(rows *sql.Rows, queryVector []float32, filters *SearchFilters) ([]candidate, error) {
	queryNorm := math.Sqrt(float64(vek32.Dot(queryVector, queryVector)))
	var candidates []candidate

	for rows.Next() {
		var chunkID string
		var blob []byte
		if err := rows.Scan(&chunkID, &blob); err != nil {
			return nil, err
		}

		vector := deserializeVector(blob)
		if len(vector) != len(queryVector) {
			continue
		}

		similarity := cosineWithNorm(queryVector, queryNorm, vector)
		if filters != nil && filters.MinRelevance > 0 && similarity < filters.MinRelevance {
			continue
		}

		candidates = append(candidates, candidate{chunkID: chunkID, score: similarity})
	}

	return candidates, rows.Err()
}

// buildVectorResults keeps the top limit candidates, all when limit <= 0
func buildVectorResults(candidates []candidate, limit int) []VectorResult {
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}

	results := make([]VectorResult, limit)
	for i := 0; i < limit; i++ {
		results[i] = VectorResult{
			ChunkID:         candidates[i].chunkID,
			SimilarityScore: candidates[i].score,
		}
	}
	return results
}

// collectTextResults maps raw bm25 (negative, lower is better) into (0, 1]
func collectTextResults(rows *sql.Rows, filters *SearchFilters) ([]TextResult, error) {
	results := make([]TextResult, 0)

	for rows.Next() {
		var result TextResult
		if err := rows.Scan(&result.ChunkID, &result.BM25Score); err != nil {
			return nil, err
		}

		result.BM25Score = normalizeBM25(result.BM25Score)
		if filters != nil && filters.MinRelevance > 0 && result.BM25Score < filters.MinRelevance {
			continue
		}

		results = append(results, result)
	}

	return results, rows.Err()
}

func normalizeBM25(raw float64) float64 {
	return 1.0 / (1.0 + math.Abs(raw)/50.0)
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}

// cosineSimilarity returns 0 for mismatched or zero vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	return cosineWithNorm(a, math.Sqrt(float64(vek32.Dot(a, a))), b)
}

func cosineWithNorm(a []float32, normA float64, b []float32) float64 {
	normB := math.Sqrt(float64(vek32.Dot(b, b)))
	if normA == 0 || normB == 0 {
		return 0
	}
	return float64(vek32.Dot(a, b)) / (normA * normB)
}

type candidate struct {
	chunkID string
	score   float64
}

// sortCandidates orders by score descending, ties by chunk ID
func sortCandidates(candidates []candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].chunkID < candidates[j].chunkID
	})
}

// sanitizeFTSQuery turns free text into an FTS5 expression: every
// whitespace-separated term becomes a quoted string, terms are OR-ed.
// Operators and punctuation in user input are never interpreted.
func sanitizeFTSQuery(query string) string {
	fields := strings.Fields(query)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		// a term of only punctuation tokenizes to nothing and makes MATCH fail
		if !strings.ContainsFunc(f, isTokenRune) {
			continue
		}
		terms = append(terms, `"`+strings.ReplaceAll(f, `"`, `""`)+`"`)
	}
	return strings.Join(terms, " OR ")
}

func isTokenRune(r rune) bool {
	return r >= 0x80 ||
		('0' <= r && r <= '9') || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z')
}
