package types

import "math"

// SearchResult is a single ranked hit returned by the searcher
type SearchResult struct {
	Rank  int     `json:"rank"` // 1-based position in the result set
	Score float64 `json:"score"`
	Chunk *Chunk  `json:"chunk"`
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.Rank < 1 {
		return ErrInvalidRank
	}

	if math.IsNaN(sr.Score) || math.IsInf(sr.Score, 0) {
		return ErrInvalidRelevanceScore
	}

	if sr.Chunk == nil {
		return ErrEmptyContent
	}

	return sr.Chunk.ValidateContent()
}
