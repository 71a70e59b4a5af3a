package types

import "errors"

// Domain errors for type validation
var (
	ErrInvalidChunkID   = errors.New("invalid chunk ID")
	ErrEmptyContent     = errors.New("content cannot be empty")
	ErrInvalidLineRange = errors.New("invalid line range")
	ErrInvalidLanguage  = errors.New("invalid language")
	ErrInvalidChunkType = errors.New("invalid chunk type")

	// Search result errors
	ErrInvalidRank           = errors.New("rank must be >= 1")
	ErrInvalidRelevanceScore = errors.New("relevance score must be finite")
)
