// Package embedder turns chunk text into vectors and memoizes the results.
//
// # Models
//
// A Model encodes a batch of texts into one vector per text. Four providers
// ship with the package:
//
//   - local: offline word-hashing model (384 dimensions), always available
//   - openai: OpenAI /v1/embeddings (1536 dimensions)
//   - jina: Jina AI /v1/embeddings (1024 dimensions)
//   - ollama: a local Ollama server's /api/embed (768 dimensions)
//
// New picks a provider from Config:
//
//  1. If Config.Provider is set → use it
//  2. Else if JinaAPIKey is set → jina
//  3. Else if OpenAIAPIKey is set → openai
//  4. Else → local
//
// Remote providers split input into batches of EncodeOptions.BatchSize
// (default 32, capped at 100) and retry transient failures with exponential
// backoff. 4xx responses other than 429 fail immediately.
//
// # Caching
//
// Cache wraps any Model:
//
//	model, err := embedder.New(embedder.Config{Provider: "local"})
//	if err != nil {
//	    return err
//	}
//	cache := embedder.NewCache(model, 10000)
//
//	vecs, err := cache.Encode(ctx, []string{"a", "a", "b"}, embedder.EncodeOptions{Normalize: true})
//	// model saw ["a", "b"]; vecs[0] and vecs[1] are identical
//
// Entries are keyed by the SHA-256 of the exact text and evicted least
// recently used once the cache is full. The cache mutex is only held while
// reading or updating its tables, never during a model call. When two callers
// miss on the same text at once, the second waits for the first call instead
// of encoding the text again.
//
// Model errors reach the caller unchanged apart from wrapping; the cache does
// not retry and does not store anything from a failed call.
//
// # Error Handling
//
//	_, err := cache.Encode(ctx, texts, opts)
//	if errors.Is(err, embedder.ErrProviderFailed) {
//	    // remote model unavailable
//	}
package embedder
