// Package searcher answers queries against an indexed collection.
//
// Three modes are supported:
//   - hybrid: vector and BM25 searches run concurrently and are merged with
//     Reciprocal Rank Fusion, score(d) = sum of 1/(k + rank). The default.
//   - vector: cosine similarity against stored chunk embeddings
//   - keyword: SQLite FTS5 BM25 ranking
//
// # Usage
//
//	s := searcher.New(store, cache)
//	resp, err := s.Search(ctx, searcher.Request{
//	    Collection: "myrepo",
//	    Query:      "open database connection",
//	    Limit:      10,
//	})
//	for _, r := range resp.Results {
//	    fmt.Printf("[%d] %s:%d (%.3f)\n", r.Rank, r.Chunk.FilePath, r.Chunk.StartLine, r.Score)
//	}
//
// Responses can be cached in an expiring LRU keyed by collection, query,
// mode, limit and filters. Call Invalidate after re-indexing; the indexer's
// OnIndexed hook is the usual place.
//
// In hybrid mode a failing side is tolerated so that search keeps working
// when the embedding provider is down.
package searcher
