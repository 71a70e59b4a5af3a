// Package mcp exposes the chunking, indexing and search pipeline as a
// Model Context Protocol server over stdio.
//
// Tools:
//   - chunk_file: split one file (or inline content) into chunks
//   - index_path: chunk, embed and store a file or directory in a collection
//   - search_chunks: hybrid, vector or keyword search over a collection
//   - get_status: collection statistics and index health
//
// # Example
//
//	{
//	  "name": "search_chunks",
//	  "arguments": {
//	    "query": "open a database connection",
//	    "collection": "code_chunks",
//	    "limit": 5,
//	    "search_mode": "hybrid",
//	    "filters": {"languages": ["python"], "min_relevance": 0.2}
//	  }
//	}
//
// # Errors
//
// Tool failures are returned as *MCPError with a JSON-RPC style code:
//
//	-32602  invalid parameters
//	-32603  internal error
//	-32001  collection not indexed
//	-32002  indexing already in progress
//	-32004  empty query
//
// get_status on an unknown collection is not an error; it reports
// "indexed": false.
package mcp
