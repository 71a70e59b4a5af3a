package api

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/dshills/coldstart/internal/indexer"
	"github.com/dshills/coldstart/internal/searcher"
	"github.com/dshills/coldstart/internal/storage"
	"github.com/dshills/coldstart/pkg/types"
)

func (s *Server) healthz(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) health(c fiber.Ctx) error {
	_, dbErr := s.deps.Store.ListCollections(c.Context())

	status, code := "healthy", fiber.StatusOK
	if dbErr != nil {
		s.logger.Warn("health check: store unavailable", "error", dbErr)
		status, code = "degraded", fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status":              status,
		"app":                 s.opts.AppName,
		"version":             s.opts.Version,
		"database_accessible": dbErr == nil,
		"indexing":            s.deps.Indexer.Busy(),
	})
}

// ChunkRequest chunks a file on disk, or Content when given
type ChunkRequest struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	MaxTokens *int   `json:"max_tokens"`
	Overlap   *int   `json:"overlap"`
}

// ChunkResponse lists the chunks produced
type ChunkResponse struct {
	Chunks []*types.Chunk `json:"chunks"`
	Total  int            `json:"total"`
}

func (s *Server) chunk(c fiber.Ctx) error {
	var req ChunkRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest("Invalid request body", map[string]any{"error": err.Error()})
	}
	if strings.TrimSpace(req.Path) == "" {
		return badRequest("path is required", map[string]any{"param": "path"})
	}

	ch := s.deps.Chunker
	if req.MaxTokens != nil || req.Overlap != nil {
		cfg := ch.Config()
		if req.MaxTokens != nil {
			cfg.MaxTokens = *req.MaxTokens
		}
		if req.Overlap != nil {
			cfg.Overlap = *req.Overlap
		}
		var err error
		if ch, err = ch.WithLimits(cfg.MaxTokens, cfg.Overlap); err != nil {
			return err
		}
	}

	var chunks []*types.Chunk
	if req.Content != "" {
		chunks = ch.ChunkContent(req.Path, req.Content)
	} else {
		if err := s.checkPath(req.Path); err != nil {
			return err
		}
		chunks = ch.ChunkFile(req.Path)
	}
	if chunks == nil {
		chunks = []*types.Chunk{}
	}
	return c.JSON(ChunkResponse{Chunks: chunks, Total: len(chunks)})
}

func (s *Server) listCollections(c fiber.Ctx) error {
	collections, err := s.deps.Store.ListCollections(c.Context())
	if err != nil {
		return err
	}
	if collections == nil {
		collections = []*storage.Collection{}
	}
	return c.JSON(fiber.Map{"collections": collections, "total": len(collections)})
}

func (s *Server) getCollection(c fiber.Ctx) error {
	name := c.Params("name")
	coll, err := s.deps.Store.GetCollection(c.Context(), name)
	if errors.Is(err, storage.ErrNotFound) {
		return &Error{Status: fiber.StatusNotFound, Message: "Collection not found", Details: map[string]any{"name": name}}
	}
	if err != nil {
		return err
	}
	status, err := s.deps.Store.Status(c.Context(), coll.ID)
	if err != nil {
		return err
	}
	return c.JSON(status)
}

// IndexJobRequest starts an asynchronous index run
type IndexJobRequest struct {
	Collection string   `json:"collection"`
	Paths      []string `json:"paths"`
	Recursive  *bool    `json:"recursive"`
	Extensions []string `json:"extensions"`
	Force      bool     `json:"force"`
}

func (s *Server) createJob(c fiber.Ctx) error {
	var body IndexJobRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest("Invalid request body", map[string]any{"error": err.Error()})
	}
	if len(body.Paths) == 0 {
		return &Error{Status: fiber.StatusUnprocessableEntity, Message: "Validation failed", Details: map[string]any{"errors": []string{"paths must not be empty"}}}
	}
	if body.Collection == "" {
		body.Collection = s.opts.DefaultCollection
	}
	if body.Collection == "" {
		return &Error{Status: fiber.StatusUnprocessableEntity, Message: "Validation failed", Details: map[string]any{"errors": []string{"collection is required"}}}
	}
	for _, p := range body.Paths {
		if err := s.checkPath(p); err != nil {
			return err
		}
	}
	if s.deps.Indexer.Busy() {
		return indexer.ErrIndexInProgress
	}

	recursive := true
	if body.Recursive != nil {
		recursive = *body.Recursive
	}
	req := indexer.Request{
		Collection: body.Collection,
		Paths:      body.Paths,
		Discover:   s.deps.Discover(recursive, body.Extensions),
		Force:      body.Force,
	}

	job := s.jobs.Create(uuid.NewString(), req.Collection, req.Paths)
	s.wg.Go(func() {
		s.jobs.Start(job.ID)
		stats, err := s.deps.Indexer.Index(s.ctx, req)
		if err != nil {
			s.logger.Error("index job failed", "job_id", job.ID, "collection", req.Collection, "error", err)
		}
		s.jobs.Finish(job.ID, stats, err)
	})

	return c.Status(fiber.StatusAccepted).JSON(job)
}

func (s *Server) getJob(c fiber.Ctx) error {
	id := c.Params("id")
	job, ok := s.jobs.Get(id)
	if !ok {
		return &Error{Status: fiber.StatusNotFound, Message: "Job not found", Details: map[string]any{"id": id}}
	}
	return c.JSON(job)
}

func (s *Server) listJobs(c fiber.Ctx) error {
	jobs := s.jobs.List()
	return c.JSON(fiber.Map{"jobs": jobs, "total": len(jobs)})
}

// SearchRequest is the body of POST /api/v1/search
type SearchRequest struct {
	Collection   string   `json:"collection"`
	Query        string   `json:"query"`
	Limit        int      `json:"limit"`
	Mode         string   `json:"mode"`
	Languages    []string `json:"languages"`
	ChunkTypes   []string `json:"chunk_types"`
	FilePattern  string   `json:"file_pattern"`
	MinRelevance float64  `json:"min_relevance"`
	UseCache     *bool    `json:"use_cache"`
}

func (s *Server) search(c fiber.Ctx) error {
	var body SearchRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest("Invalid request body", map[string]any{"error": err.Error()})
	}
	if body.Collection == "" {
		body.Collection = s.opts.DefaultCollection
	}
	if body.Limit > searcher.MaxLimit || body.Limit < 0 {
		return &Error{Status: fiber.StatusUnprocessableEntity, Message: "Validation failed", Details: map[string]any{
			"errors": []string{"limit must be between 1 and 100"},
		}}
	}
	mode, err := searcher.ParseMode(body.Mode)
	if err != nil {
		return err
	}

	req := searcher.Request{
		Collection: body.Collection,
		Query:      body.Query,
		Limit:      body.Limit,
		Mode:       mode,
		UseCache:   body.UseCache == nil || *body.UseCache,
	}
	if len(body.Languages) > 0 || len(body.ChunkTypes) > 0 || body.FilePattern != "" || body.MinRelevance > 0 {
		req.Filters = &storage.SearchFilters{
			Languages:    body.Languages,
			ChunkTypes:   body.ChunkTypes,
			FilePattern:  body.FilePattern,
			MinRelevance: body.MinRelevance,
		}
	}

	resp, err := s.deps.Searcher.Search(c.Context(), req)
	if errors.Is(err, storage.ErrNotFound) {
		return &Error{Status: fiber.StatusNotFound, Message: "Collection not found", Details: map[string]any{"name": req.Collection}}
	}
	if err != nil {
		return err
	}
	return c.JSON(resp)
}
