package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Provider configuration
const (
	ProviderLocal  = "local"
	ProviderOpenAI = "openai"
	ProviderJina   = "jina"
	ProviderOllama = "ollama"

	// Default models
	DefaultLocalModel  = "hashing-bow"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOllamaModel = "nomic-embed-text"

	// Default endpoints
	DefaultOpenAIEndpoint = "https://api.openai.com/v1/embeddings"
	DefaultJinaEndpoint   = "https://api.jina.ai/v1/embeddings"
	DefaultOllamaEndpoint = "http://localhost:11434"

	// Dimensions
	LocalDimension  = 384
	OpenAIDimension = 1536
	JinaDimension   = 1024
	OllamaDimension = 768

	// Batch limits
	DefaultBatchSize = 32
	MaxBatchSize     = 100

	defaultHTTPTimeout = 30 * time.Second
)

// encodeBatches splits texts into request-sized batches, applies
// normalization and logs progress. call must return one vector per text.
func encodeBatches(ctx context.Context, logger *slog.Logger, name string, texts []string, opts EncodeOptions, call func(context.Context, []string) ([][]float32, error)) ([][]float32, error) {
	size := opts.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	size = min(size, MaxBatchSize)

	batches := (len(texts) + size - 1) / size
	out := make([][]float32, 0, len(texts))

	for n, start := 1, 0; start < len(texts); n, start = n+1, start+size {
		end := min(start+size, len(texts))
		vecs, err := call(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("%w: %s batch %d/%d: %w", ErrProviderFailed, name, n, batches, err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("%w: %s returned %d vectors for %d texts", ErrProviderFailed, name, len(vecs), end-start)
		}
		if opts.Normalize {
			for _, v := range vecs {
				NormalizeVector(v)
			}
		}
		out = append(out, vecs...)

		if opts.ShowProgress {
			logger.Info("encoded batch", "model", name, "batch", n, "batches", batches, "texts", end)
		}
	}

	return out, nil
}

// postJSON sends body to url and decodes a 200 response into out. 4xx other
// than 429 are not retried.
func postJSON(ctx context.Context, client *http.Client, url, apiKey string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("api error %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return permanent(err)
		}
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// HTTPModel talks to an OpenAI-compatible /embeddings endpoint. OpenAI and
// Jina share the same request and response shape.
type HTTPModel struct {
	provider   string
	endpoint   string
	apiKey     string
	model      string
	dimension  int
	httpClient *http.Client
	retry      RetryConfig
	logger     *slog.Logger
}

// NewOpenAIModel creates an OpenAI embedding model
func NewOpenAIModel(cfg Config) (*HTTPModel, error) {
	return newHTTPModel(ProviderOpenAI, cfg.OpenAIAPIKey, DefaultOpenAIEndpoint, DefaultOpenAIModel, OpenAIDimension, cfg)
}

// NewJinaModel creates a Jina AI embedding model
func NewJinaModel(cfg Config) (*HTTPModel, error) {
	return newHTTPModel(ProviderJina, cfg.JinaAPIKey, DefaultJinaEndpoint, DefaultJinaModel, JinaDimension, cfg)
}

func newHTTPModel(provider, apiKey, endpoint, model string, dimension int, cfg Config) (*HTTPModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s API key not set", ErrNoProviderEnabled, provider)
	}
	if cfg.Endpoint != "" {
		endpoint = cfg.Endpoint
	}
	if cfg.Model != "" {
		model = cfg.Model
	}
	if cfg.Dimension > 0 {
		dimension = cfg.Dimension
	}

	return &HTTPModel{
		provider:   provider,
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
		dimension:  dimension,
		httpClient: &http.Client{Timeout: cfg.timeout()},
		retry:      DefaultRetryConfig(),
		logger:     cfg.logger(),
	}, nil
}

func (m *HTTPModel) Encode(ctx context.Context, texts []string, opts EncodeOptions) ([][]float32, error) {
	return encodeBatches(ctx, m.logger, m.Name(), texts, opts, func(ctx context.Context, batch []string) ([][]float32, error) {
		return retryWithBackoff(ctx, m.retry, func() ([][]float32, error) {
			return m.callAPI(ctx, batch)
		})
	})
}

func (m *HTTPModel) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}

	body := map[string]any{
		"input": texts,
		"model": m.model,
	}
	if err := postJSON(ctx, m.httpClient, m.endpoint, m.apiKey, body, &apiResp); err != nil {
		return nil, err
	}

	sort.SliceStable(apiResp.Data, func(i, j int) bool {
		return apiResp.Data[i].Index < apiResp.Data[j].Index
	})
	vecs := make([][]float32, len(apiResp.Data))
	for i, d := range apiResp.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

func (m *HTTPModel) Dimension() int { return m.dimension }

func (m *HTTPModel) Name() string { return m.provider + "/" + m.model }

func (m *HTTPModel) Close() error {
	m.httpClient.CloseIdleConnections()
	return nil
}

// OllamaModel uses a local Ollama server's /api/embed endpoint
type OllamaModel struct {
	baseURL    string
	model      string
	dimension  int
	httpClient *http.Client
	retry      RetryConfig
	logger     *slog.Logger
}

// NewOllamaModel creates an Ollama embedding model
func NewOllamaModel(cfg Config) *OllamaModel {
	m := &OllamaModel{
		baseURL:    DefaultOllamaEndpoint,
		model:      DefaultOllamaModel,
		dimension:  OllamaDimension,
		httpClient: &http.Client{Timeout: cfg.timeout()},
		retry:      DefaultRetryConfig(),
		logger:     cfg.logger(),
	}
	if cfg.Endpoint != "" {
		m.baseURL = strings.TrimRight(cfg.Endpoint, "/")
	}
	if cfg.Model != "" {
		m.model = cfg.Model
	}
	if cfg.Dimension > 0 {
		m.dimension = cfg.Dimension
	}
	return m
}

func (m *OllamaModel) Encode(ctx context.Context, texts []string, opts EncodeOptions) ([][]float32, error) {
	return encodeBatches(ctx, m.logger, m.Name(), texts, opts, func(ctx context.Context, batch []string) ([][]float32, error) {
		return retryWithBackoff(ctx, m.retry, func() ([][]float32, error) {
			var resp struct {
				Embeddings [][]float32 `json:"embeddings"`
			}
			body := map[string]any{"model": m.model, "input": batch}
			if err := postJSON(ctx, m.httpClient, m.baseURL+"/api/embed", "", body, &resp); err != nil {
				return nil, err
			}
			return resp.Embeddings, nil
		})
	})
}

func (m *OllamaModel) Dimension() int { return m.dimension }

func (m *OllamaModel) Name() string { return ProviderOllama + "/" + m.model }

func (m *OllamaModel) Close() error {
	m.httpClient.CloseIdleConnections()
	return nil
}

// LocalModel is an offline model that hashes lowercase words into a fixed
// number of buckets. Texts sharing words end up close in cosine distance,
// which is enough for keyword-ish retrieval without network access.
type LocalModel struct {
	dimension int
	logger    *slog.Logger
}

// NewLocalModel creates the offline hashing model
func NewLocalModel(cfg Config) *LocalModel {
	dim := cfg.Dimension
	if dim <= 0 {
		dim = LocalDimension
	}
	return &LocalModel{dimension: dim, logger: cfg.logger()}
}

func (l *LocalModel) Encode(ctx context.Context, texts []string, opts EncodeOptions) ([][]float32, error) {
	return encodeBatches(ctx, l.logger, l.Name(), texts, opts, func(ctx context.Context, batch []string) ([][]float32, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vecs := make([][]float32, len(batch))
		for i, text := range batch {
			vecs[i] = l.embed(text)
		}
		return vecs, nil
	})
}

func (l *LocalModel) embed(text string) []float32 {
	vec := make([]float32, l.dimension)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := sha256.Sum256([]byte(word))
		bucket := binary.LittleEndian.Uint32(h[:4]) % uint32(l.dimension)
		if h[4]&1 == 1 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}
	return vec
}

func (l *LocalModel) Dimension() int { return l.dimension }

// Name carries the dimension so vectors of different sizes are never mixed
func (l *LocalModel) Name() string {
	return fmt.Sprintf("%s/%s-%d", ProviderLocal, DefaultLocalModel, l.dimension)
}

func (l *LocalModel) Close() error { return nil }
