package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"explicit provider wins", Config{Provider: "Ollama", JinaAPIKey: "k"}, ProviderOllama},
		{"jina key", Config{JinaAPIKey: "k", OpenAIAPIKey: "k"}, ProviderJina},
		{"openai key", Config{OpenAIAPIKey: "k"}, ProviderOpenAI},
		{"fallback", Config{}, ProviderLocal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectProvider(tt.cfg))
		})
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantName string
		wantErr  error
	}{
		{"local", Config{Provider: "local"}, "local/hashing-bow-384", nil},
		{"openai", Config{Provider: "openai", OpenAIAPIKey: "k"}, "openai/" + DefaultOpenAIModel, nil},
		{"jina custom model", Config{Provider: "jina", JinaAPIKey: "k", Model: "jina-code"}, "jina/jina-code", nil},
		{"ollama", Config{Provider: "ollama"}, "ollama/" + DefaultOllamaModel, nil},
		{"openai without key", Config{Provider: "openai"}, "", ErrNoProviderEnabled},
		{"unknown", Config{Provider: "word2vec"}, "", ErrUnsupportedProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, err := New(tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer model.Close()
			assert.Equal(t, tt.wantName, model.Name())
		})
	}
}
