package container

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	llmadapter "github.com/jinford/solar-assistant/internal/module/llm/adapter"
	"github.com/jinford/solar-assistant/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Ollama: config.OllamaConfig{
			BaseURL:       "http://127.0.0.1:11434",
			ChatModel:     "llama3.2:1b",
			Temperature:   0.2,
			MaxTokens:     256,
			ContextWindow: 2048,
			Timeout:       time.Second,
		},
		Embedding: config.EmbeddingConfig{
			Provider:  ProviderOllama,
			Model:     "nomic-embed-text:latest",
			Dimension: 768,
		},
		Ingestion: config.IngestionConfig{PauseEvery: 10, Pause: time.Second},
		Client: config.ClientConfig{
			RelayURL:     "http://127.0.0.1:8080",
			HistoryPath:  filepath.Join(t.TempDir(), "history.json"),
			HistoryLimit: 10,
		},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestContainer_GenerationSettings(t *testing.T) {
	c := New(testConfig(t), quietLogger())

	s := c.GenerationSettings()
	assert.Equal(t, "llama3.2:1b", s.Model)
	assert.Equal(t, 0.2, s.Temperature)
	assert.Equal(t, 256, s.MaxTokens)
	assert.Equal(t, 2048, s.ContextWindow)
}

func TestContainer_Embedder(t *testing.T) {
	t.Run("ollama", func(t *testing.T) {
		c := New(testConfig(t), quietLogger())
		e, err := c.Embedder()
		require.NoError(t, err)
		assert.IsType(t, &llmadapter.OllamaClient{}, e)
		assert.Equal(t, 768, e.Dimension())
	})

	t.Run("openai compatible", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Embedding.Provider = ProviderOpenAI
		cfg.OpenAI.BaseURL = "http://127.0.0.1:11434/v1"

		e, err := New(cfg, quietLogger()).Embedder()
		require.NoError(t, err)
		assert.IsType(t, &llmadapter.OpenAIEmbedder{}, e)
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Embedding.Provider = "gemini"

		_, err := New(cfg, quietLogger()).Embedder()
		assert.Error(t, err)
	})
}

func TestContainer_ConversationClientStartsEmpty(t *testing.T) {
	c := New(testConfig(t), quietLogger())
	client := c.ConversationClient(context.Background())
	assert.Empty(t, client.Turns())
}

func TestContainer_CloseWithoutDatabase(t *testing.T) {
	c := New(testConfig(t), quietLogger())
	assert.NotPanics(t, c.Close)
}
