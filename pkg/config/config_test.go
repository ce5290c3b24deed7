package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, "qwen2.5:1.5b", cfg.Ollama.ChatModel)
	assert.InDelta(t, 0.7, cfg.Ollama.Temperature, 1e-9)
	assert.Equal(t, 500, cfg.Ollama.MaxTokens)
	assert.Equal(t, 4096, cfg.Ollama.ContextWindow)
	assert.Equal(t, "nomic-embed-text:latest", cfg.Embedding.Model)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, 10, cfg.Ingestion.PauseEvery)
	assert.Equal(t, time.Second, cfg.Ingestion.Pause)
	assert.Equal(t, "solar_data", cfg.Ingestion.Table)
	assert.Equal(t, 10, cfg.Client.HistoryLimit)
}

func TestLoad_MissingEnvFileIsTolerated(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.env"))
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OLLAMA_URL", "http://ollama:11434")
	t.Setenv("OLLAMA_MAX_TOKENS", "256")
	t.Setenv("OLLAMA_TEMPERATURE", "0.2")
	t.Setenv("INGEST_PAUSE", "250ms")
	t.Setenv("DB_PORT", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://ollama:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, 256, cfg.Ollama.MaxTokens)
	assert.InDelta(t, 0.2, cfg.Ollama.Temperature, 1e-9)
	assert.Equal(t, 250*time.Millisecond, cfg.Ingestion.Pause)
	// 不正値はデフォルトにフォールバック
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestLoad_FromEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("DB_HOST=db.internal\nEMBEDDING_PROVIDER=openai\n"), 0o600))

	// godotenv は既存の環境変数を上書きしないため、テスト後に消しておく
	t.Cleanup(func() {
		os.Unsetenv("DB_HOST")
		os.Unsetenv("EMBEDDING_PROVIDER")
	})

	cfg, err := Load(envPath)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
}
