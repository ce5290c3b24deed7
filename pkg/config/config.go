package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// Database設定（取り込みジョブの保存先）
	Database DatabaseConfig

	// Ollama設定（テキスト生成 + Embedding）
	Ollama OllamaConfig

	// Embedding設定
	Embedding EmbeddingConfig

	// OpenAI互換API設定（EMBEDDING_PROVIDER=openai の場合に使用）
	OpenAI OpenAIConfig

	// HTTPサーバ設定
	Server ServerConfig

	// 取り込みジョブ設定
	Ingestion IngestionConfig

	// 会話クライアント設定
	Client ClientConfig

	// ログ設定
	Log LogConfig
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// OllamaConfig は推論エンドポイントの設定
type OllamaConfig struct {
	BaseURL       string
	ChatModel     string
	Temperature   float64
	MaxTokens     int
	ContextWindow int
	Timeout       time.Duration // 非ストリーミング呼び出しのタイムアウト
}

// EmbeddingConfig はEmbedding生成の設定
type EmbeddingConfig struct {
	Provider  string // "ollama" or "openai"
	Model     string
	Dimension int
}

// OpenAIConfig はOpenAI互換API設定
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // Ollamaの /v1 を指す場合もある
}

// ServerConfig はHTTPサーバ設定
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

// IngestionConfig はCSV取り込みジョブの設定
type IngestionConfig struct {
	CSVPath    string
	Table      string
	PauseEvery int
	Pause      time.Duration
}

// ClientConfig は会話クライアントの設定
type ClientConfig struct {
	RelayURL     string // リレーのベースURL（/api/chat は付けない）
	HistoryPath  string
	HistoryLimit int
}

// LogConfig はロガー設定
type LogConfig struct {
	Level  string
	Format string
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "postgres"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Ollama: OllamaConfig{
			BaseURL:       getEnv("OLLAMA_URL", "http://localhost:11434"),
			ChatModel:     getEnv("OLLAMA_CHAT_MODEL", "qwen2.5:1.5b"),
			Temperature:   getEnvAsFloat("OLLAMA_TEMPERATURE", 0.7),
			MaxTokens:     getEnvAsInt("OLLAMA_MAX_TOKENS", 500),
			ContextWindow: getEnvAsInt("OLLAMA_CONTEXT_WINDOW", 4096),
			Timeout:       getEnvAsDuration("OLLAMA_TIMEOUT", 60*time.Second),
		},
		Embedding: EmbeddingConfig{
			Provider:  getEnv("EMBEDDING_PROVIDER", "ollama"),
			Model:     getEnv("EMBEDDING_MODEL", "nomic-embed-text:latest"),
			Dimension: getEnvAsInt("EMBEDDING_DIMENSION", 768),
		},
		OpenAI: OpenAIConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
		},
		Server: ServerConfig{
			Port:            getEnvAsInt("HTTP_PORT", 8080),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Ingestion: IngestionConfig{
			CSVPath:    getEnv("INGEST_CSV_PATH", "Plant_1_Generation_Data.csv"),
			Table:      getEnv("INGEST_TABLE", "solar_data"),
			PauseEvery: getEnvAsInt("INGEST_PAUSE_EVERY", 10),
			Pause:      getEnvAsDuration("INGEST_PAUSE", time.Second),
		},
		Client: ClientConfig{
			RelayURL:     getEnv("CHAT_RELAY_URL", "http://localhost:8080"),
			HistoryPath:  getEnv("CHAT_HISTORY_PATH", ".solar-assistant/chat_history.json"),
			HistoryLimit: getEnvAsInt("CHAT_HISTORY_LIMIT", 10),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat は環境変数を浮動小数点数として取得します
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は環境変数を time.Duration として取得します（例: "1s", "500ms"）
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
