package container

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	chatapp "github.com/jinford/solar-assistant/internal/module/chat/application"
	chatdomain "github.com/jinford/solar-assistant/internal/module/chat/domain"
	convfilestore "github.com/jinford/solar-assistant/internal/module/conversation/adapter/filestore"
	convapp "github.com/jinford/solar-assistant/internal/module/conversation/application"
	"github.com/jinford/solar-assistant/internal/module/ingestion/adapter/csvreader"
	ingestpg "github.com/jinford/solar-assistant/internal/module/ingestion/adapter/pg"
	ingestapp "github.com/jinford/solar-assistant/internal/module/ingestion/application"
	llmadapter "github.com/jinford/solar-assistant/internal/module/llm/adapter"
	llmdomain "github.com/jinford/solar-assistant/internal/module/llm/domain"
	"github.com/jinford/solar-assistant/pkg/config"
	"github.com/jinford/solar-assistant/pkg/db"
)

// Embeddingプロバイダ
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Container は設定から各モジュールのサービスを組み立てる
// DB接続は必要になった時点で確立する
type Container struct {
	Config *config.Config
	Logger *slog.Logger
	Ollama *llmadapter.OllamaClient

	mu       sync.Mutex
	database *db.DB
}

// New は新しいContainerを作成する
func New(cfg *config.Config, logger *slog.Logger) *Container {
	if logger == nil {
		logger = slog.Default()
	}

	ollama := llmadapter.NewOllamaClient(
		cfg.Ollama.BaseURL,
		llmadapter.WithOllamaTimeout(cfg.Ollama.Timeout),
		llmadapter.WithOllamaEmbeddingModel(cfg.Embedding.Model, cfg.Embedding.Dimension),
	)

	return &Container{
		Config: cfg,
		Logger: logger,
		Ollama: ollama,
	}
}

// GenerationSettings は設定から生成パラメータを組み立てる
func (c *Container) GenerationSettings() chatdomain.GenerationSettings {
	s := chatdomain.DefaultGenerationSettings()
	if c.Config.Ollama.ChatModel != "" {
		s.Model = c.Config.Ollama.ChatModel
	}
	s.Temperature = c.Config.Ollama.Temperature
	if c.Config.Ollama.MaxTokens > 0 {
		s.MaxTokens = c.Config.Ollama.MaxTokens
	}
	if c.Config.Ollama.ContextWindow > 0 {
		s.ContextWindow = c.Config.Ollama.ContextWindow
	}
	return s
}

// RelayService はチャットリレーのサービスを作成する
// トークナイザを取得できない場合は文字数による概算で代用する
func (c *Container) RelayService() *chatapp.RelayService {
	opts := []chatapp.RelayOption{
		chatapp.WithRelayLogger(c.Logger),
		chatapp.WithGenerationSettings(c.GenerationSettings()),
	}

	counter, err := llmadapter.NewTokenCounter()
	if err != nil {
		c.Logger.Warn("token counter unavailable, falling back to estimate", "error", err)
	}
	// nilの*TokenCounterも概算で動作する
	opts = append(opts, chatapp.WithTokenCounter(counter))

	return chatapp.NewRelayService(c.Ollama, opts...)
}

// Embedder は EMBEDDING_PROVIDER に応じたEmbedderを返す
func (c *Container) Embedder() (llmdomain.Embedder, error) {
	switch c.Config.Embedding.Provider {
	case "", ProviderOllama:
		return c.Ollama, nil
	case ProviderOpenAI:
		e, err := llmadapter.NewOpenAIEmbedder(
			c.Config.OpenAI.APIKey,
			c.Config.OpenAI.BaseURL,
			c.Config.Embedding.Model,
			c.Config.Embedding.Dimension,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai embedder: %w", err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", c.Config.Embedding.Provider)
	}
}

// Database はDB接続を返す。初回呼び出し時に接続する
func (c *Container) Database(ctx context.Context) (*db.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.database != nil {
		return c.database, nil
	}

	database, err := db.New(ctx, db.ConnectionParams{
		Host:     c.Config.Database.Host,
		Port:     c.Config.Database.Port,
		User:     c.Config.Database.User,
		Password: c.Config.Database.Password,
		DBName:   c.Config.Database.DBName,
		SSLMode:  c.Config.Database.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	c.database = database
	return database, nil
}

// TelemetryRepository は取り込み先テーブルのリポジトリを作成する
func (c *Container) TelemetryRepository(ctx context.Context) (*ingestpg.TelemetryRepository, error) {
	database, err := c.Database(ctx)
	if err != nil {
		return nil, err
	}
	return ingestpg.NewTelemetryRepository(database.Pool, c.Config.Ingestion.Table), nil
}

// IngestionService は取り込みジョブのサービスを作成する
// 事前チェックはOllamaを直接使う構成のときのみ有効にする
func (c *Container) IngestionService(repo *ingestpg.TelemetryRepository) (*ingestapp.IngestionService, error) {
	embedder, err := c.Embedder()
	if err != nil {
		return nil, err
	}

	opts := []ingestapp.IngestionOption{
		ingestapp.WithIngestionLogger(c.Logger),
		ingestapp.WithPacer(ingestapp.NewPacer(c.Config.Ingestion.PauseEvery, c.Config.Ingestion.Pause)),
	}
	if c.Config.Embedding.Provider == "" || c.Config.Embedding.Provider == ProviderOllama {
		opts = append(opts, ingestapp.WithModelManager(c.Ollama, c.Config.Embedding.Model))
	}

	return ingestapp.NewIngestionService(csvreader.New(), repo, embedder, opts...), nil
}

// ConversationClient は会話クライアントを作成し、保存済みの履歴を復元する
func (c *Container) ConversationClient(ctx context.Context) *convapp.Client {
	store := convfilestore.New(c.Config.Client.HistoryPath)
	return convapp.NewClient(ctx, c.Config.Client.RelayURL, store,
		convapp.WithClientLogger(c.Logger),
		convapp.WithHistoryLimit(c.Config.Client.HistoryLimit),
	)
}

// Close は保持しているリソースを解放する
func (c *Container) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.database != nil {
		c.database.Close()
		c.database = nil
	}
}
