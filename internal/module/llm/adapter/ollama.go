package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jinford/solar-assistant/internal/module/llm/domain"
)

const (
	// DefaultOllamaURL はローカルOllamaのデフォルトURL
	DefaultOllamaURL = "http://localhost:11434"

	// DefaultTimeout は非ストリーミング呼び出しのデフォルトタイムアウト
	DefaultTimeout = 60 * time.Second

	mimeJSON          = "application/json"
	headerContentType = "Content-Type"
)

// OllamaClient はOllama REST APIのクライアント実装
// 利用するエンドポイント:
//   - POST /api/generate   ストリーミング生成
//   - POST /api/embeddings 単一テキストのEmbedding
//   - GET  /api/tags       モデル一覧
//   - POST /api/pull       モデルの取得
type OllamaClient struct {
	baseURL        string
	embeddingModel string
	dimension      int
	timeout        time.Duration

	// ストリーミングは応答時間が読めないため、クライアント側のタイムアウトは付けない
	httpClient *http.Client
}

// OllamaOption は OllamaClient 構築時のオプション
type OllamaOption func(*OllamaClient)

// WithOllamaHTTPClient はHTTPクライアントを差し替える
func WithOllamaHTTPClient(c *http.Client) OllamaOption {
	return func(o *OllamaClient) {
		o.httpClient = c
	}
}

// WithOllamaTimeout は非ストリーミング呼び出しのタイムアウトを設定する
func WithOllamaTimeout(timeout time.Duration) OllamaOption {
	return func(o *OllamaClient) {
		o.timeout = timeout
	}
}

// WithOllamaEmbeddingModel はEmbeddingモデルと次元数を設定する
func WithOllamaEmbeddingModel(model string, dimension int) OllamaOption {
	return func(o *OllamaClient) {
		o.embeddingModel = model
		o.dimension = dimension
	}
}

// NewOllamaClient は新しいOllamaClientを作成します
func NewOllamaClient(baseURL string, opts ...OllamaOption) *OllamaClient {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}

	c := &OllamaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    DefaultTimeout,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

type ollamaTagsResponse struct {
	Models []domain.ModelInfo `json:"models"`
}

type ollamaPullRequest struct {
	Name   string `json:"name"`
	Stream bool   `json:"stream"`
}

type ollamaPullResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// GenerateStream は POST /api/generate を呼び出し、NDJSONのボディをそのまま返す
// domain.StreamGeneratorインターフェースを実装
func (c *OllamaClient) GenerateStream(ctx context.Context, req domain.GenerateRequest) (io.ReadCloser, error) {
	req.Stream = true

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generate request: %w", err)
	}

	respBody, err := c.doPost(ctx, "/api/generate", body)
	if err != nil {
		return nil, err
	}
	if respBody == nil || respBody == http.NoBody {
		return nil, domain.ErrNoResponseBody
	}
	return respBody, nil
}

// Embed は POST /api/embeddings でテキストのEmbeddingを生成する
// domain.Embedderインターフェースを実装
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(ollamaEmbedRequest{Model: c.embeddingModel, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	respBody, err := c.doPost(ctx, "/api/embeddings", body)
	if err != nil {
		return nil, err
	}
	defer respBody.Close()

	var resp ollamaEmbedResponse
	if err := json.NewDecoder(respBody).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, domain.ErrEmptyEmbedding
	}
	return resp.Embedding, nil
}

// Dimension はEmbeddingベクトルの次元数を返す
func (c *OllamaClient) Dimension() int {
	return c.dimension
}

// EmbeddingModel はEmbeddingに使うモデル名を返す
func (c *OllamaClient) EmbeddingModel() string {
	return c.embeddingModel
}

// ListModels は GET /api/tags で利用可能なモデル一覧を取得する
func (c *OllamaClient) ListModels(ctx context.Context) ([]domain.ModelInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("ollama get /api/tags: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama get /api/tags: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama get /api/tags: %w: %d", domain.ErrUpstreamStatus, resp.StatusCode)
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags response: %w", err)
	}
	return tags.Models, nil
}

// PullModel は POST /api/pull でモデルの取得を要求し、完了まで待機する
// モデルサイズ次第で長時間かかるため、タイムアウトは呼び出し側のcontextに委ねる
func (c *OllamaClient) PullModel(ctx context.Context, name string) error {
	body, err := json.Marshal(ollamaPullRequest{Name: name, Stream: false})
	if err != nil {
		return fmt.Errorf("failed to marshal pull request: %w", err)
	}

	respBody, err := c.doPost(ctx, "/api/pull", body)
	if err != nil {
		return err
	}
	defer respBody.Close()

	var resp ollamaPullResponse
	if err := json.NewDecoder(respBody).Decode(&resp); err != nil && err != io.EOF {
		return fmt.Errorf("failed to decode pull response: %w", err)
	}
	if resp.Error != "" {
		return fmt.Errorf("%w: %s: %s", domain.ErrModelNotAvailable, name, resp.Error)
	}
	return nil
}

// doPost は baseURL+path へPOSTし、レスポンスボディを返す
// 返されたボディのCloseは呼び出し側の責務
func (c *OllamaClient) doPost(ctx context.Context, path string, body []byte) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama post %s: build request: %w", path, err)
	}
	req.Header.Set(headerContentType, mimeJSON)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama post %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("ollama post %s: %w: %d", path, domain.ErrUpstreamStatus, resp.StatusCode)
	}
	return resp.Body, nil
}

// インターフェース実装の確認
var (
	_ domain.StreamGenerator = (*OllamaClient)(nil)
	_ domain.Embedder        = (*OllamaClient)(nil)
	_ domain.ModelManager    = (*OllamaClient)(nil)
)
