package domain

import (
	"context"
	"io"
)

// GenerateRequest は /api/generate に送るストリーミング生成リクエスト
type GenerateRequest struct {
	Model         string  `json:"model"`
	Prompt        string  `json:"prompt"`
	Stream        bool    `json:"stream"`
	Temperature   float64 `json:"temperature"`
	MaxTokens     int     `json:"max_tokens"`
	ContextWindow int     `json:"context_window"`
}

// GenerateChunk はストリーミング応答の1行（NDJSON）を表す
type GenerateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// StreamGenerator はストリーミング生成を行うインターフェース
type StreamGenerator interface {
	// GenerateStream は生成リクエストを送信し、NDJSONの生ボディを返す
	// 呼び出し側がCloseする責務を持つ
	GenerateStream(ctx context.Context, req GenerateRequest) (io.ReadCloser, error)
}

// ModelInfo は利用可能なモデルの情報
type ModelInfo struct {
	Name string `json:"name"`
}

// ModelManager はモデルの一覧取得とpullを行うインターフェース
type ModelManager interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
	PullModel(ctx context.Context, name string) error
}
