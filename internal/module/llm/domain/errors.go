package domain

import "errors"

var (
	// ErrUpstreamStatus は推論エンドポイントが2xx以外を返した場合のエラー
	ErrUpstreamStatus = errors.New("unexpected upstream status")

	// ErrNoResponseBody はストリーミング応答にボディが無い場合のエラー
	ErrNoResponseBody = errors.New("no response body available")

	// ErrModelNotAvailable はモデルが利用できない場合のエラー
	ErrModelNotAvailable = errors.New("model not available")

	// ErrEmptyEmbedding はEmbeddingが空で返された場合のエラー
	ErrEmptyEmbedding = errors.New("empty embedding returned")

	// ErrAPIKeyNotSet はAPIキーが設定されていない場合のエラー
	ErrAPIKeyNotSet = errors.New("API key not set")
)
