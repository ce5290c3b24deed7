package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jinford/solar-assistant/internal/module/chat/domain"
)

const (
	headerContentType = "Content-Type"
	mimeJSON          = "application/json"
	mimeEventStream   = "text/event-stream"

	streamBufferSize = 4096
)

// Relay はチャットリクエストをストリームに変換するサービス
type Relay interface {
	Relay(ctx context.Context, req domain.ChatRequest) (io.ReadCloser, error)
}

// ChatHandler は POST /api/chat を処理するハンドラ
type ChatHandler struct {
	relay  Relay
	logger *slog.Logger
}

// NewChatHandler は新しいChatHandlerを作成する
func NewChatHandler(relay Relay, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{relay: relay, logger: logger}
}

type errorResponse struct {
	Error string `json:"error"`
}

// chatRequestBody はmessageの有無を区別するための受信用の型
type chatRequestBody struct {
	Message     *string           `json:"message"`
	ChatHistory []domain.ChatTurn `json:"chatHistory"`
}

// decodeChatRequest はボディを読み取り、messageが文字列として存在することだけを確認する
func decodeChatRequest(r io.Reader) (domain.ChatRequest, error) {
	var body chatRequestBody
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return domain.ChatRequest{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	if body.Message == nil {
		return domain.ChatRequest{}, fmt.Errorf("%w: message is required", domain.ErrInvalidRequest)
	}
	if body.ChatHistory == nil {
		body.ChatHistory = []domain.ChatTurn{}
	}
	return domain.ChatRequest{Message: *body.Message, ChatHistory: body.ChatHistory}, nil
}

// Chat はリクエストを中継し、生成テキストを届いた順にそのまま書き出す
// ストリーム開始前の失敗は500 + JSONで返し、開始後の失敗は接続を中断する
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("requestID", domain.RequestIDFromContext(ctx))

	req, err := decodeChatRequest(r.Body)
	if err != nil {
		logger.Error("invalid chat request body", "error", err)
		writeError(w, http.StatusInternalServerError, "invalid request body")
		return
	}

	stream, err := h.relay.Relay(ctx, req)
	if err != nil {
		logger.Error("failed to start relay", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	defer stream.Close()

	w.Header().Set(headerContentType, mimeEventStream)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	_ = rc.Flush()

	buf := make([]byte, streamBufferSize)
	for {
		n, readErr := stream.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				// クライアント切断。streamのCloseで上流も止まる
				logger.Info("client disconnected during stream", "error", err)
				return
			}
			_ = rc.Flush()
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return
			}
			logger.Error("stream aborted", "error", readErr)
			// 正常終了に見せないよう、レスポンスを中断する
			panic(http.ErrAbortHandler)
		}
	}
}

// Health は稼働確認用のハンドラ
func (h *ChatHandler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set(headerContentType, mimeJSON)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set(headerContentType, mimeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message})
}
