package application

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jinford/solar-assistant/internal/module/chat/domain"
	llmdomain "github.com/jinford/solar-assistant/internal/module/llm/domain"
)

// TokenCounter はプロンプトのトークン数を数えるインターフェース
type TokenCounter interface {
	CountTokens(text string) int
}

// RelayService はチャットリクエストを推論エンドポイントへ中継し、
// 生成テキストをストリームとして返す
type RelayService struct {
	generator llmdomain.StreamGenerator
	settings  domain.GenerationSettings
	tokens    TokenCounter
	logger    *slog.Logger
}

// RelayOption は RelayService 構築時のオプション
type RelayOption func(*RelayService)

// WithRelayLogger は RelayService にロガーを設定する
func WithRelayLogger(logger *slog.Logger) RelayOption {
	return func(s *RelayService) {
		s.logger = logger
	}
}

// WithGenerationSettings は生成パラメータを差し替える
func WithGenerationSettings(settings domain.GenerationSettings) RelayOption {
	return func(s *RelayService) {
		s.settings = settings
	}
}

// WithTokenCounter はプロンプトサイズ検査に使うカウンタを設定する
func WithTokenCounter(counter TokenCounter) RelayOption {
	return func(s *RelayService) {
		s.tokens = counter
	}
}

// NewRelayService は新しいRelayServiceを作成する
func NewRelayService(generator llmdomain.StreamGenerator, opts ...RelayOption) *RelayService {
	svc := &RelayService{
		generator: generator,
		settings:  domain.DefaultGenerationSettings(),
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(svc)
	}

	if svc.logger == nil {
		svc.logger = slog.Default()
	}

	return svc
}

// Relay はプロンプトを構築してストリーミング生成を開始し、テキスト断片のストリームを返す
// 上流への接続に失敗した場合はストリームを開く前にエラーを返す
// 上流の読み取りが途中で失敗した場合は、返したストリームの読み取りがそのエラーで終わる
// ctxがキャンセルされると上流リクエストも中断される
// メッセージの内容は検証せず、空白のみでもそのまま中継する
func (s *RelayService) Relay(ctx context.Context, req domain.ChatRequest) (io.ReadCloser, error) {
	logger := s.logger.With("requestID", domain.RequestIDFromContext(ctx))

	prompt := domain.BuildPrompt(req.Message, req.ChatHistory)

	if s.tokens != nil {
		promptTokens := s.tokens.CountTokens(prompt)
		logger.Debug("prompt built", "historyTurns", len(req.ChatHistory), "promptTokens", promptTokens)
		if s.settings.ContextWindow > 0 && promptTokens > s.settings.ContextWindow {
			logger.Warn("prompt exceeds context window",
				"promptTokens", promptTokens,
				"contextWindow", s.settings.ContextWindow,
			)
		}
	}

	body, err := s.generator.GenerateStream(ctx, llmdomain.GenerateRequest{
		Model:         s.settings.Model,
		Prompt:        prompt,
		Stream:        true,
		Temperature:   s.settings.Temperature,
		MaxTokens:     s.settings.MaxTokens,
		ContextWindow: s.settings.ContextWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start generation: %w", err)
	}
	if body == nil {
		return nil, llmdomain.ErrNoResponseBody
	}

	pr, pw := io.Pipe()
	go s.pump(body, pw, logger)

	return pr, nil
}

// pump は上流のNDJSONを行単位で読み、response断片をパイプへ書き込む
// 正常終了時はパイプを閉じ、読み取りエラー時はそのエラーでパイプを中断する
func (s *RelayService) pump(body io.ReadCloser, pw *io.PipeWriter, logger *slog.Logger) {
	defer body.Close()

	reader := bufio.NewReader(body)
	for {
		line, readErr := reader.ReadBytes('\n')

		if len(line) > 0 {
			done, err := forwardLine(line, pw, logger)
			if err != nil {
				// 読み手が閉じられた（クライアント切断）。上流はdeferで閉じる
				logger.Info("stream consumer went away", "error", err)
				pw.CloseWithError(err)
				return
			}
			if done {
				pw.Close()
				return
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				pw.Close()
				return
			}
			logger.Error("stream processing error", "error", readErr)
			pw.CloseWithError(readErr)
			return
		}
	}
}

// forwardLine は1行を解釈し、断片があれば書き込む。完了フラグを返す
// JSONとして解釈できない行は警告を出して読み飛ばす
func forwardLine(line []byte, w io.Writer, logger *slog.Logger) (bool, error) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return false, nil
	}

	var chunk llmdomain.GenerateChunk
	if err := json.Unmarshal(trimmed, &chunk); err != nil {
		logger.Warn("error parsing stream line", "error", err, "line", string(trimmed))
		return false, nil
	}

	if chunk.Response != "" {
		if _, err := io.WriteString(w, chunk.Response); err != nil {
			return false, err
		}
	}

	return chunk.Done, nil
}
