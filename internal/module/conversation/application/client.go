package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"unicode/utf8"

	chatdomain "github.com/jinford/solar-assistant/internal/module/chat/domain"
	"github.com/jinford/solar-assistant/internal/module/conversation/domain"
)

// ErrEmptyMessage は空白のみのメッセージを送ろうとした場合のエラー
var ErrEmptyMessage = errors.New("message is empty")

const chatPath = "/api/chat"

// UpdateFunc は履歴が変化するたびに現在の全ターンを受け取るコールバック
type UpdateFunc func(turns []domain.ChatTurn)

// Client はリレーと会話し、履歴をHistoryStoreに保存するクライアント
type Client struct {
	relayURL     string
	store        domain.HistoryStore
	httpClient   *http.Client
	historyLimit int
	logger       *slog.Logger

	mu    sync.Mutex
	turns []domain.ChatTurn
	// gen はClearのたびに進む。送信中のストリームは世代が変わると履歴に書き込まない
	gen uint64
}

// ClientOption はClientのオプション設定関数
type ClientOption func(*Client)

// WithClientLogger はロガーを設定する
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient はリレー呼び出しに使うHTTPクライアントを設定する
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithHistoryLimit はリレーに送る過去ターン数の上限を設定する
func WithHistoryLimit(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.historyLimit = n
		}
	}
}

// NewClient は新しいClientを作成し、保存済みの履歴を復元する
// 復元に失敗した場合は警告を出して空の履歴から始める
func NewClient(ctx context.Context, relayURL string, store domain.HistoryStore, opts ...ClientOption) *Client {
	c := &Client{
		relayURL:     strings.TrimRight(relayURL, "/"),
		store:        store,
		httpClient:   http.DefaultClient,
		historyLimit: chatdomain.DefaultWindowSize,
		logger:       slog.Default(),
		turns:        []domain.ChatTurn{},
	}
	for _, opt := range opts {
		opt(c)
	}

	turns, err := store.Load(ctx)
	if err != nil {
		c.logger.Warn("failed to restore chat history, starting empty", "error", err)
	} else {
		c.turns = turns
	}

	return c
}

// Turns は現在の履歴のコピーを返す
func (c *Client) Turns() []domain.ChatTurn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// Clear はメモリ上の履歴と保存済みスロットを消去する
func (c *Client) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.turns = []domain.ChatTurn{}
	c.gen++
	c.mu.Unlock()

	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear chat history: %w", err)
	}
	return nil
}

// Send はメッセージをリレーへ送り、ストリームを受信しながら履歴を更新する
// リレー側の失敗は履歴に謝罪文として残り、エラーとしても返す
func (c *Client) Send(ctx context.Context, message string, onUpdate UpdateFunc) error {
	if strings.TrimSpace(message) == "" {
		return ErrEmptyMessage
	}
	if onUpdate == nil {
		onUpdate = func([]domain.ChatTurn) {}
	}

	c.mu.Lock()
	prior := chatdomain.Window(c.turns, c.historyLimit)
	c.turns = append(c.turns, domain.ChatTurn{Content: message, IsUser: true})
	gen := c.gen
	c.commit(ctx, onUpdate)
	c.mu.Unlock()

	placeholder := -1
	err := c.stream(ctx, chatdomain.ChatRequest{Message: message, ChatHistory: prior}, func(text string) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen != gen {
			return
		}
		if placeholder < 0 {
			c.turns = append(c.turns, domain.ChatTurn{IsUser: false})
			placeholder = len(c.turns) - 1
		}
		c.turns[placeholder].Content = text
		c.commit(ctx, onUpdate)
	})
	if err == nil {
		return nil
	}

	c.logger.Error("chat request failed", "error", err)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		c.logger.Debug("history cleared during request, dropping apology")
		return err
	}
	apology := domain.ChatTurn{Content: domain.ApologyMessage, IsUser: false}
	if placeholder >= 0 {
		c.turns[placeholder] = apology
	} else {
		c.turns = append(c.turns, apology)
	}
	c.commit(ctx, onUpdate)

	return err
}

// stream はリレーへPOSTし、受信した累積テキストを都度onTextへ渡す
// 2xxで応答を受けた時点で空文字を1度渡し、プレースホルダを作らせる
func (c *Client) stream(ctx context.Context, req chatdomain.ChatRequest, onText func(string)) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.relayURL+chatPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to call relay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("relay returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	onText("")

	var acc []byte
	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			acc = append(acc, buf[:n]...)
			onText(decodedPrefix(acc))
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				// 末尾で途切れたマルチバイト文字は置換文字として確定させる
				if !utf8.Valid(acc) {
					onText(strings.ToValidUTF8(string(acc), string(utf8.RuneError)))
				}
				return nil
			}
			return fmt.Errorf("relay stream interrupted: %w", readErr)
		}
	}
}

// commit は履歴を保存し、コールバックに通知する。呼び出し側でmuを保持すること
func (c *Client) commit(ctx context.Context, onUpdate UpdateFunc) {
	if err := c.store.Save(ctx, c.turns); err != nil {
		c.logger.Warn("failed to persist chat history", "error", err)
	}
	onUpdate(c.snapshot())
}

func (c *Client) snapshot() []domain.ChatTurn {
	out := make([]domain.ChatTurn, len(c.turns))
	copy(out, c.turns)
	return out
}

// decodedPrefix はUTF-8として完結している部分までを文字列化する
// チャンク境界で分断されたマルチバイト文字は次のチャンクまで保留される
func decodedPrefix(b []byte) string {
	end := len(b)
	for i := 1; i <= utf8.UTFMax && i <= len(b); i++ {
		start := len(b) - i
		if !utf8.RuneStart(b[start]) {
			continue
		}
		if !utf8.FullRune(b[start:]) {
			end = start
		}
		break
	}
	return string(b[:end])
}
