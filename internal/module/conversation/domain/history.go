package domain

import (
	"context"

	chatdomain "github.com/jinford/solar-assistant/internal/module/chat/domain"
)

// ChatTurn は会話の1ターン。リレーのワイヤ形式と同じ
type ChatTurn = chatdomain.ChatTurn

// ApologyMessage はリクエスト失敗時にアシスタントターンとして表示する固定文
const ApologyMessage = "Sorry, there was an error processing your request."

// HistoryStore は会話履歴を永続化する単一スロットの抽象
type HistoryStore interface {
	// Load は保存済みの履歴を返す。スロットが無い場合は空を返す
	Load(ctx context.Context) ([]ChatTurn, error)

	// Save は履歴全体でスロットを上書きする
	Save(ctx context.Context, turns []ChatTurn) error

	// Clear はスロットを削除する
	Clear(ctx context.Context) error
}
