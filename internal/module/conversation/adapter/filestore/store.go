package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jinford/solar-assistant/internal/module/conversation/domain"
)

// ErrCorruptHistory は保存済みスロットがJSONとして解釈できない場合のエラー
var ErrCorruptHistory = errors.New("corrupt chat history")

// Store はJSONファイル1つを履歴スロットとして扱うHistoryStore実装
type Store struct {
	path string
}

// New は指定パスをスロットとするStoreを作成する
func New(path string) *Store {
	return &Store{path: path}
}

// Path はスロットのファイルパスを返す
func (s *Store) Path() string {
	return s.path
}

// Load はスロットを読み込む。存在しない・空の場合は空の履歴を返す
func (s *Store) Load(_ context.Context) ([]domain.ChatTurn, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []domain.ChatTurn{}, nil
		}
		return nil, fmt.Errorf("failed to read chat history: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return []domain.ChatTurn{}, nil
	}

	var turns []domain.ChatTurn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptHistory, err)
	}
	if turns == nil {
		turns = []domain.ChatTurn{}
	}
	return turns, nil
}

// Save は履歴全体を一時ファイルに書いてからリネームし、スロットを置き換える
func (s *Store) Save(_ context.Context, turns []domain.ChatTurn) error {
	if turns == nil {
		turns = []domain.ChatTurn{}
	}

	data, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("failed to marshal chat history: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".chat_history-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp history file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write chat history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp history file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace chat history: %w", err)
	}
	return nil
}

// Clear はスロットを削除する。存在しない場合は何もしない
func (s *Store) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove chat history: %w", err)
	}
	return nil
}

// インターフェース実装の確認
var _ domain.HistoryStore = (*Store)(nil)
