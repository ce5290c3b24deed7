package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jinford/solar-assistant/internal/platform/container"
	"github.com/jinford/solar-assistant/internal/platform/logger"
	"github.com/jinford/solar-assistant/pkg/config"
)

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Config    *config.Config
	Container *container.Container
}

// NewAppContext は設定ファイルを読み込み、ロガーとコンテナを初期化する
// DBへの接続は取り込みコマンドが必要とした時点で行う
func NewAppContext(envFile string) (*AppContext, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	// ログは標準エラーへ出し、標準出力はコマンドの出力に使う
	appLogger := logger.New(logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})

	return &AppContext{
		Config:    cfg,
		Container: container.New(cfg, appLogger),
	}, nil
}

// Close はAppContextが保持するリソースをクリーンアップする
func (ac *AppContext) Close() {
	if ac.Container != nil {
		ac.Container.Close()
	}
}

// Logger はAppContextのロガーを返す
func (ac *AppContext) Logger() *slog.Logger {
	if ac.Container != nil {
		return ac.Container.Logger
	}
	return slog.Default()
}
