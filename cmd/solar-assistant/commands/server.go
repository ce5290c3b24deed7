package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/jinford/solar-assistant/internal/module/chat/adapter/httpapi"
)

// ServerStartAction はチャットリレーのHTTPサーバを起動するコマンドのアクション
// ctxがキャンセルされるとグレースフルに停止する
func ServerStartAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	logger := appCtx.Logger()
	cfg := appCtx.Config

	port := cfg.Server.Port
	if cmd.IsSet("port") {
		port = cmd.Int("port")
	}

	handler := httpapi.NewChatHandler(appCtx.Container.RelayService(), logger)
	srv := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(port)),
		Handler:           httpapi.NewRouter(handler, logger),
		ReadHeaderTimeout: 10 * time.Second,
		// ストリーミング応答のため WriteTimeout は設定しない
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("chat relay listening", "addr", srv.Addr, "ollama", cfg.Ollama.BaseURL, "model", cfg.Ollama.ChatModel)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("サーバの起動に失敗: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down chat relay")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("サーバの停止に失敗: %w", err)
	}
	return nil
}
