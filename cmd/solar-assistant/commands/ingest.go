package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	ingestapp "github.com/jinford/solar-assistant/internal/module/ingestion/application"
)

// IngestCSVAction はCSVの発電量データをEmbedding付きで取り込むコマンドのアクション
func IngestCSVAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	logger := appCtx.Logger()
	cfg := appCtx.Config

	path := cfg.Ingestion.CSVPath
	if cmd.IsSet("file") {
		path = cmd.String("file")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("CSVファイルが見つかりません: %s: %w", path, err)
	}

	repo, err := appCtx.Container.TelemetryRepository(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("init-schema") {
		if err := repo.EnsureSchema(ctx, cfg.Embedding.Dimension); err != nil {
			return err
		}
		logger.Info("schema ensured", "table", cfg.Ingestion.Table, "dimension", cfg.Embedding.Dimension)
	}

	svc, err := appCtx.Container.IngestionService(repo)
	if err != nil {
		return err
	}

	if !cmd.Bool("skip-preflight") {
		if err := svc.Preflight(ctx); err != nil {
			logger.Error("make sure Ollama is running and accessible", "url", cfg.Ollama.BaseURL)
			return err
		}
	}

	report, err := svc.Run(ctx, path)
	if report != nil {
		renderReport(cmd.Root().Writer, report)
	}
	if err != nil {
		return fmt.Errorf("取り込みが中断されました: %w", err)
	}
	return nil
}

// IngestCheckAction は推論エンドポイントとDBへの到達性を確認するコマンドのアクション
func IngestCheckAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	w := cmd.Root().Writer

	repo, err := appCtx.Container.TelemetryRepository(ctx)
	if err != nil {
		return err
	}
	count, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "database: ok (%s: %d rows)\n", appCtx.Config.Ingestion.Table, count)

	svc, err := appCtx.Container.IngestionService(repo)
	if err != nil {
		return err
	}
	if err := svc.Preflight(ctx); err != nil {
		return err
	}
	fmt.Fprintf(w, "embedding: ok (%s via %s)\n", appCtx.Config.Embedding.Model, providerName(appCtx.Config.Embedding.Provider))

	return nil
}

func providerName(p string) string {
	if p == "" {
		return "ollama"
	}
	return p
}

// renderReport は取り込み結果をテーブル形式で表示します
func renderReport(w io.Writer, r *ingestapp.Report) {
	table := tablewriter.NewWriter(w)
	table.Header("Total", "Inserted", "Skipped", "Failed", "Paused", "Duration")
	table.Append(
		fmt.Sprint(r.Total),
		fmt.Sprint(r.Inserted),
		fmt.Sprint(r.Skipped),
		fmt.Sprint(r.Failed),
		fmt.Sprint(r.Paused),
		r.Duration.Round(time.Millisecond).String(),
	)
	table.Render()
}
