package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/jinford/solar-assistant/cmd/solar-assistant/commands"
)

func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env",
		Usage: "環境変数ファイルパス",
		Value: ".env",
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "solar-assistant",
		Usage: "太陽光発電アシスタントのチャットリレーと発電データ取り込みジョブ",
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "チャットリレーサーバコマンド",
				Commands: []*cli.Command{
					{
						Name:  "start",
						Usage: "チャットリレーのHTTPサーバを起動",
						Flags: []cli.Flag{
							envFlag(),
							&cli.IntFlag{
								Name:  "port",
								Usage: "HTTPポート（省略時は環境変数HTTP_PORTまたはデフォルトの8080）",
								Value: 8080,
							},
						},
						Action: commands.ServerStartAction,
					},
				},
			},
			{
				Name:  "chat",
				Usage: "会話クライアントコマンド",
				Commands: []*cli.Command{
					{
						Name:      "send",
						Usage:     "メッセージを送信し、応答をストリーム表示",
						ArgsUsage: "<message>",
						Flags:     []cli.Flag{envFlag()},
						Action:    commands.ChatSendAction,
					},
					{
						Name:  "history",
						Usage: "会話履歴を表示",
						Flags: []cli.Flag{
							envFlag(),
							&cli.BoolFlag{
								Name:  "json",
								Usage: "JSON形式で出力",
							},
						},
						Action: commands.ChatHistoryAction,
					},
					{
						Name:   "clear",
						Usage:  "会話履歴を消去",
						Flags:  []cli.Flag{envFlag()},
						Action: commands.ChatClearAction,
					},
				},
			},
			{
				Name:  "ingest",
				Usage: "発電データ取り込みコマンド",
				Commands: []*cli.Command{
					{
						Name:  "csv",
						Usage: "CSVの発電データをEmbedding付きで取り込み",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:  "file",
								Usage: "CSVファイルパス（省略時は環境変数INGEST_CSV_PATH）",
							},
							&cli.BoolFlag{
								Name:  "init-schema",
								Usage: "vector拡張と取り込み先テーブルを作成",
							},
							&cli.BoolFlag{
								Name:  "skip-preflight",
								Usage: "Embeddingモデルの事前確認を省略",
							},
						},
						Action: commands.IngestCSVAction,
					},
					{
						Name:   "check",
						Usage:  "DBとEmbeddingモデルへの到達性を確認",
						Flags:  []cli.Flag{envFlag()},
						Action: commands.IngestCheckAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
