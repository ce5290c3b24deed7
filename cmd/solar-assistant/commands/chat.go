package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/jinford/solar-assistant/internal/module/conversation/domain"
)

// ChatSendAction はメッセージをリレーに送り、応答を逐次表示するコマンドのアクション
func ChatSendAction(ctx context.Context, cmd *cli.Command) error {
	message := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if message == "" {
		return fmt.Errorf("メッセージを指定してください")
	}

	appCtx, err := NewAppContext(cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	client := appCtx.Container.ConversationClient(ctx)
	printer := &streamPrinter{w: cmd.Root().Writer}

	err = client.Send(ctx, message, printer.Update)
	fmt.Fprintln(printer.w)
	if err != nil {
		return fmt.Errorf("チャットの送信に失敗: %w", err)
	}
	return nil
}

// ChatHistoryAction は保存済みの会話履歴を表示するコマンドのアクション
func ChatHistoryAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	turns := appCtx.Container.ConversationClient(ctx).Turns()
	w := cmd.Root().Writer

	if cmd.Bool("json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(turns)
	}

	if len(turns) == 0 {
		fmt.Fprintln(w, "会話履歴はありません")
		return nil
	}
	renderTurns(w, turns)
	return nil
}

// ChatClearAction は会話履歴を消去するコマンドのアクション
func ChatClearAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.Container.ConversationClient(ctx).Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.Root().Writer, "会話履歴を消去しました")
	return nil
}

// streamPrinter は累積テキストの更新から差分だけを書き出す
type streamPrinter struct {
	w     io.Writer
	shown string
}

// Update は最新のアシスタントターンを表示に反映する
// 表示済みの内容と前方一致しない場合（謝罪文への置き換えなど）は改行して全体を書き直す
func (p *streamPrinter) Update(turns []domain.ChatTurn) {
	if len(turns) == 0 {
		return
	}
	last := turns[len(turns)-1]
	if last.IsUser {
		return
	}

	if strings.HasPrefix(last.Content, p.shown) {
		fmt.Fprint(p.w, last.Content[len(p.shown):])
	} else {
		fmt.Fprint(p.w, "\n"+last.Content)
	}
	p.shown = last.Content
}

// renderTurns は会話履歴をテーブル形式で表示します
func renderTurns(w io.Writer, turns []domain.ChatTurn) {
	table := tablewriter.NewWriter(w)
	table.Header("#", "Role", "Content")

	for i, t := range turns {
		role := "assistant"
		if t.IsUser {
			role = "user"
		}
		table.Append(fmt.Sprint(i+1), role, t.Content)
	}

	table.Render()
}
