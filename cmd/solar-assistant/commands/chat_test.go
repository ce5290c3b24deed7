package commands

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/jinford/solar-assistant/internal/module/conversation/domain"
)

func TestStreamPrinter_WritesOnlyDeltas(t *testing.T) {
	var buf bytes.Buffer
	p := &streamPrinter{w: &buf}

	p.Update([]domain.ChatTurn{{Content: "hi", IsUser: true}})
	p.Update([]domain.ChatTurn{{Content: "hi", IsUser: true}, {Content: ""}})
	p.Update([]domain.ChatTurn{{Content: "hi", IsUser: true}, {Content: "Sol"}})
	p.Update([]domain.ChatTurn{{Content: "hi", IsUser: true}, {Content: "Solar"}})

	assert.Equal(t, "Solar", buf.String())
}

func TestStreamPrinter_RewritesOnReplacement(t *testing.T) {
	var buf bytes.Buffer
	p := &streamPrinter{w: &buf}

	p.Update([]domain.ChatTurn{{Content: "hi", IsUser: true}, {Content: "partial"}})
	p.Update([]domain.ChatTurn{{Content: "hi", IsUser: true}, {Content: domain.ApologyMessage}})

	assert.Equal(t, "partial\n"+domain.ApologyMessage, buf.String())
}

// newChatApp はテスト用にchatサブコマンドだけを持つコマンドツリーを作る
func newChatApp(out io.Writer) *cli.Command {
	env := &cli.StringFlag{Name: "env"}
	return &cli.Command{
		Name:   "solar-assistant",
		Writer: out,
		Commands: []*cli.Command{
			{Name: "send", Flags: []cli.Flag{env}, Action: ChatSendAction},
			{Name: "history", Flags: []cli.Flag{env, &cli.BoolFlag{Name: "json"}}, Action: ChatHistoryAction},
			{Name: "clear", Flags: []cli.Flag{env}, Action: ChatClearAction},
		},
	}
}

func TestChatCommands_SendHistoryClear(t *testing.T) {
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "Photovoltaic cells.")
	}))
	defer relay.Close()

	historyPath := filepath.Join(t.TempDir(), "chat_history.json")
	t.Setenv("CHAT_RELAY_URL", relay.URL)
	t.Setenv("CHAT_HISTORY_PATH", historyPath)
	t.Setenv("LOG_LEVEL", "error")

	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, newChatApp(&out).Run(ctx, []string{"solar-assistant", "send", "What", "is", "PV?"}))
	assert.Equal(t, "Photovoltaic cells.\n", out.String())

	out.Reset()
	require.NoError(t, newChatApp(&out).Run(ctx, []string{"solar-assistant", "history", "--json"}))
	assert.JSONEq(t, `[{"content":"What is PV?","isUser":true},{"content":"Photovoltaic cells.","isUser":false}]`, out.String())

	out.Reset()
	require.NoError(t, newChatApp(&out).Run(ctx, []string{"solar-assistant", "history"}))
	assert.Contains(t, out.String(), "Photovoltaic cells.")
	assert.Contains(t, out.String(), "user")

	out.Reset()
	require.NoError(t, newChatApp(&out).Run(ctx, []string{"solar-assistant", "clear"}))
	_, err := os.Stat(historyPath)
	assert.True(t, os.IsNotExist(err))

	out.Reset()
	require.NoError(t, newChatApp(&out).Run(ctx, []string{"solar-assistant", "history", "--json"}))
	assert.JSONEq(t, `[]`, out.String())
}

func TestChatSend_RequiresMessage(t *testing.T) {
	var out bytes.Buffer
	err := newChatApp(&out).Run(context.Background(), []string{"solar-assistant", "send"})
	assert.Error(t, err)
}
