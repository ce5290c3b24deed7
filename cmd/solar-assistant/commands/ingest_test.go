package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	ingestapp "github.com/jinford/solar-assistant/internal/module/ingestion/application"
)

func TestRenderReport(t *testing.T) {
	var buf bytes.Buffer
	renderReport(&buf, &ingestapp.Report{
		Total:    12,
		Inserted: 9,
		Skipped:  2,
		Failed:   1,
		Paused:   1,
		Duration: 1500 * time.Millisecond,
	})

	// ヘッダの大文字化有無に依存しない
	out := buf.String()
	assert.Contains(t, strings.ToUpper(out), "INSERTED")
	assert.Contains(t, out, "12")
	assert.Contains(t, out, "1.5s")
}

func TestProviderName(t *testing.T) {
	assert.Equal(t, "ollama", providerName(""))
	assert.Equal(t, "openai", providerName("openai"))
}
