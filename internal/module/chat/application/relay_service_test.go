package application_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"testing/iotest"
	"time"

	"github.com/jinford/solar-assistant/internal/module/chat/application"
	"github.com/jinford/solar-assistant/internal/module/chat/domain"
	llmdomain "github.com/jinford/solar-assistant/internal/module/llm/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockGenerator はテスト用のStreamGenerator
type mockGenerator struct {
	GenerateStreamFunc func(ctx context.Context, req llmdomain.GenerateRequest) (io.ReadCloser, error)
}

func (m *mockGenerator) GenerateStream(ctx context.Context, req llmdomain.GenerateRequest) (io.ReadCloser, error) {
	if m.GenerateStreamFunc != nil {
		return m.GenerateStreamFunc(ctx, req)
	}
	return io.NopCloser(strings.NewReader("")), nil
}

// trackingBody はCloseが呼ばれたかを記録する
type trackingBody struct {
	io.Reader
	closed atomic.Bool
}

func (b *trackingBody) Close() error {
	b.closed.Store(true)
	if c, ok := b.Reader.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

type fixedCounter int

func (c fixedCounter) CountTokens(string) int { return int(c) }

func testLogger(buf *bytes.Buffer) *slog.Logger {
	if buf == nil {
		return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newServiceWithBody(r io.Reader, opts ...application.RelayOption) *application.RelayService {
	gen := &mockGenerator{
		GenerateStreamFunc: func(ctx context.Context, req llmdomain.GenerateRequest) (io.ReadCloser, error) {
			return io.NopCloser(r), nil
		},
	}
	opts = append([]application.RelayOption{application.WithRelayLogger(testLogger(nil))}, opts...)
	return application.NewRelayService(gen, opts...)
}

const solarStream = "{\"response\":\"Sol\"}\n{\"response\":\"ar\"}\n{\"done\":true}\n"

func TestRelayService_Relay_ConcatenatesFragments(t *testing.T) {
	svc := newServiceWithBody(strings.NewReader(solarStream))

	out, err := svc.Relay(context.Background(), domain.ChatRequest{Message: "hi"})
	require.NoError(t, err)
	defer out.Close()

	got, err := io.ReadAll(out)
	require.NoError(t, err)
	assert.Equal(t, "Solar", string(got))
}

func TestRelayService_Relay_IndependentOfReadBoundaries(t *testing.T) {
	readers := map[string]io.Reader{
		"one byte":         iotest.OneByteReader(strings.NewReader(solarStream)),
		"half":             iotest.HalfReader(strings.NewReader(solarStream)),
		"data+EOF":         iotest.DataErrReader(strings.NewReader(solarStream)),
		"no final newline": strings.NewReader(strings.TrimSuffix(solarStream, "\n")),
	}

	for name, r := range readers {
		t.Run(name, func(t *testing.T) {
			svc := newServiceWithBody(r)
			out, err := svc.Relay(context.Background(), domain.ChatRequest{Message: "hi"})
			require.NoError(t, err)

			got, err := io.ReadAll(out)
			require.NoError(t, err)
			assert.Equal(t, "Solar", string(got))
		})
	}
}

func TestRelayService_Relay_SkipsInvalidAndBlankLines(t *testing.T) {
	stream := "{\"response\":\"PV \"}\n" +
		"\n" +
		"   \n" +
		"{not json}\n" +
		"{\"response\":\"modules\"}\n" +
		"{\"response\":\"\"}\n" +
		"{\"response\":\" rock\"}\n"

	var logs bytes.Buffer
	svc := newServiceWithBody(strings.NewReader(stream), application.WithRelayLogger(testLogger(&logs)))

	out, err := svc.Relay(context.Background(), domain.ChatRequest{Message: "hi"})
	require.NoError(t, err)

	got, err := io.ReadAll(out)
	require.NoError(t, err)
	assert.Equal(t, "PV modules rock", string(got))
	assert.Contains(t, logs.String(), "error parsing stream line")
}

func TestRelayService_Relay_StopsAtDone(t *testing.T) {
	stream := "{\"response\":\"a\"}\n{\"response\":\"b\",\"done\":true}\n{\"response\":\"ignored\"}\n"
	svc := newServiceWithBody(strings.NewReader(stream))

	out, err := svc.Relay(context.Background(), domain.ChatRequest{Message: "hi"})
	require.NoError(t, err)

	got, err := io.ReadAll(out)
	require.NoError(t, err)
	assert.Equal(t, "ab", string(got))
}

func TestRelayService_Relay_MidStreamErrorAbortsOutput(t *testing.T) {
	upstreamErr := errors.New("connection reset by peer")
	r := io.MultiReader(
		strings.NewReader("{\"response\":\"Sol\"}\n"),
		iotest.ErrReader(upstreamErr),
	)
	svc := newServiceWithBody(r)

	out, err := svc.Relay(context.Background(), domain.ChatRequest{Message: "hi"})
	require.NoError(t, err)

	got, err := io.ReadAll(out)
	assert.ErrorIs(t, err, upstreamErr)
	assert.Equal(t, "Sol", string(got))
}

func TestRelayService_Relay_UpstreamFailureBeforeStreaming(t *testing.T) {
	upstreamErr := errors.New("dial tcp: connection refused")
	gen := &mockGenerator{
		GenerateStreamFunc: func(ctx context.Context, req llmdomain.GenerateRequest) (io.ReadCloser, error) {
			return nil, upstreamErr
		},
	}
	svc := application.NewRelayService(gen, application.WithRelayLogger(testLogger(nil)))

	out, err := svc.Relay(context.Background(), domain.ChatRequest{Message: "hi"})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, upstreamErr)
}

func TestRelayService_Relay_NilBody(t *testing.T) {
	gen := &mockGenerator{
		GenerateStreamFunc: func(ctx context.Context, req llmdomain.GenerateRequest) (io.ReadCloser, error) {
			return nil, nil
		},
	}
	svc := application.NewRelayService(gen, application.WithRelayLogger(testLogger(nil)))

	_, err := svc.Relay(context.Background(), domain.ChatRequest{Message: "hi"})
	assert.ErrorIs(t, err, llmdomain.ErrNoResponseBody)
}

func TestRelayService_Relay_ForwardsWhitespaceMessage(t *testing.T) {
	var got llmdomain.GenerateRequest
	gen := &mockGenerator{
		GenerateStreamFunc: func(ctx context.Context, req llmdomain.GenerateRequest) (io.ReadCloser, error) {
			got = req
			return io.NopCloser(strings.NewReader("")), nil
		},
	}
	svc := application.NewRelayService(gen, application.WithRelayLogger(testLogger(nil)))

	stream, err := svc.Relay(context.Background(), domain.ChatRequest{Message: "   "})
	require.NoError(t, err)
	defer stream.Close()

	assert.Contains(t, got.Prompt, "User:    \n")
}

func TestRelayService_Relay_SendsGenerationRequest(t *testing.T) {
	var got llmdomain.GenerateRequest
	gen := &mockGenerator{
		GenerateStreamFunc: func(ctx context.Context, req llmdomain.GenerateRequest) (io.ReadCloser, error) {
			got = req
			return io.NopCloser(strings.NewReader("")), nil
		},
	}
	svc := application.NewRelayService(gen, application.WithRelayLogger(testLogger(nil)))

	history := []domain.ChatTurn{{Content: "Hi", IsUser: true}, {Content: "Hello", IsUser: false}}
	out, err := svc.Relay(context.Background(), domain.ChatRequest{Message: "Q", ChatHistory: history})
	require.NoError(t, err)
	_, _ = io.ReadAll(out)

	assert.Equal(t, "qwen2.5:1.5b", got.Model)
	assert.True(t, got.Stream)
	assert.InDelta(t, 0.7, got.Temperature, 1e-9)
	assert.Equal(t, 500, got.MaxTokens)
	assert.Equal(t, 4096, got.ContextWindow)
	assert.Equal(t, domain.BuildPrompt("Q", history), got.Prompt)
}

func TestRelayService_Relay_WarnsWhenPromptExceedsContextWindow(t *testing.T) {
	var logs bytes.Buffer
	settings := domain.DefaultGenerationSettings()
	settings.ContextWindow = 100

	svc := newServiceWithBody(strings.NewReader(""),
		application.WithRelayLogger(testLogger(&logs)),
		application.WithGenerationSettings(settings),
		application.WithTokenCounter(fixedCounter(150)),
	)

	out, err := svc.Relay(context.Background(), domain.ChatRequest{Message: "hi"})
	require.NoError(t, err)
	_, _ = io.ReadAll(out)

	assert.Contains(t, logs.String(), "prompt exceeds context window")
}

func TestRelayService_Relay_ConsumerCloseStopsUpstream(t *testing.T) {
	// 上流は閉じられるまで断片を送り続ける
	pr, pw := io.Pipe()
	body := &trackingBody{Reader: pr}
	go func() {
		for {
			if _, err := io.WriteString(pw, "{\"response\":\"x\"}\n"); err != nil {
				return
			}
		}
	}()

	gen := &mockGenerator{
		GenerateStreamFunc: func(ctx context.Context, req llmdomain.GenerateRequest) (io.ReadCloser, error) {
			return body, nil
		},
	}
	svc := application.NewRelayService(gen, application.WithRelayLogger(testLogger(nil)))

	out, err := svc.Relay(context.Background(), domain.ChatRequest{Message: "hi"})
	require.NoError(t, err)

	buf := make([]byte, 1)
	_, err = io.ReadFull(out, buf)
	require.NoError(t, err)
	require.NoError(t, out.Close())

	assert.Eventually(t, body.closed.Load, time.Second, 5*time.Millisecond)
}
