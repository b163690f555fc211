package stream

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/omnimind/omnimind-engine/internal/memory"
	"github.com/omnimind/omnimind-engine/internal/model/persona"
	"github.com/omnimind/omnimind-engine/internal/moderation"
	chatservice "github.com/omnimind/omnimind-engine/internal/service/chat"
)

type chunkedGenerator struct {
	chunks []string
}

func (g *chunkedGenerator) Chat(_ context.Context, _ string, _ []*schema.Message, _ string) (string, error) {
	return strings.Join(g.chunks, ""), nil
}

func (g *chunkedGenerator) ChatStream(_ context.Context, _ string, _ []*schema.Message, _ string, onDelta func(string) error) (string, error) {
	for _, chunk := range g.chunks {
		if onDelta != nil {
			if err := onDelta(chunk); err != nil {
				return "", err
			}
		}
	}
	return strings.Join(g.chunks, ""), nil
}

type unitEmbedder struct{}

func (unitEmbedder) Embed(_ context.Context, _ string) []float32 { return []float32{1} }

func setup(t *testing.T) (*Handler, string) {
	t.Helper()

	bank := memory.New(memory.NewMemQuerier(), unitEmbedder{})
	gate := moderation.NewGate(nil, moderation.Config{})
	gen := &chunkedGenerator{chunks: []string{"take ", "a ", "breath"}}
	svc := chatservice.NewService(chatservice.NewMemoryStore(), bank, gate, gen, chatservice.Options{})

	session, err := svc.CreateSession(context.Background(), "alice", persona.ModeCBT, "")
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	return New(svc), session.ID
}

func TestStreamEmitsDeltasAndMessage(t *testing.T) {
	h, sessionID := setup(t)
	resp := httptest.NewRecorder()

	if err := h.HandleStreamRequest(context.Background(), resp, sessionID, "I feel restless"); err != nil {
		t.Fatalf("HandleStreamRequest err: %v", err)
	}

	body := resp.Body.String()
	for _, event := range []string{`"event":"start"`, `"event":"delta"`, `"event":"message"`, `"event":"end"`} {
		if !strings.Contains(body, event) {
			t.Fatalf("missing %s in stream: %s", event, body)
		}
	}
	if strings.Count(body, `"event":"delta"`) != 3 {
		t.Fatalf("expected 3 deltas: %s", body)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestStreamBlockedEmitsModerationEvent(t *testing.T) {
	h, sessionID := setup(t)
	resp := httptest.NewRecorder()

	if err := h.HandleStreamRequest(context.Background(), resp, sessionID, "I want to punch someone"); err != nil {
		t.Fatalf("HandleStreamRequest err: %v", err)
	}

	body := resp.Body.String()
	if !strings.Contains(body, `"event":"moderation"`) {
		t.Fatalf("missing moderation event: %s", body)
	}
	if strings.Contains(body, `"event":"delta"`) || strings.Contains(body, `"event":"message"`) {
		t.Fatalf("blocked stream must not contain generation events: %s", body)
	}
	if !strings.Contains(body, `"event":"end"`) {
		t.Fatalf("stream must terminate with end event: %s", body)
	}
}

func TestStreamUnknownSessionEmitsError(t *testing.T) {
	h, _ := setup(t)
	resp := httptest.NewRecorder()

	if err := h.HandleStreamRequest(context.Background(), resp, "missing", "hello"); err == nil {
		t.Fatal("expected error for unknown session")
	}
	if !strings.Contains(resp.Body.String(), `"event":"error"`) {
		t.Fatalf("missing error event: %s", resp.Body.String())
	}
}
