package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/omnimind/omnimind-engine/internal/memory"
	"github.com/omnimind/omnimind-engine/internal/model/chat"
	"github.com/omnimind/omnimind-engine/internal/model/persona"
	"github.com/omnimind/omnimind-engine/internal/moderation"
)

type fakeGenerator struct {
	reply string
	err   error
}

func (f *fakeGenerator) Chat(_ context.Context, _ string, _ []*schema.Message, _ string) (string, error) {
	return f.reply, f.err
}

func (f *fakeGenerator) ChatStream(_ context.Context, _ string, _ []*schema.Message, _ string, onDelta func(string) error) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if onDelta != nil {
		if err := onDelta(f.reply); err != nil {
			return "", err
		}
	}
	return f.reply, nil
}

type constantEmbedder struct{}

func (constantEmbedder) Embed(_ context.Context, _ string) []float32 {
	return []float32{1, 0, 0}
}

type failingStore struct {
	*MemoryStore
}

func (f *failingStore) SaveMessage(_ context.Context, _ chat.Message) error {
	return errors.New("connection reset")
}

func newTestService(gen Generator) (*Service, *MemoryStore, *memory.MemQuerier) {
	store := NewMemoryStore()
	querier := memory.NewMemQuerier()
	bank := memory.New(querier, constantEmbedder{})
	gate := moderation.NewGate(nil, moderation.Config{LLMEnabled: false})
	svc := NewService(store, bank, gate, gen, Options{})
	return svc, store, querier
}

func TestColdStartTurnEndToEnd(t *testing.T) {
	svc, store, querier := newTestService(&fakeGenerator{reply: "Not everything — tell me about one recent day."})
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "alice", persona.ModeCBT, "")
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	result, err := svc.SendTurn(ctx, session.ID, "I always fail at everything")
	if err != nil {
		t.Fatalf("SendTurn err: %v", err)
	}
	if result.Blocked() {
		t.Fatalf("expected safe verdict, got %+v", result.Verdict)
	}
	if result.Message == nil || result.Message.Content == "" {
		t.Fatal("expected non-empty assistant message")
	}
	if result.Message.Role != chat.RoleAssistant {
		t.Fatalf("expected assistant role, got %s", result.Message.Role)
	}

	messages, err := store.ListMessages(ctx, session.ID)
	if err != nil {
		t.Fatalf("ListMessages err: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected user+assistant persisted, got %d messages", len(messages))
	}
	if messages[0].Role != chat.RoleUser || messages[1].Role != chat.RoleAssistant {
		t.Fatalf("unexpected message order: %s, %s", messages[0].Role, messages[1].Role)
	}

	updated, err := store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}
	if !updated.UpdatedAt.After(session.UpdatedAt) {
		t.Fatal("expected session UpdatedAt to advance")
	}

	// The background memory write must eventually record both turn halves.
	svc.Wait()
	if querier.Len() != 1 {
		t.Fatalf("expected one memory record, got %d", querier.Len())
	}
	records, err := svc.memories.Search(ctx, "alice", "anything", 3, 0)
	if err != nil {
		t.Fatalf("Search err: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one retrievable record, got %d", len(records))
	}
	if !strings.Contains(records[0].Content, "I always fail at everything") ||
		!strings.Contains(records[0].Content, "tell me about one recent day") {
		t.Fatalf("memory record missing turn halves: %q", records[0].Content)
	}
}

func TestBlockedTurnPersistsNothing(t *testing.T) {
	svc, store, querier := newTestService(&fakeGenerator{reply: "should never be used"})
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "alice", persona.ModeCBT, "")
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	result, err := svc.SendTurn(ctx, session.ID, "you are an idiot")
	if err != nil {
		t.Fatalf("SendTurn err: %v", err)
	}
	if !result.Blocked() {
		t.Fatal("expected blocked turn")
	}
	if result.Verdict.IsSafe {
		t.Fatal("expected unsafe verdict")
	}
	if result.Message != nil {
		t.Fatal("blocked turn must not produce a message")
	}

	messages, err := store.ListMessages(ctx, session.ID)
	if err != nil {
		t.Fatalf("ListMessages err: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected nothing persisted, got %d messages", len(messages))
	}

	svc.Wait()
	if querier.Len() != 0 {
		t.Fatal("blocked turn must not write memory")
	}
}

func TestGenerationFailureFallsBackToPatternResponse(t *testing.T) {
	svc, store, _ := newTestService(&fakeGenerator{err: errors.New("model unavailable")})
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "alice", persona.ModeCBT, "")
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	result, err := svc.SendTurn(ctx, session.ID, "I always mess things up")
	if err != nil {
		t.Fatalf("SendTurn err: %v", err)
	}
	if result.Message == nil || result.Message.Content == "" {
		t.Fatal("expected fallback assistant message")
	}
	if !strings.Contains(result.Message.Content, "overgeneralization") {
		t.Fatalf("expected CBT pattern fallback, got %q", result.Message.Content)
	}

	messages, _ := store.ListMessages(ctx, session.ID)
	if len(messages) != 2 {
		t.Fatalf("fallback turn must still persist both halves, got %d", len(messages))
	}
}

func TestPersistenceFailureAbortsTurn(t *testing.T) {
	mem := NewMemoryStore()
	querier := memory.NewMemQuerier()
	bank := memory.New(querier, constantEmbedder{})
	gate := moderation.NewGate(nil, moderation.Config{})
	svc := NewService(&failingStore{mem}, bank, gate, &fakeGenerator{reply: "hello"}, Options{})
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "alice", persona.ModeHumanistic, "")
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	if _, err := svc.SendTurn(ctx, session.ID, "a calm reflection"); err == nil {
		t.Fatal("expected persistence failure to surface")
	}

	svc.Wait()
	if querier.Len() != 0 {
		t.Fatal("aborted turn must not write memory")
	}
}

func TestSendTurnStreamDeliversDeltas(t *testing.T) {
	svc, _, _ := newTestService(&fakeGenerator{reply: "breathe with me"})
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "alice", persona.ModeHumanistic, "")
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	var chunks []string
	result, err := svc.SendTurnStream(ctx, session.ID, "I feel a knot in my chest", func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("SendTurnStream err: %v", err)
	}
	if result.Message == nil {
		t.Fatal("expected assistant message")
	}
	if len(chunks) == 0 {
		t.Fatal("expected at least one delta")
	}
}

func TestCreateSessionValidation(t *testing.T) {
	svc, _, _ := newTestService(&fakeGenerator{reply: "x"})
	ctx := context.Background()

	if _, err := svc.CreateSession(ctx, "", persona.ModeCBT, ""); !errors.Is(err, ErrOwnerRequired) {
		t.Fatalf("expected ErrOwnerRequired, got %v", err)
	}
	if _, err := svc.CreateSession(ctx, "alice", persona.Mode("voodoo"), ""); !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("expected ErrInvalidMode, got %v", err)
	}
}

func TestSessionTitleTruncation(t *testing.T) {
	long := strings.Repeat("troubles ", 8) // 72 chars
	title := sessionTitle(long)
	if len([]rune(title)) != 33 {
		t.Fatalf("expected 30 runes + ellipsis, got %d runes (%q)", len([]rune(title)), title)
	}
	if !strings.HasSuffix(title, "...") {
		t.Fatalf("expected ellipsis suffix, got %q", title)
	}

	if got := sessionTitle(""); got != defaultSessionTitle {
		t.Fatalf("expected default title, got %q", got)
	}
	if got := sessionTitle("short"); got != "short" {
		t.Fatalf("short seed must be kept, got %q", got)
	}
}

func TestSendTurnEmptyMessage(t *testing.T) {
	svc, _, _ := newTestService(&fakeGenerator{reply: "x"})
	if _, err := svc.SendTurn(context.Background(), "any", "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
}
