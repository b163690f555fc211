package moderation

import (
	"context"
	"testing"
)

type scriptedGenerator struct {
	output string
	calls  int
}

func (s *scriptedGenerator) Generate(_ context.Context, _ string, _ int) string {
	s.calls++
	return s.output
}

func TestBlocklistShortCircuitsClassifier(t *testing.T) {
	gen := &scriptedGenerator{output: `{"safe": true}`}
	gate := NewGate(gen, Config{LLMEnabled: true})

	verdict := gate.Analyze(context.Background(), "You are such an IDIOT")

	if verdict.IsSafe {
		t.Fatal("expected unsafe verdict")
	}
	if verdict.RiskScore < 0.9 {
		t.Fatalf("expected risk score >= 0.9, got %f", verdict.RiskScore)
	}
	if len(verdict.FlaggedTerms) != 1 || verdict.FlaggedTerms[0] != "idiot" {
		t.Fatalf("unexpected flagged terms: %v", verdict.FlaggedTerms)
	}
	if gen.calls != 0 {
		t.Fatalf("probabilistic stage must be skipped, got %d calls", gen.calls)
	}
}

func TestClassifierUnsafeVerdictCarriesFeedback(t *testing.T) {
	gen := &scriptedGenerator{output: `Here is my verdict: {"safe": false, "reason": "hostile tone", "suggestion": "soften it"}`}
	gate := NewGate(gen, Config{LLMEnabled: true})

	verdict := gate.Analyze(context.Background(), "a perfectly clean sentence")

	if verdict.IsSafe {
		t.Fatal("expected unsafe verdict")
	}
	if verdict.Feedback != "hostile tone" || verdict.Suggestion != "soften it" {
		t.Fatalf("expected classifier feedback, got %+v", verdict)
	}
	if gen.calls != 1 {
		t.Fatalf("expected one classifier call, got %d", gen.calls)
	}
}

func TestUnparseableOutputWithUnsafeMarker(t *testing.T) {
	gen := &scriptedGenerator{output: "this text is clearly UNSAFE, do not allow"}
	gate := NewGate(gen, Config{LLMEnabled: true})

	verdict := gate.Analyze(context.Background(), "a clean sentence")
	if verdict.IsSafe {
		t.Fatal("expected unsafe fallback verdict")
	}
	if verdict.RiskScore != 0.75 {
		t.Fatalf("expected generic unsafe risk score, got %f", verdict.RiskScore)
	}
}

func TestUnparseableOutputFailsOpen(t *testing.T) {
	gen := &scriptedGenerator{output: "I will just ramble and return nothing useful."}
	gate := NewGate(gen, Config{LLMEnabled: true})

	verdict := gate.Analyze(context.Background(), "a clean sentence")
	if !verdict.IsSafe {
		t.Fatal("expected fail-open safe verdict")
	}
	if verdict.RiskScore != 0.1 {
		t.Fatalf("expected low risk score, got %f", verdict.RiskScore)
	}
}

func TestMissingSafeFieldFailsOpen(t *testing.T) {
	gen := &scriptedGenerator{output: `{"reason": "no safe field here"}`}
	gate := NewGate(gen, Config{LLMEnabled: true})

	if verdict := gate.Analyze(context.Background(), "a clean sentence"); !verdict.IsSafe {
		t.Fatal("verdict without explicit safe field must fail open")
	}
}

func TestClassifierDisabled(t *testing.T) {
	gate := NewGate(nil, Config{LLMEnabled: false})

	verdict := gate.Analyze(context.Background(), "a clean sentence")
	if !verdict.IsSafe {
		t.Fatal("expected safe verdict with classifier disabled")
	}
}

func TestCensorReplacesWithEqualLengthAsterisks(t *testing.T) {
	gate := NewGate(nil, Config{})

	got := gate.Censor("don't be Stupid, ok?")
	want := "don't be ******, ok?"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCensorIsIdempotent(t *testing.T) {
	gate := NewGate(nil, Config{ExtraBlocked: []string{"bananas"}})

	once := gate.Censor("I feel stupid and bananas about this")
	twice := gate.Censor(once)
	if once != twice {
		t.Fatalf("censor not idempotent: %q vs %q", once, twice)
	}
}

func TestCensorLeavesCleanTextUntouched(t *testing.T) {
	gate := NewGate(nil, Config{})

	in := "a perfectly calm reflection on my day"
	if got := gate.Censor(in); got != in {
		t.Fatalf("clean text modified: %q", got)
	}
}
