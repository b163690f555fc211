package persona

import "testing"

func TestParseKnownModes(t *testing.T) {
	for _, raw := range []string{"cbt", "psychoanalysis", "humanistic", "psychodrama"} {
		mode, ok := Parse(raw)
		if !ok {
			t.Fatalf("expected %q to parse", raw)
		}
		if mode.String() != raw {
			t.Fatalf("expected %q, got %q", raw, mode)
		}
	}
}

func TestParseRejectsUnknownMode(t *testing.T) {
	if _, ok := Parse("freudian-jazz"); ok {
		t.Fatal("expected unknown mode to be rejected")
	}
	if _, ok := Parse(""); ok {
		t.Fatal("expected empty mode to be rejected")
	}
}

func TestEveryModeCarriesPromptAndFallbacks(t *testing.T) {
	for _, mode := range Modes() {
		if mode.SystemPrompt() == "" {
			t.Fatalf("mode %s has no system prompt", mode)
		}
		if len(mode.DefaultResponses()) == 0 {
			t.Fatalf("mode %s has no default responses", mode)
		}
		if len(mode.Patterns()) == 0 {
			t.Fatalf("mode %s has no keyword patterns", mode)
		}
		if mode.Profile().Name == "" {
			t.Fatalf("mode %s has no profile name", mode)
		}
	}
}
