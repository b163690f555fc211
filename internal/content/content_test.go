package content

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/omnimind/omnimind-engine/internal/memory"
)

type scriptedCompleter struct {
	output string
	err    error
	prompt string
}

func (s *scriptedCompleter) Complete(_ context.Context, prompt string, _ int) (string, error) {
	s.prompt = prompt
	return s.output, s.err
}

type staticSearcher struct {
	records []memory.Record
	err     error
}

func (s *staticSearcher) Search(_ context.Context, _, _ string, _ int, _ float64) ([]memory.Record, error) {
	return s.records, s.err
}

func TestGenerateScript(t *testing.T) {
	gen := &scriptedCompleter{output: "Close your eyes and settle into the chair."}
	m := NewMeditation(gen, nil)

	script := m.GenerateScript(context.Background(), "sleep", "")
	if script != "Close your eyes and settle into the chair." {
		t.Fatalf("unexpected script: %q", script)
	}
	if !strings.Contains(gen.prompt, `"sleep"`) {
		t.Fatalf("prompt missing topic: %q", gen.prompt)
	}
}

func TestGenerateScriptFallbacks(t *testing.T) {
	m := NewMeditation(&scriptedCompleter{err: errors.New("model offline")}, nil)
	if got := m.GenerateScript(context.Background(), "sleep", ""); got != FallbackScript {
		t.Fatalf("expected fallback script, got %q", got)
	}

	m = NewMeditation(&scriptedCompleter{output: "   "}, nil)
	if got := m.GenerateScript(context.Background(), "sleep", ""); got != FallbackScript {
		t.Fatalf("expected fallback on empty output, got %q", got)
	}
}

func TestGenerateScriptEmbedsMemoryContext(t *testing.T) {
	gen := &scriptedCompleter{output: "Breathe."}
	searcher := &staticSearcher{records: []memory.Record{{Content: "User struggles to sleep before exams"}}}
	m := NewMeditation(gen, searcher)

	m.GenerateScript(context.Background(), "sleep", "alice")
	if !strings.Contains(gen.prompt, "struggles to sleep before exams") {
		t.Fatalf("prompt missing retrieved context: %q", gen.prompt)
	}
}

func TestGenerateScriptSurvivesRetrievalFailure(t *testing.T) {
	gen := &scriptedCompleter{output: "Breathe."}
	m := NewMeditation(gen, &staticSearcher{err: errors.New("db down")})

	if got := m.GenerateScript(context.Background(), "sleep", "alice"); got != "Breathe." {
		t.Fatalf("retrieval failure must not block generation, got %q", got)
	}
}

func TestGenerateQuestionsParsesWrappedArray(t *testing.T) {
	raw := "Sure! Here are your questions:\n" +
		`[{"id":"q1","text":"What is spaced repetition?","options":["A","B","C","D"],"correctAnswer":2,"explanation":"Because."}]` +
		"\nHope this helps!"
	s := NewStudy(&scriptedCompleter{output: raw}, nil)

	questions := s.GenerateQuestions(context.Background(), "memory techniques", "", 1)
	if len(questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(questions))
	}
	if questions[0].Text != "What is spaced repetition?" || questions[0].CorrectAnswer != 2 {
		t.Fatalf("unexpected question: %+v", questions[0])
	}
}

func TestGenerateQuestionsSchemaMismatchFallsBack(t *testing.T) {
	cases := map[string]string{
		"no json":            "I cannot answer that.",
		"object not array":   `{"text":"Q?"}`,
		"three options":      `[{"id":"1","text":"Q?","options":["A","B","C"],"correctAnswer":0,"explanation":"E"}]`,
		"answer out of range": `[{"id":"1","text":"Q?","options":["A","B","C","D"],"correctAnswer":7,"explanation":"E"}]`,
		"empty text":         `[{"id":"1","text":"  ","options":["A","B","C","D"],"correctAnswer":0,"explanation":"E"}]`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			s := NewStudy(&scriptedCompleter{output: raw}, nil)
			questions := s.GenerateQuestions(context.Background(), "biology", "", 3)
			if len(questions) != 1 {
				t.Fatalf("expected single fallback question, got %d", len(questions))
			}
			if !validQuestion(questions[0]) {
				t.Fatalf("fallback question must satisfy its own schema: %+v", questions[0])
			}
			if !strings.Contains(questions[0].Text, "biology") {
				t.Fatalf("fallback must name the topic: %q", questions[0].Text)
			}
		})
	}
}

func TestGenerateQuestionsKeepsValidDropsInvalid(t *testing.T) {
	raw := `[
		{"id":"","text":"Good question?","options":["A","B","C","D"],"correctAnswer":1,"explanation":"E"},
		{"id":"2","text":"Broken","options":["A"],"correctAnswer":0,"explanation":"E"}
	]`
	s := NewStudy(&scriptedCompleter{output: raw}, nil)

	questions := s.GenerateQuestions(context.Background(), "math", "", 2)
	if len(questions) != 1 {
		t.Fatalf("expected only the valid question, got %d", len(questions))
	}
	if questions[0].ID == "" {
		t.Fatal("missing id must be filled in")
	}
}

func TestGenerateScheduleParsesObject(t *testing.T) {
	raw := "Plan below.\n" +
		`{"title":"Algebra sprint","days":[{"day":"Monday","topics":["Linear equations"],"duration":"2h"}]}`
	s := NewStudy(&scriptedCompleter{output: raw}, nil)

	schedule := s.GenerateSchedule(context.Background(), "algebra", "2h")
	if schedule.Title != "Algebra sprint" || len(schedule.Days) != 1 {
		t.Fatalf("unexpected schedule: %+v", schedule)
	}
}

func TestGenerateScheduleFallsBack(t *testing.T) {
	s := NewStudy(&scriptedCompleter{output: "no structured output here"}, nil)

	schedule := s.GenerateSchedule(context.Background(), "algebra", "90m")
	if !strings.Contains(schedule.Title, "algebra") {
		t.Fatalf("fallback must name the goal: %q", schedule.Title)
	}
	if len(schedule.Days) != 1 || schedule.Days[0].Duration != "90m" {
		t.Fatalf("fallback must be a single day with the given duration: %+v", schedule)
	}
	if !validSchedule(schedule) {
		t.Fatalf("fallback schedule must satisfy its own schema: %+v", schedule)
	}
}
