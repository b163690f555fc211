package llmparse

import "testing"

func TestFirstObjectPlain(t *testing.T) {
	got, ok := FirstObject(`Sure! Here you go: {"safe": true} hope that helps`)
	if !ok || got != `{"safe": true}` {
		t.Fatalf("got %q ok=%v", got, ok)
	}
}

func TestFirstObjectNested(t *testing.T) {
	in := `noise {"title":"Plan","days":[{"day":"Mon","topics":["a","b"]}]} trailing`
	got, ok := FirstObject(in)
	if !ok || got != `{"title":"Plan","days":[{"day":"Mon","topics":["a","b"]}]}` {
		t.Fatalf("got %q ok=%v", got, ok)
	}
}

func TestFirstObjectBracesInsideStrings(t *testing.T) {
	in := `{"reason":"uses } and { inside","safe":false}`
	got, ok := FirstObject(in)
	if !ok || got != in {
		t.Fatalf("got %q ok=%v", got, ok)
	}
}

func TestFirstObjectEscapedQuote(t *testing.T) {
	in := `{"text":"she said \"hi\" {","n":1}`
	got, ok := FirstObject(in)
	if !ok || got != in {
		t.Fatalf("got %q ok=%v", got, ok)
	}
}

func TestFirstArray(t *testing.T) {
	got, ok := FirstArray(`JSON: [{"id":"1"},{"id":"2"}] done`)
	if !ok || got != `[{"id":"1"},{"id":"2"}]` {
		t.Fatalf("got %q ok=%v", got, ok)
	}
}

func TestUnbalancedFragment(t *testing.T) {
	if _, ok := FirstObject(`{"oops": [1,2`); ok {
		t.Fatal("expected unbalanced object to be rejected")
	}
	if _, ok := FirstArray(`[1, 2, {"x": 3}`); ok {
		t.Fatal("expected unbalanced array to be rejected")
	}
}

func TestNoFragment(t *testing.T) {
	if _, ok := FirstObject("plain prose, no json at all"); ok {
		t.Fatal("expected no object")
	}
	if _, ok := FirstArray("plain prose"); ok {
		t.Fatal("expected no array")
	}
}
