package parser

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Hello\ntags:\n  - go\n  - docs\n---\n# Hello\nBody text.\n")
	r := Parse(input)
	if r.Err != nil {
		t.Fatalf("unexpected error: %v", r.Err)
	}
	if !r.HasFrontMatter {
		t.Fatal("HasFrontMatter = false")
	}
	title, _ := Lookup(r.FrontMatter, "title")
	if s, ok := String(title); !ok || s != "Hello" {
		t.Errorf("title = %q, want %q", s, "Hello")
	}
	tags, _ := Lookup(r.FrontMatter, "tags")
	if got := Strings(tags); len(got) != 2 || got[0] != "go" || got[1] != "docs" {
		t.Errorf("tags = %v, want [go docs]", got)
	}
	if r.Body != "# Hello\nBody text.\n" {
		t.Errorf("body = %q", r.Body)
	}
	if r.Head+r.Body != string(input) {
		t.Error("head + body must reassemble the input")
	}
}

func TestParse_KeyOrderPreserved(t *testing.T) {
	r := Parse([]byte("---\nzeta: 1\nalpha: 2\nmid: 3\n---\n"))
	if r.Err != nil {
		t.Fatal(r.Err)
	}
	if got := strings.Join(Keys(r.FrontMatter), ","); got != "zeta,alpha,mid" {
		t.Errorf("keys = %s", got)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	input := []byte("# Just a heading\nSome text.\n")
	r := Parse(input)
	if r.Err != nil {
		t.Fatalf("unexpected error: %v", r.Err)
	}
	if r.HasFrontMatter || r.FrontMatter != nil {
		t.Errorf("expected no front matter, got %v", r.FrontMatter)
	}
	if r.Body != string(input) {
		t.Errorf("body = %q, want full text", r.Body)
	}
}

func TestParse_MarkerMustBeFirstLine(t *testing.T) {
	input := []byte("\n---\ntitle: x\n---\n")
	r := Parse(input)
	if r.HasFrontMatter {
		t.Error("a marker after a blank line is not front matter")
	}
	if r.Body != string(input) {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_InvalidYAMLRecoversBody(t *testing.T) {
	input := []byte("---\n: invalid: yaml: {{{\n---\nBody\n")
	r := Parse(input)
	if r.Err == nil {
		t.Fatal("expected decode error")
	}
	if r.FrontMatter != nil {
		t.Error("expected nil front matter on invalid YAML")
	}
	if r.Body != "Body\n" {
		t.Errorf("body = %q, want text after closing marker", r.Body)
	}
	if r.Head != "---\n: invalid: yaml: {{{\n---\n" {
		t.Errorf("head = %q", r.Head)
	}
}

func TestParse_Unterminated(t *testing.T) {
	input := []byte("---\ntitle: x\n# Body\n")
	r := Parse(input)
	if !errors.Is(r.Err, ErrUnterminated) {
		t.Fatalf("err = %v, want ErrUnterminated", r.Err)
	}
	if r.Body != string(input) {
		t.Errorf("body = %q, want full text", r.Body)
	}
}

func TestParse_DuplicateKeys(t *testing.T) {
	r := Parse([]byte("---\ntitle: a\ntitle: b\n---\n"))
	if r.Err == nil || !strings.Contains(r.Err.Error(), "already defined") {
		t.Errorf("err = %v, want duplicate key error", r.Err)
	}
}

func TestParse_NonMappingRoot(t *testing.T) {
	r := Parse([]byte("---\n- a\n- b\n---\nbody\n"))
	if r.Err == nil {
		t.Fatal("expected error for sequence root")
	}
	if r.Body != "body\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_EmptyBlockAndDotsTerminator(t *testing.T) {
	r := Parse([]byte("---\n---\nbody\n"))
	if r.Err != nil || r.FrontMatter == nil || len(r.FrontMatter.Content) != 0 {
		t.Errorf("empty block: fm=%v err=%v", r.FrontMatter, r.Err)
	}
	r = Parse([]byte("---\ntitle: t\n...\nbody\n"))
	if r.Err != nil || r.Body != "body\n" {
		t.Errorf("dots terminator: body=%q err=%v", r.Body, r.Err)
	}
}

func TestParse_ScalarTypes(t *testing.T) {
	r := Parse([]byte("---\ncreated: 2024-03-01T10:00:00Z\ndraft: true\nweight: 3\nquoted: \"2024-01-02\"\n---\n"))
	if r.Err != nil {
		t.Fatal(r.Err)
	}
	created, _ := Lookup(r.FrontMatter, "created")
	ts, ok := Time(created)
	if !ok || !ts.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("created = %v ok=%v", ts, ok)
	}
	quoted, _ := Lookup(r.FrontMatter, "quoted")
	if _, ok := Time(quoted); !ok {
		t.Error("quoted ISO date should decode as time")
	}
	draft, _ := Lookup(r.FrontMatter, "draft")
	if v, ok := Value(draft).(bool); !ok || !v {
		t.Errorf("draft = %v", Value(draft))
	}
	weight, _ := Lookup(r.FrontMatter, "weight")
	if _, ok := String(weight); ok {
		t.Error("an int scalar is not a string")
	}
}

func TestRender_RoundTrip(t *testing.T) {
	r := Parse([]byte("---\ntitle: Hello\n# keep me\ntags:\n  - a\n---\nbody\n"))
	if r.Err != nil {
		t.Fatal(r.Err)
	}
	out, err := Render(r.FrontMatter)
	if err != nil {
		t.Fatal(err)
	}
	again := Parse([]byte(out + r.Body))
	if again.Err != nil {
		t.Fatalf("re-parse: %v", again.Err)
	}
	if strings.Join(Keys(again.FrontMatter), ",") != "title,tags" {
		t.Errorf("keys = %v", Keys(again.FrontMatter))
	}
	if !strings.Contains(out, "# keep me") {
		t.Errorf("comment lost: %q", out)
	}
	if again.Body != "body\n" {
		t.Errorf("body = %q", again.Body)
	}
}

func TestRender_Empty(t *testing.T) {
	out, err := Render(nil)
	if err != nil {
		t.Fatal(err)
	}
	if out != "---\n---\n" {
		t.Errorf("out = %q", out)
	}
}

func TestSet_ReplacesInPlaceOrAppends(t *testing.T) {
	r := Parse([]byte("---\na: 1\nb: 2\n---\n"))
	Set(r.FrontMatter, "a", Parse([]byte("---\nx: 9\n---\n")).FrontMatter.Content[1])
	Set(r.FrontMatter, "c", Parse([]byte("---\nx: 3\n---\n")).FrontMatter.Content[1])
	if got := strings.Join(Keys(r.FrontMatter), ","); got != "a,b,c" {
		t.Errorf("keys = %s", got)
	}
	a, _ := Lookup(r.FrontMatter, "a")
	if a.Value != "9" {
		t.Errorf("a = %q", a.Value)
	}
}
