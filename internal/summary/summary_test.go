package summary

import (
	"encoding/json"
	"strings"
	"testing"
)

// ===================== runeLen =====================

func TestRuneLen(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"hello", 5},
		{"café", 4},
		{"日本語", 3},
		{"🙂", 1},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := runeLen(tt.input); got != tt.want {
				t.Errorf("runeLen(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

// ===================== truncateRunes =====================

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name string
		s    string
		n    int
		want string
	}{
		{"empty", "", 5, ""},
		{"no truncation needed", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"truncate ASCII", "hello world", 5, "hello"},
		{"truncate multibyte", "日本語テスト", 3, "日本語"},
		{"zero length", "hello", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateRunes(tt.s, tt.n); got != tt.want {
				t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.s, tt.n, got, tt.want)
			}
		})
	}
}

// ===================== Text =====================

func TestText(t *testing.T) {
	tests := []struct {
		name string
		html string
		max  int
		want string
	}{
		{"plain", "just text", 50, "just text"},
		{"markup stripped", "<p>Hello <b>world</b></p>", 50, "Hello world"},
		{"blocks separated", "<p>one</p><p>two</p>", 50, "one two"},
		{"line breaks", "a<br>b", 50, "a b"},
		{"whitespace collapsed", "  lots \n\n of\tspace ", 50, "lots of space"},
		{"entities", "fish &amp; chips", 50, "fish & chips"},
		{"truncated", "<p>The quick brown fox</p>", 10, "The quick…"},
		{"exact fit", "abcde", 5, "abcde"},
		{"tiny max", "abcdef", 1, "a"},
		{"zero max", "abc", 0, ""},
		{"empty", "", 10, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Text(tt.html, tt.max)
			if got != tt.want {
				t.Errorf("Text(%q, %d) = %q, want %q", tt.html, tt.max, got, tt.want)
			}
			if runeLen(got) > tt.max && tt.max >= 0 {
				t.Errorf("Text exceeded %d runes: %d", tt.max, runeLen(got))
			}
		})
	}
}

func TestText_LongBody(t *testing.T) {
	got := Text(strings.Repeat("word ", 100), 80)
	if runeLen(got) > 80 {
		t.Errorf("summary exceeds 80 runes: %d", runeLen(got))
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("expected ellipsis in truncated summary, got: %s", got)
	}
}

// ===================== Post =====================

func TestPost(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"summary wins", `{"summary":"short","caption":"<p>caption</p>"}`, "short"},
		{"caption", `{"caption":"<p>A <i>photo</i></p>"}`, "A photo"},
		{"body", `{"summary":"","body":"<p>text post</p>"}`, "text post"},
		{"title", `{"title":"Only a title"}`, "Only a title"},
		{"nothing", `{"id":1}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p map[string]any
			if err := json.Unmarshal([]byte(tt.raw), &p); err != nil {
				t.Fatal(err)
			}
			if got := Post(p, 40); got != tt.want {
				t.Errorf("Post = %q, want %q", got, tt.want)
			}
		})
	}
}
