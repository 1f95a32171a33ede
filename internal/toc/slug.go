package toc

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const emptySlug = "section"

// Slug turns heading text into an anchor: lower-cased, punctuation
// dropped, whitespace runs joined with a single '-'.
func Slug(text string) string {
	text = norm.NFC.String(text)
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r):
			pendingSep = b.Len() > 0
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsMark(r), r == '-', r == '_':
			if pendingSep {
				b.WriteByte('-')
				pendingSep = false
			}
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return emptySlug
	}
	return b.String()
}

// slugger hands out slugs unique within one document.
type slugger struct {
	used map[string]int
}

func newSlugger() *slugger {
	return &slugger{used: make(map[string]int)}
}

// next returns Slug(text), suffixed with -1, -2, ... on collision.
func (s *slugger) next(text string) string {
	base := Slug(text)
	n, seen := s.used[base]
	if !seen {
		s.used[base] = 0
		return base
	}
	for {
		n++
		candidate := base + "-" + strconv.Itoa(n)
		if _, taken := s.used[candidate]; !taken {
			s.used[base] = n
			s.used[candidate] = 0
			return candidate
		}
	}
}
