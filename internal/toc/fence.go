package toc

import "strings"

// fenceTracker follows fenced code blocks line by line.
type fenceTracker struct {
	char byte
	size int
}

// feed consumes one line and reports whether it belongs to a fenced code
// block, delimiters included.
func (f *fenceTracker) feed(line string) bool {
	line = strings.TrimRight(line, "\r\n")
	indent := len(line) - len(strings.TrimLeft(line, " "))
	if indent > 3 {
		return f.size > 0
	}
	rest := line[indent:]

	if f.size > 0 {
		if n := runLength(rest, f.char); n >= f.size && strings.TrimSpace(rest[n:]) == "" {
			f.size = 0
		}
		return true
	}

	for _, c := range []byte{'`', '~'} {
		n := runLength(rest, c)
		if n < 3 {
			continue
		}
		// Backtick fences may not carry backticks in their info string.
		if c == '`' && strings.Contains(rest[n:], "`") {
			return false
		}
		f.char, f.size = c, n
		return true
	}
	return false
}

func runLength(s string, c byte) int {
	n := 0
	for n < len(s) && s[n] == c {
		n++
	}
	return n
}

// indented reports whether line starts at column 4 or beyond, where
// CommonMark reads it as code or paragraph text, never as an HTML block.
func indented(line string) bool {
	col := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case ' ':
			col++
		case '\t':
			col += 4 - col%4
		default:
			return col > 3
		}
		if col > 3 {
			return true
		}
	}
	return false
}
