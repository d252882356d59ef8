package speak

import (
	"strings"
	"sync"
	"unicode"
)

// terminal reports whether r ends a sentence.
func terminal(r rune) bool {
	switch r {
	case '.', '!', '?':
		return true
	}
	return false
}

// Splitter cuts streamed text into speakable sentences. Text accumulates
// until a terminal punctuation mark followed by whitespace, or a newline;
// Flush forces out whatever remains.
type Splitter struct {
	mu  sync.Mutex
	buf strings.Builder
}

func NewSplitter() *Splitter {
	return &Splitter{}
}

// Feed appends text and returns any complete sentences it produced.
func (s *Splitter) Feed(text string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf.WriteString(text)
	work := s.buf.String()

	var out []string
	start := 0
	runes := []rune(work)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\n' {
			if sentence := strings.TrimSpace(string(runes[start : i+1])); sentence != "" {
				out = append(out, sentence)
			}
			start = i + 1
			continue
		}
		if terminal(r) && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			if sentence := strings.TrimSpace(string(runes[start : i+1])); sentence != "" {
				out = append(out, sentence)
			}
			start = i + 1
		}
	}

	s.buf.Reset()
	s.buf.WriteString(string(runes[start:]))
	return out
}

// Flush returns the buffered remainder as a final sentence, if any.
func (s *Splitter) Flush() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rest := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	if rest == "" {
		return "", false
	}
	return rest, true
}

// Split is a convenience for already-complete text: Feed then Flush.
func Split(text string) []string {
	sp := NewSplitter()
	out := sp.Feed(text)
	if rest, ok := sp.Flush(); ok {
		out = append(out, rest)
	}
	return out
}
