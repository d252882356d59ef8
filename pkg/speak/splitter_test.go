package speak

import (
	"reflect"
	"testing"
)

func TestFeedSplitsOnTerminalPunctuation(t *testing.T) {
	s := NewSplitter()
	got := s.Feed("Hello there. How are")
	if !reflect.DeepEqual(got, []string{"Hello there."}) {
		t.Fatalf("feed = %v", got)
	}
	got = s.Feed(" you?")
	if len(got) != 0 {
		t.Fatalf("feed = %v, want nothing without trailing whitespace", got)
	}
	rest, ok := s.Flush()
	if !ok || rest != "How are you?" {
		t.Fatalf("flush = %q, %v", rest, ok)
	}
}

func TestFeedSplitsOnNewline(t *testing.T) {
	s := NewSplitter()
	got := s.Feed("First line\nsecond part")
	if !reflect.DeepEqual(got, []string{"First line"}) {
		t.Fatalf("feed = %v", got)
	}
	if s.buf.String() != "second part" {
		t.Fatalf("remainder = %q", s.buf.String())
	}
}

func TestAbbreviationMidStreamStillSplits(t *testing.T) {
	got := Split("I worked at Acme Inc. for two years! Then I left.")
	want := []string{"I worked at Acme Inc.", "for two years!", "Then I left."}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("split = %v, want %v", got, want)
	}
}

func TestFlushEmpty(t *testing.T) {
	s := NewSplitter()
	if _, ok := s.Flush(); ok {
		t.Fatal("flush on empty buffer returned a sentence")
	}
}

func TestSplitWholeText(t *testing.T) {
	got := Split("Hello there. How are you?")
	want := []string{"Hello there.", "How are you?"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("split = %v, want %v", got, want)
	}
}
