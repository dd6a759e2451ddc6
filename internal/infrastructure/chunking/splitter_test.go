package chunking

import (
	"fmt"
	"slices"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitShortTextIsSingleFragment(t *testing.T) {
	s := NewSplitter(400, 50)
	got := s.Split("  장학금 신청 안내  ")
	if len(got) != 1 || got[0] != "장학금 신청 안내" {
		t.Fatalf("unexpected fragments: %q", got)
	}
	if s.Split("   ") != nil {
		t.Fatalf("blank text must yield no fragments")
	}
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	s := NewSplitter(30, 0)
	text := "first paragraph here\n\nsecond paragraph here\n\nthird one"
	got := s.Split(text)
	want := []string{"first paragraph here", "second paragraph here", "third one"}
	if len(got) != len(want) {
		t.Fatalf("expected %d fragments, got %q", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("fragment %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitRespectsSizeAndOverlap(t *testing.T) {
	s := NewSplitter(20, 8)
	words := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		words = append(words, fmt.Sprintf("w%02d", i))
	}
	got := s.Split(strings.Join(words, " "))
	if len(got) < 2 {
		t.Fatalf("expected multiple fragments, got %q", got)
	}
	for i, fragment := range got {
		if n := utf8.RuneCountInString(fragment); n > 20 {
			t.Fatalf("fragment %d has %d runes: %q", i, n, fragment)
		}
	}
	for i := 1; i < len(got); i++ {
		first := strings.Fields(got[i])[0]
		if !slices.Contains(strings.Fields(got[i-1]), first) {
			t.Fatalf("fragment %d does not overlap previous: %q then %q", i, got[i-1], got[i])
		}
	}
	if got[0] != "w00 w01 w02 w03 w04" || !strings.HasPrefix(got[1], "w03 w04 w05") {
		t.Fatalf("unexpected packing: %q", got[:2])
	}
}

func TestSplitFallsBackToRunesForLongWords(t *testing.T) {
	s := NewSplitter(5, 0)
	got := s.Split("abcdefghijkl")
	want := []string{"abcde", "fghij", "kl"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected fragments %q", got)
	}
}

func TestNewSplitterDefaults(t *testing.T) {
	s := NewSplitter(0, -1)
	if s.ChunkSize != 400 || s.Overlap != 0 {
		t.Fatalf("unexpected defaults: %+v", s)
	}
	s = NewSplitter(100, 200)
	if s.Overlap != 25 {
		t.Fatalf("expected overlap clamp to 25, got %d", s.Overlap)
	}
}
