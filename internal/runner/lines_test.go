package runner

import (
	"slices"
	"testing"
)

func collect(stream Stream) (*LineSplitter, *[]Line) {
	var got []Line
	s := NewLineSplitter(stream, func(l Line) { got = append(got, l) })
	return s, &got
}

func texts(lines []Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}

func TestLineSplitter_ChunkBoundaryInvariance(t *testing.T) {
	input := []byte("alpha\nbeta\r\n\ngamma delta\nlast\n")
	want := []string{"alpha", "beta", "", "gamma delta", "last"}

	// Every split into two chunks, plus byte-at-a-time.
	for cut := 0; cut <= len(input); cut++ {
		s, got := collect(Stdout)
		_, _ = s.Write(input[:cut])
		_, _ = s.Write(input[cut:])
		_ = s.Close()
		if !slices.Equal(texts(*got), want) {
			t.Errorf("cut %d: lines = %q, want %q", cut, texts(*got), want)
		}
	}

	s, got := collect(Stdout)
	for i := range input {
		_, _ = s.Write(input[i : i+1])
	}
	_ = s.Close()
	if !slices.Equal(texts(*got), want) {
		t.Errorf("bytewise: lines = %q, want %q", texts(*got), want)
	}
}

func TestLineSplitter_EmitsImmediately(t *testing.T) {
	s, got := collect(Stdout)
	_, _ = s.Write([]byte("one\ntw"))
	if len(*got) != 1 || (*got)[0].Text != "one" {
		t.Fatalf("lines = %q, want [one] before close", texts(*got))
	}
	_, _ = s.Write([]byte("o\n"))
	if len(*got) != 2 || (*got)[1].Text != "two" {
		t.Fatalf("lines = %q, want [one two]", texts(*got))
	}
}

func TestLineSplitter_FlushPartialOnClose(t *testing.T) {
	s, got := collect(Stderr)
	_, _ = s.Write([]byte("done\npartial"))
	if len(*got) != 1 {
		t.Fatalf("lines before close = %d, want 1", len(*got))
	}
	_ = s.Close()
	if !slices.Equal(texts(*got), []string{"done", "partial"}) {
		t.Errorf("lines = %q, want [done partial]", texts(*got))
	}
	last := (*got)[1]
	if last.Stream != Stderr {
		t.Errorf("Stream = %v, want stderr", last.Stream)
	}
	if last.Seq != 1 {
		t.Errorf("Seq = %d, want 1", last.Seq)
	}
}

func TestLineSplitter_NoExtraLineOnEmptyClose(t *testing.T) {
	s, got := collect(Stdout)
	_, _ = s.Write([]byte("a\nb\n"))
	_ = s.Close()
	_ = s.Close()
	if len(*got) != 2 {
		t.Errorf("lines = %q, want exactly 2", texts(*got))
	}
}

func TestLineSplitter_WriteAfterCloseDropped(t *testing.T) {
	s, got := collect(Stdout)
	_ = s.Close()
	n, err := s.Write([]byte("late\n"))
	if err != nil || n != 5 {
		t.Errorf("Write = (%d, %v), want (5, nil)", n, err)
	}
	if len(*got) != 0 {
		t.Errorf("lines = %q, want none", texts(*got))
	}
}

func TestLineSplitter_SequenceNumbers(t *testing.T) {
	s, got := collect(Stdout)
	_, _ = s.Write([]byte("a\nb\nc\n"))
	for i, l := range *got {
		if l.Seq != i {
			t.Errorf("line %d Seq = %d", i, l.Seq)
		}
	}
}

func TestStreamString(t *testing.T) {
	if Stdout.String() != "stdout" || Stderr.String() != "stderr" {
		t.Errorf("got %q/%q", Stdout, Stderr)
	}
}
