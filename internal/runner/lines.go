package runner

import "bytes"

// Stream identifies which output channel of a child process a line came from.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	switch s {
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	default:
		return "unknown"
	}
}

// Line is one complete line of child output with its terminator removed.
type Line struct {
	Stream Stream
	Text   string
	Seq    int // position within Stream, starting at 0
}

// LineSplitter turns a sequence of byte chunks into complete lines.
// Each line is emitted as soon as its terminator arrives. A trailing
// "\r" before "\n" is dropped, even when the two bytes arrive in
// separate chunks.
type LineSplitter struct {
	stream Stream
	emit   func(Line)
	buf    []byte
	seq    int
	closed bool
}

// NewLineSplitter returns a splitter that calls emit for every line
// written to it on stream.
func NewLineSplitter(stream Stream, emit func(Line)) *LineSplitter {
	return &LineSplitter{stream: stream, emit: emit}
}

// Write appends p to the pending buffer and emits every completed line.
// It always consumes all of p.
func (s *LineSplitter) Write(p []byte) (int, error) {
	if s.closed {
		return len(p), nil
	}
	s.buf = append(s.buf, p...)
	for {
		i := bytes.IndexByte(s.buf, '\n')
		if i < 0 {
			break
		}
		s.flush(s.buf[:i])
		s.buf = s.buf[i+1:]
	}
	// Reclaim the consumed prefix once the buffer drains.
	if len(s.buf) == 0 {
		s.buf = s.buf[:0:0]
	}
	return len(p), nil
}

// Close emits the pending partial line, if any. Later writes are dropped.
func (s *LineSplitter) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if len(s.buf) > 0 {
		s.flush(s.buf)
		s.buf = nil
	}
	return nil
}

func (s *LineSplitter) flush(b []byte) {
	b = bytes.TrimSuffix(b, []byte{'\r'})
	line := Line{Stream: s.stream, Text: string(b), Seq: s.seq}
	s.seq++
	s.emit(line)
}
