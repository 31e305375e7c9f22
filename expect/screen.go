// Package expect provides expect-style automation over interactive shells.
//
// The core pipeline is Transport -> Decoder -> Screen -> LineIterator ->
// Engine: raw terminal bytes are reduced to plain appended text, split into
// matchable line events, and tested against caller-supplied patterns. The
// package deliberately does not emulate a terminal; cursor movement, colors
// and layout are discarded because automation only cares about the linear
// sequence of printable text and line breaks.
package expect

import "strings"

// OpKind identifies a terminal operation dispatched to the Screen.
type OpKind int

const (
	// OpPrint appends printable text verbatim.
	OpPrint OpKind = iota
	// OpCarriageReturn appends a literal "\r".
	OpCarriageReturn
	// OpLineFeed appends a literal "\n".
	OpLineFeed
	// OpBackspace appends a literal "\b".
	OpBackspace
	// OpTab appends a literal "\t".
	OpTab
	// OpEraseDisplay clears the buffer when Mode >= 2; partial erase
	// modes are ignored.
	OpEraseDisplay
	// OpSetTitle stores the terminal title; it never affects matching.
	OpSetTitle
)

// Op is one decoded terminal operation. Unknown operations are simply never
// constructed; the decoder maps everything it does not care about to nothing,
// and Apply has a default no-op branch for kinds it does not handle.
type Op struct {
	Kind OpKind
	Text string
	Mode int
}

// Screen accumulates decoded terminal output as plain text. It is the sink
// for the stream decoder and is drained by the line iterator; the two never
// touch it concurrently (the engine is single-session, single-consumer).
//
// Control characters relevant to line splitting (CR, LF, BS, TAB) are kept
// verbatim in the buffer so transcripts stay byte-faithful and CRLF and LF
// boundaries remain detectable downstream.
type Screen struct {
	buf   strings.Builder
	title string
}

// NewScreen returns an empty screen sink.
func NewScreen() *Screen {
	return &Screen{}
}

// Apply dispatches a single terminal operation.
func (s *Screen) Apply(op Op) {
	switch op.Kind {
	case OpPrint:
		s.buf.WriteString(op.Text)
	case OpCarriageReturn:
		s.buf.WriteByte('\r')
	case OpLineFeed:
		s.buf.WriteByte('\n')
	case OpBackspace:
		s.buf.WriteByte('\b')
	case OpTab:
		s.buf.WriteByte('\t')
	case OpEraseDisplay:
		if op.Mode >= 2 {
			s.buf.Reset()
		}
	case OpSetTitle:
		s.title = op.Text
	default:
		// All cursor, rendition, margin and charset operations land
		// here: irrelevant to automation.
	}
}

// Drain returns the accumulated text and clears the buffer. It is the only
// read path; a second call with no intervening writes returns "".
func (s *Screen) Drain() string {
	out := s.buf.String()
	s.buf.Reset()
	return out
}

// Title returns the most recently set terminal title.
func (s *Screen) Title() string {
	return s.title
}
