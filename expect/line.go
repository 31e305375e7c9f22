package expect

import (
	"io"
	"strings"
)

// TokenKind classifies the result of one LineIterator step. The four-way
// split is deliberate: callers must be able to tell "nothing right now" apart
// from "nothing ever again".
type TokenKind int

const (
	// TokenNoLine means no complete or partial line is deliverable yet;
	// the stream is alive and should be re-polled.
	TokenNoLine TokenKind = iota
	// TokenEndOfStream means the transport closed and no more bytes will
	// ever arrive.
	TokenEndOfStream
	// TokenUnmatchedLine is a terminated (or final partial) line that no
	// supplied pattern matched.
	TokenUnmatchedLine
	// TokenMatched is a line prefix that matched a supplied pattern.
	TokenMatched
)

// Line is one tagged line event. Text carries the consumed text for
// TokenUnmatchedLine and TokenMatched; PatternIndex and Groups are only
// meaningful for TokenMatched.
type Line struct {
	Kind         TokenKind
	Text         string
	PatternIndex int
	Groups       []string
}

// LineIterator buffers decoded text from a pull source and splits it into
// line events, probing caller patterns against every prefix of the buffered
// text so prompts without a trailing newline are still detectable.
//
// The pull function performs at most one non-blocking transport read per
// call, returning decoded text ("" when nothing is available) or io.EOF once
// the stream is definitively closed.
type LineIterator struct {
	pull     func() (string, error)
	buf      string
	sawEOF   bool
	needMore bool
}

// NewLineIterator returns an iterator over the given pull source.
func NewLineIterator(pull func() (string, error)) *LineIterator {
	return &LineIterator{pull: pull}
}

// Next delivers the next line event, testing patterns against each prefix of
// the buffered text in list order. Pattern list order is the sole match
// priority; no longest-match preference is attempted.
//
// A match found mid-buffer keeps scanning and consumes a terminator that
// immediately follows it, so the matched line does not leave a dangling
// "\r\n" for the next call. A match at the end of the buffer returns
// immediately without requiring a terminator ever to arrive.
func (it *LineIterator) Next(patterns []Pattern) Line {
	if it.buf == "" || it.needMore {
		it.needMore = false
		if !it.sawEOF {
			chunk, err := it.pull()
			if err != nil {
				it.sawEOF = true
			}
			it.buf += chunk
		}
	}

	if it.buf == "" {
		if it.sawEOF {
			return Line{Kind: TokenEndOfStream}
		}
		return Line{Kind: TokenNoLine}
	}

	var found *Line
	i := 0
	for i < len(it.buf) {
		prefix := it.buf[:i+1]
		for j := range patterns {
			if patterns[j].IsEOF() {
				continue
			}
			if groups, ok := patterns[j].match(prefix); ok {
				found = &Line{
					Kind:         TokenMatched,
					Text:         prefix,
					PatternIndex: j,
					Groups:       groups,
				}
				break
			}
		}

		if found != nil {
			i++
			if strings.HasPrefix(it.buf[i:], "\r\n") {
				i += 2
			} else if strings.HasPrefix(it.buf[i:], "\n") {
				i++
			}
			break
		}

		if i+1 < len(it.buf) && it.buf[i] == '\r' && it.buf[i+1] == '\n' {
			i += 2
			break
		}
		if it.buf[i] == '\n' {
			i++
			break
		}
		i++
	}

	line := it.buf[:i]
	it.buf = it.buf[i:]

	if found != nil {
		return *found
	}
	if strings.HasSuffix(line, "\n") {
		return Line{Kind: TokenUnmatchedLine, Text: line}
	}

	// No terminator and no match: the line is still in progress. Hold the
	// text for the next call unless the stream already ended, in which
	// case the leftover is flushed as the final line.
	if it.sawEOF {
		return Line{Kind: TokenUnmatchedLine, Text: line}
	}
	it.buf = line
	it.needMore = true
	return Line{Kind: TokenNoLine}
}

// Drain performs one pull and returns everything buffered plus whatever the
// pull produced, clearing the partial-line buffer. Once the stream is
// exhausted and nothing is pending it returns ("", io.EOF).
func (it *LineIterator) Drain() (string, error) {
	var chunk string
	if !it.sawEOF {
		var err error
		chunk, err = it.pull()
		if err != nil {
			it.sawEOF = true
		}
	}

	out := it.buf + chunk
	it.buf = ""
	it.needMore = false

	if out == "" && it.sawEOF {
		return "", io.EOF
	}
	return out, nil
}
