package expect

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// ExitStatusUnknown is returned by WaitExit when the process ended but its
// exit code could not be determined.
const ExitStatusUnknown = -1

// Options control engine behavior.
type Options struct {
	// Echo mirrors every consumed line to Output as it is matched.
	Echo bool
	// Output receives echoed lines. Defaults to os.Stdout.
	Output func(string)
	// ReadSize bounds each transport read.
	ReadSize int
	// PollInterval is the sleep between reads when no complete line is
	// available yet.
	PollInterval time.Duration
}

// DefaultOptions returns the options used by New.
func DefaultOptions() Options {
	return Options{
		Echo:         true,
		Output:       func(s string) { fmt.Fprint(os.Stdout, s) },
		ReadSize:     1024,
		PollInterval: 2 * time.Millisecond,
	}
}

// Match describes a successful Expect.
type Match struct {
	// Index is the position of the matched pattern in the list passed to
	// Expect.
	Index int
	// Text is the full matched text.
	Text string
	// Groups holds the regex capture group texts, in order. Empty for
	// exact patterns and regexes without groups.
	Groups []string
}

// Engine drives an interactive process over a Transport: send input, wait
// for output matching one of a set of patterns.
type Engine struct {
	transport Transport
	screen    *Screen
	decoder   *Decoder
	lines     *LineIterator
	opts      Options

	history []Line
	window  []string
}

// New wraps a transport with default options.
func New(t Transport) *Engine {
	return NewWithOptions(t, DefaultOptions())
}

// NewWithOptions wraps a transport.
func NewWithOptions(t Transport, opts Options) *Engine {
	if opts.Output == nil {
		opts.Output = func(s string) { fmt.Fprint(os.Stdout, s) }
	}
	if opts.ReadSize <= 0 {
		opts.ReadSize = 1024
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Millisecond
	}
	e := &Engine{
		transport: t,
		screen:    NewScreen(),
		decoder:   nil,
		opts:      opts,
	}
	e.decoder = NewDecoder(e.screen)
	e.lines = NewLineIterator(e.readDecoded)
	return e
}

// readDecoded performs one transport read, runs the bytes through the
// terminal decoder, and returns the printable text that survived.
func (e *Engine) readDecoded() (string, error) {
	data, err := e.transport.ReadAvailable(e.opts.ReadSize)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", nil
	}
	e.decoder.Feed(data)
	return e.screen.Drain(), nil
}

// Send writes a line of input followed by a newline. Any output still
// buffered from before the send is discarded so that the next Expect only
// sees output produced after it.
func (e *Engine) Send(line string) error {
	return e.SendWith(line, "\n")
}

// SendWith writes input followed by the given terminator.
func (e *Engine) SendWith(line, terminator string) error {
	if _, err := e.lines.Drain(); err != nil && err != io.EOF {
		return err
	}
	_, err := e.transport.Write([]byte(line + terminator))
	if err != nil {
		return fmt.Errorf("send %q: %w", line, err)
	}
	return nil
}

// Expect reads output until a line matches one of the patterns and returns
// the index of the first pattern that matched. Patterns earlier in the list
// win when several match the same line. Include EOF in the list to treat end
// of stream as a match; otherwise end of stream is an error.
func (e *Engine) Expect(patterns ...Pattern) (int, error) {
	m, err := e.ExpectMatch(patterns...)
	if err != nil {
		return -1, err
	}
	return m.Index, nil
}

// ExpectMatch is Expect with the matched text and capture groups.
func (e *Engine) ExpectMatch(patterns ...Pattern) (*Match, error) {
	e.window = e.window[:0]

	eofIndex := -1
	for i, p := range patterns {
		if p.IsEOF() {
			eofIndex = i
		}
	}

	for {
		line := e.lines.Next(patterns)
		if line.Kind != TokenNoLine {
			e.history = append(e.history, line)
		}
		switch line.Kind {
		case TokenMatched:
			e.echo(line.Text)
			return &Match{Index: line.PatternIndex, Text: line.Text, Groups: line.Groups}, nil
		case TokenUnmatchedLine:
			e.window = append(e.window, line.Text)
			e.echo(line.Text)
		case TokenEndOfStream:
			if eofIndex >= 0 {
				return &Match{Index: eofIndex}, nil
			}
			return nil, ErrUnexpectedEOF
		case TokenNoLine:
			time.Sleep(e.opts.PollInterval)
		}
	}
}

// CurrentOutput returns the unmatched output consumed since the last Expect
// began, up to but not including the matched line.
func (e *Engine) CurrentOutput() string {
	return strings.Join(e.window, "")
}

// History returns every line consumed so far, matched and unmatched.
func (e *Engine) History() []Line {
	return e.history
}

// WaitExit drains remaining output until the process ends, closes the
// transport, and returns the exit status. ExitStatusUnknown is returned when
// the status could not be determined.
func (e *Engine) WaitExit(ctx context.Context) (int, error) {
	for e.transport.Alive() {
		if err := ctx.Err(); err != nil {
			return ExitStatusUnknown, err
		}
		text, err := e.lines.Drain()
		if text != "" {
			e.echo(text)
		}
		if err != nil {
			break
		}
		time.Sleep(e.opts.PollInterval)
	}
	// One final drain for output that raced the exit.
	if text, _ := e.lines.Drain(); text != "" {
		e.echo(text)
	}
	if err := e.transport.Close(); err != nil {
		return ExitStatusUnknown, err
	}
	if status, ok := e.transport.ExitStatus(); ok {
		return status, nil
	}
	return ExitStatusUnknown, nil
}

// Close closes the underlying transport.
func (e *Engine) Close() error {
	return e.transport.Close()
}

func (e *Engine) echo(text string) {
	if e.opts.Echo && text != "" {
		e.opts.Output(text)
	}
}
