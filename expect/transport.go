package expect

import "errors"

// Transport is a byte source/sink for one interactive session. Two
// implementations exist: LocalTransport (pseudo-terminal) and
// RemoteTransport (SSH session channel).
type Transport interface {
	// ReadAvailable performs one non-blocking read of at most max bytes.
	// It returns (data, nil) when bytes are available, (nil, nil) when the
	// stream is alive but has nothing to offer right now, and
	// (nil, io.EOF) only once the underlying resource is definitively
	// closed with no buffered bytes remaining. The empty and end-of-stream
	// cases must never be conflated.
	ReadAvailable(max int) ([]byte, error)

	// Write sends bytes to the session's input.
	Write(p []byte) (int, error)

	// Alive reports whether the underlying process or channel is still
	// running (its exit status not yet known).
	Alive() bool

	// ExitStatus returns the process exit code once known.
	ExitStatus() (code int, ok bool)

	// Close releases the underlying resource. Closing an already-closed
	// transport is a no-op.
	Close() error
}

// ErrUnexpectedEOF is returned by Expect when the stream ends before any
// pattern matched and the EOF sentinel was not in the pattern list. A missed
// prompt is a correctness bug for callers scripting shell interaction, so
// this is never swallowed.
var ErrUnexpectedEOF = errors.New("expect: unexpected end of stream")

// ErrClosed is returned for operations on a closed transport.
var ErrClosed = errors.New("expect: transport is closed")
