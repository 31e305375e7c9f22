package expect

import (
	"errors"
	"io"
	"sync"

	"golang.org/x/crypto/ssh"
)

// RemoteTransport adapts an SSH session channel to the non-blocking read
// contract. SSH pipes have no read deadlines, so a single pump goroutine
// copies session output into a chunk channel; ReadAvailable does a
// non-blocking receive from it. The goroutine exists only to simulate a
// non-blocking read — all matching still happens on the caller's goroutine.
type RemoteTransport struct {
	session *ssh.Session
	stdin   io.WriteCloser

	chunks  chan []byte
	pending []byte
	closed  bool

	mu          sync.Mutex
	exited      bool
	status      int
	statusKnown bool
}

// NewRemoteTransport wraps a started SSH session. The caller is expected to
// have requested a pty and started a shell or command on the session; stdin
// and stdout are the session's pipes.
func NewRemoteTransport(session *ssh.Session, stdin io.WriteCloser, stdout io.Reader) *RemoteTransport {
	t := &RemoteTransport{
		session: session,
		stdin:   stdin,
		chunks:  make(chan []byte, 64),
		status:  -1,
	}
	go t.pump(stdout)
	return t
}

// pump copies session output into the chunk channel until EOF, then collects
// the remote exit status.
func (t *RemoteTransport) pump(stdout io.Reader) {
	for {
		buf := make([]byte, 1024)
		n, err := stdout.Read(buf)
		if n > 0 {
			t.chunks <- buf[:n]
		}
		if err != nil {
			break
		}
	}
	close(t.chunks)

	err := t.session.Wait()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exited = true
	switch e := err.(type) {
	case nil:
		t.status = 0
		t.statusKnown = true
	case *ssh.ExitError:
		t.status = e.ExitStatus()
		t.statusKnown = true
	default:
		// Exit status never arrived (connection torn down, or the
		// server sent none). Liveness is over but the code is unknown.
	}
}

// ReadAvailable returns buffered session output without blocking. End of
// stream is reported only once the channel has closed and every buffered
// byte has been delivered.
func (t *RemoteTransport) ReadAvailable(max int) ([]byte, error) {
	if max <= 0 {
		max = 1024
	}

	if len(t.pending) > 0 {
		return t.take(t.pending, max), nil
	}

	select {
	case chunk, ok := <-t.chunks:
		if !ok {
			return nil, io.EOF
		}
		return t.take(chunk, max), nil
	default:
		return nil, nil
	}
}

// take delivers up to max bytes of chunk, stashing the remainder.
func (t *RemoteTransport) take(chunk []byte, max int) []byte {
	if len(chunk) <= max {
		t.pending = nil
		return chunk
	}
	t.pending = chunk[max:]
	return chunk[:max]
}

// Write sends bytes to the remote session's input.
func (t *RemoteTransport) Write(p []byte) (int, error) {
	if t.closed {
		return 0, ErrClosed
	}
	return t.stdin.Write(p)
}

// Alive reports whether the remote exit status is still outstanding.
func (t *RemoteTransport) Alive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.exited
}

// ExitStatus returns the remote exit code once the session has ended. ok is
// false while the session runs and when the server never delivered a status.
func (t *RemoteTransport) ExitStatus() (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.exited && t.statusKnown {
		return t.status, true
	}
	return -1, false
}

// Close closes the session channel.
func (t *RemoteTransport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true

	_ = t.stdin.Close()
	if err := t.session.Close(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
