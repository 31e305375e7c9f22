package expect

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/creack/pty"
	"github.com/google/shlex"
	"golang.org/x/sys/unix"
)

// LocalOptions configures local pty allocation.
type LocalOptions struct {
	Dir  string   // working directory (default: inherited)
	Env  []string // extra environment variables (KEY=VALUE)
	Rows uint16   // terminal rows (default 25)
	Cols uint16   // terminal columns (default 80)
}

// DefaultLocalOptions returns the default pty geometry.
func DefaultLocalOptions() LocalOptions {
	return LocalOptions{Rows: 25, Cols: 80}
}

// LocalTransport runs a command on a local pseudo-terminal. Reads use a
// zero-timeout deadline so they never block; liveness is tracked with a
// non-blocking wait on the child process.
//
// A transport belongs to exactly one session and is not safe for concurrent
// use; the engine drives it from a single goroutine.
type LocalTransport struct {
	cmd  *exec.Cmd
	ptmx *os.File

	closed      bool
	exited      bool
	status      int
	statusKnown bool
}

// StartLocal splits command into argv (shell-style quoting respected) and
// spawns it attached to a new pty.
func StartLocal(command string, opts LocalOptions) (*LocalTransport, error) {
	argv, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("split command: %w", err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	if opts.Rows == 0 {
		opts.Rows = 25
	}
	if opts.Cols == 0 {
		opts.Cols = 80
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}
	cmd.Env = append(os.Environ(), opts.Env...)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: opts.Rows, Cols: opts.Cols})
	if err != nil {
		return nil, fmt.Errorf("start pty: %w", err)
	}

	return &LocalTransport{cmd: cmd, ptmx: ptmx, status: -1}, nil
}

// ReadAvailable reads whatever the pty has buffered, without blocking. A
// read error other than a deadline timeout means the slave side is gone and
// is reported as end of stream.
func (t *LocalTransport) ReadAvailable(max int) ([]byte, error) {
	if t.closed {
		return nil, io.EOF
	}
	if max <= 0 {
		max = 1024
	}

	buf := make([]byte, max)
	t.ptmx.SetReadDeadline(time.Now())
	n, err := t.ptmx.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err != nil && !os.IsTimeout(err) {
		return nil, io.EOF
	}
	return nil, nil
}

// Write sends bytes to the pty input.
func (t *LocalTransport) Write(p []byte) (int, error) {
	if t.closed {
		return 0, ErrClosed
	}
	return t.ptmx.Write(p)
}

// Alive reports whether the child process is still running, reaping it with
// WNOHANG when it has exited so the exit status becomes available.
func (t *LocalTransport) Alive() bool {
	if t.exited {
		return false
	}
	if t.cmd.Process == nil {
		return false
	}

	var ws unix.WaitStatus
	pid, err := unix.Wait4(t.cmd.Process.Pid, &ws, unix.WNOHANG, nil)
	switch {
	case err != nil:
		// ECHILD: someone else reaped it; the status is lost.
		t.exited = true
		return false
	case pid == t.cmd.Process.Pid:
		t.exited = true
		t.recordStatus(ws)
		return false
	default:
		return true
	}
}

func (t *LocalTransport) recordStatus(ws unix.WaitStatus) {
	switch {
	case ws.Exited():
		t.status = ws.ExitStatus()
		t.statusKnown = true
	case ws.Signaled():
		t.status = 128 + int(ws.Signal())
		t.statusKnown = true
	}
}

// ExitStatus returns the child's exit code once it has been reaped.
func (t *LocalTransport) ExitStatus() (int, bool) {
	if !t.exited {
		t.Alive()
	}
	if t.exited && t.statusKnown {
		return t.status, true
	}
	return -1, false
}

// Close closes the pty and, if the child is still running, kills and reaps
// it so no zombie is left behind.
func (t *LocalTransport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true

	err := t.ptmx.Close()

	if !t.exited && t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
		var ws unix.WaitStatus
		pid, werr := unix.Wait4(t.cmd.Process.Pid, &ws, 0, nil)
		if werr == nil && pid == t.cmd.Process.Pid {
			t.exited = true
			t.recordStatus(ws)
		}
	}

	if err != nil {
		return fmt.Errorf("close pty: %w", err)
	}
	return nil
}
