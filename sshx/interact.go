package sshx

import (
	"fmt"
	"io"

	"golang.org/x/crypto/ssh"
)

// PtyOptions configures the pseudo-terminal requested for an interactive
// session.
type PtyOptions struct {
	Term string            // Terminal type (default: xterm)
	Rows int               // Terminal rows (default: 25)
	Cols int               // Terminal columns (default: 80)
	Env  map[string]string // Environment variables to request
}

// DefaultPtyOptions returns the default interactive terminal settings.
func DefaultPtyOptions() PtyOptions {
	return PtyOptions{
		Term: "xterm",
		Rows: 25,
		Cols: 80,
	}
}

// InteractiveSession is a started remote command with a requested pty and
// open stdin/stdout pipes, ready to be wrapped in a transport.
type InteractiveSession struct {
	Session *ssh.Session
	Stdin   io.WriteCloser
	Stdout  io.Reader
}

// Interact opens a session with a pty and starts command on it. An empty
// command starts the login shell.
func (c *Client) Interact(command string, opts PtyOptions) (*InteractiveSession, error) {
	if opts.Term == "" {
		opts.Term = "xterm"
	}
	if opts.Rows == 0 {
		opts.Rows = 25
	}
	if opts.Cols == 0 {
		opts.Cols = 80
	}

	session, err := c.NewSession()
	if err != nil {
		return nil, err
	}

	// Servers commonly restrict AcceptEnv; failures are not fatal.
	for key, value := range opts.Env {
		_ = session.Setenv(key, value)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty(opts.Term, opts.Rows, opts.Cols, modes); err != nil {
		session.Close()
		return nil, fmt.Errorf("request pty: %w", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if command == "" {
		err = session.Shell()
	} else {
		err = session.Start(command)
	}
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("start session: %w", err)
	}

	return &InteractiveSession{Session: session, Stdin: stdin, Stdout: stdout}, nil
}
