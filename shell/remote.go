package shell

import (
	"context"

	"github.com/kfreezen/shellutil/expect"
	"github.com/kfreezen/shellutil/sshx"
)

// RemoteShell runs commands on a remote host over an established SSH client.
type RemoteShell struct {
	client *sshx.Client

	// Pty configures interactive sessions.
	Pty sshx.PtyOptions
}

// NewRemoteShell returns a shell running commands over client.
func NewRemoteShell(client *sshx.Client) *RemoteShell {
	return &RemoteShell{
		client: client,
		Pty:    sshx.DefaultPtyOptions(),
	}
}

// Exec runs a command on the remote host.
func (s *RemoteShell) Exec(ctx context.Context, command string) (*Result, error) {
	res, err := s.client.Exec(ctx, command)
	if err != nil {
		return nil, err
	}
	return &Result{Stdout: res.Stdout, Stderr: res.Stderr, ExitCode: res.ExitCode}, nil
}

// Interact starts a command on a remote pty and wraps it in an expect engine.
func (s *RemoteShell) Interact(command string) (*expect.Engine, error) {
	session, err := s.client.Interact(command, s.Pty)
	if err != nil {
		return nil, err
	}
	t := expect.NewRemoteTransport(session.Session, session.Stdin, session.Stdout)
	return expect.New(t), nil
}

// Remote reports true.
func (s *RemoteShell) Remote() bool { return true }

// Host returns the remote host name.
func (s *RemoteShell) Host() string { return s.client.Host() }

// User returns the remote login user.
func (s *RemoteShell) User() string { return s.client.User() }

// Client returns the underlying SSH client.
func (s *RemoteShell) Client() *sshx.Client { return s.client }
