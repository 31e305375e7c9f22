// Package sshx manages SSH connections for remote shell sessions: connect,
// keepalive, session creation, command execution with one reconnect retry,
// and lazy SFTP access.
package sshx

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// Dialer abstracts the SSH dial so tests can inject a fake.
type Dialer interface {
	Dial(network, addr string, config *ssh.ClientConfig) (*ssh.Client, error)
}

type netDialer struct{}

func (netDialer) Dial(network, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
	return ssh.Dial(network, addr, config)
}

// Options configures a Client.
type Options struct {
	Host              string
	Port              int
	User              string
	AuthMethods       []ssh.AuthMethod
	HostKeyCallback   ssh.HostKeyCallback
	Timeout           time.Duration
	KeepaliveInterval time.Duration
	Dialer            Dialer
}

// DefaultOptions returns default client options. The insecure host key
// callback is a placeholder; callers should install a known_hosts callback
// via BuildHostKeyCallback.
func DefaultOptions() Options {
	return Options{
		Port:              22,
		Timeout:           30 * time.Second,
		KeepaliveInterval: 30 * time.Second,
		HostKeyCallback:   ssh.InsecureIgnoreHostKey(),
	}
}

// Client manages one SSH connection to a remote host.
type Client struct {
	config *ssh.ClientConfig
	host   string
	port   int
	dialer Dialer

	mu   sync.Mutex
	conn *ssh.Client

	keepaliveInterval time.Duration
	keepaliveStop     chan struct{}

	sftpClient *sftp.Client
}

// NewClient creates an SSH client. It does not connect; call Connect or let
// the first operation connect lazily.
func NewClient(opts Options) (*Client, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if opts.User == "" {
		return nil, fmt.Errorf("user is required")
	}
	if len(opts.AuthMethods) == 0 {
		return nil, fmt.Errorf("at least one auth method is required")
	}
	if opts.Port == 0 {
		opts.Port = 22
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.KeepaliveInterval == 0 {
		opts.KeepaliveInterval = 30 * time.Second
	}
	if opts.HostKeyCallback == nil {
		opts.HostKeyCallback = ssh.InsecureIgnoreHostKey()
	}
	if opts.Dialer == nil {
		opts.Dialer = netDialer{}
	}

	return &Client{
		config: &ssh.ClientConfig{
			User:            opts.User,
			Auth:            opts.AuthMethods,
			HostKeyCallback: opts.HostKeyCallback,
			Timeout:         opts.Timeout,
		},
		host:              opts.Host,
		port:              opts.Port,
		dialer:            opts.Dialer,
		keepaliveInterval: opts.KeepaliveInterval,
	}, nil
}

// Connect establishes the SSH connection. Connecting an already-connected
// client is a no-op.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

func (c *Client) connectLocked() error {
	if c.conn != nil {
		return nil
	}

	addr := net.JoinHostPort(c.host, fmt.Sprintf("%d", c.port))
	conn, err := c.dialer.Dial("tcp", addr, c.config)
	if err != nil {
		return fmt.Errorf("ssh dial %s: %w", addr, err)
	}

	c.conn = conn
	c.keepaliveStop = make(chan struct{})

	// Copy the channel reference so the goroutine never reads the struct field.
	stop := c.keepaliveStop
	go c.keepalive(stop)

	slog.Debug("ssh connected",
		slog.String("host", c.host),
		slog.Int("port", c.port),
		slog.String("user", c.config.User),
	)
	return nil
}

// keepalive sends periodic keepalive requests to prevent connection timeout.
func (c *Client) keepalive(stop <-chan struct{}) {
	ticker := time.NewTicker(c.keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.conn != nil {
				// A failed keepalive is left for the next operation
				// to detect; closing here would race the caller.
				_, _, _ = c.conn.SendRequest("keepalive@openssh.com", true, nil)
			}
			c.mu.Unlock()
		}
	}
}

// reconnect tears down the current connection and dials again.
func (c *Client) reconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closeLocked()
	return c.connectLocked()
}

// NewSession creates a new SSH session, connecting first if needed.
func (c *Client) NewSession() (*ssh.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(); err != nil {
		return nil, err
	}

	session, err := c.conn.NewSession()
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	return session, nil
}

// ExecResult holds the outcome of one remote command.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Exec runs a command on the remote host and waits for it to finish. A
// session that cannot be opened triggers one reconnect and retry before the
// error is surfaced; a dropped connection under an idle client is routine and
// not worth failing the operation for.
func (c *Client) Exec(ctx context.Context, command string) (*ExecResult, error) {
	session, err := c.NewSession()
	if err != nil {
		slog.Debug("ssh session failed, reconnecting",
			slog.String("host", c.host),
			slog.String("error", err.Error()),
		)
		if rerr := c.reconnect(); rerr != nil {
			return nil, fmt.Errorf("reconnect: %w", rerr)
		}
		session, err = c.NewSession()
		if err != nil {
			return nil, err
		}
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	if err := session.Start(command); err != nil {
		return nil, fmt.Errorf("start %q: %w", command, err)
	}
	go func() { done <- session.Wait() }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		<-done
		return nil, ctx.Err()
	case err = <-done:
	}

	res := &ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		exitErr, ok := err.(*ssh.ExitError)
		if !ok {
			return nil, fmt.Errorf("run %q: %w", command, err)
		}
		res.ExitCode = exitErr.ExitStatus()
	}
	return res, nil
}

// SFTP returns an SFTP client sharing the SSH connection, creating it on
// first use.
func (c *Client) SFTP() (*sftp.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(); err != nil {
		return nil, err
	}

	if c.sftpClient == nil {
		client, err := sftp.NewClient(c.conn)
		if err != nil {
			return nil, fmt.Errorf("sftp subsystem: %w", err)
		}
		c.sftpClient = client
	}
	return c.sftpClient, nil
}

// Close closes the SSH connection and any associated clients.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.keepaliveStop != nil {
		close(c.keepaliveStop)
		c.keepaliveStop = nil
	}

	if c.sftpClient != nil {
		_ = c.sftpClient.Close()
		c.sftpClient = nil
	}

	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// IsConnected returns true if the client currently holds a connection.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Host returns the target host.
func (c *Client) Host() string { return c.host }

// Port returns the target port.
func (c *Client) Port() int { return c.port }

// User returns the login user.
func (c *Client) User() string { return c.config.User }
