package sshx

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"
)

type failDialer struct {
	calls int
}

func (d *failDialer) Dial(network, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
	d.calls++
	return nil, errors.New("connection refused")
}

func testOptions(d Dialer) Options {
	return Options{
		Host:        "web1.example.com",
		User:        "deploy",
		AuthMethods: []ssh.AuthMethod{ssh.Password("unused")},
		Dialer:      d,
	}
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"missing host", Options{User: "u", AuthMethods: []ssh.AuthMethod{ssh.Password("x")}}},
		{"missing user", Options{Host: "h", AuthMethods: []ssh.AuthMethod{ssh.Password("x")}}},
		{"missing auth", Options{Host: "h", User: "u"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClient(tt.opts); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestNewClientDefaults(t *testing.T) {
	c, err := NewClient(testOptions(&failDialer{}))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.Port() != 22 {
		t.Errorf("Port() = %d, want 22", c.Port())
	}
	if c.Host() != "web1.example.com" {
		t.Errorf("Host() = %q", c.Host())
	}
	if c.User() != "deploy" {
		t.Errorf("User() = %q", c.User())
	}
	if c.IsConnected() {
		t.Error("fresh client must not report connected")
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.Port != 22 {
		t.Errorf("Port = %d", opts.Port)
	}
	if opts.Timeout != 30*time.Second || opts.KeepaliveInterval != 30*time.Second {
		t.Errorf("timeouts = %v/%v", opts.Timeout, opts.KeepaliveInterval)
	}
	if opts.HostKeyCallback == nil {
		t.Error("expected a host key callback placeholder")
	}
}

func TestConnectFailurePropagates(t *testing.T) {
	d := &failDialer{}
	c, err := NewClient(testOptions(d))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if err := c.Connect(); err == nil {
		t.Error("expected connect error")
	}
	if d.calls != 1 {
		t.Errorf("dialer called %d times, want 1", d.calls)
	}
	if c.IsConnected() {
		t.Error("failed connect must leave client disconnected")
	}
}

func TestExecConnectsLazilyAndFails(t *testing.T) {
	d := &failDialer{}
	c, err := NewClient(testOptions(d))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if _, err := c.Exec(context.Background(), "true"); err == nil {
		t.Error("expected error when the dial fails")
	}
	if d.calls == 0 {
		t.Error("Exec must attempt to connect")
	}
}

func TestNewSessionConnectsLazilyAndFails(t *testing.T) {
	c, err := NewClient(testOptions(&failDialer{}))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.NewSession(); err == nil {
		t.Error("expected error when the dial fails")
	}
}

func TestCloseUnconnected(t *testing.T) {
	c, err := NewClient(testOptions(&failDialer{}))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close on unconnected client: %v", err)
	}
}

func TestDefaultPtyOptions(t *testing.T) {
	opts := DefaultPtyOptions()
	if opts.Term != "xterm" {
		t.Errorf("Term = %q, want xterm", opts.Term)
	}
	if opts.Rows != 25 || opts.Cols != 80 {
		t.Errorf("size = %dx%d, want 25x80", opts.Rows, opts.Cols)
	}
}
