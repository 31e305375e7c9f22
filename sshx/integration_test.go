package sshx_test

import (
	"context"
	"testing"

	"golang.org/x/crypto/ssh"

	"github.com/kfreezen/shellutil/expect"
	"github.com/kfreezen/shellutil/internal/testing/mockssh"
	"github.com/kfreezen/shellutil/sshx"
)

func startServer(t *testing.T) (*mockssh.Server, *sshx.Client) {
	t.Helper()
	srv, err := mockssh.Start(mockssh.WithUser("deploy", "hunter2"))
	if err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	opts := sshx.DefaultOptions()
	opts.Host = srv.Host()
	opts.Port = srv.Port()
	opts.User = "deploy"
	opts.AuthMethods = []ssh.AuthMethod{ssh.Password("hunter2")}
	opts.HostKeyCallback = sshx.InsecureHostKeyCallback()

	client, err := sshx.NewClient(opts)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return srv, client
}

func TestClientExec(t *testing.T) {
	_, client := startServer(t)

	res, err := client.Exec(context.Background(), "echo hello; echo oops >&2")
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if res.Stdout != "hello\n" {
		t.Errorf("stdout = %q, want hello", res.Stdout)
	}
	if res.Stderr != "oops\n" {
		t.Errorf("stderr = %q, want oops", res.Stderr)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", res.ExitCode)
	}
}

func TestClientExecNonZeroExit(t *testing.T) {
	_, client := startServer(t)

	res, err := client.Exec(context.Background(), "exit 5")
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if res.ExitCode != 5 {
		t.Errorf("exit code = %d, want 5", res.ExitCode)
	}
}

func TestClientConnectAndClose(t *testing.T) {
	_, client := startServer(t)

	if err := client.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !client.IsConnected() {
		t.Error("expected connected after Connect")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if client.IsConnected() {
		t.Error("expected disconnected after Close")
	}
}

func TestInteractDrivesRemotePty(t *testing.T) {
	_, client := startServer(t)

	sess, err := client.Interact("echo marker; exit 3", sshx.DefaultPtyOptions())
	if err != nil {
		t.Fatalf("Interact: %v", err)
	}

	transport := expect.NewRemoteTransport(sess.Session, sess.Stdin, sess.Stdout)
	opts := expect.DefaultOptions()
	opts.Echo = false
	engine := expect.NewWithOptions(transport, opts)

	idx, err := engine.Expect(expect.EOF, expect.Exact("marker"))
	if err != nil {
		t.Fatalf("Expect: %v", err)
	}
	if idx != 1 {
		t.Errorf("match index = %d, want 1", idx)
	}

	status, err := engine.WaitExit(context.Background())
	if err != nil {
		t.Fatalf("WaitExit: %v", err)
	}
	if status != 3 {
		t.Errorf("exit status = %d, want 3", status)
	}
}
