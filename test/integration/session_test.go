//go:build integration

package integration

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kfreezen/shellutil/expect"
	"github.com/kfreezen/shellutil/shell"
)

// Drives a real /bin/sh through a pty and checks the full command
// lifecycle: spawn, match output, wait for the exit status.
func TestPtyCommandLifecycle(t *testing.T) {
	transport, err := expect.StartLocal("sh -c 'echo first-line; echo second-line; exit 4'", expect.DefaultLocalOptions())
	if err != nil {
		t.Fatalf("StartLocal: %v", err)
	}

	opts := expect.DefaultOptions()
	opts.Echo = false
	engine := expect.NewWithOptions(transport, opts)
	defer engine.Close()

	idx, err := engine.Expect(expect.EOF, expect.Exact("first-line"))
	if err != nil {
		t.Fatalf("Expect: %v", err)
	}
	if idx != 1 {
		t.Fatalf("match index = %d, want 1", idx)
	}

	idx, err = engine.Expect(expect.EOF, expect.Exact("second-line"))
	if err != nil {
		t.Fatalf("Expect: %v", err)
	}
	if idx != 1 {
		t.Fatalf("match index = %d, want 1", idx)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	status, err := engine.WaitExit(ctx)
	if err != nil {
		t.Fatalf("WaitExit: %v", err)
	}
	if status != 4 {
		t.Errorf("exit status = %d, want 4", status)
	}
}

func TestPtySendRoundTrip(t *testing.T) {
	transport, err := expect.StartLocal("cat", expect.DefaultLocalOptions())
	if err != nil {
		t.Fatalf("StartLocal: %v", err)
	}

	opts := expect.DefaultOptions()
	opts.Echo = false
	engine := expect.NewWithOptions(transport, opts)
	defer engine.Close()

	if err := engine.Send("round-trip"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	idx, err := engine.Expect(expect.EOF, expect.Exact("round-trip"))
	if err != nil {
		t.Fatalf("Expect: %v", err)
	}
	if idx != 1 {
		t.Errorf("match index = %d, want 1", idx)
	}
}

func TestLocalShellWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	sh := shell.NewLocalShell()
	sh.Dir = dir

	res, err := sh.Exec(context.Background(), "pwd")
	if err != nil {
		t.Fatalf("Exec pwd: %v", err)
	}
	if got := strings.TrimSpace(res.Stdout); got != dir {
		t.Errorf("pwd = %q, want %q", got, dir)
	}
}
