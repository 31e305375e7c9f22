package expect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kfreezen/shellutil/internal/testing/fakes/faketransport"
)

func quietEngine(t *faketransport.Transport) *Engine {
	opts := DefaultOptions()
	opts.Echo = false
	return NewWithOptions(t, opts)
}

func TestEngineSendAppendsNewline(t *testing.T) {
	ft := faketransport.New()
	e := quietEngine(ft)

	if err := e.Send("echo hi"); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if got := ft.Written(); got != "echo hi\n" {
		t.Errorf("written = %q, want %q", got, "echo hi\n")
	}
}

func TestEngineSendWithTerminator(t *testing.T) {
	ft := faketransport.New()
	e := quietEngine(ft)

	if err := e.SendWith("stty -echo", "\r"); err != nil {
		t.Fatalf("SendWith error: %v", err)
	}
	if got := ft.Written(); got != "stty -echo\r" {
		t.Errorf("written = %q, want %q", got, "stty -echo\r")
	}
}

func TestEngineSendDiscardsStaleOutput(t *testing.T) {
	ft := faketransport.New().Feed("stale banner\r\n")
	e := quietEngine(ft)

	if err := e.Send("date"); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	ft.Feed("fresh\r\n")

	idx, err := e.Expect(Exact("fresh"))
	if err != nil {
		t.Fatalf("Expect error: %v", err)
	}
	if idx != 0 {
		t.Errorf("Expect index = %d, want 0", idx)
	}
	if got := e.CurrentOutput(); got != "" {
		t.Errorf("CurrentOutput = %q, want empty (stale output discarded)", got)
	}
}

func TestEngineExpectPrompt(t *testing.T) {
	ft := faketransport.New().Feed("total 4\r\n-rw-r--r-- 1 root root 12 x\r\n[root@web1 ~]# ")
	e := quietEngine(ft)

	idx, err := e.Expect(Prompt)
	if err != nil {
		t.Fatalf("Expect error: %v", err)
	}
	if idx != 0 {
		t.Errorf("Expect index = %d, want 0", idx)
	}
	want := "total 4\r\n-rw-r--r-- 1 root root 12 x\r\n"
	if got := e.CurrentOutput(); got != want {
		t.Errorf("CurrentOutput = %q, want %q", got, want)
	}
}

func TestEngineCurrentOutputBetweenMarkers(t *testing.T) {
	ft := faketransport.New().Feed("BEGIN\r\nHello World\r\nEND\r\n")
	e := quietEngine(ft)

	if _, err := e.Expect(Exact("BEGIN")); err != nil {
		t.Fatalf("Expect BEGIN: %v", err)
	}
	if _, err := e.Expect(Exact("END")); err != nil {
		t.Fatalf("Expect END: %v", err)
	}
	if got := e.CurrentOutput(); got != "Hello World\r\n" {
		t.Errorf("CurrentOutput = %q, want %q", got, "Hello World\r\n")
	}
}

func TestEngineExpectStripsSequences(t *testing.T) {
	ft := faketransport.New().Feed("\x1b[1;32mPASS\x1b[0m\r\n")
	e := quietEngine(ft)

	idx, err := e.Expect(Exact("PASS"))
	if err != nil {
		t.Fatalf("Expect error: %v", err)
	}
	if idx != 0 {
		t.Errorf("Expect index = %d, want 0", idx)
	}
}

func TestEngineExpectEOFSentinel(t *testing.T) {
	ft := faketransport.New().Feed("goodbye\r\n").End()
	e := quietEngine(ft)

	idx, err := e.Expect(Exact("never"), EOF)
	if err != nil {
		t.Fatalf("Expect error: %v", err)
	}
	if idx != 1 {
		t.Errorf("Expect index = %d, want 1 (EOF sentinel)", idx)
	}
}

func TestEngineExpectThenSentinelOnExhaustedStream(t *testing.T) {
	for _, term := range []string{"\r\n", "\n"} {
		ft := faketransport.New().Feed("Test Output" + term).End()
		e := quietEngine(ft)
		patterns := []Pattern{EOF, Exact("Test Output")}

		idx, err := e.Expect(patterns...)
		if err != nil {
			t.Fatalf("terminator %q: first Expect error: %v", term, err)
		}
		if idx != 1 {
			t.Errorf("terminator %q: first Expect index = %d, want 1", term, idx)
		}

		idx, err = e.Expect(patterns...)
		if err != nil {
			t.Fatalf("terminator %q: second Expect error: %v", term, err)
		}
		if idx != 0 {
			t.Errorf("terminator %q: second Expect index = %d, want 0", term, idx)
		}
	}
}

func TestEngineExpectUnexpectedEOF(t *testing.T) {
	ft := faketransport.New().End()
	e := quietEngine(ft)

	_, err := e.Expect(Exact("never"))
	if !errors.Is(err, ErrUnexpectedEOF) {
		t.Fatalf("Expect error = %v, want ErrUnexpectedEOF", err)
	}
}

func TestEngineExpectMatchGroups(t *testing.T) {
	ft := faketransport.New().Feed("uid=0(root) gid=0(root) groups=0(root)\r\n")
	e := quietEngine(ft)

	m, err := e.ExpectMatch(MustRegex(`uid=(\d+)\((\w+)\)`))
	if err != nil {
		t.Fatalf("ExpectMatch error: %v", err)
	}
	if m.Index != 0 {
		t.Errorf("Index = %d, want 0", m.Index)
	}
	if len(m.Groups) != 2 || m.Groups[0] != "0" || m.Groups[1] != "root" {
		t.Errorf("Groups = %v, want [0 root]", m.Groups)
	}
}

func TestEngineEcho(t *testing.T) {
	ft := faketransport.New().Feed("one\r\ntwo\r\n")

	var echoed string
	opts := DefaultOptions()
	opts.Output = func(s string) { echoed += s }
	e := NewWithOptions(ft, opts)

	if _, err := e.Expect(Exact("two")); err != nil {
		t.Fatalf("Expect error: %v", err)
	}
	if echoed != "one\r\ntwo" {
		t.Errorf("echoed = %q, want %q", echoed, "one\r\ntwo")
	}
}

func TestEngineHistory(t *testing.T) {
	ft := faketransport.New().Feed("noise\r\nmatch\r\n")
	e := quietEngine(ft)

	if _, err := e.Expect(Exact("match")); err != nil {
		t.Fatalf("Expect error: %v", err)
	}

	h := e.History()
	if len(h) != 2 {
		t.Fatalf("history length = %d, want 2", len(h))
	}
	if h[0].Kind != TokenUnmatchedLine || h[0].Text != "noise\r\n" {
		t.Errorf("history[0] = %+v, want unmatched noise line", h[0])
	}
	if h[1].Kind != TokenMatched || h[1].Text != "match" {
		t.Errorf("history[1] = %+v, want matched line", h[1])
	}
}

func TestEngineWaitExit(t *testing.T) {
	ft := faketransport.New().Feed("done\r\n").EndWithStatus(3)
	e := quietEngine(ft)

	status, err := e.WaitExit(context.Background())
	if err != nil {
		t.Fatalf("WaitExit error: %v", err)
	}
	if status != 3 {
		t.Errorf("status = %d, want 3", status)
	}
	if !ft.IsClosed() {
		t.Error("transport not closed after WaitExit")
	}
}

func TestEngineWaitExitUnknownStatus(t *testing.T) {
	ft := faketransport.New().End()
	e := quietEngine(ft)

	status, err := e.WaitExit(context.Background())
	if err != nil {
		t.Fatalf("WaitExit error: %v", err)
	}
	if status != ExitStatusUnknown {
		t.Errorf("status = %d, want ExitStatusUnknown", status)
	}
}

func TestEngineWaitExitContextCancel(t *testing.T) {
	ft := faketransport.New() // never ends
	e := quietEngine(ft)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := e.WaitExit(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("WaitExit error = %v, want context.DeadlineExceeded", err)
	}
}
