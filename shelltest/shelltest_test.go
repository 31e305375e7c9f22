package shelltest

import (
	"context"
	"strings"
	"testing"

	"github.com/kfreezen/shellutil/shell"
)

func TestMockShellRunsInRoot(t *testing.T) {
	ctx := context.Background()
	m := New(t)

	res, err := m.Exec(ctx, "pwd")
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != m.Root() {
		t.Errorf("pwd = %q, want %q", strings.TrimSpace(res.Stdout), m.Root())
	}
}

func TestMockShellWriteFile(t *testing.T) {
	ctx := context.Background()
	m := New(t)

	if err := m.WriteFile(ctx, "sub/notes.txt", "it's here\n"); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	exists, err := shell.PathExists(ctx, m, m.Path("sub/notes.txt"))
	if err != nil {
		t.Fatalf("PathExists: %v", err)
	}
	if !exists {
		t.Fatal("written file missing")
	}

	res, err := m.Exec(ctx, "cat "+m.Path("sub/notes.txt"))
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if res.Stdout != "it's here\n" {
		t.Errorf("contents = %q", res.Stdout)
	}
}

func TestMockShellsAreIsolated(t *testing.T) {
	ctx := context.Background()
	a := New(t)
	b := New(t)

	if a.Root() == b.Root() {
		t.Fatal("two fixtures share a root")
	}
	if err := a.WriteFile(ctx, "only-in-a", "x"); err != nil {
		t.Fatal(err)
	}
	exists, err := shell.PathExists(ctx, b, b.Path("only-in-a"))
	if err != nil {
		t.Fatalf("PathExists: %v", err)
	}
	if exists {
		t.Error("file leaked between fixtures")
	}
}

func TestMockShellIsLocal(t *testing.T) {
	if New(t).Remote() {
		t.Error("mock shell must report Remote() == false")
	}
}
