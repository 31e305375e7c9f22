// Package shelltest provides a shell fixture rooted in an isolated
// directory for tests that run real commands.
package shelltest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kfreezen/shellutil/shell"
)

// MockShell is a LocalShell confined to a private root directory. Each
// test gets its own root, so tests can create and destroy files without
// touching each other. Pass it explicitly to the code under test; there
// is no process-wide instance.
type MockShell struct {
	shell.LocalShell
	root string
}

// New returns a MockShell rooted in a fresh temp directory that is
// removed when the test finishes.
func New(t *testing.T) *MockShell {
	t.Helper()
	return NewAt(t.TempDir())
}

// NewAt returns a MockShell rooted at root. The caller owns the
// directory's lifetime.
func NewAt(root string) *MockShell {
	m := &MockShell{root: root}
	m.Dir = root
	return m
}

// Root returns the fixture's root directory.
func (m *MockShell) Root() string {
	return m.root
}

// Path resolves a fixture-relative path to an absolute one under the
// root.
func (m *MockShell) Path(rel string) string {
	return filepath.Join(m.root, rel)
}

// WriteFile creates a file under the root through the shell itself.
func (m *MockShell) WriteFile(ctx context.Context, rel, contents string) error {
	target := m.Path(rel)
	if err := shell.Mkdir(ctx, m, filepath.Dir(target)); err != nil {
		return err
	}
	quoted := strings.ReplaceAll(contents, "'", `'\''`)
	status, err := shell.ExecStatus(ctx, m, fmt.Sprintf("printf '%%s' '%s' > %q", quoted, target))
	if err != nil {
		return err
	}
	if status != 0 {
		return fmt.Errorf("write %s: exit status %d", rel, status)
	}
	return nil
}
