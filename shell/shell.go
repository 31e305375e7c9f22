// Package shell abstracts command execution over a local machine or a remote
// SSH host, with both plain exec (capture output, wait for exit) and
// interactive pty sessions driven through the expect engine.
package shell

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/kfreezen/shellutil/expect"
)

// Result holds the captured output of one executed command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Shell runs commands somewhere, locally or on a remote host.
type Shell interface {
	// Exec runs a command to completion and captures its output. A
	// non-zero exit code is reported in the Result, not as an error.
	Exec(ctx context.Context, command string) (*Result, error)

	// Interact starts a command on a pseudo-terminal and returns an
	// expect engine driving it.
	Interact(command string) (*expect.Engine, error)

	// Remote reports whether commands run on a remote host.
	Remote() bool
}

// ExecStatus runs a command and returns only its exit code.
func ExecStatus(ctx context.Context, sh Shell, command string) (int, error) {
	res, err := sh.Exec(ctx, command)
	if err != nil {
		return -1, err
	}
	return res.ExitCode, nil
}

// Mkdir creates a directory and any missing parents.
func Mkdir(ctx context.Context, sh Shell, path string) error {
	res, err := sh.Exec(ctx, fmt.Sprintf("mkdir -p %q", path))
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		slog.Debug("mkdir failed",
			slog.String("path", path),
			slog.String("stderr", strings.TrimSpace(res.Stderr)),
		)
		return fmt.Errorf("mkdir %s: exit status %d", path, res.ExitCode)
	}
	return nil
}

// Chmod changes file permissions, e.g. Chmod(ctx, sh, 0o755, path).
func Chmod(ctx context.Context, sh Shell, perms uint32, path string) error {
	res, err := sh.Exec(ctx, fmt.Sprintf("chmod %o %q", perms, path))
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("chmod %s: exit status %d", path, res.ExitCode)
	}
	return nil
}

// FileSize returns the size of a file in bytes via stat(1).
func FileSize(ctx context.Context, sh Shell, path string) (int64, error) {
	res, err := sh.Exec(ctx, fmt.Sprintf("stat %q -c %%s", path))
	if err != nil {
		return 0, err
	}
	if res.ExitCode != 0 {
		return 0, fmt.Errorf("stat %s: exit status %d", path, res.ExitCode)
	}
	size, err := strconv.ParseInt(strings.TrimSpace(res.Stdout), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("stat %s: unexpected output %q", path, res.Stdout)
	}
	return size, nil
}

var duLine = regexp.MustCompile(`^(\d+)\s`)

// DirSize returns the total size of a directory in bytes via du(1).
func DirSize(ctx context.Context, sh Shell, path string) (int64, error) {
	res, err := sh.Exec(ctx, fmt.Sprintf("du -sk %q", path))
	if err != nil {
		return 0, err
	}
	if res.ExitCode != 0 {
		return 0, fmt.Errorf("du %s: exit status %d", path, res.ExitCode)
	}
	m := duLine.FindStringSubmatch(res.Stdout)
	if m == nil {
		return 0, fmt.Errorf("du %s: unexpected output %q", path, res.Stdout)
	}
	kb, _ := strconv.ParseInt(m[1], 10, 64)
	return kb * 1024, nil
}

// PathExists reports whether a path exists.
func PathExists(ctx context.Context, sh Shell, path string) (bool, error) {
	code, err := ExecStatus(ctx, sh, fmt.Sprintf("ls -1 %q", path))
	if err != nil {
		return false, err
	}
	return code == 0, nil
}

// WhoAmI returns the identity of the user commands run as.
func WhoAmI(ctx context.Context, sh Shell) (*Identity, error) {
	res, err := sh.Exec(ctx, "id")
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("id: exit status %d", res.ExitCode)
	}
	return ParseID(res.Stdout)
}
