package shell

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/kfreezen/shellutil/expect"
)

// LocalShell runs commands on the local machine.
type LocalShell struct {
	// Dir is the working directory for commands; empty means inherit.
	Dir string
	// Env overrides the environment for commands; nil means inherit.
	Env []string
}

// NewLocalShell returns a shell running commands locally.
func NewLocalShell() *LocalShell {
	return &LocalShell{}
}

// Exec runs a command through sh -c and captures stdout, stderr and the exit
// code.
func (s *LocalShell) Exec(ctx context.Context, command string) (*Result, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = s.Dir
	cmd.Env = s.Env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return nil, fmt.Errorf("exec %q: %w", command, err)
		}
		res.ExitCode = exitErr.ExitCode()
	}
	return res, nil
}

// Interact spawns a command on a local pseudo-terminal.
func (s *LocalShell) Interact(command string) (*expect.Engine, error) {
	opts := expect.DefaultLocalOptions()
	opts.Dir = s.Dir
	opts.Env = s.Env

	t, err := expect.StartLocal(command, opts)
	if err != nil {
		return nil, err
	}
	return expect.New(t), nil
}

// Remote reports false.
func (s *LocalShell) Remote() bool { return false }
