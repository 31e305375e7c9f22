package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kfreezen/shellutil/dialog"
	"github.com/kfreezen/shellutil/expect"
	"github.com/kfreezen/shellutil/paths"
	"github.com/kfreezen/shellutil/secrets"
	"github.com/kfreezen/shellutil/shell"
)

// passwordPrompt matches ssh asking for a password mid-transfer.
var passwordPrompt = expect.MustRegex(`.*@.*'s password:\s*`)

// anyLine matches any terminated line, used to step past banner output while
// watching for the password prompt.
var anyLine = expect.MustRegex(`.*\n`)

// Rsync orchestrates rsync transfers between paths, locally or across hosts.
type Rsync struct {
	// Sudo runs the remote rsync under sudo (--rsync-path="sudo rsync").
	Sudo bool
	// Flags are the short rsync options.
	Flags string
	// Delete removes destination files missing from the source.
	Delete bool
	// SSHKey is an identity file handed to the rsh command.
	SSHKey string
	// Password authenticates the transfer when ssh asks; empty consults
	// the keyring and then the prompter.
	Password string
	// Exclusions are rsync --exclude patterns.
	Exclusions []string

	// Keyring looks up stored server passwords; nil skips the lookup.
	Keyring *secrets.Keyring
	// Prompter asks for a password or host-key confirmation when needed.
	// Nil means non-interactive: such situations fail.
	Prompter dialog.Prompter
	// Progress receives transfer progress; nil discards it.
	Progress ProgressFunc
}

// NewRsync returns an Rsync with the flags the original tooling uses for
// archive transfers.
func NewRsync() *Rsync {
	return &Rsync{Sudo: true, Flags: "aczq", Prompter: dialog.None{}}
}

// Run transfers source to dest, creating the destination's parent directory
// first. Exit status 24 (files vanished during transfer) counts as success.
// Exit status 255 with a remote destination triggers a host-key cleanup
// (ssh-keygen -R) and a single retry, gated on the Prompter.
func (r *Rsync) Run(ctx context.Context, source, dest paths.Path) error {
	return r.run(ctx, source, dest, true)
}

func (r *Rsync) run(ctx context.Context, source, dest paths.Path, mayRetry bool) error {
	destDir := dest.Dirname()
	if isDir, err := destDir.IsDir(ctx); err != nil {
		return err
	} else if !isDir {
		if err := destDir.Mkdir(ctx); err != nil {
			return err
		}
	}

	multiple, err := source.IsDir(ctx)
	if err != nil {
		return err
	}
	if !multiple {
		isFile, err := source.IsFile(ctx)
		if err != nil {
			return err
		}
		if !isFile {
			return fmt.Errorf("rsync: source %s does not exist", source)
		}
	}

	cmdShell, cmd, sameShell, err := r.generateCommand(ctx, source, dest)
	if err != nil {
		return err
	}
	slog.Info("rsync", slog.String("command", cmd.String()))

	engine, err := cmdShell.Interact(cmd.String())
	if err != nil {
		return err
	}

	if !sameShell {
		if err := r.answerPassword(engine, dest); err != nil {
			return err
		}
	}

	reporter := NewReporter(engine, multiple, r.Progress)
	if err := reporter.Run(); err != nil {
		return err
	}

	status, err := engine.WaitExit(ctx)
	if err != nil {
		return err
	}

	if status == 255 && mayRetry {
		return r.retryAfterHostKeyMismatch(ctx, source, dest, cmdShell)
	}
	if status != 0 && status != 24 {
		return fmt.Errorf("rsync: exit status %d", status)
	}
	return nil
}

// answerPassword watches the first lines of output for an ssh password
// prompt and answers it. Stream end before any prompt means no password was
// needed.
func (r *Rsync) answerPassword(engine *expect.Engine, dest paths.Path) error {
	idx, err := engine.Expect(expect.EOF, passwordPrompt, anyLine)
	if err != nil {
		return fmt.Errorf("rsync: %w", err)
	}
	if idx != 1 {
		return nil
	}

	password, err := r.resolvePassword(dest)
	if err != nil {
		return err
	}
	return engine.Send(password)
}

func (r *Rsync) resolvePassword(dest paths.Path) (string, error) {
	if r.Password != "" {
		return r.Password, nil
	}

	if r.Keyring != nil {
		if rp, ok := dest.(*paths.RemotePath); ok {
			if pw, err := r.Keyring.ServerPassword(rp.Host(), rp.User()); err == nil && pw != "" {
				return pw, nil
			}
		}
	}

	if r.Prompter == nil {
		return "", fmt.Errorf("rsync: password required and no prompter configured")
	}
	pw, err := r.Prompter.Password(fmt.Sprintf("Password for %s", dest))
	if err != nil || pw == "" {
		return "", fmt.Errorf("rsync: password required and none provided")
	}
	return pw, nil
}

// retryAfterHostKeyMismatch handles rsync exit 255, which over ssh is almost
// always a stale known_hosts entry: confirm, drop the entry, run once more.
func (r *Rsync) retryAfterHostKeyMismatch(ctx context.Context, source, dest paths.Path, cmdShell shell.Shell) error {
	rp, ok := dest.(*paths.RemotePath)
	if !ok {
		return fmt.Errorf("rsync: exit status 255")
	}

	if r.Prompter == nil {
		return fmt.Errorf("rsync: host key mismatch for %s", rp.Host())
	}
	confirmed, err := r.Prompter.Confirm(
		fmt.Sprintf("Mismatched host key for %s in known_hosts. Remove it and retry?", rp.Host()))
	if err != nil || !confirmed {
		return fmt.Errorf("rsync: host key mismatch for %s", rp.Host())
	}

	engine, err := cmdShell.Interact(fmt.Sprintf("ssh-keygen -R %s", rp.Host()))
	if err != nil {
		return err
	}
	if _, err := engine.Expect(expect.EOF); err != nil {
		return err
	}
	if _, err := engine.WaitExit(ctx); err != nil {
		return err
	}

	return r.run(ctx, source, dest, false)
}

// generateCommand builds the rsync command line and picks which shell runs
// it: transfers between two shells run on the side that can reach both.
func (r *Rsync) generateCommand(ctx context.Context, source, dest paths.Path) (shell.Shell, *Command, bool, error) {
	sameShell, err := source.UsesShell(ctx, dest.Shell())
	if err != nil {
		return nil, nil, false, err
	}

	cmdShell := source.Shell()
	var sourceString, destString string

	switch {
	case sameShell:
		sourceString = source.LocalPath()
		destString = dest.LocalPath()
	case !dest.Remote():
		// Remote source to local destination: run rsync locally and
		// pull.
		sourceString = source.String()
		destString = dest.LocalPath()
		cmdShell = dest.Shell()
	default:
		sourceString = source.LocalPath()
		destString = dest.String()
	}

	if isDir, err := source.IsDir(ctx); err == nil && isDir {
		sourceString = ensureTrailingSlash(sourceString)
	}
	if isDir, err := dest.IsDir(ctx); err == nil && isDir {
		destString = ensureTrailingSlash(destString)
	}

	cmd := &Command{
		Flags:       r.Flags,
		Progress:    true,
		Delete:      r.Delete,
		Exclusions:  r.Exclusions,
		Source:      sourceString,
		Destination: destString,
	}
	if cmd.Flags == "" {
		cmd.Flags = "az"
	}
	if !sameShell {
		rsh := "ssh -oStrictHostKeyChecking=no"
		if r.SSHKey != "" {
			rsh += " -i" + r.SSHKey
		}
		cmd.Rsh = rsh
		if r.Sudo {
			cmd.RemoteRsync = "sudo rsync"
		}
	}

	return cmdShell, cmd, sameShell, nil
}

func ensureTrailingSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

// CopyFile transfers a single file from source to dest with the original
// single-file flag set.
func CopyFile(ctx context.Context, source, dest paths.Path, opts *Rsync) error {
	r := optsOrDefault(opts)
	r.Flags = "czvP"
	return r.Run(ctx, source, dest)
}

// CopyTree transfers a directory tree from source to dest, deleting
// destination files missing from the source.
func CopyTree(ctx context.Context, source, dest paths.Path, opts *Rsync) error {
	r := optsOrDefault(opts)
	r.Flags = "aczvP"
	r.Delete = true
	return r.Run(ctx, source, dest)
}

func optsOrDefault(opts *Rsync) *Rsync {
	if opts == nil {
		return NewRsync()
	}
	c := *opts
	return &c
}
