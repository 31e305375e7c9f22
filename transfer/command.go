// Package transfer copies files and directory trees between paths with rsync
// driven through an interactive expect session, or over SFTP when a direct
// SSH connection is available.
package transfer

import (
	"fmt"
	"strings"
)

// Command describes one rsync invocation.
type Command struct {
	// RemoteRsync is the value for --rsync-path, e.g. "sudo rsync".
	RemoteRsync string
	// Rsh is the value for -e, the remote shell command.
	Rsh string
	// Flags are the short option letters, rendered as -Flags.
	Flags string
	// Progress adds --no-human-readable --progress, which produces the
	// machine-parseable progress lines the Reporter consumes.
	Progress bool
	// Delete adds --delete.
	Delete bool
	// Exclusions are rendered as --exclude= arguments.
	Exclusions []string

	Source      string
	Destination string
}

// String renders the full command line.
func (c *Command) String() string {
	var b strings.Builder
	b.WriteString("rsync")

	if c.RemoteRsync != "" {
		fmt.Fprintf(&b, " --rsync-path=%q", c.RemoteRsync)
	}
	if c.Rsh != "" {
		fmt.Fprintf(&b, " -e %q", c.Rsh)
	}
	if c.Flags != "" {
		fmt.Fprintf(&b, " -%s", c.Flags)
	}
	if c.Progress {
		b.WriteString(" --no-human-readable --progress")
	}
	if c.Delete {
		b.WriteString(" --delete")
	}
	for _, e := range c.Exclusions {
		fmt.Fprintf(&b, " --exclude=%s", e)
	}

	fmt.Fprintf(&b, " %s %s", c.Source, c.Destination)
	return b.String()
}
