// Package paths abstracts file paths that may live on the local machine or on
// a remote host reached through a shell, using the scp-style
// "user@host:/path" syntax for remote locations.
package paths

import (
	"context"
	"fmt"
	"regexp"

	"github.com/kfreezen/shellutil/shell"
)

// remoteRe splits "user@host:/path" into user, host and path. The user part
// is optional and carries its trailing "@".
var remoteRe = regexp.MustCompile(`^([^/]+@)?([^/]+):(.*)$`)

// IsRemoteSyntax reports whether s uses the user@host:path form.
func IsRemoteSyntax(s string) bool {
	return remoteRe.MatchString(s)
}

// Path is a file location that knows which shell operates on it.
type Path interface {
	// String returns the full spelling, including user@host: for remote
	// paths.
	String() string

	// LocalPath returns the path as seen on its own machine, without any
	// host prefix.
	LocalPath() string

	// Remote reports whether the path lives on a remote host.
	Remote() bool

	// Shell returns the shell that operates on this path.
	Shell() shell.Shell

	// Dirname returns the parent directory as a path on the same shell.
	Dirname() Path

	// Join appends a relative element.
	Join(rel string) Path

	Mkdir(ctx context.Context) error
	IsFile(ctx context.Context) (bool, error)
	IsDir(ctx context.Context) (bool, error)
	ListDir(ctx context.Context) ([]string, error)
	ReadContents(ctx context.Context) (string, error)
	WriteContents(ctx context.Context, contents string) error
	Rename(ctx context.Context, newPath string) error
	Unlink(ctx context.Context) error
	Stat(ctx context.Context) (*FileInfo, error)
	FileSize(ctx context.Context) (int64, error)

	// UsesShell reports whether sh reaches the same filesystem as this
	// path's own shell.
	UsesShell(ctx context.Context, sh shell.Shell) (bool, error)
}

// FileInfo is the subset of stat(2) fields the remote stat parse can deliver.
type FileInfo struct {
	Mode  uint32 // raw st_mode bits
	Inode uint64
	Dev   uint64
	Nlink uint64
	UID   uint32
	GID   uint32
	Size  int64
	Atime int64
	Mtime int64
	Ctime int64
}

// IsDir reports whether the mode bits describe a directory.
func (fi *FileInfo) IsDir() bool {
	const sIFMT, sIFDIR = 0o170000, 0o040000
	return fi.Mode&sIFMT == sIFDIR
}

// FromString builds a Path for sh. A remote shell yields a RemotePath; plain
// paths are qualified with the shell's user and host first. A local shell
// always yields a LocalPath.
func FromString(path string, sh shell.Shell) (Path, error) {
	if sh == nil || !sh.Remote() {
		return NewLocalPath(path), nil
	}

	rs, ok := sh.(*shell.RemoteShell)
	if !ok {
		return nil, fmt.Errorf("remote shell %T cannot carry paths", sh)
	}
	if !remoteRe.MatchString(path) {
		path = fmt.Sprintf("%s@%s:%s", rs.User(), rs.Host(), path)
	}
	return NewRemotePath(path, rs)
}
