package paths

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/kfreezen/shellutil/shell"
)

// LocalPath is a path on the local machine, operated on directly through the
// filesystem rather than through shell commands.
type LocalPath struct {
	path string
}

// NewLocalPath wraps a local filesystem path.
func NewLocalPath(path string) *LocalPath {
	return &LocalPath{path: path}
}

func (p *LocalPath) String() string    { return p.path }
func (p *LocalPath) LocalPath() string { return p.path }
func (p *LocalPath) Remote() bool      { return false }

// Shell returns a local shell.
func (p *LocalPath) Shell() shell.Shell { return shell.NewLocalShell() }

// Dirname returns the parent directory.
func (p *LocalPath) Dirname() Path {
	return NewLocalPath(filepath.Dir(p.path))
}

// Join appends a relative element.
func (p *LocalPath) Join(rel string) Path {
	return NewLocalPath(filepath.Join(p.path, rel))
}

// Mkdir creates the directory and any missing parents.
func (p *LocalPath) Mkdir(ctx context.Context) error {
	return os.MkdirAll(p.path, 0o755)
}

// IsFile reports whether the path is a regular file.
func (p *LocalPath) IsFile(ctx context.Context) (bool, error) {
	info, err := os.Stat(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// IsDir reports whether the path is a directory.
func (p *LocalPath) IsDir(ctx context.Context) (bool, error) {
	info, err := os.Stat(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

// ListDir returns the names of the directory's entries.
func (p *LocalPath) ListDir(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(p.path)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

// ReadContents returns the file's contents.
func (p *LocalPath) ReadContents(ctx context.Context) (string, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteContents replaces the file's contents.
func (p *LocalPath) WriteContents(ctx context.Context, contents string) error {
	return os.WriteFile(p.path, []byte(contents), 0o644)
}

// Rename moves the file within the local filesystem.
func (p *LocalPath) Rename(ctx context.Context, newPath string) error {
	return os.Rename(p.path, newPath)
}

// Unlink removes the file.
func (p *LocalPath) Unlink(ctx context.Context) error {
	return os.Remove(p.path)
}

// Stat returns the file's metadata.
func (p *LocalPath) Stat(ctx context.Context) (*FileInfo, error) {
	info, err := os.Stat(p.path)
	if err != nil {
		return nil, err
	}
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return nil, fmt.Errorf("stat %s: unsupported platform", p.path)
	}
	return &FileInfo{
		Mode:  uint32(st.Mode),
		Inode: st.Ino,
		Dev:   uint64(st.Dev),
		Nlink: uint64(st.Nlink),
		UID:   st.Uid,
		GID:   st.Gid,
		Size:  st.Size,
		Atime: st.Atim.Sec,
		Mtime: st.Mtim.Sec,
		Ctime: st.Ctim.Sec,
	}, nil
}

// FileSize returns the file's size in bytes.
func (p *LocalPath) FileSize(ctx context.Context) (int64, error) {
	info, err := os.Stat(p.path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// UsesShell reports whether sh operates on the local filesystem.
func (p *LocalPath) UsesShell(ctx context.Context, sh shell.Shell) (bool, error) {
	return sh != nil && !sh.Remote(), nil
}
