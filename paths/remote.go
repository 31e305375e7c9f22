package paths

import (
	"context"
	"fmt"
	"math/rand"
	"path"
	"strconv"
	"strings"

	"github.com/kfreezen/shellutil/shell"
)

// RemotePath is a path on a remote host, operated on through shell commands
// and SFTP over the host's SSH connection.
type RemotePath struct {
	user  string // includes trailing "@", may be empty
	host  string
	local string
	shell *shell.RemoteShell
}

// NewRemotePath parses a "user@host:/path" spelling.
func NewRemotePath(spec string, sh *shell.RemoteShell) (*RemotePath, error) {
	m := remoteRe.FindStringSubmatch(spec)
	if m == nil {
		return nil, fmt.Errorf("not a remote path: %q", spec)
	}
	return &RemotePath{user: m[1], host: m[2], local: m[3], shell: sh}, nil
}

func (p *RemotePath) String() string {
	return p.user + p.host + ":" + p.local
}

func (p *RemotePath) LocalPath() string { return p.local }
func (p *RemotePath) Remote() bool      { return true }

// Host returns the remote host name.
func (p *RemotePath) Host() string { return p.host }

// User returns the remote user, without the "@", or "".
func (p *RemotePath) User() string { return strings.TrimSuffix(p.user, "@") }

// Shell returns the remote shell operating on this path.
func (p *RemotePath) Shell() shell.Shell { return p.shell }

func (p *RemotePath) derived(local string) *RemotePath {
	return &RemotePath{user: p.user, host: p.host, local: local, shell: p.shell}
}

// Dirname returns the parent directory on the same host.
func (p *RemotePath) Dirname() Path {
	return p.derived(path.Dir(p.local))
}

// Join appends a relative element.
func (p *RemotePath) Join(rel string) Path {
	return p.derived(path.Join(p.local, rel))
}

// Mkdir creates the directory and any missing parents on the remote host.
func (p *RemotePath) Mkdir(ctx context.Context) error {
	return shell.Mkdir(ctx, p.shell, p.local)
}

// IsFile reports whether the remote path is a regular file.
func (p *RemotePath) IsFile(ctx context.Context) (bool, error) {
	code, err := shell.ExecStatus(ctx, p.shell, fmt.Sprintf("test -f %q", p.local))
	if err != nil {
		return false, err
	}
	return code == 0, nil
}

// IsDir reports whether the remote path is a directory.
func (p *RemotePath) IsDir(ctx context.Context) (bool, error) {
	code, err := shell.ExecStatus(ctx, p.shell, fmt.Sprintf("test -d %q", p.local))
	if err != nil {
		return false, err
	}
	return code == 0, nil
}

// ListDir returns the names of the remote directory's entries.
func (p *RemotePath) ListDir(ctx context.Context) ([]string, error) {
	res, err := p.shell.Exec(ctx, fmt.Sprintf("ls -1 %q", p.local))
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("ls %s: exit status %d", p.local, res.ExitCode)
	}
	var names []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

// ReadContents returns the remote file's contents.
func (p *RemotePath) ReadContents(ctx context.Context) (string, error) {
	res, err := p.shell.Exec(ctx, fmt.Sprintf("cat %q", p.local))
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("cat %s: exit status %d", p.local, res.ExitCode)
	}
	return res.Stdout, nil
}

// WriteContents replaces the remote file's contents over SFTP.
func (p *RemotePath) WriteContents(ctx context.Context, contents string) error {
	client, err := p.shell.Client().SFTP()
	if err != nil {
		return err
	}
	f, err := client.Create(p.local)
	if err != nil {
		return fmt.Errorf("create %s: %w", p.local, err)
	}
	defer f.Close()
	if _, err := f.Write([]byte(contents)); err != nil {
		return fmt.Errorf("write %s: %w", p.local, err)
	}
	return nil
}

// Rename moves the file within the remote host.
func (p *RemotePath) Rename(ctx context.Context, newPath string) error {
	if m := remoteRe.FindStringSubmatch(newPath); m != nil {
		newPath = m[3]
	}
	code, err := shell.ExecStatus(ctx, p.shell, fmt.Sprintf("mv %q %q", p.local, newPath))
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("mv %s %s: exit status %d", p.local, newPath, code)
	}
	return nil
}

// Unlink removes the remote file or directory tree.
func (p *RemotePath) Unlink(ctx context.Context) error {
	code, err := shell.ExecStatus(ctx, p.shell, fmt.Sprintf("rm -r %q", p.local))
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("rm %s: exit status %d", p.local, code)
	}
	return nil
}

// statFormat yields raw mode in hex followed by the numeric stat fields.
const statFormat = "%f %i %d %h %u %g %s %X %Y %Z"

// Stat returns the remote file's metadata via stat(1).
func (p *RemotePath) Stat(ctx context.Context) (*FileInfo, error) {
	res, err := p.shell.Exec(ctx, fmt.Sprintf("stat -c %q %q", statFormat, p.local))
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("stat %s: exit status %d", p.local, res.ExitCode)
	}
	return parseStatLine(res.Stdout)
}

func parseStatLine(line string) (*FileInfo, error) {
	fields := strings.Fields(line)
	if len(fields) != 10 {
		return nil, fmt.Errorf("malformed stat output %q", strings.TrimSpace(line))
	}

	mode, err := strconv.ParseUint(fields[0], 16, 32)
	if err != nil {
		return nil, fmt.Errorf("malformed stat mode %q", fields[0])
	}
	nums := make([]int64, 9)
	for i, f := range fields[1:] {
		n, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed stat field %q", f)
		}
		nums[i] = n
	}

	return &FileInfo{
		Mode:  uint32(mode),
		Inode: uint64(nums[0]),
		Dev:   uint64(nums[1]),
		Nlink: uint64(nums[2]),
		UID:   uint32(nums[3]),
		GID:   uint32(nums[4]),
		Size:  nums[5],
		Atime: nums[6],
		Mtime: nums[7],
		Ctime: nums[8],
	}, nil
}

// FileSize returns the remote file's size in bytes.
func (p *RemotePath) FileSize(ctx context.Context) (int64, error) {
	info, err := p.Stat(ctx)
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

// UsesShell reports whether sh reaches the same filesystem as this path's
// shell: same client, same user@host, or (as a last resort) a marker file
// written through sh and visible through our shell.
func (p *RemotePath) UsesShell(ctx context.Context, sh shell.Shell) (bool, error) {
	if sh == nil || !sh.Remote() {
		return false, nil
	}
	rs, ok := sh.(*shell.RemoteShell)
	if !ok {
		return false, nil
	}
	if rs == p.shell {
		return true, nil
	}
	if rs.Host() == p.shell.Host() && rs.User() == p.shell.User() {
		return true, nil
	}

	marker := fmt.Sprintf("/tmp/%d.probe", rand.Uint32())
	code, err := shell.ExecStatus(ctx, rs, fmt.Sprintf("echo PROBE > %s", marker))
	if err != nil || code != 0 {
		return false, fmt.Errorf("probe write failed on %s", rs.Host())
	}
	defer func() {
		_, _ = shell.ExecStatus(ctx, rs, fmt.Sprintf("rm %s", marker))
	}()

	visible, err := shell.PathExists(ctx, p.shell, marker)
	if err != nil {
		return false, err
	}
	return visible, nil
}
