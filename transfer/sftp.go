package transfer

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/sftp"

	"github.com/kfreezen/shellutil/sshx"
)

// SFTPOptions configures an SFTP transfer.
type SFTPOptions struct {
	// Exclusions are glob patterns (with ** support) matched against
	// slash-separated paths relative to the transfer root.
	Exclusions []string
	// Progress receives one file-name update per transferred file and a
	// final Done update; nil discards them.
	Progress ProgressFunc
}

// excluded reports whether relPath matches any exclusion pattern.
func excluded(relPath string, exclusions []string) bool {
	relPath = strings.ReplaceAll(relPath, "\\", "/")
	for _, pattern := range exclusions {
		matched, err := doublestar.Match(pattern, relPath)
		if err != nil {
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// SFTPUpload copies a local file or directory tree to remotePath over the
// client's SFTP channel.
func SFTPUpload(ctx context.Context, client *sshx.Client, localPath, remotePath string, opts SFTPOptions) error {
	sc, err := client.SFTP()
	if err != nil {
		return err
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", localPath, err)
	}
	report := opts.Progress
	if report == nil {
		report = func(Update) {}
	}

	if !info.IsDir() {
		if err := uploadFile(sc, localPath, remotePath, info.Mode()); err != nil {
			return err
		}
		report(Update{File: localPath, Bytes: info.Size()})
		report(Update{Done: true, TotalSize: info.Size()})
		return nil
	}

	var total int64
	err = filepath.WalkDir(localPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(localPath, p)
		if err != nil {
			return err
		}
		if rel != "." && excluded(rel, opts.Exclusions) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := path.Join(remotePath, filepath.ToSlash(rel))
		if d.IsDir() {
			return sc.MkdirAll(target)
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		if err := uploadFile(sc, p, target, fi.Mode()); err != nil {
			return err
		}
		total += fi.Size()
		report(Update{File: rel, Bytes: fi.Size()})
		return nil
	})
	if err != nil {
		return err
	}

	report(Update{Done: true, TotalSize: total})
	slog.Debug("sftp upload complete",
		slog.String("local", localPath),
		slog.String("remote", remotePath),
		slog.Int64("bytes", total),
	)
	return nil
}

// SFTPDownload copies a remote file or directory tree to localPath.
func SFTPDownload(ctx context.Context, client *sshx.Client, remotePath, localPath string, opts SFTPOptions) error {
	sc, err := client.SFTP()
	if err != nil {
		return err
	}

	info, err := sc.Stat(remotePath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", remotePath, err)
	}
	report := opts.Progress
	if report == nil {
		report = func(Update) {}
	}

	if !info.IsDir() {
		if err := downloadFile(sc, remotePath, localPath, info.Mode()); err != nil {
			return err
		}
		report(Update{File: remotePath, Bytes: info.Size()})
		report(Update{Done: true, TotalSize: info.Size()})
		return nil
	}

	var total int64
	var walk func(dir string) error
	walk = func(dir string) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		entries, err := sc.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("readdir %s: %w", dir, err)
		}
		for _, e := range entries {
			src := path.Join(dir, e.Name())
			rel, err := filepath.Rel(remotePath, src)
			if err != nil {
				return err
			}
			if excluded(rel, opts.Exclusions) {
				continue
			}

			dst := filepath.Join(localPath, filepath.FromSlash(rel))
			if e.IsDir() {
				if err := os.MkdirAll(dst, 0o755); err != nil {
					return err
				}
				if err := walk(src); err != nil {
					return err
				}
				continue
			}

			if err := downloadFile(sc, src, dst, e.Mode()); err != nil {
				return err
			}
			total += e.Size()
			report(Update{File: rel, Bytes: e.Size()})
		}
		return nil
	}

	if err := os.MkdirAll(localPath, 0o755); err != nil {
		return err
	}
	if err := walk(remotePath); err != nil {
		return err
	}

	report(Update{Done: true, TotalSize: total})
	return nil
}

func uploadFile(sc *sftp.Client, localPath, remotePath string, mode os.FileMode) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer src.Close()

	dst, err := sc.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create %s: %w", remotePath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copy to %s: %w", remotePath, err)
	}
	if err := dst.Chmod(mode.Perm()); err != nil {
		return fmt.Errorf("chmod %s: %w", remotePath, err)
	}
	return nil
}

func downloadFile(sc *sftp.Client, remotePath, localPath string, mode os.FileMode) error {
	src, err := sc.Open(remotePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", remotePath, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copy to %s: %w", localPath, err)
	}
	return nil
}
