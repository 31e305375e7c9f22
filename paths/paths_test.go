package paths

import (
	"testing"

	"golang.org/x/crypto/ssh"

	"github.com/kfreezen/shellutil/shell"
	"github.com/kfreezen/shellutil/sshx"
)

func testRemoteShell(t *testing.T, user, host string) *shell.RemoteShell {
	t.Helper()
	client, err := sshx.NewClient(sshx.Options{
		Host:        host,
		User:        user,
		AuthMethods: []ssh.AuthMethod{ssh.Password("unused")},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return shell.NewRemoteShell(client)
}

func TestIsRemoteSyntax(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"deploy@web1:/srv/app", true},
		{"web1:/srv/app", true},
		{"web1:relative/path", true},
		{"host:", true},
		{"/srv/app", false},
		{"relative/path", false},
		{"./a:b", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsRemoteSyntax(tt.in); got != tt.want {
			t.Errorf("IsRemoteSyntax(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewRemotePathParse(t *testing.T) {
	sh := testRemoteShell(t, "deploy", "web1")

	tests := []struct {
		spec  string
		user  string
		host  string
		local string
	}{
		{"deploy@web1:/srv/app", "deploy", "web1", "/srv/app"},
		{"web1:/srv/app", "", "web1", "/srv/app"},
		{"alice@db.example.com:backups/latest", "alice", "db.example.com", "backups/latest"},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			p, err := NewRemotePath(tt.spec, sh)
			if err != nil {
				t.Fatalf("NewRemotePath: %v", err)
			}
			if p.User() != tt.user {
				t.Errorf("User() = %q, want %q", p.User(), tt.user)
			}
			if p.Host() != tt.host {
				t.Errorf("Host() = %q, want %q", p.Host(), tt.host)
			}
			if p.LocalPath() != tt.local {
				t.Errorf("LocalPath() = %q, want %q", p.LocalPath(), tt.local)
			}
			if p.String() != tt.spec {
				t.Errorf("String() = %q, want %q", p.String(), tt.spec)
			}
			if !p.Remote() {
				t.Error("Remote() = false, want true")
			}
		})
	}
}

func TestNewRemotePathRejectsLocal(t *testing.T) {
	sh := testRemoteShell(t, "deploy", "web1")
	if _, err := NewRemotePath("/srv/app", sh); err == nil {
		t.Error("expected error for a plain local path")
	}
}

func TestRemotePathDirnameJoin(t *testing.T) {
	sh := testRemoteShell(t, "deploy", "web1")
	p, err := NewRemotePath("deploy@web1:/srv/app/current", sh)
	if err != nil {
		t.Fatalf("NewRemotePath: %v", err)
	}

	dir := p.Dirname()
	if dir.String() != "deploy@web1:/srv/app" {
		t.Errorf("Dirname() = %q, want %q", dir.String(), "deploy@web1:/srv/app")
	}
	joined := p.Join("config.yaml")
	if joined.String() != "deploy@web1:/srv/app/current/config.yaml" {
		t.Errorf("Join() = %q", joined.String())
	}
	if !joined.Remote() {
		t.Error("joined path must stay remote")
	}
}

func TestFromStringLocalShell(t *testing.T) {
	p, err := FromString("/tmp/data", shell.NewLocalShell())
	if err != nil {
		t.Fatalf("FromString: %v", err)
	}
	if p.Remote() {
		t.Error("expected a local path")
	}
	if p.String() != "/tmp/data" {
		t.Errorf("String() = %q", p.String())
	}
}

func TestFromStringNilShell(t *testing.T) {
	p, err := FromString("/tmp/data", nil)
	if err != nil {
		t.Fatalf("FromString: %v", err)
	}
	if p.Remote() {
		t.Error("expected a local path for nil shell")
	}
}

func TestFromStringQualifiesBarePath(t *testing.T) {
	sh := testRemoteShell(t, "deploy", "web1")

	p, err := FromString("/srv/app", sh)
	if err != nil {
		t.Fatalf("FromString: %v", err)
	}
	if p.String() != "deploy@web1:/srv/app" {
		t.Errorf("String() = %q, want %q", p.String(), "deploy@web1:/srv/app")
	}
	if p.LocalPath() != "/srv/app" {
		t.Errorf("LocalPath() = %q, want %q", p.LocalPath(), "/srv/app")
	}
}

func TestFromStringKeepsQualifiedPath(t *testing.T) {
	sh := testRemoteShell(t, "deploy", "web1")

	p, err := FromString("other@web2:/data", sh)
	if err != nil {
		t.Fatalf("FromString: %v", err)
	}
	if p.String() != "other@web2:/data" {
		t.Errorf("String() = %q, want %q", p.String(), "other@web2:/data")
	}
}

func TestParseStatLine(t *testing.T) {
	// stat -c "%f %i %d %h %u %g %s %X %Y %Z" output for a regular file.
	fi, err := parseStatLine("81a4 530412 64768 1 1000 1000 1523 1700000001 1700000002 1700000003\n")
	if err != nil {
		t.Fatalf("parseStatLine: %v", err)
	}
	if fi.Mode != 0x81a4 {
		t.Errorf("Mode = %o, want %o", fi.Mode, 0x81a4)
	}
	if fi.IsDir() {
		t.Error("regular file reported as directory")
	}
	if fi.Inode != 530412 || fi.Dev != 64768 || fi.Nlink != 1 {
		t.Errorf("inode/dev/nlink = %d/%d/%d", fi.Inode, fi.Dev, fi.Nlink)
	}
	if fi.UID != 1000 || fi.GID != 1000 {
		t.Errorf("uid/gid = %d/%d", fi.UID, fi.GID)
	}
	if fi.Size != 1523 {
		t.Errorf("Size = %d, want 1523", fi.Size)
	}
	if fi.Atime != 1700000001 || fi.Mtime != 1700000002 || fi.Ctime != 1700000003 {
		t.Errorf("times = %d/%d/%d", fi.Atime, fi.Mtime, fi.Ctime)
	}
}

func TestParseStatLineDirectory(t *testing.T) {
	fi, err := parseStatLine("41ed 2 64768 5 0 0 4096 1700000000 1700000000 1700000000")
	if err != nil {
		t.Fatalf("parseStatLine: %v", err)
	}
	if !fi.IsDir() {
		t.Error("directory mode 41ed not detected")
	}
}

func TestParseStatLineErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"too few fields", "81a4 1 2 3"},
		{"bad mode", "zzzz 1 2 3 4 5 6 7 8 9"},
		{"bad number", "81a4 one 2 3 4 5 6 7 8 9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseStatLine(tt.line); err == nil {
				t.Errorf("parseStatLine(%q): expected error", tt.line)
			}
		})
	}
}
