package sshx

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// generateEd25519Key generates an unencrypted Ed25519 private key in PEM
// format.
func generateEd25519Key(t *testing.T) (ed25519.PublicKey, []byte) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	keyBytes, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatalf("marshal ed25519 key: %v", err)
	}
	return pub, pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: keyBytes,
	})
}

// generateEncryptedEd25519Key generates a passphrase-protected key in
// OpenSSH format.
func generateEncryptedEd25519Key(t *testing.T, passphrase string) []byte {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	block, err := ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte(passphrase))
	if err != nil {
		t.Fatalf("marshal encrypted key: %v", err)
	}
	return pem.EncodeToMemory(block)
}

func writeKeyFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPrivateKeyAuth(t *testing.T) {
	_, keyData := generateEd25519Key(t)
	path := writeKeyFile(t, keyData)

	auth, err := privateKeyAuth(path, "")
	if err != nil {
		t.Fatalf("privateKeyAuth: %v", err)
	}
	if auth == nil {
		t.Fatal("expected an auth method")
	}
}

func TestPrivateKeyAuthEncrypted(t *testing.T) {
	keyData := generateEncryptedEd25519Key(t, "letmein")
	path := writeKeyFile(t, keyData)

	if _, err := privateKeyAuth(path, "letmein"); err != nil {
		t.Fatalf("privateKeyAuth with passphrase: %v", err)
	}
	if _, err := privateKeyAuth(path, "wrong"); err == nil {
		t.Error("expected error for wrong passphrase")
	}
	if _, err := privateKeyAuth(path, ""); err == nil {
		t.Error("expected error for missing passphrase")
	}
}

func TestPrivateKeyAuthMissingFile(t *testing.T) {
	if _, err := privateKeyAuth(filepath.Join(t.TempDir(), "nope"), ""); err == nil {
		t.Error("expected error for missing key file")
	}
}

func TestPrivateKeyAuthGarbage(t *testing.T) {
	path := writeKeyFile(t, []byte("not a key"))
	if _, err := privateKeyAuth(path, ""); err == nil {
		t.Error("expected error for malformed key data")
	}
}

func TestBuildAuthMethodsExplicitKey(t *testing.T) {
	_, keyData := generateEd25519Key(t)
	path := writeKeyFile(t, keyData)

	methods, err := BuildAuthMethods(AuthConfig{KeyPath: path})
	if err != nil {
		t.Fatalf("BuildAuthMethods: %v", err)
	}
	if len(methods) != 1 {
		t.Errorf("got %d methods, want 1", len(methods))
	}
}

func TestBuildAuthMethodsBadKeyFails(t *testing.T) {
	path := writeKeyFile(t, []byte("garbage"))
	if _, err := BuildAuthMethods(AuthConfig{KeyPath: path}); err == nil {
		t.Error("expected error for unreadable explicit key")
	}
}

func TestBuildAuthMethodsPassword(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	methods, err := BuildAuthMethods(AuthConfig{Password: "hunter2"})
	if err != nil {
		t.Fatalf("BuildAuthMethods: %v", err)
	}
	// Password plus keyboard-interactive fallback.
	if len(methods) != 2 {
		t.Errorf("got %d methods, want 2", len(methods))
	}
}

func TestBuildAuthMethodsNothingAvailable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if _, err := BuildAuthMethods(AuthConfig{}); err == nil {
		t.Error("expected error when no auth source exists")
	}
}

func TestPassphraseForPrefersExplicit(t *testing.T) {
	cfg := AuthConfig{KeyPassphrase: "explicit"}
	if pp := passphraseFor(cfg, "/some/key"); pp != "explicit" {
		t.Errorf("passphrase = %q, want explicit", pp)
	}
	if pp := passphraseFor(AuthConfig{}, "/some/key"); pp != "" {
		t.Errorf("passphrase = %q, want empty", pp)
	}
}

func TestKeyboardInteractiveAuth(t *testing.T) {
	auth := KeyboardInteractiveAuth("hunter2")
	if auth == nil {
		t.Fatal("expected an auth method")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}

	if got := expandPath("~/.ssh/id_rsa"); got != filepath.Join(home, ".ssh/id_rsa") {
		t.Errorf("expandPath = %q", got)
	}
	if got := expandPath("/abs/path"); got != "/abs/path" {
		t.Errorf("absolute path changed: %q", got)
	}
	if got := expandPath("relative"); got != "relative" {
		t.Errorf("relative path changed: %q", got)
	}
}

func TestBuildHostKeyCallbackMissingFileAcceptsAny(t *testing.T) {
	cb, err := BuildHostKeyCallback(filepath.Join(t.TempDir(), "known_hosts"))
	if err != nil {
		t.Fatalf("BuildHostKeyCallback: %v", err)
	}

	pub, _ := generateEd25519Key(t)
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatal(err)
	}
	addr := &net.TCPAddr{IP: net.ParseIP("10.0.0.1"), Port: 22}
	if err := cb("unknown.example.com:22", addr, sshPub); err != nil {
		t.Errorf("first-connection callback rejected key: %v", err)
	}
}

func TestBuildHostKeyCallbackKnownHosts(t *testing.T) {
	pub, _ := generateEd25519Key(t)
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "known_hosts")
	line := knownhosts.Line([]string{"web1.example.com:22"}, sshPub)
	if err := os.WriteFile(path, []byte(line+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cb, err := BuildHostKeyCallback(path)
	if err != nil {
		t.Fatalf("BuildHostKeyCallback: %v", err)
	}

	addr := &net.TCPAddr{IP: net.ParseIP("10.0.0.1"), Port: 22}
	if err := cb("web1.example.com:22", addr, sshPub); err != nil {
		t.Errorf("known key rejected: %v", err)
	}

	otherPub, _ := generateEd25519Key(t)
	otherSSHPub, err := ssh.NewPublicKey(otherPub)
	if err != nil {
		t.Fatal(err)
	}
	if err := cb("web1.example.com:22", addr, otherSSHPub); err == nil {
		t.Error("mismatched key accepted")
	}
}
