// Package secrets stores SSH credentials in the OS keyring (macOS Keychain,
// Linux Secret Service, Windows Credential Manager).
package secrets

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zalando/go-keyring"
)

// Service is the service name used for keyring entries.
const Service = "shellutil"

// Keyring provides OS keyring backed credential storage. When the system
// keyring is unavailable every lookup misses and every store fails, so
// callers fall back to prompting.
type Keyring struct {
	mu      sync.RWMutex
	enabled bool
}

// New probes the system keyring and returns a store, disabled if the probe
// fails.
func New() *Keyring {
	k := &Keyring{enabled: true}

	testKey := "__shellutil_probe__"
	if err := keyring.Set(Service, testKey, "probe"); err != nil {
		slog.Debug("keyring not available", slog.String("error", err.Error()))
		k.enabled = false
		return k
	}
	_ = keyring.Delete(Service, testKey)

	return k
}

// Enabled reports whether the system keyring is usable.
func (k *Keyring) Enabled() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.enabled
}

// SetEnabled turns keyring usage on or off.
func (k *Keyring) SetEnabled(enabled bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.enabled = enabled
}

func (k *Keyring) set(key, value string) error {
	if !k.Enabled() {
		return fmt.Errorf("keyring not available")
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(value))
	if err := keyring.Set(Service, key, encoded); err != nil {
		return fmt.Errorf("keyring set: %w", err)
	}
	return nil
}

// get returns "" with a nil error on a miss; absence is not an error.
func (k *Keyring) get(key string) (string, error) {
	if !k.Enabled() {
		return "", fmt.Errorf("keyring not available")
	}
	encoded, err := keyring.Get(Service, key)
	if err != nil {
		if err == keyring.ErrNotFound {
			return "", nil
		}
		return "", fmt.Errorf("keyring get: %w", err)
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("keyring decode: %w", err)
	}
	return string(decoded), nil
}

func (k *Keyring) delete(key string) error {
	if !k.Enabled() {
		return fmt.Errorf("keyring not available")
	}
	if err := keyring.Delete(Service, key); err != nil && err != keyring.ErrNotFound {
		return fmt.Errorf("keyring delete: %w", err)
	}
	return nil
}

// StoreSSHPassphrase stores the passphrase for a private key file.
func (k *Keyring) StoreSSHPassphrase(keyPath, passphrase string) error {
	return k.set("ssh-passphrase:"+keyPath, passphrase)
}

// SSHPassphrase returns the stored passphrase for a private key file, or ""
// when none is stored.
func (k *Keyring) SSHPassphrase(keyPath string) (string, error) {
	return k.get("ssh-passphrase:" + keyPath)
}

// DeleteSSHPassphrase removes the stored passphrase for a private key file.
func (k *Keyring) DeleteSSHPassphrase(keyPath string) error {
	return k.delete("ssh-passphrase:" + keyPath)
}

// StoreServerPassword stores a login password for user@host.
func (k *Keyring) StoreServerPassword(host, user, password string) error {
	return k.set(fmt.Sprintf("server:%s@%s", user, host), password)
}

// ServerPassword returns the stored login password for user@host, or ""
// when none is stored.
func (k *Keyring) ServerPassword(host, user string) (string, error) {
	return k.get(fmt.Sprintf("server:%s@%s", user, host))
}

// DeleteServerPassword removes the stored login password for user@host.
func (k *Keyring) DeleteServerPassword(host, user string) error {
	return k.delete(fmt.Sprintf("server:%s@%s", user, host))
}
