package sshx

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kevinburke/ssh_config"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/kfreezen/shellutil/secrets"
)

// AuthConfig holds authentication configuration for one host.
type AuthConfig struct {
	KeyPath       string // Path to private key file
	KeyPassphrase string // Passphrase for encrypted keys
	UseAgent      bool   // Use SSH agent for authentication
	Password      string // Password for password authentication
	Host          string // Target host for ssh_config lookup
	Keyring       *secrets.Keyring
}

// BuildAuthMethods constructs SSH auth methods from config, in preference
// order: agent, explicit key, ssh_config IdentityFile, default key
// locations, password and keyboard-interactive.
func BuildAuthMethods(cfg AuthConfig) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if cfg.UseAgent {
		if agentAuth, err := sshAgentAuth(); err == nil {
			methods = append(methods, agentAuth)
		}
	}

	if cfg.KeyPath != "" {
		keyAuth, err := privateKeyAuth(cfg.KeyPath, passphraseFor(cfg, cfg.KeyPath))
		if err != nil {
			return nil, fmt.Errorf("private key auth: %w", err)
		}
		methods = append(methods, keyAuth)
	}

	// IdentityFile from ~/.ssh/config when no explicit key was given.
	if cfg.KeyPath == "" && cfg.Host != "" {
		for _, keyPath := range configIdentityFiles(cfg.Host) {
			if keyAuth, err := privateKeyAuth(keyPath, passphraseFor(cfg, keyPath)); err == nil {
				methods = append(methods, keyAuth)
				break
			}
		}
	}

	if cfg.KeyPath == "" && cfg.Password == "" && len(methods) == 0 {
		defaultKeys := []string{
			"~/.ssh/id_ed25519",
			"~/.ssh/id_rsa",
			"~/.ssh/id_ecdsa",
		}
		for _, keyPath := range defaultKeys {
			expanded := expandPath(keyPath)
			if _, err := os.Stat(expanded); err != nil {
				continue
			}
			if keyAuth, err := privateKeyAuth(expanded, passphraseFor(cfg, expanded)); err == nil {
				methods = append(methods, keyAuth)
				break
			}
		}
	}

	if cfg.Password != "" {
		methods = append(methods, ssh.Password(cfg.Password))
		methods = append(methods, KeyboardInteractiveAuth(cfg.Password))
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("no authentication methods available")
	}
	return methods, nil
}

// passphraseFor returns the configured passphrase, falling back to the OS
// keyring entry for the key path.
func passphraseFor(cfg AuthConfig, keyPath string) string {
	if cfg.KeyPassphrase != "" {
		return cfg.KeyPassphrase
	}
	if cfg.Keyring != nil {
		if pp, err := cfg.Keyring.SSHPassphrase(keyPath); err == nil && pp != "" {
			return pp
		}
	}
	return ""
}

// sshAgentAuth returns an SSH agent auth method.
func sshAgentAuth() (ssh.AuthMethod, error) {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil, fmt.Errorf("SSH_AUTH_SOCK not set")
	}

	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil, fmt.Errorf("dial agent: %w", err)
	}

	agentClient := agent.NewClient(conn)
	return ssh.PublicKeysCallback(agentClient.Signers), nil
}

// privateKeyAuth returns a private key auth method.
func privateKeyAuth(keyPath, passphrase string) (ssh.AuthMethod, error) {
	keyData, err := os.ReadFile(expandPath(keyPath))
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	var signer ssh.Signer
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(keyData, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(keyData)
	}
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return ssh.PublicKeys(signer), nil
}

// configIdentityFiles returns the IdentityFile entries ~/.ssh/config
// configures for host, expanded, existing files only.
func configIdentityFiles(host string) []string {
	values := ssh_config.GetAll(host, "IdentityFile")
	var paths []string
	for _, v := range values {
		expanded := expandPath(v)
		if _, err := os.Stat(expanded); err == nil {
			paths = append(paths, expanded)
		}
	}
	return paths
}

// ResolveHost maps an ssh_config host alias to its real hostname, port and
// user. Fields the config does not set come back as the inputs (hostname) or
// zero values.
func ResolveHost(alias string) (host string, port int, user string) {
	host = alias
	if hn := ssh_config.Get(alias, "HostName"); hn != "" {
		host = hn
	}
	if p := ssh_config.Get(alias, "Port"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	}
	user = ssh_config.Get(alias, "User")
	return host, port, user
}

// BuildHostKeyCallback creates a host key callback from known_hosts. When the
// file does not exist the callback accepts any key, matching the behavior of
// a first connection with StrictHostKeyChecking=accept-new.
func BuildHostKeyCallback(knownHostsPath string) (ssh.HostKeyCallback, error) {
	if knownHostsPath == "" {
		knownHostsPath = "~/.ssh/known_hosts"
	}
	expanded := expandPath(knownHostsPath)

	if _, err := os.Stat(expanded); os.IsNotExist(err) {
		return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			return nil
		}, nil
	}

	callback, err := knownhosts.New(expanded)
	if err != nil {
		return nil, fmt.Errorf("parse known_hosts: %w", err)
	}
	return callback, nil
}

// InsecureHostKeyCallback returns a callback that accepts any host key. Only
// for tests or when verification is explicitly disabled.
func InsecureHostKeyCallback() ssh.HostKeyCallback {
	return ssh.InsecureIgnoreHostKey()
}

// KeyboardInteractiveAuth answers every keyboard-interactive question with
// the given password.
func KeyboardInteractiveAuth(password string) ssh.AuthMethod {
	return ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range questions {
			answers[i] = password
		}
		return answers, nil
	})
}

// expandPath expands ~ to the home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
