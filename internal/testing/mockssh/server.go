// Package mockssh runs a minimal in-process SSH server for tests: password
// auth, exec with separate stderr, and pty-backed shell sessions.
package mockssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
	"golang.org/x/crypto/ssh"
	"golang.org/x/sys/unix"
)

// Server accepts SSH connections on a loopback port and runs requested
// commands through a real shell.
type Server struct {
	listener net.Listener
	config   *ssh.ServerConfig
	addr     string
	shell    string
	users    map[string]string

	mu       sync.Mutex
	done     chan struct{}
	wg       sync.WaitGroup
	sessions []*serverSession
}

type serverSession struct {
	channel ssh.Channel
	pty     *os.File
	cmd     *exec.Cmd
}

// Option configures the server.
type Option func(*Server)

// WithShell sets the shell used for exec and shell requests.
func WithShell(shell string) Option {
	return func(s *Server) { s.shell = shell }
}

// WithUser adds an accepted username/password pair.
func WithUser(username, password string) Option {
	return func(s *Server) { s.users[username] = password }
}

// Start launches a server on a random loopback port with a throwaway
// ed25519 host key. The default credentials are test/test.
func Start(opts ...Option) (*Server, error) {
	_, hostKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate host key: %w", err)
	}
	signer, err := ssh.NewSignerFromKey(hostKey)
	if err != nil {
		return nil, fmt.Errorf("host key signer: %w", err)
	}

	s := &Server{
		shell: "/bin/sh",
		users: map[string]string{"test": "test"},
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	config := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			s.mu.Lock()
			want, ok := s.users[c.User()]
			s.mu.Unlock()
			if ok && string(password) == want {
				return nil, nil
			}
			return nil, fmt.Errorf("password rejected for %q", c.User())
		},
	}
	config.AddHostKey(signer)
	s.config = config

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	s.listener = listener
	s.addr = listener.Addr().String()

	s.wg.Add(1)
	go s.acceptLoop()

	slog.Debug("test ssh server started", slog.String("addr", s.addr))
	return s, nil
}

// Addr returns the host:port the server listens on.
func (s *Server) Addr() string { return s.addr }

// Host returns the listen host.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.addr)
	return host
}

// Port returns the listen port.
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.addr)
	var n int
	fmt.Sscanf(port, "%d", &n)
	return n
}

// Close stops the listener and tears down active sessions.
func (s *Server) Close() error {
	close(s.done)
	err := s.listener.Close()

	s.mu.Lock()
	for _, sess := range s.sessions {
		if sess.pty != nil {
			sess.pty.Close()
		}
		if sess.cmd != nil && sess.cmd.Process != nil {
			sess.cmd.Process.Kill()
		}
		if sess.channel != nil {
			sess.channel.Close()
		}
	}
	s.sessions = nil
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				slog.Debug("accept error", slog.String("error", err.Error()))
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(netConn net.Conn) {
	defer s.wg.Done()
	defer netConn.Close()

	sshConn, chans, reqs, err := ssh.NewServerConn(netConn, s.config)
	if err != nil {
		slog.Debug("handshake failed", slog.String("error", err.Error()))
		return
	}
	defer sshConn.Close()
	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			continue
		}
		s.wg.Add(1)
		go s.handleSession(channel, requests)
	}
}

func (s *Server) handleSession(channel ssh.Channel, requests <-chan *ssh.Request) {
	defer s.wg.Done()
	defer channel.Close()

	sess := &serverSession{channel: channel}
	s.mu.Lock()
	s.sessions = append(s.sessions, sess)
	s.mu.Unlock()

	var ptyReq *ptyRequest

	for req := range requests {
		switch req.Type {
		case "pty-req":
			ptyReq = parsePtyRequest(req.Payload)
			reply(req, true)
		case "env":
			reply(req, true)
		case "shell":
			reply(req, true)
			s.run(sess, ptyReq)
		case "exec":
			reply(req, true)
			s.run(sess, ptyReq, "-c", parseExecRequest(req.Payload))
		case "window-change":
			if sess.pty != nil {
				w := parseWindowChange(req.Payload)
				setWinsize(sess.pty, w.width, w.height)
			}
			reply(req, true)
		default:
			reply(req, false)
		}
	}
}

func reply(req *ssh.Request, ok bool) {
	if req.WantReply {
		req.Reply(ok, nil)
	}
}

func (s *Server) run(sess *serverSession, ptyReq *ptyRequest, args ...string) {
	cmd := exec.Command(s.shell, args...)
	cmd.Env = os.Environ()
	sess.cmd = cmd

	if ptyReq != nil {
		s.runOnPty(sess, cmd, ptyReq)
		return
	}

	cmd.Stdout = sess.channel
	cmd.Stderr = sess.channel.Stderr()
	cmd.Stdin = sess.channel

	exitCode := 0
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = 1
		}
	}
	sendExitStatus(sess.channel, exitCode)
}

func (s *Server) runOnPty(sess *serverSession, cmd *exec.Cmd, ptyReq *ptyRequest) {
	ptmx, err := pty.Start(cmd)
	if err != nil {
		sendExitStatus(sess.channel, 1)
		return
	}
	sess.pty = ptmx
	setWinsize(ptmx, ptyReq.width, ptyReq.height)

	drained := make(chan struct{})
	go func() {
		io.Copy(sess.channel, ptmx)
		close(drained)
	}()
	go io.Copy(ptmx, sess.channel)

	exitCode := 0
	if err := cmd.Wait(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = 1
		}
	}
	ptmx.Close()
	<-drained

	sendExitStatus(sess.channel, exitCode)
}

func sendExitStatus(channel ssh.Channel, code int) {
	channel.CloseWrite()
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, uint32(code))
	channel.SendRequest("exit-status", false, payload)
	channel.Close()
}

type ptyRequest struct {
	term   string
	width  uint32
	height uint32
}

func parsePtyRequest(payload []byte) *ptyRequest {
	fallback := &ptyRequest{term: "xterm", width: 80, height: 24}
	if len(payload) < 4 {
		return fallback
	}
	termLen := int(binary.BigEndian.Uint32(payload))
	if len(payload) < 4+termLen+8 {
		return fallback
	}
	return &ptyRequest{
		term:   string(payload[4 : 4+termLen]),
		width:  binary.BigEndian.Uint32(payload[4+termLen:]),
		height: binary.BigEndian.Uint32(payload[8+termLen:]),
	}
}

type windowChange struct {
	width  uint32
	height uint32
}

func parseWindowChange(payload []byte) *windowChange {
	if len(payload) < 8 {
		return &windowChange{width: 80, height: 24}
	}
	return &windowChange{
		width:  binary.BigEndian.Uint32(payload),
		height: binary.BigEndian.Uint32(payload[4:]),
	}
}

func parseExecRequest(payload []byte) string {
	if len(payload) < 4 {
		return ""
	}
	cmdLen := int(binary.BigEndian.Uint32(payload))
	if len(payload) < 4+cmdLen {
		return ""
	}
	return string(payload[4 : 4+cmdLen])
}

func setWinsize(f *os.File, width, height uint32) {
	ws := &unix.Winsize{Row: uint16(height), Col: uint16(width)}
	unix.IoctlSetWinsize(int(f.Fd()), unix.TIOCSWINSZ, ws)
}
