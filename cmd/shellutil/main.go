// shellutil runs commands, drives interactive sessions and copies files
// across local and SSH shells.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kfreezen/shellutil/config"
	"github.com/kfreezen/shellutil/dialog"
	"github.com/kfreezen/shellutil/expect"
	"github.com/kfreezen/shellutil/internal/logging"
	"github.com/kfreezen/shellutil/paths"
	"github.com/kfreezen/shellutil/secrets"
	"github.com/kfreezen/shellutil/shell"
	"github.com/kfreezen/shellutil/sshx"
	"github.com/kfreezen/shellutil/transfer"
)

// Version information - set at build time.
var (
	Version   = "0.3.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	var (
		configPath  string
		showVersion bool
		debug       bool
	)

	flag.StringVar(&configPath, "config", config.DefaultConfigPath(), "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.Usage = usage
	flag.Parse()

	if showVersion {
		fmt.Printf("shellutil version %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		os.Exit(0)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if debug {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Sanitize)

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	switch args[0] {
	case "run":
		os.Exit(cmdRun(cfg, args[1:]))
	case "expect":
		os.Exit(cmdExpect(cfg, args[1:]))
	case "copy":
		os.Exit(cmdCopy(cfg, args[1:]))
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n", args[0])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: shellutil [flags] <command> [args]

Commands:
  run    [-server name] <command>              Run a command and print its output
  expect [-server name] -send cmd pattern...   Drive an interactive session
  copy   [-server name] [-delete] <src> <dst>  Copy files or trees with rsync

Flags:
`)
	flag.PrintDefaults()
}

// cmdRun executes one command on the selected shell and exits with its
// status.
func cmdRun(cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	server := fs.String("server", "", "Configured server to run on (empty for local)")
	timeout := fs.Duration("timeout", 0, "Command timeout (0 for none)")
	fs.Parse(args)

	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "run: command required")
		return 2
	}
	command := strings.Join(fs.Args(), " ")

	sh, cleanup, err := buildShell(cfg, *server)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer cleanup()

	ctx := context.Background()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	res, err := sh.Exec(ctx, command)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Print(res.Stdout)
	fmt.Fprint(os.Stderr, res.Stderr)
	return res.ExitCode
}

// cmdExpect starts command on a pty, optionally sends a line, and waits for
// one of the given patterns (or end of stream when none are given).
func cmdExpect(cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("expect", flag.ExitOnError)
	server := fs.String("server", "", "Configured server to run on (empty for local)")
	send := fs.String("send", "", "Line to send after the session starts")
	timeout := fs.Duration("timeout", 30*time.Second, "Overall timeout")
	fs.Parse(args)

	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "expect: command required")
		return 2
	}
	command := fs.Arg(0)

	patterns := []expect.Pattern{expect.EOF}
	for _, expr := range fs.Args()[1:] {
		p, err := expect.Regex(expr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "expect: bad pattern %q: %v\n", expr, err)
			return 2
		}
		patterns = append(patterns, p)
	}

	sh, cleanup, err := buildShell(cfg, *server)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer cleanup()

	engine, err := sh.Interact(command)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *send != "" {
		if err := engine.Send(*send); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}

	idx, err := engine.Expect(patterns...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if idx > 0 {
		slog.Info("pattern matched", slog.Int("index", idx-1))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	status, err := engine.WaitExit(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if status == expect.ExitStatusUnknown {
		return 0
	}
	return status
}

// cmdCopy transfers a file or tree between two path specs, either of which
// may use the user@host:/path syntax.
func cmdCopy(cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("copy", flag.ExitOnError)
	server := fs.String("server", "", "Configured server remote specs refer to")
	del := fs.Bool("delete", false, "Delete destination files missing from the source")
	exclude := fs.String("exclude", "", "Comma-separated exclusion patterns")
	quiet := fs.Bool("quiet", false, "Suppress progress output")
	fs.Parse(args)

	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "copy: source and destination required")
		return 2
	}

	ctx := context.Background()
	source, cleanupSrc, err := buildPath(cfg, *server, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer cleanupSrc()
	dest, cleanupDst, err := buildPath(cfg, *server, fs.Arg(1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer cleanupDst()

	r := transfer.NewRsync()
	r.Delete = *del
	r.Keyring = secrets.New()
	r.Prompter = dialog.NewTerminal()
	if cfg.Transfer.Flags != "" {
		r.Flags = cfg.Transfer.Flags
	}
	r.Sudo = cfg.Transfer.Sudo
	r.Exclusions = append(r.Exclusions, cfg.Transfer.Exclusions...)
	if *exclude != "" {
		r.Exclusions = append(r.Exclusions, strings.Split(*exclude, ",")...)
	}
	if !*quiet {
		r.Progress = printProgress
	}

	if err := r.Run(ctx, source, dest); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func printProgress(u transfer.Update) {
	switch {
	case u.Done:
		fmt.Fprintf(os.Stderr, "done: %d bytes, speedup %.2f\n", u.TotalSize, u.Speedup)
	case u.File != "":
		fmt.Fprintf(os.Stderr, "%s\n", u.File)
	default:
		fmt.Fprintf(os.Stderr, "  %d bytes (%d%%) %s\r", u.Bytes, u.Percent, u.Speed)
	}
}

// buildShell returns the shell for a configured server, or the local shell
// when name is empty. cleanup closes any SSH connection.
func buildShell(cfg *config.Config, name string) (shell.Shell, func(), error) {
	if name == "" {
		return shell.NewLocalShell(), func() {}, nil
	}

	srv, err := cfg.Server(name)
	if err != nil {
		return nil, nil, err
	}

	client, err := connectServer(cfg, srv)
	if err != nil {
		return nil, nil, err
	}
	rs := shell.NewRemoteShell(client)
	rs.Pty.Term = cfg.Shell.Term
	rs.Pty.Rows = cfg.Shell.Rows
	rs.Pty.Cols = cfg.Shell.Cols
	return rs, func() { client.Close() }, nil
}

// buildPath resolves a path spec against the selected server. Remote specs
// (user@host:/path) connect on demand; plain paths ride the server shell
// when one is named, and the local filesystem otherwise.
func buildPath(cfg *config.Config, name, spec string) (paths.Path, func(), error) {
	if !paths.IsRemoteSyntax(spec) && name == "" {
		return paths.NewLocalPath(spec), func() {}, nil
	}
	sh, cleanup, err := buildShellForSpec(cfg, name, spec)
	if err != nil {
		return nil, nil, err
	}
	p, err := paths.FromString(spec, sh)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return p, cleanup, nil
}

func buildShellForSpec(cfg *config.Config, name, spec string) (shell.Shell, func(), error) {
	if name != "" {
		return buildShell(cfg, name)
	}
	if !paths.IsRemoteSyntax(spec) {
		return shell.NewLocalShell(), func() {}, nil
	}

	// Ad-hoc user@host: spec without a configured server; resolve through
	// ~/.ssh/config and the usual auth chain.
	user, host, _ := splitSpec(spec)
	resolvedHost, port, configUser := sshx.ResolveHost(host)
	if user == "" {
		user = configUser
	}
	if user == "" {
		user = os.Getenv("USER")
	}

	methods, err := sshx.BuildAuthMethods(sshx.AuthConfig{
		UseAgent: true,
		Host:     host,
		Keyring:  secrets.New(),
	})
	if err != nil {
		return nil, nil, err
	}
	hostKeys, err := sshx.BuildHostKeyCallback("")
	if err != nil {
		return nil, nil, err
	}

	opts := sshx.DefaultOptions()
	opts.Host = resolvedHost
	opts.User = user
	opts.AuthMethods = methods
	opts.HostKeyCallback = hostKeys
	if port != 0 {
		opts.Port = port
	}
	client, err := sshx.NewClient(opts)
	if err != nil {
		return nil, nil, err
	}
	return shell.NewRemoteShell(client), func() { client.Close() }, nil
}

// connectServer builds an SSH client from a server config entry.
func connectServer(cfg *config.Config, srv *config.ServerConfig) (*sshx.Client, error) {
	auth := sshx.AuthConfig{
		KeyPath:       srv.Auth.KeyPath,
		KeyPassphrase: srv.Auth.Passphrase(),
		Password:      srv.Auth.Password(),
		Host:          srv.Host,
		UseAgent:      srv.Auth.Type == "agent" || srv.Auth.Type == "",
	}
	if srv.UseKeyring {
		auth.Keyring = secrets.New()
	}

	methods, err := sshx.BuildAuthMethods(auth)
	if err != nil {
		return nil, fmt.Errorf("auth for %s: %w", srv.Name, err)
	}
	hostKeys, err := sshx.BuildHostKeyCallback("")
	if err != nil {
		return nil, err
	}

	opts := sshx.DefaultOptions()
	opts.Host = srv.Host
	opts.Port = srv.Port
	opts.User = srv.User
	opts.AuthMethods = methods
	opts.HostKeyCallback = hostKeys
	return sshx.NewClient(opts)
}

// splitSpec splits "user@host:path" into its parts; user may be empty.
func splitSpec(spec string) (user, host, path string) {
	rest := spec
	if i := strings.Index(rest, "@"); i >= 0 && i < strings.Index(rest, ":") {
		user, rest = rest[:i], rest[i+1:]
	}
	if i := strings.Index(rest, ":"); i >= 0 {
		host, path = rest[:i], rest[i+1:]
	}
	return user, host, path
}
