package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mbarlow12/claude-jail/internal/bwrap"
	"github.com/mbarlow12/claude-jail/internal/config"
	"github.com/mbarlow12/claude-jail/internal/sandbox"
	"github.com/mbarlow12/claude-jail/internal/ui"
)

// Set via ldflags at build time
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func buildVersion() string {
	if commit == "none" {
		return version
	}
	return fmt.Sprintf("%s (%s, %s)", version, commit, date)
}

type rootFlags struct {
	noColor    bool
	projectDir string
	configFile string
}

func main() {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "claude-jail",
		Short: "Run Claude Code inside a bubblewrap sandbox",
		Long: "claude-jail compiles an isolation profile and layered configuration into a\n" +
			"bubblewrap command and runs Claude Code (or a shell) inside it. The host home\n" +
			"directory is replaced by a per-project sandbox home.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ui.Init(flags.noColor)
		},
	}

	rootCmd.Version = buildVersion()
	rootCmd.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVarP(&flags.projectDir, "dir", "d", "", "Project directory (default: current directory)")
	rootCmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "Use a specific config file (skips discovery)")

	rootCmd.AddCommand(
		jailCmd(flags),
		shellCmd(flags),
		profilesCmd(),
		configCmd(flags),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveProjectDir turns the -d flag (or the working directory) into an
// absolute, symlink-free path and requires it to exist.
func resolveProjectDir(flag string) (string, error) {
	dir := flag
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		dir = cwd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("invalid project directory: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("project directory does not exist: %s", abs)
	}
	return abs, nil
}

type jailFlags struct {
	profile   string
	verbose   bool
	noNetwork bool
	dryRun    bool
	shell     bool
	roPaths   []string
	rwPaths   []string
	gitRoot   string
}

func jailCmd(root *rootFlags) *cobra.Command {
	jf := &jailFlags{}

	cmd := &cobra.Command{
		Use:   "jail [flags] [-- claude args...]",
		Short: "Run Claude Code in the sandbox",
		Long: "Compiles the sandbox for the project directory and runs claude inside it.\n" +
			"Arguments after -- are passed to claude unchanged.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJail(root, jf, args)
		},
	}

	cmd.Flags().StringVarP(&jf.profile, "profile", "p", "", "Isolation profile (default from config)")
	cmd.Flags().BoolVarP(&jf.verbose, "verbose", "v", false, "Show sandbox info on start")
	cmd.Flags().BoolVar(&jf.noNetwork, "no-network", false, "Disable network access")
	cmd.Flags().BoolVar(&jf.dryRun, "dry-run", false, "Print the bwrap command without executing it")
	cmd.Flags().BoolVar(&jf.shell, "shell", false, "Drop into an interactive shell instead of running claude")
	cmd.Flags().StringArrayVar(&jf.roPaths, "ro", nil, "Extra read-only path (repeatable)")
	cmd.Flags().StringArrayVar(&jf.rwPaths, "rw", nil, "Extra read-write path (repeatable)")
	cmd.Flags().StringVar(&jf.gitRoot, "git-root", "", "Use this directory as the main git repository root")

	return cmd
}

func shellCmd(root *rootFlags) *cobra.Command {
	jf := &jailFlags{shell: true}

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Enter an interactive shell inside the sandbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJail(root, jf, nil)
		},
	}

	cmd.Flags().StringVarP(&jf.profile, "profile", "p", "", "Isolation profile (default from config)")
	cmd.Flags().BoolVarP(&jf.verbose, "verbose", "v", false, "Show sandbox info on start")
	cmd.Flags().BoolVar(&jf.noNetwork, "no-network", false, "Disable network access")
	cmd.Flags().BoolVar(&jf.dryRun, "dry-run", false, "Print the bwrap command without executing it")

	return cmd
}

func runJail(root *rootFlags, jf *jailFlags, claudeArgs []string) error {
	if _, err := exec.LookPath("bwrap"); err != nil {
		return fmt.Errorf("bubblewrap not found; install it first (e.g. apt install bubblewrap)")
	}

	projectDir, err := resolveProjectDir(root.projectDir)
	if err != nil {
		return err
	}

	ov := config.Overrides{ConfigFile: root.configFile}
	if jf.profile != "" {
		ov.Profile = &jf.profile
	}
	if jf.noNetwork {
		off := false
		ov.Network = &off
	}
	if jf.roPaths != nil {
		ov.ROPaths = jf.roPaths
	}
	if jf.rwPaths != nil {
		ov.RWPaths = jf.rwPaths
	}

	res, err := config.Resolve(projectDir, ov)
	if err != nil {
		return err
	}

	home, err := res.SandboxHomePath(projectDir)
	if err != nil {
		return err
	}

	if err := sandbox.EnsureDirs(home); err != nil {
		return err
	}
	if res.CopyConfig {
		if err := sandbox.CopyClaudeConfig(home); err != nil {
			return err
		}
	}

	var inner []string
	if jf.shell {
		inner = []string{res.Shell}
	} else {
		if _, err := exec.LookPath("claude"); err != nil {
			return fmt.Errorf("claude not found in PATH")
		}
		inner = append([]string{"claude"}, claudeArgs...)
	}

	b := bwrap.New()
	ctx := sandbox.Context{
		ProjectDir:      projectDir,
		Home:            home,
		Settings:        res,
		GitRootOverride: jf.gitRoot,
	}
	if err := sandbox.Compile(b, sandbox.NewRegistry(), ctx); err != nil {
		return err
	}

	argv := b.Command(inner...)

	if jf.verbose || jf.dryRun {
		fmt.Fprintln(os.Stderr, ui.Header("claude-jail"))
		fmt.Fprintf(os.Stderr, "   Profile: %s\n", res.Profile)
		fmt.Fprintf(os.Stderr, "   Project: %s\n", projectDir)
		fmt.Fprintf(os.Stderr, "   Sandbox: %s\n", home)
		if jf.shell {
			fmt.Fprintf(os.Stderr, "   Shell:   %s\n", res.Shell)
		}
		fmt.Fprintln(os.Stderr)
	}

	if jf.dryRun {
		fmt.Println(shellJoin(argv))
		return nil
	}

	return runEngine(argv)
}

// runEngine executes the compiled bwrap command with the caller's terminal.
// The parent ignores SIGINT so Ctrl+C reaches the sandboxed process; an
// interrupt exit from the child maps to the conventional 130.
func runEngine(argv []string) error {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	signal.Ignore(os.Interrupt)
	defer signal.Reset(os.Interrupt)

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() && status.Signal() == syscall.SIGINT {
			os.Exit(130)
		}
		os.Exit(exitErr.ExitCode())
	}
	return err
}

func profilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List available isolation profiles",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range sandbox.NewRegistry().Names() {
				fmt.Println(name)
			}
		},
	}
}

func configCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the resolved configuration and where each value came from",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectDir, err := resolveProjectDir(root.projectDir)
			if err != nil {
				return err
			}
			res, err := config.Resolve(projectDir, config.Overrides{ConfigFile: root.configFile})
			if err != nil {
				return err
			}

			if res.File != "" {
				fmt.Printf("# config file: %s\n", res.File)
			} else {
				fmt.Println("# config file: none")
			}
			for _, key := range config.Keys {
				fmt.Printf("%-14s = %-40q (%s)\n", key, res.Value(key), res.Sources[key])
			}
			return nil
		},
	}
}

// shellJoin renders argv as a copy-pasteable shell command.
func shellJoin(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		quoted[i] = shellQuote(arg)
	}
	return strings.Join(quoted, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$&|;<>()*?[]#~`!{}") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
