package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/djinn/kashir/internal/config"
	"github.com/djinn/kashir/internal/domain"
	"github.com/djinn/kashir/internal/logging"
	"github.com/djinn/kashir/internal/session"
)

// Exit codes for CLI commands.
const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
	// ExitCodeAuthRequired means a new `kashir login` is needed.
	ExitCodeAuthRequired = 2
	// ExitCodeNoLicense means the account does not own the game.
	ExitCodeNoLicense = 3
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	cfg        config.Config
	log        *slog.Logger
}

func newApp() *app {
	return &app{}
}

// newRootCmd assembles the command tree.
func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "kashir",
		Short: "Sign in to a Minecraft account from the terminal",
		Long: `kashir signs in to a Microsoft account with a device code, keeps the
refresh token in the platform credential store and resolves the
Minecraft profile through Xbox Live on demand.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}
	root.SetVersionTemplate(`{{printf "kashir version %s\n" .Version}}`)
	root.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultConfigPath(), "path to the config file")

	root.AddCommand(
		newLoginCmd(a),
		newStatusCmd(a),
		newProfileCmd(a),
		newLogoutCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) load(logOut io.Writer) error {
	cfg, err := config.LoadFrom(a.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logging.Init(level, logOut)
	return nil
}

func (a *app) session() (*session.Session, error) {
	return session.FromConfig(a.cfg, session.WithLogger(a.log))
}

// execute runs the CLI with args and returns the process exit code.
func execute(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return run(ctx, newApp(), args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitCodeSuccess
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	if hint := remediation(err); hint != "" {
		fmt.Fprintln(stderr, hint)
	}
	return exitCode(err)
}

// exitCode maps an error to a process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitCodeSuccess
	case domain.IsReauthRequired(err):
		return ExitCodeAuthRequired
	case errors.Is(err, domain.ErrNoEntitlement):
		return ExitCodeNoLicense
	default:
		return ExitCodeError
	}
}

func remediation(err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingCredential):
		return "not signed in, run `kashir login`"
	case domain.IsReauthRequired(err):
		return "the stored sign-in is no longer valid, run `kashir login`"
	default:
		return ""
	}
}
