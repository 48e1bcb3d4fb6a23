package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/djinn/kashir/internal/logging"
	"github.com/djinn/kashir/internal/session"
	"github.com/djinn/kashir/internal/tui"
)

func newLoginCmd(a *app) *cobra.Command {
	var (
		timeout time.Duration
		noTUI   bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with a Microsoft device code",
		Long: `Request a device code, wait for you to approve it in a browser and
store the refresh token. The profile is resolved once signed in.

Without a terminal, or with --no-tui, prompts go to stderr and the
profile is printed to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if timeout <= 0 {
				timeout = a.cfg.PollTimeout()
			}
			if noTUI || !isatty.IsTerminal(os.Stdout.Fd()) {
				s, err := a.session()
				if err != nil {
					return err
				}
				return loginPlain(cmd, s, timeout)
			}
			return a.loginTUI(cmd, timeout)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up waiting for approval after this long (default from config)")
	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "print prompts instead of starting the interactive screen")
	return cmd
}

// loginPlain writes prompts to stderr so stdout remains clean for piping.
func loginPlain(cmd *cobra.Command, s *session.Session, timeout time.Duration) error {
	ctx := cmd.Context()
	stderr := cmd.ErrOrStderr()

	da, err := s.StartDeviceAuthorization(ctx)
	if err != nil {
		return fmt.Errorf("requesting device code: %w", err)
	}
	fmt.Fprintf(stderr, "Visit:      %s\n", da.VerificationURI)
	fmt.Fprintf(stderr, "Enter code: %s\n", da.UserCode)
	if da.Message != "" {
		fmt.Fprintf(stderr, "%s\n", da.Message)
	}
	fmt.Fprintf(stderr, "Waiting for authorization...\n")

	if err := s.Login(ctx, da, timeout); err != nil {
		return err
	}
	fmt.Fprintf(stderr, "Signed in.\n")

	p, err := s.ResolveProfile(ctx)
	if err != nil {
		return err
	}
	return printProfile(cmd.OutOrStdout(), p, false)
}

// loginTUI sends logs to a file so they do not draw over the screen.
func (a *app) loginTUI(cmd *cobra.Command, timeout time.Duration) error {
	logFile, err := openLogFile(a.cfg.Vault.Dir)
	if err != nil {
		return err
	}
	defer logFile.Close()

	level, _ := logging.ParseLevel(a.cfg.LogLevel)
	log := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: level}))

	s, err := session.FromConfig(a.cfg, session.WithLogger(log))
	if err != nil {
		return err
	}
	p, err := tui.Run(s, timeout)
	if err != nil {
		return err
	}
	return printProfile(cmd.OutOrStdout(), p, false)
}

func openLogFile(dir string) (io.WriteCloser, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	return os.OpenFile(filepath.Join(dir, "kashir.log"), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
}
