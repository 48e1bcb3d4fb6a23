// Package session is the only entry point hosts use: it starts the device
// login, stores the resulting refresh token, resolves the game profile and
// signs out. Nothing it returns carries token material.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/djinn/kashir/internal/auth"
	"github.com/djinn/kashir/internal/config"
	"github.com/djinn/kashir/internal/domain"
	"github.com/djinn/kashir/internal/federation"
	"github.com/djinn/kashir/internal/logging"
	"github.com/djinn/kashir/internal/vault"
)

// Session composes the device login, the vault and the federation chain.
type Session struct {
	initiator *auth.Initiator
	exchanger *auth.Exchanger
	chain     *federation.Chain
	vault     domain.SecretVault
	log       *slog.Logger
}

type options struct {
	client  *http.Client
	log     *slog.Logger
	clock   auth.Clock
	onState func(auth.State)
}

// Option configures a Session.
type Option func(*options)

// WithHTTPClient sets the HTTP client shared by every component.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithClock replaces the clock of the polling loop.
func WithClock(c auth.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithStateHook observes polling state transitions.
func WithStateHook(fn func(auth.State)) Option {
	return func(o *options) { o.onState = fn }
}

// New creates a Session from its parts.
func New(oauth *oauth2.Config, market string, endpoints federation.Endpoints, v domain.SecretVault, opts ...Option) *Session {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	var authOpts []auth.Option
	var fedOpts []federation.Option
	if o.client != nil {
		authOpts = append(authOpts, auth.WithHTTPClient(o.client))
		fedOpts = append(fedOpts, federation.WithHTTPClient(o.client))
	}
	if o.log != nil {
		authOpts = append(authOpts, auth.WithLogger(o.log))
		fedOpts = append(fedOpts, federation.WithLogger(o.log))
	}
	if o.clock != nil {
		authOpts = append(authOpts, auth.WithClock(o.clock))
	}
	if o.onState != nil {
		authOpts = append(authOpts, auth.WithStateHook(o.onState))
	}

	return &Session{
		initiator: auth.NewInitiator(oauth, market, authOpts...),
		exchanger: auth.NewExchanger(oauth, v, authOpts...),
		chain:     federation.NewChain(oauth, endpoints, v, fedOpts...),
		vault:     v,
		log:       logging.For(o.log, "session"),
	}
}

// FromConfig validates cfg, opens the configured vault and builds a Session.
func FromConfig(cfg config.Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	v, err := vault.Open(cfg.Vault.Backend, cfg.SecretKey(), cfg.Vault.Dir, o.log)
	if err != nil {
		return nil, err
	}
	return New(cfg.OAuth2Config(), cfg.Microsoft.Market, cfg.Endpoints(), v, opts...), nil
}

// StartDeviceAuthorization requests a device code. The caller shows
// UserCode and VerificationURI, then calls PollAndStore.
func (s *Session) StartDeviceAuthorization(ctx context.Context) (domain.DeviceAuthorization, error) {
	return s.initiator.Start(ctx)
}

// PollAndStore waits for the user to approve deviceCode and stores the
// refresh token. interval is raised to the polling floor if lower.
func (s *Session) PollAndStore(ctx context.Context, deviceCode string, interval, timeout time.Duration) error {
	if floor := domain.MinPollInterval * time.Second; interval < floor {
		interval = floor
	}
	return s.exchanger.PollAndStore(ctx, deviceCode, interval, timeout)
}

// Login polls for da using its interval and stores the refresh token.
func (s *Session) Login(ctx context.Context, da domain.DeviceAuthorization, timeout time.Duration) error {
	return s.PollAndStore(ctx, da.DeviceCode, time.Duration(da.Interval)*time.Second, timeout)
}

// ResolveProfile runs the federation chain from the stored refresh token.
func (s *Session) ResolveProfile(ctx context.Context) (domain.Profile, error) {
	return s.chain.ResolveProfile(ctx)
}

// IsAuthenticated reports whether a refresh token is stored. It does not
// check that the token is still accepted.
func (s *Session) IsAuthenticated() bool {
	_, err := s.vault.Get()
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.log.Warn("reading vault failed", "error", err)
	}
	return err == nil
}

// Logout deletes the stored refresh token. Signing out twice is not an error.
func (s *Session) Logout() error {
	if err := s.vault.Delete(); err != nil {
		s.log.Warn("logout failed", "error", err)
		return err
	}
	s.log.Info("signed out")
	return nil
}
