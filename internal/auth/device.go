package auth

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/djinn/kashir/internal/logging"
	"github.com/djinn/kashir/internal/wire"
)

// deviceCodeGrantType is the RFC 8628 grant type for polling.
const deviceCodeGrantType = "urn:ietf:params:oauth:grant-type:device_code"

// SlowDownIncrement is added to the polling interval after a slow_down answer.
const SlowDownIncrement = 2 * time.Second

// Clock lets the polling loop run in virtual time under test.
type Clock interface {
	Now() time.Time
	// Sleep suspends for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type options struct {
	client  *http.Client
	log     *slog.Logger
	clock   Clock
	onState func(State)
}

// Option configures an Initiator or Exchanger.
type Option func(*options)

// WithHTTPClient sets the HTTP client. Pass a test server's client in tests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithClock replaces the wall clock used by the Exchanger.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithStateHook registers fn to observe every Exchanger state transition.
func WithStateHook(fn func(State)) Option {
	return func(o *options) { o.onState = fn }
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.client == nil {
		o.client = wire.NewHTTPClient()
	}
	if o.clock == nil {
		o.clock = realClock{}
	}
	o.log = logging.For(o.log, "auth")
	return o
}

