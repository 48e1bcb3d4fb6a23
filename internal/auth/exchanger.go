package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/djinn/kashir/internal/domain"
	"github.com/djinn/kashir/internal/logging"
	"github.com/djinn/kashir/internal/wire"
)

// State is a state of the device-code polling machine.
type State int

const (
	StatePolling State = iota
	StateSlowDown
	StateSucceeded
	StateExpired
	StateTimedOut
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePolling:
		return "polling"
	case StateSlowDown:
		return "slow_down"
	case StateSucceeded:
		return "succeeded"
	case StateExpired:
		return "expired"
	case StateTimedOut:
		return "timed_out"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s >= StateSucceeded
}

// Exchanger polls the token endpoint until the user approves the device
// code, then stores the refresh token in the vault.
type Exchanger struct {
	oauth   *oauth2.Config
	vault   domain.SecretVault
	client  *http.Client
	clock   Clock
	log     *slog.Logger
	onState func(State)
}

// NewExchanger creates an Exchanger writing to vault on success.
func NewExchanger(cfg *oauth2.Config, vault domain.SecretVault, opts ...Option) *Exchanger {
	o := buildOptions(opts)
	return &Exchanger{
		oauth:   cfg,
		vault:   vault,
		client:  o.client,
		clock:   o.clock,
		log:     o.log,
		onState: o.onState,
	}
}

// PollAndStore exchanges deviceCode for tokens, waiting interval between
// attempts (interval plus SlowDownIncrement after slow_down), never sleeping
// past the timeout. It stops with
// ErrTimedOut once timeout has elapsed without a terminal answer, and with
// ErrExpired when the provider reports the code expired. The vault is
// written exactly once, on success. ctx cancels the wait between attempts.
func (e *Exchanger) PollAndStore(ctx context.Context, deviceCode string, interval, timeout time.Duration) error {
	start := e.clock.Now()
	e.enter(StatePolling)

	for attempt := 1; ; attempt++ {
		if e.clock.Now().Sub(start) >= timeout {
			e.enter(StateTimedOut)
			return domain.ErrTimedOut
		}

		resp, err := e.exchange(ctx, deviceCode)
		if err != nil {
			e.enter(StateFailed)
			return err
		}

		if resp.OK() {
			return e.store(resp)
		}

		wait := interval
		c := Classify(resp.Status, resp.Text())
		switch c.Outcome {
		case OutcomePending:
			e.log.Debug("authorization pending", "attempt", attempt)
		case OutcomeSlowDown:
			e.enter(StateSlowDown)
			wait = interval + SlowDownIncrement
			e.log.Debug("provider asked to slow down", "attempt", attempt, "wait", wait)
		case OutcomeExpired:
			e.enter(StateExpired)
			return c.Err
		default:
			e.enter(StateFailed)
			e.log.Warn("token exchange failed", "status", resp.Status)
			return c.Err
		}

		remaining := timeout - e.clock.Now().Sub(start)
		wait = min(wait, max(remaining, 0))
		if err := e.clock.Sleep(ctx, wait); err != nil {
			e.enter(StateFailed)
			return err
		}
		if c.Outcome == OutcomeSlowDown {
			e.enter(StatePolling)
		}
	}
}

func (e *Exchanger) exchange(ctx context.Context, deviceCode string) (wire.Response, error) {
	form := url.Values{}
	form.Set("grant_type", deviceCodeGrantType)
	form.Set("client_id", e.oauth.ClientID)
	form.Set("device_code", deviceCode)
	return wire.PostForm(ctx, e.client, domain.OpDevicePoll, e.oauth.Endpoint.TokenURL, form)
}

func (e *Exchanger) store(resp wire.Response) error {
	tok, err := wire.DecodeToken(resp, domain.OpDevicePoll)
	if err != nil {
		e.enter(StateFailed)
		return err
	}
	if tok.RefreshToken == "" {
		e.enter(StateFailed)
		return domain.ErrMissingRefreshToken
	}
	if err := e.vault.Set(tok.RefreshToken); err != nil {
		e.enter(StateFailed)
		var serr *domain.StorageError
		if errors.As(err, &serr) {
			return err
		}
		return &domain.StorageError{Op: "set", Err: err}
	}
	e.log.Info("refresh token stored", "secret", logging.Mask(tok.RefreshToken))
	e.enter(StateSucceeded)
	return nil
}

func (e *Exchanger) enter(s State) {
	e.log.Debug("device poll state", "state", s.String())
	if e.onState != nil {
		e.onState(s)
	}
}
