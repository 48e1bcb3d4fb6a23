// Package federation turns the stored refresh token into a game profile by
// walking the identity chain: identity provider, Xbox user broker, Xbox
// relying-party broker, then the game services login, entitlement check and
// profile fetch. Every stage is a plain function; Chain composes them and
// stops at the first failure without retrying.
package federation

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/djinn/kashir/internal/domain"
	"github.com/djinn/kashir/internal/logging"
	"github.com/djinn/kashir/internal/wire"
)

// Endpoints are the broker and game-service URLs used after the refresh stage.
type Endpoints struct {
	XBLAuthURL      string
	XSTSURL         string
	RelyingParty    string
	SandboxID       string
	LoginURL        string
	EntitlementsURL string
	ProfileURL      string
}

// DefaultEndpoints returns the production endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		XBLAuthURL:      "https://user.auth.xboxlive.com/user/authenticate",
		XSTSURL:         "https://xsts.auth.xboxlive.com/xsts/authorize",
		RelyingParty:    "rp://api.minecraftservices.com/",
		SandboxID:       "RETAIL",
		LoginURL:        "https://api.minecraftservices.com/authentication/login_with_xbox",
		EntitlementsURL: "https://api.minecraftservices.com/entitlements/mcstore",
		ProfileURL:      "https://api.minecraftservices.com/minecraft/profile",
	}
}

// Chain resolves the profile of the account whose refresh token is stored
// in the vault.
type Chain struct {
	oauth     *oauth2.Config
	endpoints Endpoints
	vault     domain.SecretVault
	client    *http.Client
	log       *slog.Logger
}

// Option configures a Chain.
type Option func(*Chain)

// WithHTTPClient sets the HTTP client used for every stage.
func WithHTTPClient(c *http.Client) Option {
	return func(ch *Chain) { ch.client = c }
}

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(ch *Chain) { ch.log = l }
}

// NewChain creates a Chain. cfg supplies the client id, scopes and token URL
// of the identity provider.
func NewChain(cfg *oauth2.Config, endpoints Endpoints, vault domain.SecretVault, opts ...Option) *Chain {
	ch := &Chain{oauth: cfg, endpoints: endpoints, vault: vault}
	for _, opt := range opts {
		opt(ch)
	}
	if ch.client == nil {
		ch.client = wire.NewHTTPClient()
	}
	ch.log = logging.For(ch.log, "federation")
	return ch
}

// ResolveProfile runs the whole chain. With no stored secret it returns
// ErrMissingCredential before touching the network. Stage failures are
// returned with their own kind.
func (c *Chain) ResolveProfile(ctx context.Context) (domain.Profile, error) {
	log := c.log.With("chain", uuid.NewString())
	log.Debug("chain begin")

	refresh, err := c.vault.Get()
	if errors.Is(err, domain.ErrNotFound) {
		log.Info("no stored refresh token")
		return domain.Profile{}, domain.ErrMissingCredential
	}
	if err != nil {
		var serr *domain.StorageError
		if !errors.As(err, &serr) {
			err = &domain.StorageError{Op: "get", Err: err}
		}
		log.Warn("reading refresh token failed", "error", err)
		return domain.Profile{}, err
	}
	log.Debug("refresh token present", "refresh_token", logging.Mask(refresh))

	access, err := RefreshAccessToken(ctx, c.client, c.oauth, refresh)
	if err != nil {
		return c.fail(log, domain.OpRefresh, err)
	}
	log.Debug("got access token", "len", len(access.AccessToken), "scp", scopeClaim(access.AccessToken))

	xbl, err := AuthenticateXBL(ctx, c.client, c.endpoints.XBLAuthURL, access.AccessToken)
	if err != nil {
		return c.fail(log, domain.OpXBL, err)
	}
	log.Debug("got xbl token", "len", len(xbl.Token))

	xsts, err := AuthorizeXSTS(ctx, c.client, c.endpoints.XSTSURL, c.endpoints.RelyingParty, c.endpoints.SandboxID, xbl.Token)
	if err != nil {
		return c.fail(log, domain.OpXSTS, err)
	}
	log.Debug("got xsts token", "len", len(xsts.Token), "uhs", xsts.UserHash)

	game, err := LoginWithXbox(ctx, c.client, c.endpoints.LoginURL, xsts)
	if err != nil {
		return c.fail(log, domain.OpLogin, err)
	}
	log.Debug("got game token", "len", len(game.AccessToken))

	bearer := BearerClient(ctx, c.client, game)
	if err := CheckEntitlement(ctx, bearer, c.endpoints.EntitlementsURL); err != nil {
		return c.fail(log, domain.OpEntitlement, err)
	}

	profile, err := FetchProfile(ctx, bearer, c.endpoints.ProfileURL)
	if err != nil {
		return c.fail(log, domain.OpProfile, err)
	}
	log.Info("profile resolved", "name", profile.DisplayName, "has_skin", profile.HasSkin())
	return profile, nil
}

func (c *Chain) fail(log *slog.Logger, stage string, err error) (domain.Profile, error) {
	log.Warn("chain stage failed", "stage", stage, "error", err)
	return domain.Profile{}, err
}

// scopeClaim reads the scp claim of a JWT access token without verifying it.
// Opaque tokens report "<absent>".
func scopeClaim(token string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "<absent>"
	}
	if scp, ok := claims["scp"].(string); ok && scp != "" {
		return scp
	}
	return "<absent>"
}
