package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/djinn/kashir/internal/domain"
	"github.com/djinn/kashir/internal/wire"
)

// Initiator starts the OAuth 2.0 Device Authorization Grant (RFC 8628).
type Initiator struct {
	oauth  *oauth2.Config
	market string
	client *http.Client
	log    *slog.Logger
}

// NewInitiator creates an Initiator. cfg supplies the client id, scopes and
// Endpoint.DeviceAuthURL. market (e.g. "fr-FR") localizes the returned
// message; pass empty to let the provider choose.
func NewInitiator(cfg *oauth2.Config, market string, opts ...Option) *Initiator {
	o := buildOptions(opts)
	return &Initiator{oauth: cfg, market: market, client: o.client, log: o.log}
}

// Start requests a device code and user code. The returned
// DeviceAuthorization.UserCode must be shown to the user along with
// VerificationURI. Nothing is retried: a failed start is reported as is.
func (i *Initiator) Start(ctx context.Context) (domain.DeviceAuthorization, error) {
	endpoint, err := i.deviceCodeURL()
	if err != nil {
		return domain.DeviceAuthorization{}, err
	}

	form := url.Values{}
	form.Set("client_id", i.oauth.ClientID)
	form.Set("scope", strings.Join(i.oauth.Scopes, " "))

	resp, err := wire.PostForm(ctx, i.client, domain.OpDeviceCode, endpoint, form)
	if err != nil {
		i.log.Warn("device code request failed", "error", err)
		return domain.DeviceAuthorization{}, err
	}

	var raw domain.DeviceAuthorization
	if err := wire.Expect(resp, domain.OpDeviceCode, &raw); err != nil {
		i.log.Warn("device code rejected", "status", resp.Status, "error", err)
		return domain.DeviceAuthorization{}, err
	}
	if raw.DeviceCode == "" || raw.UserCode == "" {
		return domain.DeviceAuthorization{}, wire.MissingField(resp, domain.OpDeviceCode, "device_code/user_code")
	}

	raw.Interval = max(raw.Interval, domain.MinPollInterval)
	i.log.Info("device code issued",
		"user_code", raw.UserCode,
		"verification_uri", raw.VerificationURI,
		"expires_in", raw.ExpiresIn,
		"interval", raw.Interval)
	return raw, nil
}

func (i *Initiator) deviceCodeURL() (string, error) {
	u, err := url.Parse(i.oauth.Endpoint.DeviceAuthURL)
	if err != nil {
		return "", fmt.Errorf("building URL: %w", err)
	}
	if i.market != "" {
		q := u.Query()
		q.Set("mkt", i.market)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
