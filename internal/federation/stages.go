package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/djinn/kashir/internal/domain"
	"github.com/djinn/kashir/internal/wire"
)

// RefreshAccessToken redeems a refresh token for a fresh identity-provider
// access token. The configured scopes are sent again with the grant.
func RefreshAccessToken(ctx context.Context, client *http.Client, cfg *oauth2.Config, refreshToken string) (*oauth2.Token, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", cfg.ClientID)
	form.Set("refresh_token", refreshToken)
	form.Set("scope", strings.Join(cfg.Scopes, " "))

	resp, err := wire.PostForm(ctx, client, domain.OpRefresh, cfg.Endpoint.TokenURL, form)
	if err != nil {
		return nil, err
	}
	return wire.DecodeToken(resp, domain.OpRefresh)
}

type xboxTokenResponse struct {
	Token         string `json:"Token"`
	DisplayClaims struct {
		Xui []struct {
			UserHash string `json:"uhs"`
		} `json:"xui"`
	} `json:"DisplayClaims"`
}

type xboxError struct {
	XErr    int64  `json:"XErr"`
	Message string `json:"Message"`
}

// Known XErr codes returned by the Xbox brokers.
const (
	XErrNoProfile    = 2148916233
	XErrChildAccount = 2148916235
	XErrAdultVerify  = 2148916236
	XErrAgeVerify    = 2148916237
	XErrBanned       = 2148916238
)

// XErrHint explains an Xbox broker XErr code. Unknown codes yield "".
func XErrHint(code int64) string {
	switch code {
	case XErrNoProfile:
		return "account has no Xbox profile; sign in at xbox.com to create one"
	case XErrChildAccount:
		return "child account; a parent must add it to a family"
	case XErrAdultVerify, XErrAgeVerify:
		return "adult verification required"
	case XErrBanned:
		return "account suspended or banned"
	default:
		return ""
	}
}

// AuthenticateXBL exchanges an identity-provider access token for a
// regional-broker token and its user hash.
func AuthenticateXBL(ctx context.Context, client *http.Client, endpoint, accessToken string) (domain.FederatedToken, error) {
	payload := map[string]any{
		"Properties": map[string]any{
			"AuthMethod": "RPS",
			"SiteName":   "user.auth.xboxlive.com",
			"RpsTicket":  "d=" + accessToken,
		},
		"RelyingParty": "http://auth.xboxlive.com",
		"TokenType":    "JWT",
	}
	return xboxExchange(ctx, client, domain.OpXBL, endpoint, payload)
}

// AuthorizeXSTS exchanges a regional-broker token for a token scoped to
// relyingParty inside sandbox.
func AuthorizeXSTS(ctx context.Context, client *http.Client, endpoint, relyingParty, sandbox, xblToken string) (domain.FederatedToken, error) {
	payload := map[string]any{
		"Properties": map[string]any{
			"SandboxId":  sandbox,
			"UserTokens": []string{xblToken},
		},
		"RelyingParty": relyingParty,
		"TokenType":    "JWT",
	}
	return xboxExchange(ctx, client, domain.OpXSTS, endpoint, payload)
}

func xboxExchange(ctx context.Context, client *http.Client, op, endpoint string, payload any) (domain.FederatedToken, error) {
	headers := map[string]string{"x-xbl-contract-version": "1"}
	resp, err := wire.PostJSON(ctx, client, op, endpoint, payload, headers)
	if err != nil {
		return domain.FederatedToken{}, err
	}
	if !resp.OK() {
		perr := resp.ProtocolError(op)
		var xerr xboxError
		if json.Unmarshal(resp.Body, &xerr) == nil && xerr.XErr != 0 {
			perr.Hint = fmt.Sprintf("XErr=%d", xerr.XErr)
			if hint := XErrHint(xerr.XErr); hint != "" {
				perr.Hint += ": " + hint
			}
		}
		return domain.FederatedToken{}, perr
	}

	var raw xboxTokenResponse
	if err := wire.Decode(resp, op, &raw); err != nil {
		return domain.FederatedToken{}, err
	}
	if raw.Token == "" {
		return domain.FederatedToken{}, wire.MissingField(resp, op, "Token")
	}
	if len(raw.DisplayClaims.Xui) == 0 || raw.DisplayClaims.Xui[0].UserHash == "" {
		return domain.FederatedToken{}, fmt.Errorf("%s: %w", op, domain.ErrMissingClaim)
	}
	return domain.FederatedToken{Token: raw.Token, UserHash: raw.DisplayClaims.Xui[0].UserHash}, nil
}

// IdentityToken formats the composite identity string accepted by the
// resource login endpoint.
func IdentityToken(userHash, xstsToken string) string {
	return fmt.Sprintf("XBL3.0 x=%s;%s", userHash, xstsToken)
}

// LoginWithXbox exchanges the relying-party token for a resource-API token.
func LoginWithXbox(ctx context.Context, client *http.Client, endpoint string, xsts domain.FederatedToken) (*oauth2.Token, error) {
	payload := map[string]string{"identityToken": IdentityToken(xsts.UserHash, xsts.Token)}
	resp, err := wire.PostJSON(ctx, client, domain.OpLogin, endpoint, payload, nil)
	if err != nil {
		return nil, err
	}
	return wire.DecodeToken(resp, domain.OpLogin)
}

// BearerClient returns a client that authenticates every request with tok,
// reusing base's transport and timeout.
func BearerClient(ctx context.Context, base *http.Client, tok *oauth2.Token) *http.Client {
	static := &oauth2.Token{AccessToken: tok.AccessToken, TokenType: "Bearer"}
	c := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, base), oauth2.StaticTokenSource(static))
	c.Timeout = base.Timeout
	return c
}

type entitlementsResponse struct {
	Items []json.RawMessage `json:"items"`
}

// CheckEntitlement verifies that the account owns a license. client must be
// a BearerClient. An empty item list is ErrNoEntitlement.
func CheckEntitlement(ctx context.Context, client *http.Client, endpoint string) error {
	resp, err := wire.Get(ctx, client, domain.OpEntitlement, endpoint)
	if err != nil {
		return err
	}
	var raw entitlementsResponse
	if err := wire.Expect(resp, domain.OpEntitlement, &raw); err != nil {
		return err
	}
	if len(raw.Items) == 0 {
		return domain.ErrNoEntitlement
	}
	return nil
}

type profileResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Skins []struct {
		URL   string `json:"url"`
		State string `json:"state"`
	} `json:"skins"`
}

// FetchProfile reads the game profile. client must be a BearerClient.
// SkinURL is the first skin in state ACTIVE, or empty.
func FetchProfile(ctx context.Context, client *http.Client, endpoint string) (domain.Profile, error) {
	resp, err := wire.Get(ctx, client, domain.OpProfile, endpoint)
	if err != nil {
		return domain.Profile{}, err
	}
	var raw profileResponse
	if err := wire.Expect(resp, domain.OpProfile, &raw); err != nil {
		return domain.Profile{}, err
	}
	if raw.ID == "" {
		return domain.Profile{}, wire.MissingField(resp, domain.OpProfile, "id")
	}

	p := domain.Profile{ID: raw.ID, DisplayName: raw.Name}
	for _, s := range raw.Skins {
		if s.State == "ACTIVE" {
			p.SkinURL = s.URL
			break
		}
	}
	return p, nil
}
