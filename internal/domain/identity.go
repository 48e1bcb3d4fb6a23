package domain

// Operation names used as the Op field of wire errors, one per endpoint.
const (
	OpDeviceCode  = "device code"
	OpDevicePoll  = "token exchange"
	OpRefresh     = "ms refresh"
	OpXBL         = "xbl auth"
	OpXSTS        = "xsts auth"
	OpLogin       = "mc login"
	OpEntitlement = "entitlements"
	OpProfile     = "profile"
)

// DeviceAuthorization is the provider's answer to a device-code request.
// Interval is already normalized to MinPollInterval.
type DeviceAuthorization struct {
	UserCode        string `json:"user_code"`
	DeviceCode      string `json:"device_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"` // seconds until the device code expires
	Interval        int    `json:"interval"`   // minimum polling interval in seconds
	Message         string `json:"message"`
}

// MinPollInterval is the polling interval floor in seconds.
const MinPollInterval = 3

// FederatedToken is the output of a broker hop: a token and its user hash.
type FederatedToken struct {
	Token    string
	UserHash string
}

// Profile is the game profile returned to hosts. It never carries tokens.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
	SkinURL     string `json:"skin_url,omitempty"`
}

// HasSkin reports whether the profile has an active skin.
func (p Profile) HasSkin() bool {
	return p.SkinURL != ""
}
