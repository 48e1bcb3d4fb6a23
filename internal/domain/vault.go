package domain

// SecretKey identifies the single durable secret of an installation.
// The triple must stay stable across upgrades.
type SecretKey struct {
	Service string
	Account string
	Target  string
}

// DefaultSecretKey is the key the launcher has always used.
var DefaultSecretKey = SecretKey{Service: "ks", Account: "ksrefresh", Target: "ksmain"}

// SecretVault is the port to the store holding the refresh token.
// Get returns ErrNotFound when nothing is stored. Delete of an absent
// secret succeeds.
type SecretVault interface {
	Get() (string, error)
	Set(secret string) error
	Delete() error
}
