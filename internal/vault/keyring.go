package vault

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/zalando/go-keyring"

	"github.com/djinn/kashir/internal/domain"
	"github.com/djinn/kashir/internal/logging"
)

// KeyringVault stores the secret in the platform credential manager under
// (key.Service, key.Account).
type KeyringVault struct {
	key domain.SecretKey
	log *slog.Logger
	mu  sync.Mutex
}

// NewKeyringVault creates a keyring-backed vault.
func NewKeyringVault(key domain.SecretKey, log *slog.Logger) *KeyringVault {
	return &KeyringVault{key: key, log: logging.For(log, "vault")}
}

func (k *KeyringVault) Get() (string, error) {
	secret, err := keyring.Get(k.key.Service, k.key.Account)
	if errors.Is(err, keyring.ErrNotFound) {
		k.log.Debug("keyring entry not found", "service", k.key.Service, "account", k.key.Account)
		return "", domain.ErrNotFound
	}
	if err != nil {
		k.log.Warn("keyring read failed", "service", k.key.Service, "error", err)
		return "", &domain.StorageError{Op: "get", Err: err}
	}
	k.log.Debug("keyring read", "secret", logging.Mask(secret))
	return secret, nil
}

// Set replaces the stored secret, then reads it back. A failed read-back
// is logged only.
func (k *KeyringVault) Set(secret string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.log.Info("keyring write", "service", k.key.Service, "account", k.key.Account, "secret", logging.Mask(secret))
	if err := keyring.Set(k.key.Service, k.key.Account, secret); err != nil {
		k.log.Warn("keyring write failed", "error", err)
		return &domain.StorageError{Op: "set", Err: err}
	}

	back, err := keyring.Get(k.key.Service, k.key.Account)
	switch {
	case err != nil:
		k.log.Warn("keyring read-back failed", "error", err)
	case back != secret:
		k.log.Warn("keyring read-back differs", "secret", logging.Mask(back))
	default:
		k.log.Debug("keyring read-back ok", "secret", logging.Mask(back))
	}
	return nil
}

// Delete removes the entry. A missing entry is not an error.
func (k *KeyringVault) Delete() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	err := keyring.Delete(k.key.Service, k.key.Account)
	if errors.Is(err, keyring.ErrNotFound) {
		k.log.Debug("keyring delete: no entry")
		return nil
	}
	if err != nil {
		return &domain.StorageError{Op: "delete", Err: err}
	}
	k.log.Info("keyring entry deleted")
	return nil
}
