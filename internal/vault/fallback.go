package vault

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/djinn/kashir/internal/domain"
	"github.com/djinn/kashir/internal/logging"
)

// FallbackVault prefers a native store and falls back to a second store
// when the native one rejects a write. At most one of them holds the
// secret after a successful Set.
type FallbackVault struct {
	primary  domain.SecretVault
	fallback domain.SecretVault
	log      *slog.Logger
	mu       sync.Mutex
}

// NewFallbackVault combines primary (native) and fallback (file) stores.
func NewFallbackVault(primary, fallback domain.SecretVault, log *slog.Logger) *FallbackVault {
	return &FallbackVault{primary: primary, fallback: fallback, log: logging.For(log, "vault")}
}

// Get reads the native store first, then the fallback. A secret found in
// neither reachable store is ErrNotFound.
func (v *FallbackVault) Get() (string, error) {
	secret, perr := v.primary.Get()
	if perr == nil {
		return secret, nil
	}
	if !errors.Is(perr, domain.ErrNotFound) {
		v.log.Warn("native store unavailable, reading fallback", "error", perr)
	}

	return v.fallback.Get()
}

// Set writes the native store, removing any stale fallback copy. If the
// native store rejects the write, its old secret is cleared and the new one
// goes to the fallback. Set fails when an old native secret would still
// shadow the fallback.
func (v *FallbackVault) Set(secret string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.primary.Set(secret); err != nil {
		v.log.Warn("native store rejected write, using fallback", "error", err)
		if derr := v.primary.Delete(); derr != nil {
			if _, gerr := v.primary.Get(); gerr == nil {
				return &domain.StorageError{Op: "set", Err: fmt.Errorf("clearing stale native secret: %w", derr)}
			}
			v.log.Warn("native store delete failed", "error", derr)
		}
		return v.fallback.Set(secret)
	}
	if err := v.fallback.Delete(); err != nil {
		v.log.Warn("could not remove stale fallback secret", "error", err)
	}
	return nil
}

// Delete removes the secret from both stores.
func (v *FallbackVault) Delete() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	ferr := v.fallback.Delete()
	if perr := v.primary.Delete(); perr != nil {
		// An unreachable native store cannot be holding a readable secret.
		if _, gerr := v.primary.Get(); gerr == nil {
			return perr
		}
		v.log.Warn("native store delete failed", "error", perr)
	}
	return ferr
}
