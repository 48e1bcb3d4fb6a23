// Package vault stores the single durable refresh token of an installation.
//
// KeyringVault uses the platform credential manager (Windows Credential
// Manager, macOS Keychain, Secret Service on Linux). FileVault keeps the
// secret in a 0600 file in the application directory. FallbackVault combines
// them: native store first, file when the native store rejects a write.
// Every implementation serializes its writes.
package vault

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/djinn/kashir/internal/domain"
	"github.com/djinn/kashir/internal/logging"
)

// Backend names accepted by Open.
const (
	BackendAuto    = "auto"
	BackendKeyring = "keyring"
	BackendFile    = "file"
)

// Open builds the vault for the configured backend. dir is the
// application-private directory used by the file store.
func Open(backend string, key domain.SecretKey, dir string, log *slog.Logger) (domain.SecretVault, error) {
	log = logging.For(log, "vault")
	switch backend {
	case "", BackendAuto:
		return NewFallbackVault(NewKeyringVault(key, log), NewFileVault(dir, key, log), log), nil
	case BackendKeyring:
		return NewKeyringVault(key, log), nil
	case BackendFile:
		return NewFileVault(dir, key, log), nil
	default:
		return nil, fmt.Errorf("unknown vault backend %q", backend)
	}
}

// MemoryVault keeps the secret in memory. It is used in tests and by hosts
// that must not persist anything.
type MemoryVault struct {
	mu     sync.RWMutex
	secret string
	set    bool
}

// NewMemoryVault creates an empty in-memory vault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{}
}

func (m *MemoryVault) Get() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.set {
		return "", domain.ErrNotFound
	}
	return m.secret, nil
}

func (m *MemoryVault) Set(secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secret, m.set = secret, true
	return nil
}

func (m *MemoryVault) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secret, m.set = "", false
	return nil
}
