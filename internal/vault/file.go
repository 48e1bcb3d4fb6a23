package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/djinn/kashir/internal/domain"
	"github.com/djinn/kashir/internal/logging"
)

// FileVault stores the secret in <dir>/<key.Target>.secret with 0600
// permissions. Writes go through a temp file and a rename so a reader never
// sees a partial secret.
type FileVault struct {
	path string
	log  *slog.Logger
	mu   sync.RWMutex
}

// NewFileVault creates a file-backed vault inside dir.
func NewFileVault(dir string, key domain.SecretKey, log *slog.Logger) *FileVault {
	return &FileVault{
		path: filepath.Join(dir, key.Target+".secret"),
		log:  logging.For(log, "vault"),
	}
}

// Path returns the secret file location.
func (f *FileVault) Path() string {
	return f.path
}

func (f *FileVault) Get() (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	content, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", &domain.StorageError{Op: "get", Err: err}
	}
	if len(content) == 0 {
		return "", domain.ErrNotFound
	}
	return string(content), nil
}

func (f *FileVault) Set(secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.write(secret); err != nil {
		f.log.Warn("secret file write failed", "path", f.path, "error", err)
		return &domain.StorageError{Op: "set", Err: err}
	}
	f.log.Info("secret file written", "path", f.path, "secret", logging.Mask(secret))
	return nil
}

func (f *FileVault) write(secret string) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".secret-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("setting permissions: %w", err)
	}
	if _, err := tmp.WriteString(secret); err != nil {
		tmp.Close()
		return fmt.Errorf("writing secret: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing secret: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	return os.Rename(tmpName, f.path)
}

// Delete removes the file. A missing file is not an error.
func (f *FileVault) Delete() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &domain.StorageError{Op: "delete", Err: err}
	}
	return nil
}
