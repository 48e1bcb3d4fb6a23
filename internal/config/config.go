// Package config loads the kashir TOML configuration file and applies
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/djinn/kashir/internal/domain"
	"github.com/djinn/kashir/internal/federation"
	"github.com/djinn/kashir/internal/logging"
	"github.com/djinn/kashir/internal/vault"
)

// DefaultClientID is the public client registered for Xbox Live sign-in.
const DefaultClientID = "e5a244a8-3f50-41fb-b4fb-5b58bf356f5e"

const defaultPollTimeoutSecs = 900

// MicrosoftConfig holds the identity provider settings.
type MicrosoftConfig struct {
	ClientID      string   `toml:"client_id"`
	Scopes        []string `toml:"scopes"`
	Market        string   `toml:"market"`
	DeviceCodeURL string   `toml:"device_code_url"`
	TokenURL      string   `toml:"token_url"`
}

// XboxConfig holds the Xbox broker endpoints.
type XboxConfig struct {
	UserAuthURL  string `toml:"user_auth_url"`
	XSTSURL      string `toml:"xsts_url"`
	RelyingParty string `toml:"relying_party"`
	SandboxID    string `toml:"sandbox_id"`
}

// MinecraftConfig holds the game service endpoints.
type MinecraftConfig struct {
	LoginURL        string `toml:"login_url"`
	EntitlementsURL string `toml:"entitlements_url"`
	ProfileURL      string `toml:"profile_url"`
}

// VaultConfig selects where the refresh token is stored.
type VaultConfig struct {
	Service string `toml:"service"`
	Account string `toml:"account"`
	Target  string `toml:"target"`
	Dir     string `toml:"dir"`
	Backend string `toml:"backend"`
}

// PollConfig bounds the device-code polling loop.
type PollConfig struct {
	TimeoutSecs int `toml:"timeout_secs"`
}

// Config holds all kashir configuration.
type Config struct {
	LogLevel  string          `toml:"log_level"`
	Microsoft MicrosoftConfig `toml:"microsoft"`
	Xbox      XboxConfig      `toml:"xbox"`
	Minecraft MinecraftConfig `toml:"minecraft"`
	Vault     VaultConfig     `toml:"vault"`
	Poll      PollConfig      `toml:"poll"`
}

// Defaults returns the production configuration.
func Defaults() Config {
	ms := microsoft.AzureADEndpoint("consumers")
	fed := federation.DefaultEndpoints()
	key := domain.DefaultSecretKey
	return Config{
		LogLevel: "info",
		Microsoft: MicrosoftConfig{
			ClientID:      DefaultClientID,
			Scopes:        []string{"XboxLive.signin", "offline_access"},
			Market:        "fr-FR",
			DeviceCodeURL: ms.DeviceAuthURL,
			TokenURL:      ms.TokenURL,
		},
		Xbox: XboxConfig{
			UserAuthURL:  fed.XBLAuthURL,
			XSTSURL:      fed.XSTSURL,
			RelyingParty: fed.RelyingParty,
			SandboxID:    fed.SandboxID,
		},
		Minecraft: MinecraftConfig{
			LoginURL:        fed.LoginURL,
			EntitlementsURL: fed.EntitlementsURL,
			ProfileURL:      fed.ProfileURL,
		},
		Vault: VaultConfig{
			Service: key.Service,
			Account: key.Account,
			Target:  key.Target,
			Dir:     DefaultDir(),
			Backend: vault.BackendAuto,
		},
		Poll: PollConfig{TimeoutSecs: defaultPollTimeoutSecs},
	}
}

// LoadFrom reads configuration from the given TOML file path on top of
// Defaults. If the file does not exist, the defaults are returned.
// Environment variables always take precedence over file values:
//   - KASHIR_CLIENT_ID     overrides microsoft.client_id
//   - KASHIR_LOG_LEVEL     overrides log_level
//   - KASHIR_VAULT_DIR     overrides vault.dir
//   - KASHIR_VAULT_BACKEND overrides vault.backend
func LoadFrom(path string) (Config, error) {
	cfg := Defaults()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// DefaultDir returns the kashir application directory.
func DefaultDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "kashir")
}

// DefaultConfigPath returns the default path for the kashir config file.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDir(), "config.toml")
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KASHIR_CLIENT_ID"); v != "" {
		cfg.Microsoft.ClientID = v
	}
	if v := os.Getenv("KASHIR_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("KASHIR_VAULT_DIR"); v != "" {
		cfg.Vault.Dir = v
	}
	if v := os.Getenv("KASHIR_VAULT_BACKEND"); v != "" {
		cfg.Vault.Backend = v
	}
}

// Validate reports every setting that cannot work.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Microsoft.ClientID) == "" {
		errs = append(errs, errors.New("microsoft.client_id is empty"))
	}
	if c.Poll.TimeoutSecs <= 0 {
		errs = append(errs, fmt.Errorf("poll.timeout_secs must be positive, got %d", c.Poll.TimeoutSecs))
	}
	switch c.Vault.Backend {
	case "", vault.BackendAuto, vault.BackendKeyring, vault.BackendFile:
	default:
		errs = append(errs, fmt.Errorf("unknown vault.backend %q", c.Vault.Backend))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// OAuth2Config returns the identity provider client description.
func (c Config) OAuth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID: c.Microsoft.ClientID,
		Scopes:   append([]string(nil), c.Microsoft.Scopes...),
		Endpoint: oauth2.Endpoint{
			DeviceAuthURL: c.Microsoft.DeviceCodeURL,
			TokenURL:      c.Microsoft.TokenURL,
			AuthStyle:     oauth2.AuthStyleInParams,
		},
	}
}

// Endpoints returns the federation endpoints.
func (c Config) Endpoints() federation.Endpoints {
	return federation.Endpoints{
		XBLAuthURL:      c.Xbox.UserAuthURL,
		XSTSURL:         c.Xbox.XSTSURL,
		RelyingParty:    c.Xbox.RelyingParty,
		SandboxID:       c.Xbox.SandboxID,
		LoginURL:        c.Minecraft.LoginURL,
		EntitlementsURL: c.Minecraft.EntitlementsURL,
		ProfileURL:      c.Minecraft.ProfileURL,
	}
}

// SecretKey returns the vault key.
func (c Config) SecretKey() domain.SecretKey {
	return domain.SecretKey{Service: c.Vault.Service, Account: c.Vault.Account, Target: c.Vault.Target}
}

// PollTimeout returns the polling budget.
func (c Config) PollTimeout() time.Duration {
	return time.Duration(c.Poll.TimeoutSecs) * time.Second
}

// Save writes cfg to the given TOML file path, creating parent directories as needed.
// Existing file contents are overwritten. Permissions on the written file are 0600.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	if encErr := toml.NewEncoder(f).Encode(cfg); encErr != nil {
		f.Close()
		return encErr
	}
	return f.Close()
}
