package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/djinn/kashir/internal/config"
)

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	content := `
log_level = "debug"

[microsoft]
client_id = "my-client"
market = "en-US"

[vault]
backend = "file"
dir = "/var/lib/kashir"

[poll]
timeout_secs = 120
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Microsoft.ClientID != "my-client" {
		t.Errorf("expected client id 'my-client', got '%s'", cfg.Microsoft.ClientID)
	}
	if cfg.Microsoft.Market != "en-US" {
		t.Errorf("expected market 'en-US', got '%s'", cfg.Microsoft.Market)
	}
	if cfg.Vault.Backend != "file" || cfg.Vault.Dir != "/var/lib/kashir" {
		t.Errorf("unexpected vault config %+v", cfg.Vault)
	}
	if cfg.PollTimeout().Seconds() != 120 {
		t.Errorf("expected 120s poll timeout, got %s", cfg.PollTimeout())
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got '%s'", cfg.LogLevel)
	}
	// Unset keys keep their defaults.
	if cfg.Vault.Service != "ks" || cfg.Vault.Target != "ksmain" {
		t.Errorf("expected default vault key, got %+v", cfg.Vault)
	}
	if len(cfg.Microsoft.Scopes) != 2 {
		t.Errorf("expected default scopes, got %v", cfg.Microsoft.Scopes)
	}
}

func TestLoad_EnvVarsTakePrecedence(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	content := `
log_level = "warn"

[microsoft]
client_id = "from-file"

[vault]
backend = "keyring"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("KASHIR_CLIENT_ID", "from-env")
	t.Setenv("KASHIR_LOG_LEVEL", "error")
	t.Setenv("KASHIR_VAULT_DIR", "/tmp/kashir-env")
	t.Setenv("KASHIR_VAULT_BACKEND", "file")

	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Microsoft.ClientID != "from-env" {
		t.Errorf("expected env client id 'from-env', got '%s'", cfg.Microsoft.ClientID)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("expected env log level 'error', got '%s'", cfg.LogLevel)
	}
	if cfg.Vault.Dir != "/tmp/kashir-env" {
		t.Errorf("expected env vault dir, got '%s'", cfg.Vault.Dir)
	}
	if cfg.Vault.Backend != "file" {
		t.Errorf("expected env backend 'file', got '%s'", cfg.Vault.Backend)
	}
}

func TestLoad_MissingFileIsNotError(t *testing.T) {
	t.Setenv("KASHIR_CLIENT_ID", "only-env")
	cfg, err := config.LoadFrom("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("missing file should not be an error, got: %v", err)
	}
	if cfg.Microsoft.ClientID != "only-env" {
		t.Errorf("expected client id from env, got '%s'", cfg.Microsoft.ClientID)
	}
	if cfg.Poll.TimeoutSecs != 900 {
		t.Errorf("expected default timeout 900, got %d", cfg.Poll.TimeoutSecs)
	}
}

func TestLoad_MalformedFileIsError(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[microsoft\nclient_id = "), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := config.LoadFrom(configPath); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestDefaults(t *testing.T) {
	cfg := config.Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate, got %v", err)
	}

	oauth := cfg.OAuth2Config()
	if !strings.HasSuffix(oauth.Endpoint.DeviceAuthURL, "/consumers/oauth2/v2.0/devicecode") {
		t.Errorf("unexpected device code url %q", oauth.Endpoint.DeviceAuthURL)
	}
	if !strings.HasSuffix(oauth.Endpoint.TokenURL, "/consumers/oauth2/v2.0/token") {
		t.Errorf("unexpected token url %q", oauth.Endpoint.TokenURL)
	}
	if strings.Join(oauth.Scopes, " ") != "XboxLive.signin offline_access" {
		t.Errorf("unexpected scopes %v", oauth.Scopes)
	}
	if cfg.Endpoints().RelyingParty != "rp://api.minecraftservices.com/" {
		t.Errorf("unexpected relying party %q", cfg.Endpoints().RelyingParty)
	}
	key := cfg.SecretKey()
	if key.Service != "ks" || key.Account != "ksrefresh" || key.Target != "ksmain" {
		t.Errorf("unexpected secret key %+v", key)
	}
}

func TestValidate_RejectsBadSettings(t *testing.T) {
	cfg := config.Defaults()
	cfg.Microsoft.ClientID = " "
	cfg.Poll.TimeoutSecs = 0
	cfg.Vault.Backend = "stronghold"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"client_id", "timeout_secs", "stronghold"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %q, got %v", want, err)
		}
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := config.Defaults()
	cfg.Microsoft.Market = "de-DE"

	if err := config.Save(path, cfg); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded, err := config.LoadFrom(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Microsoft.Market != "de-DE" {
		t.Errorf("expected market 'de-DE', got '%s'", loaded.Microsoft.Market)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("expected 0600, got %o", info.Mode().Perm())
		}
	}
}
