package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djinn/kashir/internal/domain"
	"github.com/djinn/kashir/internal/logging"
	"github.com/djinn/kashir/internal/vault"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newFakeServices(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/devicecode", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "fr-FR", r.URL.Query().Get("mkt"))
		writeJSON(w, map[string]any{
			"user_code": "ABCD-1234", "device_code": "dev123", "expires_in": 900, "interval": 5,
			"verification_uri": "https://example/device", "message": "Enter ABCD-1234",
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"access_token": "a", "refresh_token": "refresh-from-login", "token_type": "Bearer"})
	})
	xbox := func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"Token": "t", "DisplayClaims": map[string]any{"xui": []map[string]string{{"uhs": "u"}}}})
	}
	mux.HandleFunc("/xbl", xbox)
	mux.HandleFunc("/xsts", xbox)
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"access_token": "game", "token_type": "Bearer"})
	})
	mux.HandleFunc("/entitlements", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"items": []any{map[string]string{"name": "game_minecraft"}}})
	})
	mux.HandleFunc("/profile", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": "id-1", "name": "Alex", "skins": []map[string]string{{"url": "http://skin", "state": "ACTIVE"}}})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// testEnv writes a config file pointing at server with a file vault in a
// temp directory.
func testEnv(t *testing.T, server *httptest.Server) (configPath, vaultDir string) {
	t.Helper()
	dir := t.TempDir()
	vaultDir = filepath.Join(dir, "vault")
	configPath = filepath.Join(dir, "config.toml")
	u := server.URL
	content := fmt.Sprintf(`
log_level = "error"

[microsoft]
client_id = "test_client_id"
scopes = ["XboxLive.signin", "offline_access"]
market = "fr-FR"
device_code_url = "%[1]s/devicecode"
token_url = "%[1]s/token"

[xbox]
user_auth_url = "%[1]s/xbl"
xsts_url = "%[1]s/xsts"
relying_party = "rp://api.minecraftservices.com/"
sandbox_id = "RETAIL"

[minecraft]
login_url = "%[1]s/login"
entitlements_url = "%[1]s/entitlements"
profile_url = "%[1]s/profile"

[vault]
service = "ks"
account = "ksrefresh"
target = "ksmain"
backend = "file"
dir = %[2]q

[poll]
timeout_secs = 60
`, u, vaultDir)
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))
	return configPath, vaultDir
}

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(context.Background(), newApp(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestVersion(t *testing.T) {
	code, out, _ := runCLI(t, "version")
	assert.Equal(t, ExitCodeSuccess, code)
	assert.Equal(t, "kashir version dev\n", out)
}

func TestLoginStatusProfileLogout(t *testing.T) {
	server := newFakeServices(t)
	cfgPath, _ := testEnv(t, server)

	code, out, _ := runCLI(t, "--config", cfgPath, "status")
	require.Equal(t, ExitCodeSuccess, code)
	assert.Equal(t, "not connected\n", out)

	code, out, errOut := runCLI(t, "--config", cfgPath, "login", "--no-tui")
	require.Equal(t, ExitCodeSuccess, code, errOut)
	assert.Contains(t, errOut, "Enter code: ABCD-1234")
	assert.Contains(t, errOut, "https://example/device")
	assert.Contains(t, out, "name: Alex")
	assert.NotContains(t, out+errOut, "refresh-from-login")

	code, out, _ = runCLI(t, "--config", cfgPath, "status")
	require.Equal(t, ExitCodeSuccess, code)
	assert.Equal(t, "connected\n", out)

	code, out, _ = runCLI(t, "--config", cfgPath, "profile", "--json")
	require.Equal(t, ExitCodeSuccess, code)
	var p domain.Profile
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, domain.Profile{ID: "id-1", DisplayName: "Alex", SkinURL: "http://skin"}, p)

	code, out, _ = runCLI(t, "--config", cfgPath, "logout")
	require.Equal(t, ExitCodeSuccess, code)
	assert.Equal(t, "signed out\n", out)

	code, out, _ = runCLI(t, "--config", cfgPath, "status")
	require.Equal(t, ExitCodeSuccess, code)
	assert.Equal(t, "not connected\n", out)
}

func TestProfile_NotSignedIn(t *testing.T) {
	server := newFakeServices(t)
	cfgPath, _ := testEnv(t, server)

	code, out, errOut := runCLI(t, "--config", cfgPath, "profile")

	assert.Equal(t, ExitCodeAuthRequired, code)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "run `kashir login`")
}

func TestProfile_UsesStoredSecret(t *testing.T) {
	server := newFakeServices(t)
	cfgPath, vaultDir := testEnv(t, server)
	v := vault.NewFileVault(vaultDir, domain.DefaultSecretKey, logging.Discard())
	require.NoError(t, v.Set("previously-stored"))

	code, out, _ := runCLI(t, "--config", cfgPath, "profile")

	assert.Equal(t, ExitCodeSuccess, code)
	assert.Contains(t, out, "skin: http://skin")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kashir", "config.toml")

	code, out, _ := runCLI(t, "--config", path, "config", "init")
	require.Equal(t, ExitCodeSuccess, code)
	assert.Contains(t, out, path)

	code, _, errOut := runCLI(t, "--config", path, "config", "init")
	assert.Equal(t, ExitCodeError, code)
	assert.Contains(t, errOut, "already exists")

	code, _, _ = runCLI(t, "--config", path, "config", "init", "--force")
	assert.Equal(t, ExitCodeSuccess, code)

	code, out, _ = runCLI(t, "--config", path, "config", "show")
	require.Equal(t, ExitCodeSuccess, code)
	assert.True(t, strings.Contains(out, `client_id = "e5a244a8-3f50-41fb-b4fb-5b58bf356f5e"`), out)
}

func TestInvalidConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[vault]\nbackend = \"stronghold\"\n"), 0600))

	code, _, errOut := runCLI(t, "--config", path, "status")

	assert.Equal(t, ExitCodeError, code)
	assert.Contains(t, errOut, "stronghold")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitCodeSuccess},
		{"missing credential", domain.ErrMissingCredential, ExitCodeAuthRequired},
		{"expired", fmt.Errorf("login: %w", domain.ErrExpired), ExitCodeAuthRequired},
		{"invalid grant", &domain.ProtocolError{Op: domain.OpRefresh, Status: 400, Body: `{"error":"invalid_grant"}`}, ExitCodeAuthRequired},
		{"no license", domain.ErrNoEntitlement, ExitCodeNoLicense},
		{"network", &domain.NetworkError{Op: domain.OpXBL, Err: errors.New("reset")}, ExitCodeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
