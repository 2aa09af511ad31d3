package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/munchify/internal/failure"
)

func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"tok","username":"ada"}`))
	})
	mux.HandleFunc("GET /orders", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"msg":"Missing Authorization Header"}`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	e := &env{}
	defer e.close()

	root := newRoot(e)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	return filepath.Join(dir, "session.yaml")
}

func TestLoadConfig_Env(t *testing.T) {
	isolate(t)
	t.Setenv("MUNCH_API_URL", "https://api.example.com")
	t.Setenv("MUNCH_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.APIURL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.NotZero(t, cfg.Timeout)
}

func TestMenu(t *testing.T) {
	state := isolate(t)

	out, err := execute(t, "--state-file", state, "menu", "Salad")
	require.NoError(t, err)
	assert.Contains(t, out, "Greek salad")
	assert.NotContains(t, out, "Rolls")
}

func TestLoginOrdersLogout(t *testing.T) {
	state := isolate(t)
	srv := fakeBackend(t)
	flags := []string{"--api-url", srv.URL, "--state-file", state}

	out, err := execute(t, append(flags, "orders")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Please log in to view your orders.")

	out, err = execute(t, append(flags, "login", "ada@example.com", "secret1")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Welcome, ada!")

	data, err := os.ReadFile(state)
	require.NoError(t, err)
	assert.Contains(t, string(data), "tok")

	out, err = execute(t, append(flags, "whoami")...)
	require.NoError(t, err)
	assert.Equal(t, "ada\n", out)

	out, err = execute(t, append(flags, "orders")...)
	require.NoError(t, err)
	assert.Contains(t, out, "You have no past orders.")

	_, err = execute(t, append(flags, "logout")...)
	require.NoError(t, err)

	_, err = execute(t, append(flags, "whoami")...)
	var cmdErr *commandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "Please log in to continue.", failure.Message(cmdErr.err))
}

func TestInvalidLogLevel(t *testing.T) {
	state := isolate(t)
	_, err := execute(t, "--state-file", state, "--log-level", "loud", "menu")
	require.Error(t, err)
}

func TestAccountDeleteNeedsConfirmation(t *testing.T) {
	state := isolate(t)
	out, err := execute(t, "--state-file", state, "account", "delete")
	require.NoError(t, err)
	assert.Contains(t, out, "--yes")
}
