package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakePrompter struct {
	code  string
	err   error
	calls int
	url   string
}

func (f *fakePrompter) AuthCode(_ context.Context, url string) (string, error) {
	f.calls++
	f.url = url
	return f.code, f.err
}

func writeSecrets(t *testing.T, tokenURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.json")
	body := fmt.Sprintf(`{"installed":{"client_id":"cid","client_secret":"secret",`+
		`"redirect_uris":["http://localhost"],"auth_uri":"https://accounts.example.com/auth","token_uri":%q}}`, tokenURL)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func newTokenServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh","token_type":"Bearer","expires_in":3600,"refresh_token":"r1"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newAPIServer(t *testing.T, seen *atomic.Value) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestInstalledFlowExchangesAndCaches(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	tokenSrv := newTokenServer(t, &hits)
	var seen atomic.Value
	apiSrv := newAPIServer(t, &seen)

	tokenFile := filepath.Join(t.TempDir(), "cache", "webmaster_credentials.dat")
	prompt := &fakePrompter{code: "the-code"}
	cfg := Config{
		Mode:        ModeInstalled,
		SecretsFile: writeSecrets(t, tokenSrv.URL),
		TokenFile:   tokenFile,
		Scopes:      []string{"https://www.googleapis.com/auth/webmasters.readonly"},
	}

	client, err := NewHTTPClient(context.Background(), cfg, prompt, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, prompt.calls)
	assert.Contains(t, prompt.url, "access_type=offline")
	assert.Equal(t, int32(1), hits.Load())

	resp, err := client.Get(apiSrv.URL)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, "Bearer fresh", seen.Load())

	cached, err := LoadToken(tokenFile)
	require.NoError(t, err)
	assert.Equal(t, "fresh", cached.AccessToken)
	info, err := os.Stat(tokenFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestInstalledFlowReusesCachedToken(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	tokenSrv := newTokenServer(t, &hits)
	var seen atomic.Value
	apiSrv := newAPIServer(t, &seen)

	tokenFile := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, SaveToken(tokenFile, &oauth2.Token{
		AccessToken: "cached",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}))

	prompt := &fakePrompter{err: errors.New("should not prompt")}
	client, err := NewHTTPClient(context.Background(), Config{
		Mode:        ModeInstalled,
		SecretsFile: writeSecrets(t, tokenSrv.URL),
		TokenFile:   tokenFile,
	}, prompt, nil)
	require.NoError(t, err)

	resp, err := client.Get(apiSrv.URL)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Equal(t, 0, prompt.calls)
	assert.Equal(t, int32(0), hits.Load())
	assert.Equal(t, "Bearer cached", seen.Load())
}

func TestInstalledFlowErrors(t *testing.T) {
	t.Parallel()

	_, err := NewHTTPClient(context.Background(), Config{
		Mode:        ModeInstalled,
		SecretsFile: filepath.Join(t.TempDir(), "missing.json"),
	}, &fakePrompter{}, nil)
	require.ErrorIs(t, err, os.ErrNotExist)

	secrets := writeSecrets(t, "http://127.0.0.1:0/token")
	_, err = NewHTTPClient(context.Background(), Config{
		SecretsFile: secrets,
		TokenFile:   filepath.Join(t.TempDir(), "token.json"),
	}, &fakePrompter{err: errors.New("operator gave up")}, nil)
	require.EqualError(t, err, "operator gave up")

	_, err = NewHTTPClient(context.Background(), Config{
		SecretsFile: secrets,
		TokenFile:   filepath.Join(t.TempDir(), "token.json"),
	}, nil, nil)
	require.Error(t, err)

	_, err = NewHTTPClient(context.Background(), Config{Mode: "service-account"}, nil, nil)
	require.Error(t, err)
}

func TestLoadTokenCorrupt(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err := LoadToken(path)
	require.Error(t, err)
	assert.NotErrorIs(t, err, os.ErrNotExist)
}

func TestStdioPrompter(t *testing.T) {
	t.Parallel()

	var out strings.Builder
	code, err := StdioPrompter{In: strings.NewReader("  4/abc \n"), Out: &out}.AuthCode(context.Background(), "https://consent")
	require.NoError(t, err)
	assert.Equal(t, "4/abc", code)
	assert.Contains(t, out.String(), "https://consent")

	_, err = StdioPrompter{In: strings.NewReader("\n"), Out: &out}.AuthCode(context.Background(), "u")
	assert.Error(t, err)
}
