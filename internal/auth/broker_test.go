package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/fieldlogger/evidencedrive/internal/config"
)

// newTokenServer fakes the OAuth token endpoint. handler decides the JSON
// body per grant type.
func newTokenServer(t *testing.T, handler func(grantType string) (int, map[string]any)) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())

		status, body := handler(r.PostForm.Get("grant_type"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		require.NoError(t, json.NewEncoder(w).Encode(body))
	}))
}

func newTestBroker(t *testing.T, srv *httptest.Server, seed string) *Broker {
	t.Helper()

	conf := &oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:  srv.URL + "/auth",
			TokenURL: srv.URL + "/token",
		},
		Scopes: []string{DriveScope},
	}

	b, err := newBroker(conf, filepath.Join(t.TempDir(), "credential.json"), seed, nil)
	require.NoError(t, err)

	return b
}

func TestNew_MissingClientCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.OAuth.ClientID = ""

	_, err := New(cfg, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestAuthorizationURL(t *testing.T) {
	cfg := config.Default()
	cfg.OAuth.ClientID = "client-id"
	cfg.OAuth.ClientSecret = "client-secret"
	cfg.OAuth.CredentialFile = filepath.Join(t.TempDir(), "credential.json")

	b, err := New(cfg, nil)
	require.NoError(t, err)

	u := b.AuthorizationURL()
	assert.Contains(t, u, "client_id=client-id")
	assert.Contains(t, u, "access_type=offline")
	assert.Contains(t, u, "prompt=consent")
}

func TestExchangeCode_Success(t *testing.T) {
	srv := newTokenServer(t, func(grantType string) (int, map[string]any) {
		assert.Equal(t, "authorization_code", grantType)

		return http.StatusOK, map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"token_type":    "Bearer",
			"expires_in":    3600,
		}
	})
	defer srv.Close()

	b := newTestBroker(t, srv, "")

	cred, err := b.ExchangeCode(context.Background(), "the-code")
	require.NoError(t, err)

	assert.Equal(t, "refresh-1", cred.RefreshToken)
	assert.Equal(t, "access-1", cred.AccessToken)

	// Credential must have been persisted.
	saved, err := loadCredential(b.credPath)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "refresh-1", saved.RefreshToken)
}

func TestExchangeCode_MissingRefreshTokenIsFatal(t *testing.T) {
	srv := newTokenServer(t, func(string) (int, map[string]any) {
		return http.StatusOK, map[string]any{
			"access_token": "access-only",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
	})
	defer srv.Close()

	b := newTestBroker(t, srv, "")

	_, err := b.ExchangeCode(context.Background(), "the-code")
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "exchange", authErr.Op)
	assert.Contains(t, authErr.Error(), "no refresh token")
}

func TestExchangeCode_EndpointRejection(t *testing.T) {
	srv := newTokenServer(t, func(string) (int, map[string]any) {
		return http.StatusBadRequest, map[string]any{
			"error":             "invalid_grant",
			"error_description": "Code was already redeemed.",
		}
	})
	defer srv.Close()

	b := newTestBroker(t, srv, "")

	_, err := b.ExchangeCode(context.Background(), "stale-code")
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Error(), "invalid_grant")
}

func TestAccessToken_RefreshKeepsRefreshToken(t *testing.T) {
	// Refresh responses from the endpoint typically omit refresh_token.
	srv := newTokenServer(t, func(grantType string) (int, map[string]any) {
		assert.Equal(t, "refresh_token", grantType)

		return http.StatusOK, map[string]any{
			"access_token": "access-2",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
	})
	defer srv.Close()

	b := newTestBroker(t, srv, "refresh-original")

	access, err := b.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-2", access)

	// Round-trip property: refresh token before == refresh token after.
	assert.Equal(t, "refresh-original", b.RefreshToken())

	saved, err := loadCredential(b.credPath)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "refresh-original", saved.RefreshToken)
}

func TestAccessToken_ServesCachedToken(t *testing.T) {
	calls := 0
	srv := newTokenServer(t, func(string) (int, map[string]any) {
		calls++

		return http.StatusOK, map[string]any{
			"access_token": fmt.Sprintf("access-%d", calls),
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
	})
	defer srv.Close()

	b := newTestBroker(t, srv, "refresh-original")

	first, err := b.AccessToken(context.Background())
	require.NoError(t, err)

	second, err := b.AccessToken(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestAccessToken_ExpiredCacheTriggersRefresh(t *testing.T) {
	srv := newTokenServer(t, func(string) (int, map[string]any) {
		return http.StatusOK, map[string]any{
			"access_token": "access-fresh",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
	})
	defer srv.Close()

	b := newTestBroker(t, srv, "")
	b.cred = &Credential{
		RefreshToken: "refresh-original",
		AccessToken:  "access-stale",
		Expiry:       time.Now().Add(-time.Minute),
	}

	access, err := b.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-fresh", access)
}

func TestAccessToken_NoRefreshToken(t *testing.T) {
	srv := newTokenServer(t, func(string) (int, map[string]any) {
		t.Fatal("token endpoint must not be called")
		return 0, nil
	})
	defer srv.Close()

	b := newTestBroker(t, srv, "")

	_, err := b.AccessToken(context.Background())
	assert.ErrorIs(t, err, ErrNoRefreshToken)
}

func TestCredentialFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credential.json")

	cred := &Credential{
		RefreshToken: "refresh-x",
		AccessToken:  "access-x",
		Expiry:       time.Now().Add(time.Hour).UTC().Truncate(time.Second),
	}

	require.NoError(t, saveCredential(path, cred))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(filePerms), info.Mode().Perm())

	loaded, err := loadCredential(path)
	require.NoError(t, err)
	assert.Equal(t, cred.RefreshToken, loaded.RefreshToken)
	assert.Equal(t, cred.AccessToken, loaded.AccessToken)
	assert.True(t, cred.Expiry.Equal(loaded.Expiry))
}

func TestLoadCredential_Missing(t *testing.T) {
	cred, err := loadCredential(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestLoadCredential_NoRefreshToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"access_token":"a"}`), 0o600))

	_, err := loadCredential(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no refresh token")
}
