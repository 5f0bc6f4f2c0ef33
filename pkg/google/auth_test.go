package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klokku/calwindow/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type tokenServer struct {
	*httptest.Server
	codes  []string
	grants []string
}

func newTokenServer(t *testing.T, accessToken string) *tokenServer {
	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		ts.codes = append(ts.codes, r.PostForm.Get("code"))
		ts.grants = append(ts.grants, r.PostForm.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  accessToken,
			"refresh_token": "refresh-token",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func setupAuth(t *testing.T, tokenUrl string) (*Auth, *FileTokenStore) {
	store := NewFileTokenStore(filepath.Join(t.TempDir(), "token.json"))
	cfg := config.Application{
		Host:   "http://localhost:8181",
		Google: config.Google{ClientId: "client-id", ClientSecret: "client-secret"},
	}
	auth := NewAuth(store, cfg)
	auth.oauthConfig.Endpoint = oauth2.Endpoint{
		AuthURL:   "https://accounts.example.com/auth",
		TokenURL:  tokenUrl,
		AuthStyle: oauth2.AuthStyleInParams,
	}
	return auth, store
}

func stateOf(t *testing.T, loginUrl string) string {
	parsed, err := url.Parse(loginUrl)
	require.NoError(t, err)
	return parsed.Query().Get("state")
}

func TestAuth_LoginURL(t *testing.T) {
	auth, _ := setupAuth(t, "http://unused")

	loginUrl := auth.LoginURL()

	parsed, err := url.Parse(loginUrl)
	require.NoError(t, err)
	query := parsed.Query()
	assert.Equal(t, "client-id", query.Get("client_id"))
	assert.Equal(t, "http://localhost:8181/api/integrations/google/auth/callback", query.Get("redirect_uri"))
	assert.Equal(t, "offline", query.Get("access_type"))
	assert.Contains(t, query.Get("scope"), "calendar.readonly")
	assert.NotEmpty(t, query.Get("state"))
	assert.NotEqual(t, query.Get("state"), stateOf(t, auth.LoginURL()))
}

func TestAuth_Exchange(t *testing.T) {
	ctx := context.Background()

	t.Run("should store token for known state", func(t *testing.T) {
		server := newTokenServer(t, "access-token")
		auth, store := setupAuth(t, server.URL)
		state := stateOf(t, auth.LoginURL())

		err := auth.Exchange(ctx, state, "auth-code")

		require.NoError(t, err)
		assert.Equal(t, []string{"auth-code"}, server.codes)
		token, err := store.Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, token)
		assert.Equal(t, "access-token", token.AccessToken)
		assert.Equal(t, "refresh-token", token.RefreshToken)
	})

	t.Run("should reject unknown state", func(t *testing.T) {
		server := newTokenServer(t, "access-token")
		auth, _ := setupAuth(t, server.URL)

		err := auth.Exchange(ctx, "forged", "auth-code")

		assert.ErrorIs(t, err, ErrInvalidState)
		assert.Empty(t, server.codes)
	})

	t.Run("should accept state only once", func(t *testing.T) {
		server := newTokenServer(t, "access-token")
		auth, _ := setupAuth(t, server.URL)
		state := stateOf(t, auth.LoginURL())

		require.NoError(t, auth.Exchange(ctx, state, "auth-code"))
		err := auth.Exchange(ctx, state, "auth-code")

		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("should reject expired state", func(t *testing.T) {
		server := newTokenServer(t, "access-token")
		auth, _ := setupAuth(t, server.URL)
		now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
		auth.now = func() time.Time { return now }
		state := stateOf(t, auth.LoginURL())

		now = now.Add(stateTTL + time.Second)
		err := auth.Exchange(ctx, state, "auth-code")

		assert.ErrorIs(t, err, ErrInvalidState)
	})
}

func TestAuth_AuthorizeInteractive(t *testing.T) {
	ctx := context.Background()
	server := newTokenServer(t, "access-token")
	auth, store := setupAuth(t, server.URL)
	var out strings.Builder

	err := auth.AuthorizeInteractive(ctx, strings.NewReader("pasted-code\n"), &out)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "https://accounts.example.com/auth?")
	assert.Equal(t, []string{"pasted-code"}, server.codes)
	authenticated, err := auth.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.True(t, authenticated)
	token, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-token", token.AccessToken)
}

func TestAuth_Client(t *testing.T) {
	ctx := context.Background()

	t.Run("should fail without stored token", func(t *testing.T) {
		auth, _ := setupAuth(t, "http://unused")

		_, err := auth.Client(ctx)

		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("should refresh expired token and store it", func(t *testing.T) {
		server := newTokenServer(t, "refreshed-token")
		auth, store := setupAuth(t, server.URL)
		require.NoError(t, store.Save(ctx, &oauth2.Token{
			AccessToken:  "stale-token",
			RefreshToken: "refresh-token",
			TokenType:    "Bearer",
			Expiry:       time.Now().Add(-time.Hour),
		}))
		var authorization string
		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authorization = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusOK)
		}))
		defer api.Close()

		client, err := auth.Client(ctx)
		require.NoError(t, err)
		resp, err := client.Get(api.URL)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, "Bearer refreshed-token", authorization)
		assert.Equal(t, []string{"refresh_token"}, server.grants)
		token, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "refreshed-token", token.AccessToken)
	})
}

func TestAuth_OAuthLogin(t *testing.T) {
	auth, _ := setupAuth(t, "http://unused")
	req := httptest.NewRequest(http.MethodGet, "/api/integrations/google/auth/login", nil)
	rr := httptest.NewRecorder()

	auth.OAuthLogin(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var body googleAuthRedirect
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.NotEmpty(t, stateOf(t, body.RedirectUrl))
}

func TestAuth_OAuthCallback(t *testing.T) {
	t.Run("should connect account", func(t *testing.T) {
		server := newTokenServer(t, "access-token")
		auth, _ := setupAuth(t, server.URL)
		state := stateOf(t, auth.LoginURL())
		req := httptest.NewRequest(http.MethodGet, "/api/integrations/google/auth/callback?code=abc&state="+state, nil)
		rr := httptest.NewRecorder()

		auth.OAuthCallback(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, []string{"abc"}, server.codes)
	})

	t.Run("should return bad request on unknown state", func(t *testing.T) {
		auth, _ := setupAuth(t, "http://unused")
		req := httptest.NewRequest(http.MethodGet, "/api/integrations/google/auth/callback?code=abc&state=forged", nil)
		rr := httptest.NewRecorder()

		auth.OAuthCallback(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestAuth_OAuthLogout(t *testing.T) {
	ctx := context.Background()
	auth, store := setupAuth(t, "http://unused")
	require.NoError(t, store.Save(ctx, testToken()))
	req := httptest.NewRequest(http.MethodDelete, "/api/integrations/google/auth", nil)
	rr := httptest.NewRecorder()

	auth.OAuthLogout(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	authenticated, err := auth.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.False(t, authenticated)
}
