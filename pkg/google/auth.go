package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klokku/calwindow/internal/config"
	"github.com/klokku/calwindow/internal/rest"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

var ErrUnauthenticated = errors.New("google account is unauthenticated, authentication is required")
var ErrInvalidState = errors.New("unknown or expired OAuth state")

const (
	callbackPath = "/api/integrations/google/auth/callback"
	stateTTL     = 10 * time.Minute
)

type googleAuthRedirect struct {
	RedirectUrl string `json:"redirectUrl"`
}

// Auth runs the OAuth flow for the Google account and hands out authorized HTTP clients.
type Auth struct {
	store       TokenStore
	oauthConfig *oauth2.Config
	now         func() time.Time

	mu      sync.Mutex
	pending map[string]time.Time
}

func NewAuth(store TokenStore, cfg config.Application) *Auth {
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.Google.ClientId,
		ClientSecret: cfg.Google.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.Host + callbackPath,
		Scopes:       []string{calendar.CalendarReadonlyScope},
	}
	return &Auth{
		store:       store,
		oauthConfig: oauthConfig,
		now:         time.Now,
		pending:     make(map[string]time.Time),
	}
}

// LoginURL returns the consent page URL with a fresh single-use state nonce.
func (g *Auth) LoginURL() string {
	return g.authCodeURL(g.newState())
}

func (g *Auth) authCodeURL(state string) string {
	return g.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (g *Auth) newState() string {
	state := uuid.New().String()

	g.mu.Lock()
	now := g.now()
	for s, created := range g.pending {
		if now.Sub(created) > stateTTL {
			delete(g.pending, s)
		}
	}
	g.pending[state] = now
	g.mu.Unlock()

	log.Tracef("Generated Google auth state: %s", state)
	return state
}

// Exchange trades an authorization code for a token and stores it. state must come from LoginURL.
func (g *Auth) Exchange(ctx context.Context, state, code string) error {
	if !g.consumeState(state) {
		return ErrInvalidState
	}
	token, err := g.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("unable to exchange code for token: %w", err)
	}
	if err := g.store.Save(ctx, token); err != nil {
		return err
	}
	log.Info("Google account authorized")
	return nil
}

// AuthorizeInteractive asks the user on out to open the consent page and reads the
// authorization code from in.
func (g *Auth) AuthorizeInteractive(ctx context.Context, in io.Reader, out io.Writer) error {
	state := g.newState()
	authUrl := g.authCodeURL(state)
	fmt.Fprintf(out, "Go to the following link in your browser then type the authorization code:\n%v\n", authUrl)

	var code string
	if _, err := fmt.Fscan(in, &code); err != nil {
		return fmt.Errorf("unable to read authorization code: %w", err)
	}
	return g.Exchange(ctx, state, code)
}

// Client returns an HTTP client authorized with the stored token. Refreshed tokens are
// written back to the store.
func (g *Auth) Client(ctx context.Context) (*http.Client, error) {
	token, err := g.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, ErrUnauthenticated
	}
	source := &persistingTokenSource{
		base:  g.oauthConfig.TokenSource(context.Background(), token),
		store: g.store,
		last:  token.AccessToken,
	}
	return oauth2.NewClient(context.Background(), oauth2.ReuseTokenSource(token, source)), nil
}

// IsAuthenticated reports whether a token is stored.
func (g *Auth) IsAuthenticated(ctx context.Context) (bool, error) {
	token, err := g.store.Load(ctx)
	if err != nil {
		return false, err
	}
	return token != nil, nil
}

func (g *Auth) consumeState(state string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	created, ok := g.pending[state]
	if !ok {
		return false
	}
	delete(g.pending, state)
	return g.now().Sub(created) <= stateTTL
}

// OAuthLogin godoc
// @Summary Initiate Google OAuth login
// @Description Start the OAuth flow to connect the Google account
// @Tags Google
// @Produce json
// @Success 200 {object} object{redirectUrl=string} "OAuth redirect URL"
// @Router /api/integrations/google/auth/login [get]
func (g *Auth) OAuthLogin(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(googleAuthRedirect{RedirectUrl: g.LoginURL()}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// OAuthCallback godoc
// @Summary Google OAuth callback
// @Description Handle the OAuth callback from Google and store the token
// @Tags Google
// @Produce plain
// @Param code query string true "Authorization code"
// @Param state query string true "State parameter"
// @Success 200 {string} string "Account connected"
// @Failure 400 {object} rest.ErrorResponse "Unknown or expired state"
// @Router /api/integrations/google/auth/callback [get]
func (g *Auth) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	err := g.Exchange(r.Context(), r.FormValue("state"), r.FormValue("code"))
	if err != nil {
		log.Errorf("Google authentication failed: %v", err)
		if errors.Is(err, ErrInvalidState) {
			rest.WriteError(w, http.StatusBadRequest, "Failed to handle Google authentication", err.Error())
			return
		}
		http.Error(w, "failed to handle Google authentication", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "Google account connected, you can close this page.\n")
}

// OAuthLogout godoc
// @Summary Disconnect Google account
// @Description Delete the stored Google token
// @Tags Google
// @Success 204 "Token deleted"
// @Router /api/integrations/google/auth [delete]
func (g *Auth) OAuthLogout(w http.ResponseWriter, r *http.Request) {
	if err := g.store.Delete(r.Context()); err != nil {
		log.Errorf("failed to delete Google token: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type persistingTokenSource struct {
	base  oauth2.TokenSource
	store TokenStore

	mu   sync.Mutex
	last string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if token.AccessToken != s.last {
		s.last = token.AccessToken
		if err := s.store.Save(context.Background(), token); err != nil {
			log.Errorf("failed to store refreshed Google token: %v", err)
		}
	}
	return token, nil
}
