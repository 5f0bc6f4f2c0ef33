package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// TokenStore keeps the OAuth token of the single configured Google account.
// Load returns a nil token when none has been stored yet.
type TokenStore interface {
	Load(ctx context.Context) (*oauth2.Token, error)
	Save(ctx context.Context, token *oauth2.Token) error
	Delete(ctx context.Context) error
}

type FileTokenStore struct {
	path string
}

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

func (s *FileTokenStore) Load(_ context.Context) (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read token file: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("unable to parse token file %s: %w", s.path, err)
	}
	return &token, nil
}

func (s *FileTokenStore) Save(_ context.Context, token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("unable to marshal token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("unable to write token file: %w", err)
	}
	log.Debugf("Stored Google token in %s", s.path)
	return nil
}

func (s *FileTokenStore) Delete(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

const defaultAccount = "default"

type tokenRepo struct {
	db      *pgxpool.Pool
	account string
}

// NewTokenRepo stores the token in the google_auth table.
func NewTokenRepo(db *pgxpool.Pool) TokenStore {
	return &tokenRepo{db: db, account: defaultAccount}
}

func (r *tokenRepo) Load(ctx context.Context) (*oauth2.Token, error) {
	var token oauth2.Token
	var expiry *time.Time
	err := r.db.QueryRow(ctx,
		"SELECT access_token, refresh_token, token_type, expiry FROM google_auth WHERE account = $1", r.account).
		Scan(&token.AccessToken, &token.RefreshToken, &token.TokenType, &expiry)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Google auth token: %w", err)
	}
	if expiry != nil {
		token.Expiry = *expiry
	}
	return &token, nil
}

func (r *tokenRepo) Save(ctx context.Context, token *oauth2.Token) error {
	var expiry *time.Time
	if !token.Expiry.IsZero() {
		expiry = &token.Expiry
	}
	_, err := r.db.Exec(ctx, `INSERT INTO google_auth (account, access_token, refresh_token, token_type, expiry, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (account) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = CASE WHEN EXCLUDED.refresh_token = '' THEN google_auth.refresh_token ELSE EXCLUDED.refresh_token END,
			token_type = EXCLUDED.token_type,
			expiry = EXCLUDED.expiry,
			updated_at = now()`,
		r.account, token.AccessToken, token.RefreshToken, token.TokenType, expiry)
	if err != nil {
		err := fmt.Errorf("unable to store Google auth token: %w", err)
		log.Error(err)
		return err
	}
	return nil
}

func (r *tokenRepo) Delete(ctx context.Context) error {
	_, err := r.db.Exec(ctx, "DELETE FROM google_auth WHERE account = $1", r.account)
	if err != nil {
		return fmt.Errorf("unable to delete Google auth token: %w", err)
	}
	return nil
}
