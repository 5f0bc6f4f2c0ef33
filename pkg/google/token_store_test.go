package google

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klokku/calwindow/internal/test_utils"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"golang.org/x/oauth2"
)

var pgContainer *postgres.PostgresContainer
var openDb func() *pgxpool.Pool

func TestMain(m *testing.M) {
	pgContainer, openDb = test_utils.TestWithDB()
	code := m.Run()
	if err := testcontainers.TerminateContainer(pgContainer); err != nil {
		log.Errorf("failed to terminate container: %s", err)
	}
	os.Exit(code)
}

func setupTokenRepo(t *testing.T) (context.Context, TokenStore) {
	ctx := context.Background()
	db := openDb()
	t.Cleanup(func() {
		db.Close()
		err := pgContainer.Restore(ctx)
		require.NoError(t, err)
	})
	return ctx, NewTokenRepo(db)
}

func testToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		Expiry:       time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestFileTokenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("should return nil token when file does not exist", func(t *testing.T) {
		store := NewFileTokenStore(filepath.Join(t.TempDir(), "token.json"))

		token, err := store.Load(ctx)

		require.NoError(t, err)
		assert.Nil(t, token)
	})

	t.Run("should store and load token", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "token.json")
		store := NewFileTokenStore(path)

		err := store.Save(ctx, testToken())
		require.NoError(t, err)
		token, err := store.Load(ctx)

		require.NoError(t, err)
		require.NotNil(t, token)
		assert.Equal(t, "access-1", token.AccessToken)
		assert.Equal(t, "refresh-1", token.RefreshToken)
		assert.True(t, token.Expiry.Equal(testToken().Expiry))
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("should fail on corrupted file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "token.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

		_, err := NewFileTokenStore(path).Load(ctx)

		assert.Error(t, err)
	})

	t.Run("should delete token and ignore missing file", func(t *testing.T) {
		store := NewFileTokenStore(filepath.Join(t.TempDir(), "token.json"))
		require.NoError(t, store.Save(ctx, testToken()))

		require.NoError(t, store.Delete(ctx))
		require.NoError(t, store.Delete(ctx))
		token, err := store.Load(ctx)

		require.NoError(t, err)
		assert.Nil(t, token)
	})
}

func TestTokenRepo_SaveAndLoad(t *testing.T) {
	ctx, repo := setupTokenRepo(t)

	// given
	token, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, token)

	// when
	err = repo.Save(ctx, testToken())
	require.NoError(t, err)

	// then
	token, err = repo.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, "access-1", token.AccessToken)
	assert.Equal(t, "refresh-1", token.RefreshToken)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.True(t, token.Expiry.Equal(testToken().Expiry))
}

func TestTokenRepo_SaveKeepsRefreshTokenWhenMissing(t *testing.T) {
	ctx, repo := setupTokenRepo(t)

	// given
	require.NoError(t, repo.Save(ctx, testToken()))

	// when
	refreshed := &oauth2.Token{AccessToken: "access-2", TokenType: "Bearer"}
	require.NoError(t, repo.Save(ctx, refreshed))

	// then
	token, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-2", token.AccessToken)
	assert.Equal(t, "refresh-1", token.RefreshToken)
	assert.True(t, token.Expiry.IsZero())
}

func TestTokenRepo_Delete(t *testing.T) {
	ctx, repo := setupTokenRepo(t)
	require.NoError(t, repo.Save(ctx, testToken()))

	require.NoError(t, repo.Delete(ctx))

	token, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, token)
}
