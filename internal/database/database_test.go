package database

import (
	"net/url"
	"testing"

	"github.com/klokku/calwindow/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionUrl(t *testing.T) {
	raw := connectionUrl(config.Database{
		Host:   "db.local",
		Port:   5433,
		User:   "calwindow",
		Pass:   "p@ss'word",
		Name:   "calwindow",
		Schema: "calwindow",
	})

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "db.local:5433", u.Host)
	assert.Equal(t, "/calwindow", u.Path)
	password, _ := u.User.Password()
	assert.Equal(t, "p@ss'word", password)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
	assert.Equal(t, "calwindow", u.Query().Get("search_path"))
}

func TestFindMigrationsPath(t *testing.T) {
	path, err := findMigrationsPath()

	require.NoError(t, err)
	assert.DirExists(t, path)
}
