package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bookshelf/app"
	"bookshelf/config"
)

func TestReadEntries(t *testing.T) {
	in := "# my shelf\n978-0-261-10221-7\n\n  0261102214  \n"
	got, err := readEntries(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []entry{{line: 2, raw: "978-0-261-10221-7"}, {line: 4, raw: "0261102214"}}, got)
}

func TestImportAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("q") {
		case "isbn:9780261102217", "isbn:0261102214":
			json.NewEncoder(w).Encode(map[string]any{
				"items": []any{map[string]any{"id": "h", "volumeInfo": map[string]any{
					"title": "The Hobbit", "authors": []string{"J.R.R. Tolkien"},
				}}},
			})
		default:
			w.Write([]byte(`{"totalItems":0}`))
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "bookshelf.yaml")
	body := "database:\n  path: " + filepath.Join(dir, "books.db") + "\n" +
		"session_file: \"\"\n" +
		"lookup:\n  base_url: " + srv.URL + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o600))
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	a, err := app.New(cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()
	_, err = a.Shelf.Signup(context.Background(), "reader@example.com", "secret1")
	require.NoError(t, err)

	entries := []entry{
		{line: 1, raw: "978-0-261-10221-7"},
		{line: 2, raw: "0261102214"},        // same book, other edition code
		{line: 3, raw: "978-0-261-10221-8"}, // bad checksum
		{line: 4, raw: "9780306406157"},     // unknown to the catalog
	}
	var out bytes.Buffer
	s := importAll(a, entries, &out)

	assert.Equal(t, summary{added: 1, skipped: 1, failed: 2}, s)
	assert.Equal(t, 1, a.Shelf.Books.Len())
	assert.Contains(t, out.String(), "SUCCESS (The Hobbit by J.R.R. Tolkien)")
	assert.Contains(t, out.String(), "SKIPPED")
}

func TestSignInToleratesFailedFirstLoad(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "bookshelf.yaml")
	dbFile := filepath.Join(dir, "books.db")
	body := "database:\n  path: " + dbFile + "\nsession_file: \"\"\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o600))
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	a, err := app.New(cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()
	ctx := context.Background()
	_, err = a.Shelf.Signup(ctx, "reader@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, a.Shelf.Logout(ctx))

	raw, err := sql.Open("sqlite3", dbFile)
	require.NoError(t, err)
	_, err = raw.Exec(`DROP TABLE books`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	var out bytes.Buffer
	require.NoError(t, signIn(a, "reader@example.com", "secret1", &out))
	assert.Contains(t, out.String(), "loading your library failed")
	u, ok := a.Shelf.Session.Current()
	require.True(t, ok)
	assert.Equal(t, "reader@example.com", u.Email)

	assert.Error(t, signIn(a, "reader@example.com", "wrong-password", &out))
}
