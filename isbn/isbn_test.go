package isbn

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "9780261102217", Normalize("ISBN 978-0-261-10221-7"))
	assert.Equal(t, "043942089X", Normalize("0-439-42089-x"))
	// Longer runs keep the last 13 characters.
	assert.Equal(t, "9780261102217", Normalize("00119780261102217"))
	assert.Equal(t, "", Normalize("no digits"))
}

func TestValid(t *testing.T) {
	tests := map[string]bool{
		"9780261102217": true,
		"9780441172719": true,
		"0261102214":    true,
		"043942089X":    true,
		"0261102215":    false,
		"9780261102218": false,
		"X261102214":    false,
		"12345":         false,
	}
	for in, want := range tests {
		assert.Equal(t, want, Valid(in), in)
	}
}

func TestParse(t *testing.T) {
	code, err := Parse("978 0 261 10221 7")
	require.NoError(t, err)
	assert.Equal(t, "9780261102217", code)

	_, err = Parse("978-0-261-10221-8")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{"hyphenated isbn13", "THE HOBBIT\nISBN 978-0-261-10221-7\n£8.99", "9780261102217", true},
		{"isbn10 with x", "isbn: 0-439-42089-X", "043942089X", true},
		{"glued to price digits", "99 9780441172719", "9780441172719", true},
		{"cover text only", "THE FELLOWSHIP OF THE RING\nJ.R.R. Tolkien", "", false},
		{"bad checksum", "ISBN 978-0-261-10221-8", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Extract(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func volumesHandler(t *testing.T, hits *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/volumes", r.URL.Path)
		q := r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		switch q {
		case "isbn:9780261102217":
			json.NewEncoder(w).Encode(map[string]any{
				"items": []any{map[string]any{
					"id": "pD6arNyKyi8C",
					"volumeInfo": map[string]any{
						"title":      "The Hobbit",
						"authors":    []string{"J.R.R. Tolkien"},
						"imageLinks": map[string]any{"thumbnail": "http://books.google.com/hobbit.jpg"},
					},
				}},
			})
		case "isbn:9780441172719":
			json.NewEncoder(w).Encode(map[string]any{
				"items": []any{map[string]any{"id": "x", "volumeInfo": map[string]any{}}},
			})
		case "tolkien":
			json.NewEncoder(w).Encode(map[string]any{
				"items": []any{
					map[string]any{"id": "a", "volumeInfo": map[string]any{"title": "The Hobbit", "authors": []string{"J.R.R. Tolkien"}}},
					map[string]any{"id": "b", "volumeInfo": map[string]any{"title": "Silmarillion", "authors": []string{"J.R.R. Tolkien", "Christopher Tolkien"}}},
				},
			})
		case "isbn:0261102214":
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		default:
			w.Write([]byte(`{"totalItems":0}`))
		}
	}
}

func TestClientLookup(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(volumesHandler(t, &hits))
	defer srv.Close()
	c := NewClient(srv.URL, "", time.Second, nil)
	ctx := context.Background()

	vol, err := c.Lookup(ctx, "9780261102217")
	require.NoError(t, err)
	f := vol.BookFields()
	assert.Equal(t, "The Hobbit", f.Title)
	assert.Equal(t, "J.R.R. Tolkien", f.Authors)
	assert.Equal(t, "http://books.google.com/hobbit.jpg", f.Thumbnail)

	vol, err = c.Lookup(ctx, "9780441172719")
	require.NoError(t, err)
	f = vol.BookFields()
	assert.Equal(t, "Unknown Title", f.Title)
	assert.Equal(t, "Unknown Author", f.Authors)

	_, err = c.Lookup(ctx, "9780306406157")
	assert.ErrorIs(t, err, ErrNoMatch)

	_, err = c.Lookup(ctx, "0261102214")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")

	before := hits.Load()
	_, err = c.Lookup(ctx, "12345")
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Equal(t, before, hits.Load(), "malformed ISBN must not reach the network")
}

func TestClientSearch(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(volumesHandler(t, &hits))
	defer srv.Close()
	c := NewClient(srv.URL, "key", time.Second, nil)

	vols, err := c.Search(context.Background(), "tolkien")
	require.NoError(t, err)
	require.Len(t, vols, 2)
	assert.Equal(t, "J.R.R. Tolkien, Christopher Tolkien", vols[1].BookFields().Authors)

	vols, err = c.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, vols)
}

type stubLooker struct {
	calls int
	vol   Volume
	err   error
}

func (s *stubLooker) Lookup(_ context.Context, code string) (Volume, error) {
	s.calls++
	return s.vol, s.err
}

func TestScannerRead(t *testing.T) {
	looker := &stubLooker{vol: Volume{Title: "The Hobbit", Authors: []string{"J.R.R. Tolkien"}}}
	s := NewScanner(looker)
	ctx := context.Background()

	scan, err := s.Read(ctx, "ISBN 978-0-261-10221-7")
	require.NoError(t, err)
	assert.Equal(t, "9780261102217", scan.ISBN)
	assert.Equal(t, "The Hobbit", scan.Candidate.Title)

	_, err = s.Read(ctx, "9780261102217")
	assert.ErrorIs(t, err, ErrRepeatScan)
	assert.Equal(t, 1, looker.calls)

	s.Forget()
	_, err = s.Read(ctx, "9780261102217")
	require.NoError(t, err)
	assert.Equal(t, 2, looker.calls)

	scan, err = s.Read(ctx, "  THE  SILMARILLION \n")
	require.NoError(t, err)
	assert.Empty(t, scan.ISBN)
	assert.Equal(t, "THE SILMARILLION", scan.Candidate.Title)

	_, err = s.Read(ctx, "   ")
	assert.Error(t, err)

	looker.err = ErrNoMatch
	_, err = s.Read(ctx, "9780441172719")
	assert.True(t, errors.Is(err, ErrNoMatch))
}

func TestScannerRetriesFailedLookup(t *testing.T) {
	looker := &stubLooker{err: errors.New("network down")}
	s := NewScanner(looker)
	ctx := context.Background()

	_, err := s.Read(ctx, "9780261102217")
	require.EqualError(t, err, "network down")

	looker.err = nil
	looker.vol = Volume{Title: "The Hobbit"}
	scan, err := s.Read(ctx, "9780261102217")
	require.NoError(t, err)
	assert.Equal(t, "The Hobbit", scan.Candidate.Title)
	assert.Equal(t, 2, looker.calls)

	looker.err = ErrNoMatch
	_, err = s.Read(ctx, "9780441172719")
	require.ErrorIs(t, err, ErrNoMatch)
	_, err = s.Read(ctx, "9780441172719")
	require.ErrorIs(t, err, ErrNoMatch)
	assert.Equal(t, 4, looker.calls)
}
