package isbn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"bookshelf/library"
)

// DefaultBaseURL is the Google Books API root.
const DefaultBaseURL = "https://www.googleapis.com/books/v1"

// ErrNoMatch means the catalog has no volume for the query.
var ErrNoMatch = errors.New("no book found for this ISBN")

// Volume is the subset of a catalog entry the library cares about.
type Volume struct {
	ID        string
	Title     string
	Authors   []string
	Thumbnail string
}

// BookFields turns a volume into a create candidate. Missing titles and
// authors get placeholder text so the candidate is always savable.
func (v Volume) BookFields() library.BookFields {
	title := strings.TrimSpace(v.Title)
	if title == "" {
		title = "Unknown Title"
	}
	authors := strings.Join(v.Authors, ", ")
	if authors == "" {
		authors = "Unknown Author"
	}
	return library.BookFields{Title: title, Authors: authors, Thumbnail: v.Thumbnail}
}

type volumesResponse struct {
	Items []struct {
		ID         string `json:"id"`
		VolumeInfo struct {
			Title      string   `json:"title"`
			Authors    []string `json:"authors"`
			ImageLinks struct {
				Thumbnail string `json:"thumbnail"`
			} `json:"imageLinks"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

// Client queries the Google Books volumes endpoint.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *zap.Logger
}

// NewClient builds a client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL, apiKey string, timeout time.Duration, log *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// Lookup returns the first catalog volume for a normalized ISBN.
func (c *Client) Lookup(ctx context.Context, code string) (Volume, error) {
	if !Valid(code) {
		return Volume{}, ErrMalformed
	}
	vols, err := c.volumes(ctx, "isbn:"+code, 1)
	if err != nil {
		return Volume{}, err
	}
	if len(vols) == 0 {
		return Volume{}, ErrNoMatch
	}
	return vols[0], nil
}

// Search runs a free-text catalog query.
func (c *Client) Search(ctx context.Context, query string) ([]Volume, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Volume{}, nil
	}
	return c.volumes(ctx, query, 20)
}

func (c *Client) volumes(ctx context.Context, q string, max int) ([]Volume, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("maxResults", fmt.Sprint(max))
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/volumes?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()
	c.log.Debug("catalog query",
		zap.String("q", q),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("catalog returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var payload volumesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}

	vols := make([]Volume, 0, len(payload.Items))
	for _, it := range payload.Items {
		vols = append(vols, Volume{
			ID:        it.ID,
			Title:     it.VolumeInfo.Title,
			Authors:   it.VolumeInfo.Authors,
			Thumbnail: it.VolumeInfo.ImageLinks.Thumbnail,
		})
	}
	return vols, nil
}
