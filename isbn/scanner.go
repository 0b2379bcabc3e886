package isbn

import (
	"context"
	"errors"
	"strings"
	"sync"

	"bookshelf/library"
)

// ErrRepeatScan is returned when the same code is scanned twice in a row.
var ErrRepeatScan = errors.New("same ISBN as the previous scan")

// Looker resolves an ISBN to catalog metadata.
type Looker interface {
	Lookup(ctx context.Context, code string) (Volume, error)
}

// Scan is the outcome of reading one piece of scanned text.
type Scan struct {
	// ISBN is set when the text contained a valid code.
	ISBN string
	// Candidate is the book to offer for saving. Without an ISBN the
	// trimmed text becomes the title, as a cover photo's OCR would.
	Candidate library.BookFields
}

// Scanner turns scanned text into create candidates and suppresses
// consecutive repeats of the same code.
type Scanner struct {
	looker Looker

	mu   sync.Mutex
	last string
}

// NewScanner returns a Scanner that resolves codes with l.
func NewScanner(l Looker) *Scanner {
	return &Scanner{looker: l}
}

// Read interprets text from a barcode reader or OCR pass.
func (s *Scanner) Read(ctx context.Context, text string) (Scan, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Scan{}, errors.New("no text detected")
	}

	code, ok := Extract(text)
	if !ok {
		return Scan{Candidate: library.BookFields{Title: strings.Join(strings.Fields(text), " ")}}, nil
	}

	s.mu.Lock()
	repeat := code == s.last
	s.mu.Unlock()
	if repeat {
		return Scan{ISBN: code}, ErrRepeatScan
	}

	// A failed lookup is not remembered, so the same code can be retried.
	vol, err := s.looker.Lookup(ctx, code)
	if err != nil {
		return Scan{ISBN: code}, err
	}
	s.mu.Lock()
	s.last = code
	s.mu.Unlock()
	return Scan{ISBN: code, Candidate: vol.BookFields()}, nil
}

// Forget clears the repeat guard, e.g. after the candidate was saved or
// discarded.
func (s *Scanner) Forget() {
	s.mu.Lock()
	s.last = ""
	s.mu.Unlock()
}
