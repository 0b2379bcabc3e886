package shelf

import (
	"context"
	"strings"
	"sync"

	"bookshelf/library"
)

// Draft is the in-progress edit of one book.
type Draft struct {
	BookID string
	Fields library.BookFields
}

// Editor allows at most one book to be edited at a time.
type Editor struct {
	books *Collection

	mu     sync.Mutex
	active *Draft
}

// NewEditor returns an Editor over the cached books.
func NewEditor(books *Collection) *Editor {
	return &Editor{books: books}
}

// Begin opens an edit of the cached book with the given id, seeded with
// its current values.
func (e *Editor) Begin(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != nil {
		return ErrEditInProgress
	}
	b, ok := e.books.Get(id)
	if !ok {
		return ErrBookNotFound
	}
	e.active = &Draft{BookID: id, Fields: b.Fields()}
	return nil
}

// SetField changes one draft field: title, authors or thumbnail.
func (e *Editor) SetField(name, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return ErrNoEdit
	}
	switch strings.ToLower(name) {
	case "title":
		e.active.Fields.Title = value
	case "authors", "author":
		e.active.Fields.Authors = value
	case "thumbnail", "cover":
		e.active.Fields.Thumbnail = value
	default:
		return &ValidationError{Field: name, Message: "is not an editable field"}
	}
	return nil
}

// Commit saves the draft. On success the edit closes; on failure it stays
// open with the draft intact so it can be corrected or retried.
func (e *Editor) Commit(ctx context.Context) (library.Book, error) {
	e.mu.Lock()
	d := e.active
	if d == nil {
		e.mu.Unlock()
		return library.Book{}, ErrNoEdit
	}
	fields := d.Fields
	e.mu.Unlock()

	if strings.TrimSpace(fields.Title) == "" {
		return library.Book{}, &ValidationError{Field: "title", Message: "is required"}
	}
	b, err := e.books.Update(ctx, d.BookID, fields)
	if err != nil {
		return library.Book{}, err
	}

	e.mu.Lock()
	if e.active == d {
		e.active = nil
	}
	e.mu.Unlock()
	return b, nil
}

// Cancel discards the draft. It is a no-op when nothing is being edited.
func (e *Editor) Cancel() {
	e.mu.Lock()
	e.active = nil
	e.mu.Unlock()
}

// Active returns the open draft, if any.
func (e *Editor) Active() (Draft, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return Draft{}, false
	}
	return *e.active, true
}
