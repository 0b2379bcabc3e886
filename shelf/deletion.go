package shelf

import (
	"context"
	"sync"

	"bookshelf/library"
)

// Deletion holds the book awaiting a delete confirmation.
type Deletion struct {
	books *Collection

	mu      sync.Mutex
	pending *library.Book
}

// NewDeletion returns an idle Deletion over the cached books.
func NewDeletion(books *Collection) *Deletion {
	return &Deletion{books: books}
}

// Select marks b for deletion, replacing any earlier selection.
func (d *Deletion) Select(b library.Book) {
	d.mu.Lock()
	d.pending = &b
	d.mu.Unlock()
}

// SelectID selects a cached book by id.
func (d *Deletion) SelectID(id string) (library.Book, error) {
	b, ok := d.books.Get(id)
	if !ok {
		return library.Book{}, ErrBookNotFound
	}
	d.Select(b)
	return b, nil
}

// Confirm removes the selected book. The selection is cleared whether or
// not the removal succeeded, unless another book was selected meanwhile.
func (d *Deletion) Confirm(ctx context.Context) error {
	d.mu.Lock()
	p := d.pending
	d.mu.Unlock()
	if p == nil {
		return ErrNothingSelected
	}
	err := d.books.Remove(ctx, p.ID)
	d.mu.Lock()
	if d.pending == p {
		d.pending = nil
	}
	d.mu.Unlock()
	return err
}

// Cancel drops the selection without touching the store.
func (d *Deletion) Cancel() {
	d.mu.Lock()
	d.pending = nil
	d.mu.Unlock()
}

// Pending returns the book awaiting confirmation, if any.
func (d *Deletion) Pending() (library.Book, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		return library.Book{}, false
	}
	return *d.pending, true
}
