package shelf

import (
	"context"
	"errors"
	"slices"
	"sync"

	"go.uber.org/zap"

	"bookshelf/library"
)

type EventKind int

const (
	Replaced EventKind = iota
	Added
	Updated
	Removed
	Cleared
)

// Event is published after every change to the cached collection.
type Event struct {
	Kind EventKind
	Book library.Book
}

type identity interface {
	Snapshot() (library.User, uint64, bool)
	IsCurrent(gen uint64) bool
}

// Collection is the local, newest-first cache of the signed-in user's
// books. Mutations go to the store first and are applied locally only when
// the store succeeds and the identity has not changed in between.
type Collection struct {
	store Store
	ident identity
	log   *zap.Logger

	mu    sync.Mutex
	books []library.Book
	subs  []func(Event)
	// version counts local changes; a fetch started before one is stale.
	version uint64
}

// NewCollection returns an empty cache backed by store for the identity
// tracked by ident.
func NewCollection(store Store, ident identity, log *zap.Logger) *Collection {
	if log == nil {
		log = zap.NewNop()
	}
	return &Collection{store: store, ident: ident, log: log}
}

// Subscribe registers fn for change events. fn runs without the collection
// lock held and may read the collection.
func (c *Collection) Subscribe(fn func(Event)) {
	c.mu.Lock()
	c.subs = append(c.subs, fn)
	c.mu.Unlock()
}

func (c *Collection) publish(ev Event) {
	c.mu.Lock()
	subs := slices.Clone(c.subs)
	c.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// Books returns a copy of the cache, newest first.
func (c *Collection) Books() []library.Book {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.books)
}

func (c *Collection) Get(id string) (library.Book, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(id); i >= 0 {
		return c.books[i], true
	}
	return library.Book{}, false
}

func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.books)
}

func (c *Collection) indexOf(id string) int {
	return slices.IndexFunc(c.books, func(b library.Book) bool { return b.ID == id })
}

// Clear empties the cache.
func (c *Collection) Clear() {
	c.mu.Lock()
	c.books = nil
	c.version++
	c.mu.Unlock()
	c.publish(Event{Kind: Cleared})
}

// FetchAll replaces the cache with the store's records for the current
// identity. A result that arrives after the identity changed, or after a
// local change was applied in the meantime, is dropped with ErrStale.
func (c *Collection) FetchAll(ctx context.Context) error {
	user, gen, ok := c.ident.Snapshot()
	if !ok {
		return ErrNotAuthenticated
	}
	c.mu.Lock()
	version := c.version
	c.mu.Unlock()
	books, err := c.store.ListBooks(ctx, user.ID)
	if err != nil {
		return &RemoteError{Op: "fetch books", Err: err}
	}
	seen := make(map[string]bool, len(books))
	fresh := make([]library.Book, 0, len(books))
	for _, b := range books {
		if b.OwnerID != user.ID || seen[b.ID] {
			continue
		}
		seen[b.ID] = true
		fresh = append(fresh, b)
	}

	c.mu.Lock()
	if !c.ident.IsCurrent(gen) || c.version != version {
		c.mu.Unlock()
		c.log.Debug("dropping stale fetch", zap.String("user_id", user.ID))
		return ErrStale
	}
	c.books = fresh
	c.version++
	c.mu.Unlock()
	c.log.Debug("fetched books", zap.String("user_id", user.ID), zap.Int("count", len(fresh)))
	c.publish(Event{Kind: Replaced})
	return nil
}

// Create validates the candidate, rejects it if an equivalent book exists
// in the store, inserts it and prepends the stored record.
func (c *Collection) Create(ctx context.Context, candidate library.BookFields) (library.Book, error) {
	f, err := cleanFields(candidate)
	if err != nil {
		return library.Book{}, err
	}
	user, gen, ok := c.ident.Snapshot()
	if !ok {
		return library.Book{}, ErrNotAuthenticated
	}
	dup, err := c.store.HasDuplicate(ctx, user.ID, f.Title, f.Authors)
	if err != nil {
		return library.Book{}, &RemoteError{Op: "check duplicate", Err: err}
	}
	if dup {
		return library.Book{}, ErrDuplicate
	}
	b, err := c.store.InsertBook(ctx, user.ID, f)
	if err != nil {
		return library.Book{}, &RemoteError{Op: "add book", Err: err}
	}

	c.mu.Lock()
	if !c.ident.IsCurrent(gen) {
		c.mu.Unlock()
		return library.Book{}, ErrStale
	}
	if c.indexOf(b.ID) < 0 {
		c.books = slices.Insert(c.books, 0, b)
	}
	c.version++
	c.mu.Unlock()
	c.log.Info("book added", zap.String("book_id", b.ID), zap.String("title", b.Title))
	c.publish(Event{Kind: Added, Book: b})
	return b, nil
}

// Update stores new field values and replaces the cached record in place.
func (c *Collection) Update(ctx context.Context, id string, fields library.BookFields) (library.Book, error) {
	f, err := cleanFields(fields)
	if err != nil {
		return library.Book{}, err
	}
	user, gen, ok := c.ident.Snapshot()
	if !ok {
		return library.Book{}, ErrNotAuthenticated
	}
	b, err := c.store.UpdateBook(ctx, user.ID, id, f)
	if err != nil {
		return library.Book{}, &RemoteError{Op: "update book", Err: err}
	}

	c.mu.Lock()
	if !c.ident.IsCurrent(gen) {
		c.mu.Unlock()
		return library.Book{}, ErrStale
	}
	if i := c.indexOf(id); i >= 0 {
		c.books[i] = b
	}
	c.version++
	c.mu.Unlock()
	c.log.Info("book updated", zap.String("book_id", id))
	c.publish(Event{Kind: Updated, Book: b})
	return b, nil
}

// Remove deletes the book from the store, then from the cache. A book the
// store no longer has is dropped locally as well.
func (c *Collection) Remove(ctx context.Context, id string) error {
	user, gen, ok := c.ident.Snapshot()
	if !ok {
		return ErrNotAuthenticated
	}
	err := c.store.DeleteBook(ctx, user.ID, id)
	if err != nil && !errors.Is(err, library.ErrNotFound) {
		return &RemoteError{Op: "delete book", Err: err}
	}

	c.mu.Lock()
	if !c.ident.IsCurrent(gen) {
		c.mu.Unlock()
		return ErrStale
	}
	var removed library.Book
	if i := c.indexOf(id); i >= 0 {
		removed = c.books[i]
		c.books = slices.Delete(c.books, i, i+1)
	}
	c.version++
	c.mu.Unlock()
	c.log.Info("book removed", zap.String("book_id", id))
	c.publish(Event{Kind: Removed, Book: removed})
	return nil
}
