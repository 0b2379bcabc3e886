package shelf

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bookshelf/library"
)

type fakeAccount struct {
	user     library.User
	password string
}

// fakeRemote is an in-memory Remote. Failures are injected per operation
// and consumed by the next call.
type fakeRemote struct {
	mu            sync.Mutex
	accounts      map[string]fakeAccount
	requireVerify bool
	books         map[string][]library.Book
	nextID        int
	fail          map[string]error
	calls         map[string]int
	subs          map[int]func(library.AuthEvent)
	nextSub       int

	gate    chan struct{}
	entered chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		accounts: map[string]fakeAccount{},
		books:    map[string][]library.Book{},
		fail:     map[string]error{},
		calls:    map[string]int{},
		subs:     map[int]func(library.AuthEvent){},
	}
}

func (f *fakeRemote) addAccount(id, email, password string) library.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := library.User{ID: id, Email: email, Verified: true}
	f.accounts[email] = fakeAccount{user: u, password: password}
	return u
}

func (f *fakeRemote) failNext(op string, err error) {
	f.mu.Lock()
	f.fail[op] = err
	f.mu.Unlock()
}

func (f *fakeRemote) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// begin records a call and returns its injected failure, if any.
func (f *fakeRemote) begin(op string) error {
	f.calls[op]++
	err := f.fail[op]
	delete(f.fail, op)
	return err
}

// holdNextList makes the next ListBooks block after reading the store.
// entered is closed once it blocks; closing the returned channel releases it.
func (f *fakeRemote) holdNextList() (entered <-chan struct{}, release chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	f.entered = make(chan struct{})
	return f.entered, f.gate
}

func (f *fakeRemote) emit(ev library.AuthEvent) {
	f.mu.Lock()
	subs := make([]func(library.AuthEvent), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func (f *fakeRemote) SignIn(_ context.Context, email, password string) (*library.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("signin"); err != nil {
		return nil, err
	}
	acc, ok := f.accounts[email]
	if !ok || acc.password != password {
		return nil, library.ErrInvalidCredentials
	}
	return &library.Session{Token: "tok-" + acc.user.ID, User: acc.user}, nil
}

func (f *fakeRemote) SignUp(_ context.Context, email, password string) (*library.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("signup"); err != nil {
		return nil, err
	}
	if _, ok := f.accounts[email]; ok {
		return nil, library.ErrEmailTaken
	}
	f.nextID++
	u := library.User{ID: fmt.Sprintf("u%d", f.nextID), Email: email, Verified: !f.requireVerify}
	f.accounts[email] = fakeAccount{user: u, password: password}
	if f.requireVerify {
		return nil, nil
	}
	return &library.Session{Token: "tok-" + u.ID, User: u}, nil
}

func (f *fakeRemote) SignOut(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.begin("signout")
}

func (f *fakeRemote) Subscribe(fn func(library.AuthEvent)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

func (f *fakeRemote) ListBooks(_ context.Context, ownerID string) ([]library.Book, error) {
	f.mu.Lock()
	if err := f.begin("list"); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	books := slices.Clone(f.books[ownerID])
	gate, entered := f.gate, f.entered
	f.gate, f.entered = nil, nil
	f.mu.Unlock()

	if gate != nil {
		close(entered)
		<-gate
	}
	return books, nil
}

func (f *fakeRemote) HasDuplicate(_ context.Context, ownerID, title, authors string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("dup"); err != nil {
		return false, err
	}
	key := library.DedupKey(title, authors)
	for _, b := range f.books[ownerID] {
		if library.DedupKey(b.Title, b.Authors) == key {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRemote) InsertBook(_ context.Context, ownerID string, bf library.BookFields) (library.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("insert"); err != nil {
		return library.Book{}, err
	}
	f.nextID++
	b := library.Book{
		ID:        fmt.Sprintf("b%d", f.nextID),
		Title:     bf.Title,
		Authors:   bf.Authors,
		Thumbnail: bf.Thumbnail,
		OwnerID:   ownerID,
		CreatedAt: time.Unix(int64(f.nextID), 0).UTC(),
	}
	f.books[ownerID] = slices.Insert(f.books[ownerID], 0, b)
	return b, nil
}

func (f *fakeRemote) UpdateBook(_ context.Context, ownerID, id string, bf library.BookFields) (library.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("update"); err != nil {
		return library.Book{}, err
	}
	books := f.books[ownerID]
	for i := range books {
		if books[i].ID == id {
			books[i].Title, books[i].Authors, books[i].Thumbnail = bf.Title, bf.Authors, bf.Thumbnail
			return books[i], nil
		}
	}
	return library.Book{}, library.ErrNotFound
}

func (f *fakeRemote) DeleteBook(_ context.Context, ownerID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("delete"); err != nil {
		return err
	}
	books := f.books[ownerID]
	for i := range books {
		if books[i].ID == id {
			f.books[ownerID] = slices.Delete(books, i, i+1)
			return nil
		}
	}
	return library.ErrNotFound
}

// fakeClock fires timers only when advanced.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	c       *fakeClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{c: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due, keep []*fakeTimer
	for _, t := range c.timers {
		switch {
		case t.stopped || t.fired:
		case t.at <= c.now:
			t.fired = true
			due = append(due, t)
		default:
			keep = append(keep, t)
		}
	}
	c.timers = keep
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

const (
	readerEmail = "reader@example.com"
	readerPass  = "secret1"
)

// newTestShelf returns a shelf signed in as reader (id "u-reader").
func newTestShelf(t *testing.T) (*Shelf, *fakeRemote, *fakeClock) {
	t.Helper()
	remote := newFakeRemote()
	remote.addAccount("u-reader", readerEmail, readerPass)
	clock := &fakeClock{}
	s := New(remote, zap.NewNop(), Options{View: ViewOptions{Clock: clock}})
	t.Cleanup(s.Close)
	require.NoError(t, s.Login(context.Background(), readerEmail, readerPass))
	return s, remote, clock
}

func titles(books []library.Book) []string {
	out := make([]string, len(books))
	for i, b := range books {
		out[i] = b.Title
	}
	return out
}
