package shelf

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bookshelf/library"
)

func TestLoginErrors(t *testing.T) {
	remote := newFakeRemote()
	remote.addAccount("u1", readerEmail, readerPass)
	s := New(remote, zap.NewNop(), Options{})
	defer s.Close()
	ctx := context.Background()

	err := s.Login(ctx, readerEmail, "wrong")
	var aerr *AuthError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "Invalid email or password.", aerr.Reason)
	assert.ErrorIs(t, err, library.ErrInvalidCredentials)

	var verr *ValidationError
	require.ErrorAs(t, s.Login(ctx, "not-an-email", readerPass), &verr)
	assert.Equal(t, "email", verr.Field)
	require.ErrorAs(t, s.Login(ctx, readerEmail, ""), &verr)
	assert.Equal(t, "password", verr.Field)
	assert.Equal(t, 1, remote.count("signin"))

	_, ok := s.Session.Current()
	assert.False(t, ok)
}

func TestLoginFetchesCollection(t *testing.T) {
	remote := newFakeRemote()
	remote.addAccount("u1", readerEmail, readerPass)
	remote.books["u1"] = []library.Book{{ID: "b1", Title: "Dune", OwnerID: "u1"}}
	s := New(remote, zap.NewNop(), Options{})
	defer s.Close()

	require.NoError(t, s.Login(context.Background(), "  "+readerEmail, readerPass))
	u, ok := s.Session.Current()
	require.True(t, ok)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, []string{"Dune"}, titles(s.Books.Books()))
}

func TestLoginKeepsIdentityWhenFetchFails(t *testing.T) {
	remote := newFakeRemote()
	remote.addAccount("u1", readerEmail, readerPass)
	s := New(remote, zap.NewNop(), Options{})
	defer s.Close()

	remote.failNext("list", errors.New("timeout"))
	err := s.Login(context.Background(), readerEmail, readerPass)
	var rerr *RemoteError
	require.ErrorAs(t, err, &rerr)
	_, ok := s.Session.Current()
	assert.True(t, ok)

	require.NoError(t, s.Books.FetchAll(context.Background()))
}

func TestSignup(t *testing.T) {
	remote := newFakeRemote()
	s := New(remote, zap.NewNop(), Options{MinPasswordLength: 8})
	defer s.Close()
	ctx := context.Background()

	_, err := s.Signup(ctx, "new@example.com", "short")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "password", verr.Field)
	assert.Zero(t, remote.count("signup"))

	pending, err := s.Signup(ctx, "new@example.com", "long enough")
	require.NoError(t, err)
	assert.False(t, pending)
	_, ok := s.Session.Current()
	assert.True(t, ok)

	_, err = s.Signup(ctx, "new@example.com", "long enough")
	var aerr *AuthError
	require.ErrorAs(t, err, &aerr)
	assert.ErrorIs(t, err, library.ErrEmailTaken)
}

func TestSignupPendingVerification(t *testing.T) {
	remote := newFakeRemote()
	remote.requireVerify = true
	s := New(remote, zap.NewNop(), Options{})
	defer s.Close()

	pending, err := s.Signup(context.Background(), "new@example.com", "secret1")
	require.NoError(t, err)
	assert.True(t, pending)
	_, ok := s.Session.Current()
	assert.False(t, ok)
}

func TestLogoutFailureKeepsIdentity(t *testing.T) {
	s, remote, _ := newTestShelf(t)
	seedBooks(t, s, "Dune")

	remote.failNext("signout", errors.New("offline"))
	var aerr *AuthError
	require.ErrorAs(t, s.Logout(context.Background()), &aerr)
	_, ok := s.Session.Current()
	assert.True(t, ok)
	assert.Equal(t, 1, s.Books.Len())
}

func TestGenerationAdvancesOnIdentityChange(t *testing.T) {
	s, _, _ := newTestShelf(t)
	_, gen, ok := s.Session.Snapshot()
	require.True(t, ok)
	assert.True(t, s.Session.IsCurrent(gen))

	require.NoError(t, s.Logout(context.Background()))
	assert.False(t, s.Session.IsCurrent(gen))

	// Signing out twice is not a transition.
	_, gen, _ = s.Session.Snapshot()
	require.NoError(t, s.Logout(context.Background()))
	assert.True(t, s.Session.IsCurrent(gen))
}

func TestRemoteExpiryClearsState(t *testing.T) {
	s, remote, _ := newTestShelf(t)
	books := seedBooks(t, s, "Dune")
	require.NoError(t, s.Edit.Begin(books[0].ID))

	remote.emit(library.AuthEvent{Kind: library.SessionExpired})

	_, ok := s.Session.Current()
	assert.False(t, ok)
	assert.Zero(t, s.Books.Len())
	_, editing := s.Edit.Active()
	assert.False(t, editing)
}

func TestRefreshForSameUserDoesNotRefetch(t *testing.T) {
	s, remote, _ := newTestShelf(t)
	u, _ := s.Session.Current()
	before := remote.count("list")

	remote.emit(library.AuthEvent{Kind: library.TokenRefreshed, Session: &library.Session{User: u}})
	assert.Equal(t, before, remote.count("list"))
}

func TestSignedInEventFetches(t *testing.T) {
	remote := newFakeRemote()
	remote.books["u9"] = []library.Book{{ID: "b1", Title: "Emma", OwnerID: "u9"}}
	s := New(remote, zap.NewNop(), Options{})
	defer s.Close()

	remote.emit(library.AuthEvent{Kind: library.SignedIn, Session: &library.Session{User: library.User{ID: "u9"}}})
	assert.Equal(t, []string{"Emma"}, titles(s.Books.Books()))
}

func TestCloseStopsFollowingEvents(t *testing.T) {
	remote := newFakeRemote()
	s := New(remote, zap.NewNop(), Options{})
	s.Close()

	remote.emit(library.AuthEvent{Kind: library.SignedIn, Session: &library.Session{User: library.User{ID: "u9"}}})
	_, ok := s.Session.Current()
	assert.False(t, ok)
}
