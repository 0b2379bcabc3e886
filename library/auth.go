package library

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotVerified   = errors.New("email address not verified")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

const tokenTTL = time.Hour

// SignUp creates an account. When verification is required the returned
// session is nil and a verification link is mailed instead.
func (m *Manager) SignUp(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Verified:     !m.opts.RequireVerification,
		CreatedAt:    m.opts.Now().UTC(),
	}
	if err := m.db.InsertUser(ctx, u); err != nil {
		return nil, err
	}
	m.log.Info("account created", zap.String("user", u.ID))

	if m.opts.RequireVerification {
		if err := m.sendToken(ctx, u, purposeVerify, m.opts.VerifyRedirectURL, "Confirm your email"); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return m.startSession(ctx, u)
}

// SignIn authenticates with email and password and makes the new session
// current.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*Session, error) {
	u, err := m.db.UserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.Verified {
		return nil, ErrEmailNotVerified
	}
	return m.startSession(ctx, u)
}

// startSession replaces the current session, if any, with a new one for u.
func (m *Manager) startSession(ctx context.Context, u User) (*Session, error) {
	if prev := m.Current(); prev != nil {
		if err := m.db.DeleteSession(ctx, prev.Token); err != nil {
			return nil, fmt.Errorf("revoke previous session: %w", err)
		}
	}
	u.PasswordHash = ""
	s := Session{
		Token:     uuid.NewString(),
		User:      u,
		ExpiresAt: m.opts.Now().Add(m.opts.SessionTTL).UTC(),
	}
	if err := m.db.InsertSession(ctx, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	m.setSession(&s)
	m.emit(AuthEvent{Kind: SignedIn, Session: &s})
	out := s
	return &out, nil
}

// SignOut revokes the current session. Signing out while anonymous is a
// no-op.
func (m *Manager) SignOut(ctx context.Context) error {
	s := m.Current()
	if s == nil {
		return nil
	}
	if err := m.db.DeleteSession(ctx, s.Token); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	m.setSession(nil)
	m.emit(AuthEvent{Kind: SignedOut})
	return nil
}

// Resume makes a previously issued session current again.
func (m *Manager) Resume(ctx context.Context, token string) (*Session, error) {
	s, err := m.db.SessionByToken(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, err
	}
	if s.Expired(m.opts.Now()) {
		_ = m.db.DeleteSession(ctx, token)
		return nil, ErrSessionExpired
	}
	m.setSession(&s)
	m.emit(AuthEvent{Kind: SignedIn, Session: &s})
	out := s
	return &out, nil
}

// Refresh extends the current session, or drops it and notifies
// SessionExpired when it has already lapsed or was revoked.
func (m *Manager) Refresh(ctx context.Context) error {
	cur := m.Current()
	if cur == nil {
		return ErrNoSession
	}

	stored, err := m.db.SessionByToken(ctx, cur.Token)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	now := m.opts.Now()
	if errors.Is(err, ErrNotFound) || stored.Expired(now) {
		_ = m.db.DeleteSession(ctx, cur.Token)
		m.setSession(nil)
		m.emit(AuthEvent{Kind: SessionExpired})
		return ErrSessionExpired
	}

	stored.ExpiresAt = now.Add(m.opts.SessionTTL).UTC()
	if err := m.db.ExtendSession(ctx, stored.Token, stored.ExpiresAt); err != nil {
		return fmt.Errorf("extend session: %w", err)
	}
	m.setSession(&stored)
	m.emit(AuthEvent{Kind: TokenRefreshed, Session: &stored})
	return nil
}

// VerifyEmail confirms the address behind a verification token.
func (m *Manager) VerifyEmail(ctx context.Context, token string) error {
	userID, err := m.db.ConsumeToken(ctx, token, purposeVerify, m.opts.Now())
	if err != nil {
		return err
	}
	return m.db.SetVerified(ctx, userID)
}

// RequestPasswordReset mails a reset link. Unknown addresses succeed
// silently so the call cannot be used to probe for accounts.
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := m.db.UserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, ErrNotFound) {
		m.log.Debug("password reset for unknown email")
		return nil
	}
	if err != nil {
		return err
	}
	return m.sendToken(ctx, u, purposeReset, m.opts.ResetRedirectURL, "Reset your password")
}

// ResetPassword sets a new password from a reset token and revokes every
// session of that account.
func (m *Manager) ResetPassword(ctx context.Context, token, newPassword string) error {
	userID, err := m.db.ConsumeToken(ctx, token, purposeReset, m.opts.Now())
	if err != nil {
		return err
	}
	if err := m.setPassword(ctx, userID, newPassword); err != nil {
		return err
	}
	if err := m.db.DeleteUserSessions(ctx, userID); err != nil {
		return err
	}
	if cur := m.Current(); cur != nil && cur.User.ID == userID {
		m.setSession(nil)
		m.emit(AuthEvent{Kind: SignedOut})
	}
	return nil
}

// UpdatePassword changes the signed-in user's password.
func (m *Manager) UpdatePassword(ctx context.Context, newPassword string) error {
	cur := m.Current()
	if cur == nil {
		return ErrNoSession
	}
	return m.setPassword(ctx, cur.User.ID, newPassword)
}

func (m *Manager) setPassword(ctx context.Context, userID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.opts.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return m.db.SetPasswordHash(ctx, userID, string(hash))
}

func (m *Manager) sendToken(ctx context.Context, u User, purpose, redirect, subject string) error {
	token := uuid.NewString()
	if err := m.db.InsertToken(ctx, token, u.ID, purpose, m.opts.Now().Add(tokenTTL)); err != nil {
		return fmt.Errorf("issue %s token: %w", purpose, err)
	}
	return m.mailer.Send(ctx, u.Email, subject, tokenLink(redirect, token))
}

// tokenLink appends token to redirect. Without a redirect the bare token is
// mailed.
func tokenLink(redirect, token string) string {
	if redirect == "" {
		return token
	}
	u, err := url.Parse(redirect)
	if err != nil {
		return redirect + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
