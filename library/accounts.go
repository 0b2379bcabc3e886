package library

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Token purposes.
const (
	purposeVerify = "verify"
	purposeReset  = "reset"
)

func (d *Database) InsertUser(ctx context.Context, u User) error {
	_, err := d.insertUserStmt.ExecContext(ctx, u.ID, u.Email, u.PasswordHash, u.Verified, u.CreatedAt.UnixNano())
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (d *Database) userWhere(ctx context.Context, clause string, arg any) (User, error) {
	var (
		u       User
		created int64
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT id,email,password_hash,verified,created_at FROM users WHERE `+clause, arg).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Verified, &created)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.CreatedAt = time.Unix(0, created).UTC()
	return u, nil
}

// UserByEmail looks an account up case-insensitively.
func (d *Database) UserByEmail(ctx context.Context, email string) (User, error) {
	return d.userWhere(ctx, `email=?`, email)
}

func (d *Database) UserByID(ctx context.Context, id string) (User, error) {
	return d.userWhere(ctx, `id=?`, id)
}

func (d *Database) SetVerified(ctx context.Context, userID string) error {
	_, err := d.db.ExecContext(ctx, `UPDATE users SET verified=1 WHERE id=?`, userID)
	return err
}

func (d *Database) SetPasswordHash(ctx context.Context, userID, hash string) error {
	_, err := d.db.ExecContext(ctx, `UPDATE users SET password_hash=? WHERE id=?`, hash, userID)
	return err
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

func (d *Database) InsertSession(ctx context.Context, s Session) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO sessions(token,user_id,expires_at) VALUES(?,?,?)`,
		s.Token, s.User.ID, s.ExpiresAt.UnixNano())
	return err
}

// SessionByToken loads a session together with its user.
func (d *Database) SessionByToken(ctx context.Context, token string) (Session, error) {
	var (
		s       Session
		expires int64
		created int64
	)
	err := d.db.QueryRowContext(ctx, `
        SELECT s.token, s.expires_at, u.id, u.email, u.verified, u.created_at
        FROM sessions s JOIN users u ON u.id = s.user_id
        WHERE s.token=?`, token).
		Scan(&s.Token, &expires, &s.User.ID, &s.User.Email, &s.User.Verified, &created)
	if err == sql.ErrNoRows {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	s.ExpiresAt = time.Unix(0, expires).UTC()
	s.User.CreatedAt = time.Unix(0, created).UTC()
	return s, nil
}

func (d *Database) ExtendSession(ctx context.Context, token string, expiresAt time.Time) error {
	_, err := d.db.ExecContext(ctx, `UPDATE sessions SET expires_at=? WHERE token=?`, expiresAt.UnixNano(), token)
	return err
}

func (d *Database) DeleteSession(ctx context.Context, token string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM sessions WHERE token=?`, token)
	return err
}

// DeleteUserSessions signs a user out everywhere, used after a password reset.
func (d *Database) DeleteUserSessions(ctx context.Context, userID string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id=?`, userID)
	return err
}

// ---------------------------------------------------------------------------
// One-time tokens (email verification, password reset)
// ---------------------------------------------------------------------------

func (d *Database) InsertToken(ctx context.Context, token, userID, purpose string, expiresAt time.Time) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO tokens(token,user_id,purpose,expires_at) VALUES(?,?,?,?)`,
		token, userID, purpose, expiresAt.UnixNano())
	return err
}

// ConsumeToken deletes the token and returns its user when it exists, matches
// purpose and has not expired at now.
func (d *Database) ConsumeToken(ctx context.Context, token, purpose string, now time.Time) (string, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var (
		userID  string
		expires int64
	)
	err = tx.QueryRowContext(ctx,
		`SELECT user_id, expires_at FROM tokens WHERE token=? AND purpose=?`, token, purpose).
		Scan(&userID, &expires)
	if err == sql.ErrNoRows {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tokens WHERE token=?`, token); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	if !now.Before(time.Unix(0, expires)) {
		return "", fmt.Errorf("%w: expired", ErrInvalidToken)
	}
	return userID, nil
}

// ---------------------------------------------------------------------------
// Profiles
// ---------------------------------------------------------------------------

// GetProfile returns the profile for userID, creating an empty one when the
// account has none yet.
func (d *Database) GetProfile(ctx context.Context, userID string) (Profile, error) {
	p := Profile{UserID: userID}
	err := d.db.QueryRowContext(ctx,
		`SELECT full_name, address FROM profiles WHERE user_id=?`, userID).
		Scan(&p.FullName, &p.Address)
	if err == sql.ErrNoRows {
		_, err = d.db.ExecContext(ctx,
			`INSERT INTO profiles(user_id) VALUES(?) ON CONFLICT(user_id) DO NOTHING`, userID)
		return p, err
	}
	return p, err
}

func (d *Database) UpsertProfile(ctx context.Context, p Profile) error {
	_, err := d.db.ExecContext(ctx, `
        INSERT INTO profiles(user_id, full_name, address) VALUES(?,?,?)
        ON CONFLICT(user_id) DO UPDATE SET full_name=excluded.full_name, address=excluded.address`,
		p.UserID, p.FullName, p.Address)
	return err
}
