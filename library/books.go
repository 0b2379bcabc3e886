package library

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const bookColumns = `id,owner_id,title,authors,thumbnail,created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(r rowScanner) (Book, error) {
	var (
		b       Book
		created int64
	)
	if err := r.Scan(&b.ID, &b.OwnerID, &b.Title, &b.Authors, &b.Thumbnail, &created); err != nil {
		return Book{}, err
	}
	b.CreatedAt = time.Unix(0, created).UTC()
	return b, nil
}

// InsertBook stores b as given; the caller assigns ID and CreatedAt.
func (d *Database) InsertBook(ctx context.Context, b Book) error {
	_, err := d.insertBookStmt.ExecContext(ctx,
		b.ID, b.OwnerID, b.Title, b.Authors, b.Thumbnail,
		DedupKey(b.Title, b.Authors), b.CreatedAt.UnixNano())
	return err
}

// GetBook fetches one book owned by ownerID.
func (d *Database) GetBook(ctx context.Context, ownerID, id string) (Book, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id=? AND owner_id=?`, id, ownerID)
	b, err := scanBook(row)
	if err == sql.ErrNoRows {
		return Book{}, fmt.Errorf("book %s: %w", id, ErrNotFound)
	}
	return b, err
}

// ListBooks returns every book owned by ownerID, newest first.
func (d *Database) ListBooks(ctx context.Context, ownerID string) ([]Book, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE owner_id=? ORDER BY created_at DESC, rowid DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := []Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// HasDuplicate reports whether ownerID already has a book whose normalized
// (title, authors) pair equals the given one.
func (d *Database) HasDuplicate(ctx context.Context, ownerID, title, authors string) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM books WHERE owner_id=? AND dedup_key=?)`,
		ownerID, DedupKey(title, authors)).Scan(&exists)
	return exists, err
}

// UpdateBook replaces title, authors and thumbnail and returns the stored row.
func (d *Database) UpdateBook(ctx context.Context, ownerID, id string, f BookFields) (Book, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return Book{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE books SET title=?, authors=?, thumbnail=?, dedup_key=? WHERE id=? AND owner_id=?`,
		f.Title, f.Authors, f.Thumbnail, DedupKey(f.Title, f.Authors), id, ownerID)
	if err != nil {
		return Book{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return Book{}, err
	} else if n == 0 {
		return Book{}, fmt.Errorf("book %s: %w", id, ErrNotFound)
	}

	b, err := scanBook(tx.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id=?`, id))
	if err != nil {
		return Book{}, err
	}
	return b, tx.Commit()
}

// DeleteBook removes one book owned by ownerID.
func (d *Database) DeleteBook(ctx context.Context, ownerID, id string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM books WHERE id=? AND owner_id=?`, id, ownerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("book %s: %w", id, ErrNotFound)
	}
	return nil
}
