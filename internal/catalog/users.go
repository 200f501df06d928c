package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// CreateUser inserts a new user.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u *User) error {
	name, err := normalizeName(u.Name)
	if err != nil {
		return err
	}

	const query = `INSERT INTO users (name, email) VALUES (?, ?)`
	result, err := r.db.ExecContext(ctx, query, name, strings.TrimSpace(u.Email))
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateName
		}
		return fmt.Errorf("inserting user %s: %w", name, err)
	}
	u.ID, _ = result.LastInsertId() //nolint:errcheck // SQLite always supports LastInsertId
	u.Name = name
	return nil
}

// ListUsers returns all users ordered by name.
func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]User, error) {
	const query = `SELECT id, name, email FROM users ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var email sql.NullString
		if err := rows.Scan(&u.ID, &u.Name, &email); err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		u.Email = email.String
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user rows: %w", err)
	}
	return users, nil
}

// GetUser returns a single user by ID.
func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (*User, error) {
	const query = `SELECT id, name, email FROM users WHERE id = ?`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// FindUserByName returns the user matching name case-insensitively.
func (r *SQLiteRepository) FindUserByName(ctx context.Context, name string) (*User, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	const query = `SELECT id, name, email FROM users WHERE lower(name) = lower(?)`
	return scanUser(r.db.QueryRowContext(ctx, query, name))
}

// EnsureUser returns the existing user with the given name or creates one.
func (r *SQLiteRepository) EnsureUser(ctx context.Context, name string) (*User, error) {
	u, err := r.FindUserByName(ctx, name)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	u = &User{Name: name}
	if err := r.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateUser renames a user or changes their email.
func (r *SQLiteRepository) UpdateUser(ctx context.Context, u *User) error {
	name, err := normalizeName(u.Name)
	if err != nil {
		return err
	}

	const query = `UPDATE users SET name = ?, email = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, name, strings.TrimSpace(u.Email), u.ID)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateName
		}
		return fmt.Errorf("updating user %d: %w", u.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrUserNotFound
	}
	u.Name = name
	return nil
}

// DeleteUser removes a user. Items assigned to them have the assignment
// cleared by the FK, not deleted.
func (r *SQLiteRepository) DeleteUser(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting user %d: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// scanUser scans a single row into a User.
func scanUser(row *sql.Row) (*User, error) {
	var u User
	var email sql.NullString
	if err := row.Scan(&u.ID, &u.Name, &email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	u.Email = email.String
	return &u, nil
}
