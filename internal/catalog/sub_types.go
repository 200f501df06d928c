package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreateSubType inserts a new sub-type.
func (r *SQLiteRepository) CreateSubType(ctx context.Context, s *SubType) error {
	name, err := normalizeName(s.Name)
	if err != nil {
		return err
	}

	const query = `INSERT INTO sub_types (name) VALUES (?)`
	result, err := r.db.ExecContext(ctx, query, name)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateName
		}
		return fmt.Errorf("inserting sub-type %s: %w", name, err)
	}
	s.ID, _ = result.LastInsertId() //nolint:errcheck // SQLite always supports LastInsertId
	s.Name = name
	return nil
}

// ListSubTypes returns all sub-types ordered by name.
func (r *SQLiteRepository) ListSubTypes(ctx context.Context) ([]SubType, error) { //nolint:dupl // groups and sub-types differ in types and errors
	const query = `SELECT id, name FROM sub_types ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying sub-types: %w", err)
	}
	defer rows.Close()

	var subTypes []SubType
	for rows.Next() {
		var s SubType
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, fmt.Errorf("scanning sub-type row: %w", err)
		}
		subTypes = append(subTypes, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sub-type rows: %w", err)
	}
	return subTypes, nil
}

// GetSubType returns a single sub-type by ID.
func (r *SQLiteRepository) GetSubType(ctx context.Context, id int64) (*SubType, error) {
	const query = `SELECT id, name FROM sub_types WHERE id = ?`
	return scanSubType(r.db.QueryRowContext(ctx, query, id))
}

// FindSubTypeByName returns the sub-type matching name case-insensitively.
func (r *SQLiteRepository) FindSubTypeByName(ctx context.Context, name string) (*SubType, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	const query = `SELECT id, name FROM sub_types WHERE lower(name) = lower(?)`
	return scanSubType(r.db.QueryRowContext(ctx, query, name))
}

// EnsureSubType returns the existing sub-type with the given name or creates one.
func (r *SQLiteRepository) EnsureSubType(ctx context.Context, name string) (*SubType, error) {
	s, err := r.FindSubTypeByName(ctx, name)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrSubTypeNotFound) {
		return nil, err
	}

	s = &SubType{Name: name}
	if err := r.CreateSubType(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// DeleteSubType removes a sub-type. Item references are cleared by the FK.
func (r *SQLiteRepository) DeleteSubType(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM sub_types WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting sub-type %d: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrSubTypeNotFound
	}
	return nil
}

// scanSubType scans a single row into a SubType.
func scanSubType(row *sql.Row) (*SubType, error) {
	var s SubType
	if err := row.Scan(&s.ID, &s.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubTypeNotFound
		}
		return nil, fmt.Errorf("scanning sub-type: %w", err)
	}
	return &s, nil
}
