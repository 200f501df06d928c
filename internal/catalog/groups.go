package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreateGroup inserts a new group.
func (r *SQLiteRepository) CreateGroup(ctx context.Context, g *Group) error {
	name, err := normalizeName(g.Name)
	if err != nil {
		return err
	}

	const query = `INSERT INTO groups (name) VALUES (?)`
	result, err := r.db.ExecContext(ctx, query, name)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateName
		}
		return fmt.Errorf("inserting group %s: %w", name, err)
	}
	g.ID, _ = result.LastInsertId() //nolint:errcheck // SQLite always supports LastInsertId
	g.Name = name
	return nil
}

// ListGroups returns all groups ordered by name.
func (r *SQLiteRepository) ListGroups(ctx context.Context) ([]Group, error) { //nolint:dupl // groups and sub-types differ in types and errors
	const query = `SELECT id, name FROM groups ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("scanning group row: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating group rows: %w", err)
	}
	return groups, nil
}

// GetGroup returns a single group by ID.
func (r *SQLiteRepository) GetGroup(ctx context.Context, id int64) (*Group, error) {
	const query = `SELECT id, name FROM groups WHERE id = ?`
	return scanGroup(r.db.QueryRowContext(ctx, query, id))
}

// FindGroupByName returns the group matching name case-insensitively.
func (r *SQLiteRepository) FindGroupByName(ctx context.Context, name string) (*Group, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	const query = `SELECT id, name FROM groups WHERE lower(name) = lower(?)`
	return scanGroup(r.db.QueryRowContext(ctx, query, name))
}

// EnsureGroup returns the existing group with the given name or creates one.
func (r *SQLiteRepository) EnsureGroup(ctx context.Context, name string) (*Group, error) {
	g, err := r.FindGroupByName(ctx, name)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, ErrGroupNotFound) {
		return nil, err
	}

	g = &Group{Name: name}
	if err := r.CreateGroup(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// DeleteGroup removes a group. Item assignments are cleared by the FK.
func (r *SQLiteRepository) DeleteGroup(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM groups WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting group %d: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrGroupNotFound
	}
	return nil
}

// scanGroup scans a single row into a Group.
func scanGroup(row *sql.Row) (*Group, error) {
	var g Group
	if err := row.Scan(&g.ID, &g.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("scanning group: %w", err)
	}
	return &g, nil
}
