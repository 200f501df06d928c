package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreateLocation inserts a new location node.
func (r *SQLiteRepository) CreateLocation(ctx context.Context, loc *Location) error {
	name, err := normalizeName(loc.Name)
	if err != nil {
		return err
	}
	if loc.ParentID != nil {
		if _, err := r.GetLocation(ctx, *loc.ParentID); err != nil {
			return err
		}
	}

	const query = `INSERT INTO locations (name, parent_id) VALUES (?, ?)`
	result, err := r.db.ExecContext(ctx, query, name, nullID(loc.ParentID))
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateName
		}
		return fmt.Errorf("inserting location %s: %w", name, err)
	}
	loc.ID, _ = result.LastInsertId() //nolint:errcheck // SQLite always supports LastInsertId
	loc.Name = name
	return nil
}

// ListLocations returns all locations ordered by name. The tree shape is
// recovered from ParentID by the caller.
func (r *SQLiteRepository) ListLocations(ctx context.Context) ([]Location, error) {
	const query = `SELECT id, name, parent_id FROM locations ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying locations: %w", err)
	}
	defer rows.Close()

	var locations []Location
	for rows.Next() {
		loc, err := scanLocationRow(rows)
		if err != nil {
			return nil, err
		}
		locations = append(locations, *loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating location rows: %w", err)
	}
	return locations, nil
}

// GetLocation returns a single location by ID.
func (r *SQLiteRepository) GetLocation(ctx context.Context, id int64) (*Location, error) {
	const query = `SELECT id, name, parent_id FROM locations WHERE id = ?`
	return scanLocation(r.db.QueryRowContext(ctx, query, id))
}

// FindLocationByName returns the location matching name case-insensitively.
func (r *SQLiteRepository) FindLocationByName(ctx context.Context, name string) (*Location, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	const query = `SELECT id, name, parent_id FROM locations WHERE lower(name) = lower(?)`
	return scanLocation(r.db.QueryRowContext(ctx, query, name))
}

// EnsureLocation returns the existing location with the given name or
// creates it under parentID. Lookup is case-insensitive, so "Office" and
// "office" resolve to the same node.
func (r *SQLiteRepository) EnsureLocation(ctx context.Context, name string, parentID *int64) (*Location, error) {
	loc, err := r.FindLocationByName(ctx, name)
	if err == nil {
		return loc, nil
	}
	if !errors.Is(err, ErrLocationNotFound) {
		return nil, err
	}

	loc = &Location{Name: name, ParentID: parentID}
	if err := r.CreateLocation(ctx, loc); err != nil {
		return nil, err
	}
	return loc, nil
}

// UpdateLocation renames a location or moves it in the tree.
func (r *SQLiteRepository) UpdateLocation(ctx context.Context, loc *Location) error {
	name, err := normalizeName(loc.Name)
	if err != nil {
		return err
	}
	if loc.ParentID != nil {
		if *loc.ParentID == loc.ID {
			return fmt.Errorf("%w: location cannot be its own parent", ErrInvalidName)
		}
		if _, err := r.GetLocation(ctx, *loc.ParentID); err != nil {
			return err
		}
	}

	const query = `UPDATE locations SET name = ?, parent_id = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, name, nullID(loc.ParentID), loc.ID)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateName
		}
		return fmt.Errorf("updating location %d: %w", loc.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrLocationNotFound
	}
	loc.Name = name
	return nil
}

// DeleteLocation removes a location. Child locations are detached (their
// parent reference cleared by the FK), and items pointing at the location
// have their location cleared, not deleted.
func (r *SQLiteRepository) DeleteLocation(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM locations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting location %d: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrLocationNotFound
	}
	return nil
}

// scanLocation scans a single row into a Location (for QueryRow).
func scanLocation(row *sql.Row) (*Location, error) {
	var loc Location
	var parentID sql.NullInt64
	if err := row.Scan(&loc.ID, &loc.Name, &parentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLocationNotFound
		}
		return nil, fmt.Errorf("scanning location: %w", err)
	}
	if parentID.Valid {
		loc.ParentID = &parentID.Int64
	}
	return &loc, nil
}

// scanLocationRow scans a location from a Rows cursor.
func scanLocationRow(rows *sql.Rows) (*Location, error) {
	var loc Location
	var parentID sql.NullInt64
	if err := rows.Scan(&loc.ID, &loc.Name, &parentID); err != nil {
		return nil, fmt.Errorf("scanning location row: %w", err)
	}
	if parentID.Valid {
		loc.ParentID = &parentID.Int64
	}
	return &loc, nil
}
