package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ListTypes returns all hardware types ordered by name.
func (r *SQLiteRepository) ListTypes(ctx context.Context) ([]HardwareType, error) {
	const query = `SELECT id, name, code FROM hardware_types ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying hardware types: %w", err)
	}
	defer rows.Close()

	var types []HardwareType
	for rows.Next() {
		var t HardwareType
		if err := rows.Scan(&t.ID, &t.Name, &t.Code); err != nil {
			return nil, fmt.Errorf("scanning hardware type row: %w", err)
		}
		types = append(types, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating hardware type rows: %w", err)
	}
	return types, nil
}

// GetType returns a single hardware type by ID.
func (r *SQLiteRepository) GetType(ctx context.Context, id int64) (*HardwareType, error) {
	const query = `SELECT id, name, code FROM hardware_types WHERE id = ?`
	return scanType(r.db.QueryRowContext(ctx, query, id))
}

// GetTypeByCode returns a hardware type by its tag code (e.g. "PX").
// Codes are stored uppercase; the lookup is exact.
func (r *SQLiteRepository) GetTypeByCode(ctx context.Context, code string) (*HardwareType, error) {
	const query = `SELECT id, name, code FROM hardware_types WHERE code = ?`
	return scanType(r.db.QueryRowContext(ctx, query, strings.ToUpper(strings.TrimSpace(code))))
}

// CreateType inserts a new hardware type. The code is uppercased.
func (r *SQLiteRepository) CreateType(ctx context.Context, t *HardwareType) error {
	name, err := normalizeName(t.Name)
	if err != nil {
		return err
	}
	code := strings.ToUpper(strings.TrimSpace(t.Code))
	if code == "" {
		return fmt.Errorf("%w: empty code", ErrInvalidName)
	}

	const query = `INSERT INTO hardware_types (name, code) VALUES (?, ?)`
	result, err := r.db.ExecContext(ctx, query, name, code)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrTypeExists
		}
		return fmt.Errorf("inserting hardware type %s: %w", name, err)
	}
	t.ID, _ = result.LastInsertId() //nolint:errcheck // SQLite always supports LastInsertId
	t.Name = name
	t.Code = code
	return nil
}

// UpdateType renames a hardware type and, when unreferenced, changes its
// code. Returns ErrTypeInUse if the code would change while items still
// reference the type: the code is baked into printed asset tags.
func (r *SQLiteRepository) UpdateType(ctx context.Context, t *HardwareType) error {
	name, err := normalizeName(t.Name)
	if err != nil {
		return err
	}
	code := strings.ToUpper(strings.TrimSpace(t.Code))

	current, err := r.GetType(ctx, t.ID)
	if err != nil {
		return err
	}

	if code != current.Code {
		refs, err := r.typeReferenceCount(ctx, t.ID)
		if err != nil {
			return err
		}
		if refs > 0 {
			return ErrTypeInUse
		}
	}

	const query = `UPDATE hardware_types SET name = ?, code = ? WHERE id = ?`
	_, err = r.db.ExecContext(ctx, query, name, code, t.ID)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrTypeExists
		}
		return fmt.Errorf("updating hardware type %d: %w", t.ID, err)
	}
	t.Name = name
	t.Code = code
	return nil
}

// DeleteType removes a hardware type. Returns ErrTypeInUse while items
// reference it; removal must be an explicit administrative act after the
// items are purged, not a silent cascade from a catalog edit.
func (r *SQLiteRepository) DeleteType(ctx context.Context, id int64) error {
	refs, err := r.typeReferenceCount(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return ErrTypeInUse
	}

	result, err := r.db.ExecContext(ctx, "DELETE FROM hardware_types WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting hardware type %d: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrTypeNotFound
	}
	return nil
}

// typeReferenceCount counts items referencing a hardware type.
func (r *SQLiteRepository) typeReferenceCount(ctx context.Context, id int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM hardware_items WHERE type_id = ?", id,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting items for type %d: %w", id, err)
	}
	return count, nil
}

// scanType scans a single row into a HardwareType.
func scanType(row *sql.Row) (*HardwareType, error) {
	var t HardwareType
	if err := row.Scan(&t.ID, &t.Name, &t.Code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTypeNotFound
		}
		return nil, fmt.Errorf("scanning hardware type: %w", err)
	}
	return &t, nil
}
