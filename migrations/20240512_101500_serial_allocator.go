package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/assetforge/assetforge-core/internal/infrastructure/database"
)

func init() {
	database.Register(database.Migration{
		Version: "20240512_101500",
		Name:    "serial_allocator",
		Up:      serialAllocatorUp,
		Down:    serialAllocatorDown,
	})
}

// serialAllocatorUp introduces the per-type serial space. Legacy asset
// tags were typed by hand and drifted; from here on the tag is derived
// from (type code, serial) and never entered manually.
//
// Existing items are backfilled in (created_at_utc, id) order within
// each type, so older items keep lower serials, and every tag is
// regenerated from the new serial. Counters start at max(serial)+1.
func serialAllocatorUp(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		"ALTER TABLE hardware_items ADD COLUMN type_serial INTEGER",
		`CREATE TABLE type_counters (
			type_id INTEGER PRIMARY KEY REFERENCES hardware_types(id) ON DELETE CASCADE,
			next_serial INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("preparing serial columns: %w", err)
		}
	}

	types, err := loadTypeCodes(ctx, tx)
	if err != nil {
		return err
	}

	for typeID, code := range types {
		assigned, err := backfillTypeSerials(ctx, tx, typeID, code)
		if err != nil {
			return fmt.Errorf("backfilling type %s: %w", code, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO type_counters (type_id, next_serial) VALUES (?, ?)",
			typeID, assigned+1); err != nil {
			return fmt.Errorf("seeding counter for type %s: %w", code, err)
		}
	}

	constraints := []string{
		"CREATE UNIQUE INDEX idx_items_type_serial ON hardware_items(type_id, type_serial)",
		"CREATE UNIQUE INDEX idx_items_asset_tag ON hardware_items(asset_tag)",
		`CREATE UNIQUE INDEX idx_items_mac ON hardware_items(lower(mac_address))
			WHERE mac_address IS NOT NULL`,
		`CREATE UNIQUE INDEX idx_items_ip ON hardware_items(ip_address)
			WHERE ip_address IS NOT NULL`,
	}
	for _, stmt := range constraints {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating identity constraints: %w", err)
		}
	}
	return nil
}

// loadTypeCodes returns all hardware types as id -> code.
func loadTypeCodes(ctx context.Context, tx *sql.Tx) (map[int64]string, error) {
	rows, err := tx.QueryContext(ctx, "SELECT id, code FROM hardware_types")
	if err != nil {
		return nil, fmt.Errorf("loading type codes: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cleanup

	types := make(map[int64]string)
	for rows.Next() {
		var id int64
		var code string
		if err := rows.Scan(&id, &code); err != nil {
			return nil, fmt.Errorf("scanning type code: %w", err)
		}
		types[id] = code
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating type codes: %w", err)
	}
	return types, nil
}

// backfillTypeSerials assigns ascending serials to one type's items and
// regenerates their tags. Returns the highest serial assigned.
func backfillTypeSerials(ctx context.Context, tx *sql.Tx, typeID int64, code string) (int64, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM hardware_items WHERE type_id = ?
		ORDER BY created_at_utc, id`, typeID)
	if err != nil {
		return 0, fmt.Errorf("listing items: %w", err)
	}

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close() //nolint:errcheck // Error path cleanup
			return 0, fmt.Errorf("scanning item id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close() //nolint:errcheck // Read-only cleanup
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterating item ids: %w", err)
	}

	for i, id := range ids {
		serial := int64(i + 1)
		tag := fmt.Sprintf("SDMM-%s-%04d", code, serial)
		if _, err := tx.ExecContext(ctx, `
			UPDATE hardware_items SET type_serial = ?, asset_tag = ?
			WHERE id = ?`, serial, tag, id); err != nil {
			return 0, fmt.Errorf("assigning serial %d to item %d: %w", serial, id, err)
		}
	}
	return int64(len(ids)), nil
}

// serialAllocatorDown removes the serial space. Legacy hand-typed tags
// are gone, so tags are left as regenerated.
func serialAllocatorDown(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		"DROP INDEX IF EXISTS idx_items_ip",
		"DROP INDEX IF EXISTS idx_items_mac",
		"DROP INDEX IF EXISTS idx_items_asset_tag",
		"DROP INDEX IF EXISTS idx_items_type_serial",
		"DROP TABLE IF EXISTS type_counters",
		"ALTER TABLE hardware_items DROP COLUMN type_serial",
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("rolling back serial allocator: %w", err)
		}
	}
	return nil
}
