package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/assetforge/assetforge-core/internal/infrastructure/database"
)

// legacyTables maps each per-type item table to its hardware type code,
// in the order rows are copied into the unified table.
var legacyTables = []struct {
	table string
	code  string
}{
	{"items_laptops", "LT"},
	{"items_network_gear", "NW"},
	{"items_landline_phones", "LL"},
	{"items_printers", "PX"},
	{"items_payment_terminals", "PT"},
	{"items_lorex_cameras", "LX"},
	{"items_eufy_cameras", "EF"},
	{"items_peripherals", "PD"},
	{"items_access_points", "AP"},
	{"items_misc", "MS"},
}

func init() {
	database.Register(database.Migration{
		Version: "20240512_100500",
		Name:    "consolidate_items",
		Up:      consolidateItemsUp,
		Down:    consolidateItemsDown,
	})
}

// consolidateItemsUp folds the ten per-type item tables into one
// hardware_items table and re-points the audit ledger at the new ids.
//
// The old ids came from item_index and are unique across tables, but
// the unified table assigns fresh ids, so every item_updates.item_id
// must be remapped. Resolution tries, in order:
//  1. the in-transaction legacy_item_map built during the copy
//  2. item_index, to disambiguate an id the map holds more than once
//  3. the unified table itself, for ledger rows written mid-migration
//
// An audit row that resolves through none of these aborts the whole
// migration; history is never silently dropped.
func consolidateItemsUp(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `
		CREATE TABLE hardware_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			model TEXT,
			type_id INTEGER NOT NULL REFERENCES hardware_types(id) ON DELETE CASCADE,
			mac_address TEXT,
			ip_address TEXT,
			location_id INTEGER REFERENCES locations(id) ON DELETE SET NULL,
			user_id INTEGER REFERENCES users(id) ON DELETE SET NULL,
			group_id INTEGER REFERENCES groups(id) ON DELETE SET NULL,
			sub_type_id INTEGER REFERENCES sub_types(id) ON DELETE SET NULL,
			notes TEXT,
			asset_tag TEXT,
			archived INTEGER NOT NULL DEFAULT 0,
			created_at_utc TEXT NOT NULL,
			updated_at_utc TEXT NOT NULL
		)`); err != nil {
		return fmt.Errorf("creating hardware_items: %w", err)
	}

	// Scratch mapping from legacy ids to unified ids. Dropped before the
	// transaction commits; it never reaches the final schema.
	if _, err := tx.ExecContext(ctx, `
		CREATE TABLE legacy_item_map (
			old_id INTEGER NOT NULL,
			old_type_id INTEGER NOT NULL,
			new_id INTEGER NOT NULL,
			PRIMARY KEY (old_id, old_type_id)
		)`); err != nil {
		return fmt.Errorf("creating legacy_item_map: %w", err)
	}

	var legacyTotal int64
	for _, lt := range legacyTables {
		copied, err := copyLegacyTable(ctx, tx, lt.table, lt.code)
		if err != nil {
			return fmt.Errorf("consolidating %s: %w", lt.table, err)
		}
		legacyTotal += copied
	}

	var unifiedTotal int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM hardware_items").Scan(&unifiedTotal); err != nil {
		return fmt.Errorf("counting unified items: %w", err)
	}
	if unifiedTotal != legacyTotal {
		return fmt.Errorf("consolidation lost rows: %d legacy, %d unified", legacyTotal, unifiedTotal)
	}

	if err := repointAuditTrail(ctx, tx); err != nil {
		return err
	}
	if err := rebuildAuditTable(ctx, tx); err != nil {
		return err
	}

	drops := []string{"DROP TABLE legacy_item_map", "DROP TABLE item_index"}
	for _, lt := range legacyTables {
		drops = append(drops, "DROP TABLE "+lt.table)
	}
	for _, stmt := range drops {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("dropping legacy table: %w", err)
		}
	}

	return nil
}

// copyLegacyTable moves every row of one per-type table into
// hardware_items and records the id mapping. Returns the row count.
func copyLegacyTable(ctx context.Context, tx *sql.Tx, table, code string) (int64, error) {
	var typeID int64
	err := tx.QueryRowContext(ctx,
		"SELECT id FROM hardware_types WHERE code = ?", code).Scan(&typeID)
	if err != nil {
		return 0, fmt.Errorf("resolving type %s: %w", code, err)
	}

	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, name, model, mac_address, ip_address, location_id,
		       user_id, group_id, sub_type_id, notes, asset_tag,
		       created_at_utc, updated_at_utc
		FROM %s ORDER BY id`, table))
	if err != nil {
		return 0, fmt.Errorf("reading legacy rows: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cleanup

	type legacyRow struct {
		id                             int64
		name                           string
		model, mac, ip, notes, tag     sql.NullString
		locID, userID, groupID, subID  sql.NullInt64
		createdAt, updatedAt           string
	}

	var copied []legacyRow
	for rows.Next() {
		var r legacyRow
		if err := rows.Scan(&r.id, &r.name, &r.model, &r.mac, &r.ip,
			&r.locID, &r.userID, &r.groupID, &r.subID,
			&r.notes, &r.tag, &r.createdAt, &r.updatedAt); err != nil {
			return 0, fmt.Errorf("scanning legacy row: %w", err)
		}
		copied = append(copied, r)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterating legacy rows: %w", err)
	}

	for _, r := range copied {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO hardware_items
				(name, model, type_id, mac_address, ip_address, location_id,
				 user_id, group_id, sub_type_id, notes, asset_tag,
				 archived, created_at_utc, updated_at_utc)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
			r.name, r.model, typeID, r.mac, r.ip, r.locID,
			r.userID, r.groupID, r.subID, r.notes, r.tag,
			r.createdAt, r.updatedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting item %d: %w", r.id, err)
		}
		newID, _ := result.LastInsertId() //nolint:errcheck // SQLite always supports LastInsertId

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO legacy_item_map (old_id, old_type_id, new_id) VALUES (?, ?, ?)",
			r.id, typeID, newID); err != nil {
			return 0, fmt.Errorf("recording id mapping for item %d: %w", r.id, err)
		}
	}

	return int64(len(copied)), nil
}

// repointAuditTrail rewrites item_updates.item_id from legacy ids to
// unified ids, erroring on any row that cannot be resolved.
func repointAuditTrail(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, "SELECT DISTINCT item_id FROM item_updates")
	if err != nil {
		return fmt.Errorf("reading audit item ids: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cleanup

	var oldIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scanning audit item id: %w", err)
		}
		oldIDs = append(oldIDs, id)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating audit item ids: %w", err)
	}

	// Stage remapped ids as negatives so a new id that collides with a
	// not-yet-processed legacy id cannot be remapped twice.
	for _, oldID := range oldIDs {
		newID, err := resolveLegacyID(ctx, tx, oldID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE item_updates SET item_id = ? WHERE item_id = ?",
			-newID, oldID); err != nil {
			return fmt.Errorf("re-pointing audit rows for item %d: %w", oldID, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE item_updates SET item_id = -item_id WHERE item_id < 0"); err != nil {
		return fmt.Errorf("finalising audit re-pointing: %w", err)
	}
	return nil
}

// resolveLegacyID maps one legacy item id to its unified id through the
// fallback chain: direct map, item_index disambiguation, final table.
func resolveLegacyID(ctx context.Context, tx *sql.Tx, oldID int64) (int64, error) {
	// Direct: unambiguous match in the mapping table.
	rows, err := tx.QueryContext(ctx,
		"SELECT new_id FROM legacy_item_map WHERE old_id = ?", oldID)
	if err != nil {
		return 0, fmt.Errorf("looking up item %d: %w", oldID, err)
	}
	var candidates []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close() //nolint:errcheck // Error path cleanup
			return 0, fmt.Errorf("scanning mapping for item %d: %w", oldID, err)
		}
		candidates = append(candidates, id)
	}
	rows.Close() //nolint:errcheck // Read-only cleanup
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterating mapping for item %d: %w", oldID, err)
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	// Ambiguous or absent: item_index knows which category owned the id.
	if len(candidates) > 1 {
		var typeID int64
		err := tx.QueryRowContext(ctx,
			"SELECT type_id FROM item_index WHERE id = ?", oldID).Scan(&typeID)
		if err == nil {
			var newID int64
			err = tx.QueryRowContext(ctx,
				"SELECT new_id FROM legacy_item_map WHERE old_id = ? AND old_type_id = ?",
				oldID, typeID).Scan(&newID)
			if err == nil {
				return newID, nil
			}
		}
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("disambiguating item %d: %w", oldID, err)
		}
	}

	// Last resort: the id already points at a unified row.
	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM hardware_items WHERE id = ?", oldID).Scan(&exists)
	if err == nil {
		return oldID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("checking unified table for item %d: %w", oldID, err)
	}

	return 0, fmt.Errorf("audit trail references item %d, which no mapping resolves", oldID)
}

// rebuildAuditTable recreates item_updates with a foreign key now that
// every item lives in one table.
func rebuildAuditTable(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE item_updates_new (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			item_id INTEGER NOT NULL REFERENCES hardware_items(id) ON DELETE CASCADE,
			reason TEXT NOT NULL,
			note TEXT,
			changed_fields TEXT NOT NULL DEFAULT '[]',
			snapshot_before_json TEXT,
			snapshot_after_json TEXT,
			created_at_utc TEXT NOT NULL
		)`,
		`INSERT INTO item_updates_new
			(id, item_id, reason, note, changed_fields,
			 snapshot_before_json, snapshot_after_json, created_at_utc)
		 SELECT id, item_id, reason, note, changed_fields,
			 snapshot_before_json, snapshot_after_json, created_at_utc
		 FROM item_updates`,
		`DROP TABLE item_updates`,
		`ALTER TABLE item_updates_new RENAME TO item_updates`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("rebuilding item_updates: %w", err)
		}
	}
	return nil
}

// consolidateItemsDown cannot restore the per-type tables; the category
// split is gone once rows share one id space.
func consolidateItemsDown(_ context.Context, _ *sql.Tx) error {
	return errors.New("consolidate_items cannot be rolled back")
}
