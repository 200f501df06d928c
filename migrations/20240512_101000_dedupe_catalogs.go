package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/assetforge/assetforge-core/internal/infrastructure/database"
)

// catalogDedupe describes one catalog table to collapse: the columns in
// other tables that reference it and must be remapped before duplicate
// rows are deleted.
type catalogDedupe struct {
	table     string
	indexName string
	refs      []catalogRef
}

type catalogRef struct {
	table  string
	column string
}

var catalogDedupes = []catalogDedupe{
	{
		table:     "locations",
		indexName: "idx_locations_name",
		refs: []catalogRef{
			{"hardware_items", "location_id"},
			{"locations", "parent_id"},
		},
	},
	{
		table:     "users",
		indexName: "idx_users_name",
		refs:      []catalogRef{{"hardware_items", "user_id"}},
	},
	{
		table:     "groups",
		indexName: "idx_groups_name",
		refs:      []catalogRef{{"hardware_items", "group_id"}},
	},
	{
		table:     "sub_types",
		indexName: "idx_sub_types_name",
		refs:      []catalogRef{{"hardware_items", "sub_type_id"}},
	},
}

func init() {
	database.Register(database.Migration{
		Version: "20240512_101000",
		Name:    "dedupe_catalogs",
		Up:      dedupeCatalogsUp,
		Down:    dedupeCatalogsDown,
	})
}

// dedupeCatalogsUp collapses case-insensitive name collisions in each
// catalog table. Years of free-text entry left rows like "Warehouse"
// and "warehouse" side by side; the lowest id becomes canonical.
//
// Every referencing column is re-pointed at the canonical row before
// the duplicates are deleted, so no item loses its location or owner.
// A unique index on lower(name) then prevents recurrence.
func dedupeCatalogsUp(ctx context.Context, tx *sql.Tx) error {
	for _, cd := range catalogDedupes {
		if err := dedupeCatalog(ctx, tx, cd); err != nil {
			return fmt.Errorf("deduplicating %s: %w", cd.table, err)
		}
	}
	return nil
}

func dedupeCatalog(ctx context.Context, tx *sql.Tx, cd catalogDedupe) error {
	// Pair every duplicate row with the canonical (lowest-id) row
	// sharing its folded name.
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`
		SELECT t.id, canon.id
		FROM %[1]s t
		JOIN (
			SELECT lower(name) AS folded, MIN(id) AS id
			FROM %[1]s GROUP BY lower(name)
		) canon ON lower(t.name) = canon.folded
		WHERE t.id != canon.id`, cd.table))
	if err != nil {
		return fmt.Errorf("finding duplicates: %w", err)
	}

	type remap struct{ dup, canon int64 }
	var remaps []remap
	for rows.Next() {
		var r remap
		if err := rows.Scan(&r.dup, &r.canon); err != nil {
			rows.Close() //nolint:errcheck // Error path cleanup
			return fmt.Errorf("scanning duplicate: %w", err)
		}
		remaps = append(remaps, r)
	}
	rows.Close() //nolint:errcheck // Read-only cleanup
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating duplicates: %w", err)
	}

	for _, r := range remaps {
		// Re-point references first, then delete. The order matters:
		// deleting first would silently null out item references through
		// the ON DELETE SET NULL foreign keys.
		for _, ref := range cd.refs {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(
				"UPDATE %s SET %s = ? WHERE %s = ?",
				ref.table, ref.column, ref.column),
				r.canon, r.dup); err != nil {
				return fmt.Errorf("re-pointing %s.%s: %w", ref.table, ref.column, err)
			}
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			"DELETE FROM %s WHERE id = ?", cd.table), r.dup); err != nil {
			return fmt.Errorf("deleting duplicate %d: %w", r.dup, err)
		}
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		"CREATE UNIQUE INDEX %s ON %s(lower(name))",
		cd.indexName, cd.table)); err != nil {
		return fmt.Errorf("creating unique name index: %w", err)
	}
	return nil
}

// dedupeCatalogsDown drops the unique name indexes. The deleted
// duplicate rows are not restorable.
func dedupeCatalogsDown(ctx context.Context, tx *sql.Tx) error {
	for _, cd := range catalogDedupes {
		if _, err := tx.ExecContext(ctx,
			"DROP INDEX IF EXISTS "+cd.indexName); err != nil {
			return fmt.Errorf("dropping index %s: %w", cd.indexName, err)
		}
	}
	return nil
}
