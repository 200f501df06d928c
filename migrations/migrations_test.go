package migrations

import (
	"context"
	"strings"
	"testing"

	"github.com/assetforge/assetforge-core/internal/infrastructure/database"
)

const versionBaseline = "20240512_100000"

func openTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        ":memory:",
		BusyTimeout: 1,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close() //nolint:errcheck // Test cleanup
	})
	return db
}

func mustExec(t *testing.T, db *database.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.ExecContext(context.Background(), query, args...); err != nil {
		t.Fatalf("exec failed: %v\nquery: %s", err, query)
	}
}

func queryInt(t *testing.T, db *database.DB, query string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := db.QueryRowContext(context.Background(), query, args...).Scan(&n); err != nil {
		t.Fatalf("query failed: %v\nquery: %s", err, query)
	}
	return n
}

// seedLegacyData populates the baseline schema with the kind of data
// the per-type era actually accumulated: items spread across category
// tables, hand-typed tags, duplicate catalog names, and ledger rows
// keyed by item_index ids.
func seedLegacyData(t *testing.T, db *database.DB) {
	t.Helper()

	// Duplicate locations differing only in case, plus a child pointing
	// at the duplicate.
	mustExec(t, db, `INSERT INTO locations (id, name) VALUES (1, 'Warehouse'), (2, 'warehouse')`)
	mustExec(t, db, `INSERT INTO locations (id, name, parent_id) VALUES (3, 'Shelf B', 2)`)

	// Explicit item_index ids that will not collide with the fresh ids
	// the unified table assigns.
	lt := queryInt(t, db, "SELECT id FROM hardware_types WHERE code = 'LT'")
	px := queryInt(t, db, "SELECT id FROM hardware_types WHERE code = 'PX'")
	ll := queryInt(t, db, "SELECT id FROM hardware_types WHERE code = 'LL'")
	mustExec(t, db, `INSERT INTO item_index (id, type_id) VALUES
		(10, ?), (11, ?), (12, ?), (13, ?)`, lt, lt, px, ll)

	// Two laptops: the higher id was created first, so the serial
	// backfill must order by created_at_utc, not id.
	mustExec(t, db, `INSERT INTO items_laptops
		(id, name, asset_tag, location_id, created_at_utc, updated_at_utc) VALUES
		(10, 'Newer laptop', 'OLD-TAG-B', 2, '2024-02-01T10:00:00Z', '2024-02-01T10:00:00Z'),
		(11, 'Older laptop', 'OLD-TAG-A', 1, '2024-01-01T10:00:00Z', '2024-01-01T10:00:00Z')`)
	mustExec(t, db, `INSERT INTO items_printers
		(id, name, asset_tag, created_at_utc, updated_at_utc) VALUES
		(12, 'Front desk printer', 'PRN-001', '2024-01-15T10:00:00Z', '2024-01-15T10:00:00Z')`)
	mustExec(t, db, `INSERT INTO items_landline_phones
		(id, name, created_at_utc, updated_at_utc) VALUES
		(13, 'Reception phone', '2024-01-20T10:00:00Z', '2024-01-20T10:00:00Z')`)

	// Ledger rows keyed by the legacy ids.
	mustExec(t, db, `INSERT INTO item_updates
		(item_id, reason, created_at_utc) VALUES
		(10, 'create', '2024-02-01T10:00:00Z'),
		(11, 'create', '2024-01-01T10:00:00Z'),
		(12, 'create', '2024-01-15T10:00:00Z'),
		(13, 'create', '2024-01-20T10:00:00Z'),
		(11, 'update', '2024-01-05T10:00:00Z')`)
}

func TestMigrate_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus: %v", err)
	}
	if len(applied) != 6 {
		t.Errorf("applied migrations = %d, want 6", len(applied))
	}
	if len(pending) != 0 {
		t.Errorf("pending migrations = %d, want 0", len(pending))
	}

	// Final schema is in place: unified items, attributes, allocator,
	// no legacy tables.
	if n := queryInt(t, db, "SELECT COUNT(*) FROM hardware_items"); n != 0 {
		t.Errorf("hardware_items rows = %d, want 0", n)
	}
	if n := queryInt(t, db,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'item_attributes'"); n != 1 {
		t.Errorf("item_attributes table missing")
	}
	if n := queryInt(t, db, "SELECT COUNT(*) FROM type_counters"); n != 10 {
		t.Errorf("type_counters rows = %d, want 10 (one per seeded type)", n)
	}
	if n := queryInt(t, db,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name LIKE 'items_%'"); n != 0 {
		t.Errorf("legacy tables remaining = %d, want 0", n)
	}
	if n := queryInt(t, db, "SELECT COUNT(*) FROM hardware_types"); n != 10 {
		t.Errorf("hardware_types = %d, want 10", n)
	}

	if err := db.Verify(ctx); err != nil {
		t.Errorf("Verify after migrate: %v", err)
	}
}

func TestMigrate_LegacyDataCarriedForward(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.MigrateTo(ctx, versionBaseline); err != nil {
		t.Fatalf("MigrateTo baseline: %v", err)
	}
	seedLegacyData(t, db)

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	// Every legacy row survived consolidation.
	if n := queryInt(t, db, "SELECT COUNT(*) FROM hardware_items"); n != 4 {
		t.Errorf("hardware_items rows = %d, want 4", n)
	}

	// Audit rows were re-pointed: the older laptop had two entries under
	// legacy id 11, and both must now follow it.
	olderID := queryInt(t, db, "SELECT id FROM hardware_items WHERE name = 'Older laptop'")
	if n := queryInt(t, db,
		"SELECT COUNT(*) FROM item_updates WHERE item_id = ?", olderID); n != 2 {
		t.Errorf("audit rows for older laptop = %d, want 2", n)
	}
	if n := queryInt(t, db, "SELECT COUNT(*) FROM item_updates"); n != 5 {
		t.Errorf("total audit rows = %d, want 5", n)
	}

	// Serial backfill ordered by creation time within the type.
	var tag string
	err := db.QueryRowContext(ctx,
		"SELECT asset_tag FROM hardware_items WHERE name = 'Older laptop'").Scan(&tag)
	if err != nil {
		t.Fatalf("reading older laptop tag: %v", err)
	}
	if tag != "SDMM-LT-0001" {
		t.Errorf("older laptop tag = %q, want SDMM-LT-0001", tag)
	}
	err = db.QueryRowContext(ctx,
		"SELECT asset_tag FROM hardware_items WHERE name = 'Newer laptop'").Scan(&tag)
	if err != nil {
		t.Fatalf("reading newer laptop tag: %v", err)
	}
	if tag != "SDMM-LT-0002" {
		t.Errorf("newer laptop tag = %q, want SDMM-LT-0002", tag)
	}

	// Counters continue past the backfilled serials.
	lt := queryInt(t, db, "SELECT id FROM hardware_types WHERE code = 'LT'")
	if n := queryInt(t, db,
		"SELECT next_serial FROM type_counters WHERE type_id = ?", lt); n != 3 {
		t.Errorf("laptop counter = %d, want 3", n)
	}
	nw := queryInt(t, db, "SELECT id FROM hardware_types WHERE code = 'NW'")
	if n := queryInt(t, db,
		"SELECT next_serial FROM type_counters WHERE type_id = ?", nw); n != 1 {
		t.Errorf("empty type counter = %d, want 1", n)
	}

	// Catalog dedupe kept the lowest id and re-pointed references.
	if n := queryInt(t, db, "SELECT COUNT(*) FROM locations"); n != 2 {
		t.Errorf("locations after dedupe = %d, want 2", n)
	}
	newerID := queryInt(t, db, "SELECT id FROM hardware_items WHERE name = 'Newer laptop'")
	if n := queryInt(t, db,
		"SELECT location_id FROM hardware_items WHERE id = ?", newerID); n != 1 {
		t.Errorf("newer laptop location = %d, want canonical 1", n)
	}
	if n := queryInt(t, db,
		"SELECT parent_id FROM locations WHERE name = 'Shelf B'"); n != 1 {
		t.Errorf("shelf parent = %d, want canonical 1", n)
	}

	if err := db.Verify(ctx); err != nil {
		t.Errorf("Verify after migrate: %v", err)
	}
}

func TestMigrate_ExtensionGuardTriggers(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.MigrateTo(ctx, versionBaseline); err != nil {
		t.Fatalf("MigrateTo baseline: %v", err)
	}
	seedLegacyData(t, db)
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	// Direct SQL cannot give a laptop an extension.
	_, err := db.ExecContext(ctx,
		"UPDATE hardware_items SET extension = '4411' WHERE name = 'Older laptop'")
	if err == nil || !strings.Contains(err.Error(), "landline") {
		t.Errorf("extension on laptop error = %v, want trigger abort", err)
	}

	// A landline phone accepts one.
	if _, err := db.ExecContext(ctx,
		"UPDATE hardware_items SET extension = '4411' WHERE name = 'Reception phone'"); err != nil {
		t.Errorf("extension on landline: %v", err)
	}
}

func TestMigrate_UnresolvableAuditRowAborts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.MigrateTo(ctx, versionBaseline); err != nil {
		t.Fatalf("MigrateTo baseline: %v", err)
	}

	// A ledger row pointing at an item no table has ever held.
	mustExec(t, db, `INSERT INTO item_updates
		(item_id, reason, created_at_utc) VALUES (999, 'create', '2024-01-01T10:00:00Z')`)

	err := db.Migrate(ctx)
	if err == nil {
		t.Fatal("Migrate should fail on unresolvable audit row")
	}
	if !strings.Contains(err.Error(), "999") {
		t.Errorf("error should name the orphaned item id: %v", err)
	}

	// The failed consolidation rolled back; only the baseline is applied
	// and the legacy tables are intact.
	applied, _, statusErr := db.GetMigrationStatus(ctx)
	if statusErr != nil {
		t.Fatalf("GetMigrationStatus: %v", statusErr)
	}
	if len(applied) != 1 || applied[0].Version != versionBaseline {
		t.Errorf("applied = %+v, want baseline only", applied)
	}
	if n := queryInt(t, db, "SELECT COUNT(*) FROM item_updates"); n != 1 {
		t.Errorf("ledger rows = %d, want 1 (untouched)", n)
	}
}

func TestMigrateDown_RollsBackOneStep(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	// First step back drops the attribute table only.
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown: %v", err)
	}
	if n := queryInt(t, db,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'item_attributes'"); n != 0 {
		t.Errorf("item_attributes table still present")
	}
	if n := queryInt(t, db,
		"SELECT COUNT(*) FROM pragma_table_info('hardware_items') WHERE name = 'extension'"); n != 1 {
		t.Errorf("extension column should survive the first step back")
	}

	// Second step back removes the extension column and its triggers.
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown: %v", err)
	}
	if n := queryInt(t, db,
		"SELECT COUNT(*) FROM pragma_table_info('hardware_items') WHERE name = 'extension'"); n != 0 {
		t.Errorf("extension column still present")
	}
	if n := queryInt(t, db,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'trigger' AND name LIKE 'trg_items_extension%'"); n != 0 {
		t.Errorf("extension triggers still present")
	}

	applied, _, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus: %v", err)
	}
	if len(applied) != 4 {
		t.Errorf("applied after down = %d, want 4", len(applied))
	}
}
