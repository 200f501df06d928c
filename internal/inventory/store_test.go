package inventory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/assetforge/assetforge-core/internal/infrastructure/database"
	"github.com/assetforge/assetforge-core/internal/infrastructure/logging"
)

// testSchema mirrors the migrated schema with a small fixture set
// baked in. The migration tests and the migrated-schema test exercise
// the real sequence; this keeps the store tests self-contained.
const testSchema = `
	CREATE TABLE hardware_types (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		code TEXT NOT NULL UNIQUE
	);

	CREATE TABLE locations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		parent_id INTEGER REFERENCES locations(id) ON DELETE SET NULL
	);
	CREATE UNIQUE INDEX idx_locations_name ON locations(lower(name));

	CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT
	);
	CREATE UNIQUE INDEX idx_users_name ON users(lower(name));

	CREATE TABLE groups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL
	);
	CREATE UNIQUE INDEX idx_groups_name ON groups(lower(name));

	CREATE TABLE sub_types (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL
	);
	CREATE UNIQUE INDEX idx_sub_types_name ON sub_types(lower(name));

	CREATE TABLE ip_addresses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ip_address TEXT NOT NULL UNIQUE
	);

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
		type_serial INTEGER,
		asset_tag TEXT NOT NULL UNIQUE,
		extension TEXT,
		archived INTEGER NOT NULL DEFAULT 0,
		created_at_utc TEXT NOT NULL,
		updated_at_utc TEXT NOT NULL,
		UNIQUE (type_id, type_serial)
	);
	CREATE UNIQUE INDEX idx_items_mac ON hardware_items(lower(mac_address))
		WHERE mac_address IS NOT NULL;
	CREATE UNIQUE INDEX idx_items_ip ON hardware_items(ip_address)
		WHERE ip_address IS NOT NULL;

	CREATE TABLE type_counters (
		type_id INTEGER PRIMARY KEY REFERENCES hardware_types(id) ON DELETE CASCADE,
		next_serial INTEGER NOT NULL
	);

	CREATE TABLE item_updates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id INTEGER NOT NULL REFERENCES hardware_items(id) ON DELETE CASCADE,
		reason TEXT NOT NULL,
		note TEXT,
		changed_fields TEXT NOT NULL DEFAULT '[]',
		snapshot_before_json TEXT,
		snapshot_after_json TEXT,
		created_at_utc TEXT NOT NULL
	);

	CREATE TABLE item_attributes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id INTEGER NOT NULL REFERENCES hardware_items(id) ON DELETE CASCADE,
		attr_key TEXT NOT NULL,
		attr_value TEXT,
		created_at_utc TEXT NOT NULL,
		updated_at_utc TEXT NOT NULL,
		UNIQUE (item_id, attr_key)
	);

	INSERT INTO hardware_types (name, code) VALUES
		('Laptops / PCs', 'LT'),
		('Network Gear', 'NW'),
		('Landline Phones', 'LL'),
		('Printers', 'PX');

	INSERT INTO locations (name) VALUES ('Head Office'), ('Warehouse');
	INSERT INTO users (name, email) VALUES ('Dana Smith', 'dana@example.com');
	INSERT INTO groups (name) VALUES ('Finance');
	INSERT INTO sub_types (name) VALUES ('Workstation');
	INSERT INTO ip_addresses (ip_address) VALUES
		('192.168.1.10'), ('192.168.1.11'), ('192.168.1.12');
`

// setupStore opens an in-memory database with the unified schema and
// returns a Store over it.
func setupStore(t *testing.T) *Store {
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

	if _, err := db.ExecContext(context.Background(), testSchema); err != nil {
		t.Fatalf("failed to create test schema: %v", err)
	}

	return NewStore(db, logging.Default())
}

// typeID looks up a hardware type id by code.
func typeID(t *testing.T, s *Store, code string) int64 {
	t.Helper()
	var id int64
	err := s.db.QueryRowContext(context.Background(),
		"SELECT id FROM hardware_types WHERE code = ?", code).Scan(&id)
	if err != nil {
		t.Fatalf("looking up type %s: %v", code, err)
	}
	return id
}

func strp(s string) *string { return &s }
func idp(i int64) *int64    { return &i }

func TestCreate_PrinterScenario(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	px := typeID(t, s, "PX")

	first, err := s.Create(ctx, Draft{Name: "Front desk printer", TypeID: px})
	if err != nil {
		t.Fatalf("Create first: %v", err)
	}
	if first.TypeSerial != 1 {
		t.Errorf("first serial = %d, want 1", first.TypeSerial)
	}
	if first.AssetTag != "SDMM-PX-0001" {
		t.Errorf("first tag = %q, want SDMM-PX-0001", first.AssetTag)
	}

	second, err := s.Create(ctx, Draft{Name: "Back office printer", TypeID: px})
	if err != nil {
		t.Fatalf("Create second: %v", err)
	}
	if second.TypeSerial != 2 {
		t.Errorf("second serial = %d, want 2", second.TypeSerial)
	}
	if second.AssetTag != "SDMM-PX-0002" {
		t.Errorf("second tag = %q, want SDMM-PX-0002", second.AssetTag)
	}

	// Archiving keeps identity; reactivating restores the same identity.
	archived, err := s.Archive(ctx, first.ID, "sent to storage")
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if !archived.Archived || archived.AssetTag != "SDMM-PX-0001" || archived.TypeSerial != 1 {
		t.Errorf("archived item = %+v, want archived with unchanged identity", archived)
	}

	restored, err := s.Reactivate(ctx, first.ID, "back in service")
	if err != nil {
		t.Fatalf("Reactivate: %v", err)
	}
	if restored.Archived || restored.AssetTag != "SDMM-PX-0001" || restored.TypeSerial != 1 {
		t.Errorf("restored item = %+v, want active with unchanged identity", restored)
	}
}

func TestCreate_SerialsGaplessPerType(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	lt := typeID(t, s, "LT")
	nw := typeID(t, s, "NW")

	for i := 1; i <= 5; i++ {
		item, err := s.Create(ctx, Draft{Name: fmt.Sprintf("Laptop %d", i), TypeID: lt})
		if err != nil {
			t.Fatalf("Create laptop %d: %v", i, err)
		}
		if item.TypeSerial != int64(i) {
			t.Errorf("laptop %d serial = %d, want %d", i, item.TypeSerial, i)
		}
	}

	// A different type counts independently from 1.
	sw, err := s.Create(ctx, Draft{Name: "Core switch", TypeID: nw})
	if err != nil {
		t.Fatalf("Create switch: %v", err)
	}
	if sw.TypeSerial != 1 {
		t.Errorf("switch serial = %d, want 1", sw.TypeSerial)
	}
	if sw.AssetTag != "SDMM-NW-0001" {
		t.Errorf("switch tag = %q, want SDMM-NW-0001", sw.AssetTag)
	}
}

func TestCreate_ValidationFailureReleasesNoSerial(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	lt := typeID(t, s, "LT")

	// Bad MAC aborts the transaction before the insert.
	_, err := s.Create(ctx, Draft{Name: "Broken", TypeID: lt, MACAddress: strp("nope")})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Create error = %v, want ErrValidation", err)
	}

	// A failed create must not burn a serial.
	item, err := s.Create(ctx, Draft{Name: "Good", TypeID: lt})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if item.TypeSerial != 1 {
		t.Errorf("serial after failed create = %d, want 1", item.TypeSerial)
	}
}

func TestCreate_MACCaseInsensitiveDuplicate(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	lt := typeID(t, s, "LT")

	if _, err := s.Create(ctx, Draft{
		Name: "First", TypeID: lt, MACAddress: strp("AA:BB:CC:DD:EE:FF"),
	}); err != nil {
		t.Fatalf("Create first: %v", err)
	}

	_, err := s.Create(ctx, Draft{
		Name: "Second", TypeID: lt, MACAddress: strp("aa:bb:cc:dd:ee:ff"),
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate mac error = %v, want ErrDuplicate", err)
	}

	// Separator style does not matter either.
	_, err = s.Create(ctx, Draft{
		Name: "Third", TypeID: lt, MACAddress: strp("aa-bb-cc-dd-ee-ff"),
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("dashed duplicate mac error = %v, want ErrDuplicate", err)
	}
}

func TestCreate_IPPoolRules(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	nw := typeID(t, s, "NW")

	// Outside the managed pool.
	_, err := s.Create(ctx, Draft{Name: "Rogue", TypeID: nw, IPAddress: strp("10.0.0.1")})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("unpooled ip error = %v, want ErrValidation", err)
	}

	// Malformed address.
	_, err = s.Create(ctx, Draft{Name: "Broken", TypeID: nw, IPAddress: strp("999.1.1.1")})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("malformed ip error = %v, want ErrValidation", err)
	}

	if _, err := s.Create(ctx, Draft{
		Name: "Switch", TypeID: nw, IPAddress: strp("192.168.1.10"),
	}); err != nil {
		t.Fatalf("Create with pooled ip: %v", err)
	}

	// Address already held by a live item.
	_, err = s.Create(ctx, Draft{Name: "AP", TypeID: nw, IPAddress: strp("192.168.1.10")})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("held ip error = %v, want ErrDuplicate", err)
	}
}

func TestCreate_ExtensionOnlyForLandlines(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	lt := typeID(t, s, "LT")
	ll := typeID(t, s, "LL")

	_, err := s.Create(ctx, Draft{Name: "Laptop", TypeID: lt, Extension: strp("4411")})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("extension on laptop error = %v, want ErrValidation", err)
	}

	phone, err := s.Create(ctx, Draft{Name: "Reception phone", TypeID: ll, Extension: strp("4411")})
	if err != nil {
		t.Fatalf("Create landline: %v", err)
	}
	if phone.Extension == nil || *phone.Extension != "4411" {
		t.Errorf("landline extension = %v, want 4411", phone.Extension)
	}
}

func TestCreate_UnknownReferences(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	lt := typeID(t, s, "LT")

	_, err := s.Create(ctx, Draft{Name: "Laptop", TypeID: 999})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("unknown type error = %v, want ErrValidation", err)
	}

	_, err = s.Create(ctx, Draft{Name: "Laptop", TypeID: lt, LocationID: idp(999)})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("unknown location error = %v, want ErrValidation", err)
	}
}

func TestUpdate_TypeChangeRederivesTag(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	lt := typeID(t, s, "LT")
	nw := typeID(t, s, "NW")

	item, err := s.Create(ctx, Draft{Name: "Edge box", TypeID: lt})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := s.Update(ctx, item.ID, Draft{Name: "Edge box", TypeID: nw}, ReasonUpdate, "reclassified")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	// Serial preserved verbatim; only the code part of the tag changes.
	if updated.TypeSerial != item.TypeSerial {
		t.Errorf("serial after type change = %d, want %d", updated.TypeSerial, item.TypeSerial)
	}
	want := fmt.Sprintf("SDMM-NW-%04d", item.TypeSerial)
	if updated.AssetTag != want {
		t.Errorf("tag after type change = %q, want %q", updated.AssetTag, want)
	}
}

func TestUpdate_DiffExcludesDerivedFields(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	lt := typeID(t, s, "LT")
	nw := typeID(t, s, "NW")

	item, err := s.Create(ctx, Draft{Name: "Edge box", TypeID: lt, Notes: "rack 3"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// A type change rewrites asset_tag, but the diff must list only the
	// user-intended change.
	if _, err := s.Update(ctx, item.ID, Draft{Name: "Edge box", TypeID: nw, Notes: "rack 3"}, ReasonUpdate, ""); err != nil {
		t.Fatalf("Update: %v", err)
	}

	history, err := s.History(ctx, item.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	last := history[len(history)-1]
	if len(last.ChangedFields) != 1 || last.ChangedFields[0] != "type_id" {
		t.Errorf("changed fields = %v, want [type_id]", last.ChangedFields)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	s := setupStore(t)
	lt := typeID(t, s, "LT")

	_, err := s.Update(context.Background(), 999, Draft{Name: "Ghost", TypeID: lt}, ReasonUpdate, "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update error = %v, want ErrNotFound", err)
	}
}

func TestSerialPairsNeverSharedAcrossArchive(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	px := typeID(t, s, "PX")

	first, err := s.Create(ctx, Draft{Name: "Printer A", TypeID: px})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Archive(ctx, first.ID, ""); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	// Archived serials stay issued; the next create gets a fresh one.
	second, err := s.Create(ctx, Draft{Name: "Printer B", TypeID: px})
	if err != nil {
		t.Fatalf("Create second: %v", err)
	}
	if second.TypeSerial != 2 {
		t.Errorf("serial after archive = %d, want 2", second.TypeSerial)
	}

	var count int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT type_id, type_serial FROM hardware_items
			GROUP BY type_id, type_serial HAVING COUNT(*) > 1
		)`).Scan(&count)
	if err != nil {
		t.Fatalf("checking serial pairs: %v", err)
	}
	if count != 0 {
		t.Errorf("found %d shared (type_id, type_serial) pairs, want 0", count)
	}
}

func TestAssignAndMove(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	lt := typeID(t, s, "LT")

	item, err := s.Create(ctx, Draft{Name: "Laptop", TypeID: lt})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	assigned, err := s.Assign(ctx, item.ID, idp(1), idp(1), "onboarding")
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if assigned.UserID == nil || *assigned.UserID != 1 {
		t.Errorf("UserID = %v, want 1", assigned.UserID)
	}

	moved, err := s.MoveLocation(ctx, item.ID, idp(2), "relocated")
	if err != nil {
		t.Fatalf("MoveLocation: %v", err)
	}
	if moved.LocationID == nil || *moved.LocationID != 2 {
		t.Errorf("LocationID = %v, want 2", moved.LocationID)
	}

	history, err := s.History(ctx, item.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	if history[1].Reason != ReasonAssign || history[2].Reason != ReasonMove {
		t.Errorf("reasons = %v %v, want assign move", history[1].Reason, history[2].Reason)
	}
}

func TestHistory_OrderAndSnapshots(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	lt := typeID(t, s, "LT")

	item, err := s.Create(ctx, Draft{Name: "Laptop", TypeID: lt})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Update(ctx, item.ID, Draft{Name: "Laptop (loan)", TypeID: lt}, ReasonUpdate, "loaned out"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := s.AddAuditNote(ctx, item.ID, "screen scratched"); err != nil {
		t.Fatalf("AddAuditNote: %v", err)
	}

	history, err := s.History(ctx, item.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}

	// Oldest first: create, update, audit.
	if history[0].Reason != ReasonCreate {
		t.Errorf("first reason = %v, want create", history[0].Reason)
	}
	if history[0].SnapshotBefore != nil {
		t.Error("create entry should have no before snapshot")
	}
	if history[0].SnapshotAfter == nil {
		t.Error("create entry should have an after snapshot")
	}

	if history[1].Reason != ReasonUpdate || history[1].Note != "loaned out" {
		t.Errorf("second entry = %v %q, want update/loaned out", history[1].Reason, history[1].Note)
	}
	if len(history[1].ChangedFields) != 1 || history[1].ChangedFields[0] != "name" {
		t.Errorf("second changed fields = %v, want [name]", history[1].ChangedFields)
	}

	if history[2].Reason != ReasonAudit || len(history[2].ChangedFields) != 0 {
		t.Errorf("third entry = %v %v, want audit with no changes", history[2].Reason, history[2].ChangedFields)
	}
}

func TestAttributes(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	lt := typeID(t, s, "LT")

	item, err := s.Create(ctx, Draft{Name: "Laptop", TypeID: lt})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := s.SetAttribute(ctx, item.ID, "warranty", "2027-03"); err != nil {
		t.Fatalf("SetAttribute: %v", err)
	}
	if _, err := s.SetAttribute(ctx, item.ID, "warranty", "2028-03"); err != nil {
		t.Fatalf("SetAttribute update: %v", err)
	}

	attrs, err := s.Attributes(ctx, item.ID)
	if err != nil {
		t.Fatalf("Attributes: %v", err)
	}
	if len(attrs) != 1 || attrs[0].Value != "2028-03" {
		t.Fatalf("attrs = %+v, want one warranty=2028-03", attrs)
	}

	history, err := s.History(ctx, item.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	// create, attribute_add, attribute_update
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	if history[1].Reason != ReasonAttributeAdd || history[2].Reason != ReasonAttributeUpdate {
		t.Errorf("attribute reasons = %v %v", history[1].Reason, history[2].Reason)
	}
	if history[1].ChangedFields[0] != "attr:warranty" {
		t.Errorf("changed fields = %v, want [attr:warranty]", history[1].ChangedFields)
	}

	if err := s.DeleteAttribute(ctx, item.ID, "warranty"); err != nil {
		t.Fatalf("DeleteAttribute: %v", err)
	}
	if err := s.DeleteAttribute(ctx, item.ID, "warranty"); !errors.Is(err, ErrAttributeNotFound) {
		t.Errorf("second delete error = %v, want ErrAttributeNotFound", err)
	}
}

func TestPurge_CascadesHistory(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	lt := typeID(t, s, "LT")

	item, err := s.Create(ctx, Draft{Name: "Laptop", TypeID: lt})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.SetAttribute(ctx, item.ID, "warranty", "2027-03"); err != nil {
		t.Fatalf("SetAttribute: %v", err)
	}

	if err := s.Purge(ctx, item.ID); err != nil {
		t.Fatalf("Purge: %v", err)
	}

	if _, err := s.Get(ctx, item.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after purge error = %v, want ErrNotFound", err)
	}

	var audits, attrs int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM item_updates WHERE item_id = ?", item.ID).Scan(&audits); err != nil {
		t.Fatalf("counting audits: %v", err)
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM item_attributes WHERE item_id = ?", item.ID).Scan(&attrs); err != nil {
		t.Fatalf("counting attributes: %v", err)
	}
	if audits != 0 || attrs != 0 {
		t.Errorf("after purge: %d audits, %d attributes, want 0/0", audits, attrs)
	}

	if err := s.Purge(ctx, item.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second purge error = %v, want ErrNotFound", err)
	}
}

// recordingNotifier captures change events for assertions.
type recordingNotifier struct {
	events []ChangeEvent
}

func (r *recordingNotifier) ItemChanged(_ context.Context, event ChangeEvent) {
	r.events = append(r.events, event)
}

func TestNotifier_ReceivesCommittedChanges(t *testing.T) {
	s := setupStore(t)
	notifier := &recordingNotifier{}
	s.notifier = notifier

	ctx := context.Background()
	lt := typeID(t, s, "LT")

	item, err := s.Create(ctx, Draft{Name: "Laptop", TypeID: lt})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Archive(ctx, item.ID, ""); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	// A failed mutation must not emit an event.
	if _, err := s.Create(ctx, Draft{Name: "Bad", TypeID: lt, MACAddress: strp("zz")}); err == nil {
		t.Fatal("expected validation error")
	}

	if len(notifier.events) != 2 {
		t.Fatalf("events = %d, want 2", len(notifier.events))
	}
	if notifier.events[0].Reason != ReasonCreate || notifier.events[1].Reason != ReasonArchive {
		t.Errorf("event reasons = %v %v", notifier.events[0].Reason, notifier.events[1].Reason)
	}
	if notifier.events[0].AssetTag != item.AssetTag {
		t.Errorf("event tag = %q, want %q", notifier.events[0].AssetTag, item.AssetTag)
	}
}
