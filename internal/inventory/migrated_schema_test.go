package inventory

import (
	"context"
	"testing"

	"github.com/assetforge/assetforge-core/internal/infrastructure/database"
	"github.com/assetforge/assetforge-core/internal/infrastructure/logging"

	_ "github.com/assetforge/assetforge-core/migrations"
)

// setupMigratedStore runs the real migration sequence instead of the
// hand-written testSchema, so the store is exercised against exactly
// the schema a deployed database has.
func setupMigratedStore(t *testing.T) *Store {
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

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	fixtures := `
		INSERT INTO locations (name) VALUES ('Head Office');
		INSERT INTO ip_addresses (ip_address) VALUES ('192.168.1.10');
	`
	if _, err := db.ExecContext(ctx, fixtures); err != nil {
		t.Fatalf("seeding fixtures: %v", err)
	}

	return NewStore(db, logging.Default())
}

func TestStoreAgainstMigratedSchema(t *testing.T) {
	s := setupMigratedStore(t)
	ctx := context.Background()
	px := typeID(t, s, "PX")

	item, err := s.Create(ctx, Draft{
		Name:       "Front desk printer",
		TypeID:     px,
		IPAddress:  strp("192.168.1.10"),
		LocationID: idp(1),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if item.TypeSerial != 1 || item.AssetTag != "SDMM-PX-0001" {
		t.Errorf("item = serial %d tag %q, want 1 / SDMM-PX-0001", item.TypeSerial, item.AssetTag)
	}

	updated, err := s.Update(ctx, item.ID, Draft{
		Name: "Front desk printer", TypeID: px, Notes: "toner low",
	}, ReasonUpdate, "")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Notes != "toner low" {
		t.Errorf("notes = %q, want toner low", updated.Notes)
	}

	// Attributes live in their own migrated table.
	if _, err := s.SetAttribute(ctx, item.ID, "warranty", "2027-03"); err != nil {
		t.Fatalf("SetAttribute: %v", err)
	}
	attrs, err := s.Attributes(ctx, item.ID)
	if err != nil {
		t.Fatalf("Attributes: %v", err)
	}
	if len(attrs) != 1 || attrs[0].Key != "warranty" || attrs[0].Value != "2027-03" {
		t.Fatalf("attrs = %+v, want one warranty=2027-03", attrs)
	}

	history, err := s.History(ctx, item.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	// create, update, attribute_add
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	if history[2].Reason != ReasonAttributeAdd {
		t.Errorf("last reason = %v, want %v", history[2].Reason, ReasonAttributeAdd)
	}
}
