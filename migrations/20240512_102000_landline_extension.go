package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/assetforge/assetforge-core/internal/infrastructure/database"
)

func init() {
	database.Register(database.Migration{
		Version: "20240512_102000",
		Name:    "landline_extension",
		Up:      landlineExtensionUp,
		Down:    landlineExtensionDown,
	})
}

// landlineExtensionUp adds the extension column for landline phones.
//
// The column lives on hardware_items like every other field, but only
// the landline category may hold a value. The store enforces this on
// every write path; the triggers backstop direct SQL edits.
func landlineExtensionUp(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		"ALTER TABLE hardware_items ADD COLUMN extension TEXT",
		`UPDATE hardware_items SET extension = NULL
			WHERE type_id NOT IN (SELECT id FROM hardware_types WHERE code = 'LL')`,
		`CREATE TRIGGER trg_items_extension_insert
			BEFORE INSERT ON hardware_items
			WHEN NEW.extension IS NOT NULL
				AND (SELECT code FROM hardware_types WHERE id = NEW.type_id) != 'LL'
			BEGIN
				SELECT RAISE(ABORT, 'extension is only valid for landline phones');
			END`,
		`CREATE TRIGGER trg_items_extension_update
			BEFORE UPDATE OF extension, type_id ON hardware_items
			WHEN NEW.extension IS NOT NULL
				AND (SELECT code FROM hardware_types WHERE id = NEW.type_id) != 'LL'
			BEGIN
				SELECT RAISE(ABORT, 'extension is only valid for landline phones');
			END`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("adding landline extension: %w", err)
		}
	}
	return nil
}

// landlineExtensionDown removes the extension column and its guards.
func landlineExtensionDown(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		"DROP TRIGGER IF EXISTS trg_items_extension_update",
		"DROP TRIGGER IF EXISTS trg_items_extension_insert",
		"ALTER TABLE hardware_items DROP COLUMN extension",
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("removing landline extension: %w", err)
		}
	}
	return nil
}
