package inventory

import (
	"context"
	"database/sql"
	"fmt"
)

// allocateSerial issues the next type-scoped serial inside the caller's
// transaction. The counter read and increment are a single statement, so
// a serial is never issued twice and never issued without the item write
// that consumes it: if the transaction rolls back, the increment rolls
// back with it.
func allocateSerial(ctx context.Context, tx *sql.Tx, typeID int64) (int64, error) {
	const query = `
		INSERT INTO type_counters (type_id, next_serial) VALUES (?, 2)
		ON CONFLICT(type_id) DO UPDATE SET next_serial = next_serial + 1
		RETURNING next_serial - 1`

	var serial int64
	if err := tx.QueryRowContext(ctx, query, typeID).Scan(&serial); err != nil {
		return 0, fmt.Errorf("allocating serial for type %d: %w", typeID, err)
	}
	return serial, nil
}
