package inventory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// snapshotJSON serialises an item's full state for an audit entry.
func snapshotJSON(item *Item) (json.RawMessage, error) {
	b, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("marshalling item snapshot: %w", err)
	}
	return b, nil
}

// diffFields lists the recognised item fields that differ between two
// states, in a fixed order. Derived fields (asset_tag, updated_at_utc)
// are invariant-maintained, not user intent, and are never listed.
func diffFields(before, after *Item) []string {
	var changed []string

	if before.Name != after.Name {
		changed = append(changed, "name")
	}
	if before.Model != after.Model {
		changed = append(changed, "model")
	}
	if before.TypeID != after.TypeID {
		changed = append(changed, "type_id")
	}
	if !equalStrPtr(before.MACAddress, after.MACAddress) {
		changed = append(changed, "mac_address")
	}
	if !equalStrPtr(before.IPAddress, after.IPAddress) {
		changed = append(changed, "ip_address")
	}
	if !equalIDPtr(before.LocationID, after.LocationID) {
		changed = append(changed, "location_id")
	}
	if !equalIDPtr(before.UserID, after.UserID) {
		changed = append(changed, "user_id")
	}
	if !equalIDPtr(before.GroupID, after.GroupID) {
		changed = append(changed, "group_id")
	}
	if !equalIDPtr(before.SubTypeID, after.SubTypeID) {
		changed = append(changed, "sub_type_id")
	}
	if before.Notes != after.Notes {
		changed = append(changed, "notes")
	}
	if !equalStrPtr(before.Extension, after.Extension) {
		changed = append(changed, "extension")
	}
	if before.Archived != after.Archived {
		changed = append(changed, "archived")
	}

	return changed
}

func equalStrPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalIDPtr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// recordUpdate appends one audit trail entry inside the caller's
// transaction. Entries are never mutated afterwards.
func recordUpdate(ctx context.Context, tx *sql.Tx, upd *Update) error {
	changed, err := json.Marshal(upd.ChangedFields)
	if err != nil {
		return fmt.Errorf("marshalling changed fields: %w", err)
	}
	if upd.ChangedFields == nil {
		changed = []byte("[]")
	}

	if upd.CreatedAt.IsZero() {
		upd.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO item_updates
		(item_id, reason, note, changed_fields, snapshot_before_json, snapshot_after_json, created_at_utc)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, query,
		upd.ItemID, string(upd.Reason), upd.Note, string(changed),
		nullRaw(upd.SnapshotBefore), nullRaw(upd.SnapshotAfter),
		upd.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry for item %d: %w", upd.ItemID, err)
	}
	upd.ID, _ = result.LastInsertId() //nolint:errcheck // SQLite always supports LastInsertId
	return nil
}

// nullRaw converts a raw JSON snapshot to a nullable column value.
func nullRaw(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// History returns an item's audit trail, oldest first. Ordering is
// (created_at_utc, id) so entries created within the same second keep
// insertion order.
func (s *Store) History(ctx context.Context, itemID int64) ([]Update, error) {
	if _, err := s.Get(ctx, itemID); err != nil {
		return nil, err
	}

	const query = `SELECT id, item_id, reason, note, changed_fields,
		snapshot_before_json, snapshot_after_json, created_at_utc
		FROM item_updates WHERE item_id = ?
		ORDER BY created_at_utc, id`
	rows, err := s.db.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("querying audit trail for item %d: %w", itemID, err)
	}
	defer rows.Close()

	var updates []Update
	for rows.Next() {
		upd, err := scanUpdateRow(rows)
		if err != nil {
			return nil, err
		}
		updates = append(updates, *upd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit rows: %w", err)
	}
	return updates, nil
}

// scanUpdateRow scans an audit entry from a Rows cursor.
func scanUpdateRow(rows *sql.Rows) (*Update, error) {
	var upd Update
	var reason, changedJSON, createdAt string
	var note, before, after sql.NullString

	err := rows.Scan(&upd.ID, &upd.ItemID, &reason, &note, &changedJSON,
		&before, &after, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("scanning audit row: %w", err)
	}

	upd.Reason = Reason(reason)
	upd.Note = note.String
	if err := json.Unmarshal([]byte(changedJSON), &upd.ChangedFields); err != nil {
		return nil, fmt.Errorf("parsing changed fields for audit entry %d: %w", upd.ID, err)
	}
	if before.Valid {
		upd.SnapshotBefore = json.RawMessage(before.String)
	}
	if after.Valid {
		upd.SnapshotAfter = json.RawMessage(after.String)
	}
	upd.CreatedAt = parseTime(createdAt)
	return &upd, nil
}
