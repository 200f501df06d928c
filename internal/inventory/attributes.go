package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SetAttribute creates or updates a free-form key/value attribute on an
// item. The audit entry uses reason attribute_add or attribute_update
// and lists the change as "attr:<key>".
func (s *Store) SetAttribute(ctx context.Context, itemID int64, key, value string) (*Attribute, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: attribute key is required", ErrValidation)
	}

	var attr *Attribute
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		item, err := loadItem(ctx, tx, itemID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		reason := ReasonAttributeAdd

		var id int64
		var createdAt string
		err = tx.QueryRowContext(ctx,
			"SELECT id, created_at_utc FROM item_attributes WHERE item_id = ? AND attr_key = ?",
			itemID, key,
		).Scan(&id, &createdAt)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			result, err := tx.ExecContext(ctx,
				`INSERT INTO item_attributes (item_id, attr_key, attr_value, created_at_utc, updated_at_utc)
				 VALUES (?, ?, ?, ?, ?)`,
				itemID, key, value, now.Format(time.RFC3339), now.Format(time.RFC3339),
			)
			if err != nil {
				return fmt.Errorf("inserting attribute %s: %w", key, err)
			}
			id, _ = result.LastInsertId() //nolint:errcheck // SQLite always supports LastInsertId
			createdAt = now.Format(time.RFC3339)
		case err != nil:
			return fmt.Errorf("looking up attribute %s: %w", key, err)
		default:
			reason = ReasonAttributeUpdate
			if _, err := tx.ExecContext(ctx,
				"UPDATE item_attributes SET attr_value = ?, updated_at_utc = ? WHERE id = ?",
				value, now.Format(time.RFC3339), id,
			); err != nil {
				return fmt.Errorf("updating attribute %s: %w", key, err)
			}
		}

		snap, err := snapshotJSON(item)
		if err != nil {
			return err
		}
		if err := recordUpdate(ctx, tx, &Update{
			ItemID:         itemID,
			Reason:         reason,
			ChangedFields:  []string{"attr:" + key},
			SnapshotBefore: snap,
			SnapshotAfter:  snap,
			CreatedAt:      now,
		}); err != nil {
			return err
		}

		attr = &Attribute{
			ID:        id,
			ItemID:    itemID,
			Key:       key,
			Value:     value,
			CreatedAt: parseTime(createdAt),
			UpdatedAt: now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return attr, nil
}

// DeleteAttribute removes an attribute and records an attribute_remove
// audit entry. Returns ErrAttributeNotFound when the key is absent.
func (s *Store) DeleteAttribute(ctx context.Context, itemID int64, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: attribute key is required", ErrValidation)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		item, err := loadItem(ctx, tx, itemID)
		if err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx,
			"DELETE FROM item_attributes WHERE item_id = ? AND attr_key = ?", itemID, key)
		if err != nil {
			return fmt.Errorf("deleting attribute %s: %w", key, err)
		}
		n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
		if n == 0 {
			return ErrAttributeNotFound
		}

		snap, err := snapshotJSON(item)
		if err != nil {
			return err
		}
		return recordUpdate(ctx, tx, &Update{
			ItemID:         itemID,
			Reason:         ReasonAttributeRemove,
			ChangedFields:  []string{"attr:" + key},
			SnapshotBefore: snap,
			SnapshotAfter:  snap,
		})
	})
}

// Attributes returns an item's attributes ordered by key.
func (s *Store) Attributes(ctx context.Context, itemID int64) ([]Attribute, error) {
	if _, err := s.Get(ctx, itemID); err != nil {
		return nil, err
	}

	const query = `SELECT id, item_id, attr_key, attr_value, created_at_utc, updated_at_utc
		FROM item_attributes WHERE item_id = ? ORDER BY attr_key`
	rows, err := s.db.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("querying attributes for item %d: %w", itemID, err)
	}
	defer rows.Close()

	var attrs []Attribute
	for rows.Next() {
		var a Attribute
		var createdAt, updatedAt string
		if err := rows.Scan(&a.ID, &a.ItemID, &a.Key, &a.Value, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning attribute row: %w", err)
		}
		a.CreatedAt = parseTime(createdAt)
		a.UpdatedAt = parseTime(updatedAt)
		attrs = append(attrs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating attribute rows: %w", err)
	}
	return attrs, nil
}
