package inventory

import (
	"context"
	"fmt"
	"iter"
	"strings"
)

// Query returns a lazy, finite, restartable sequence of items matching
// the filter, ordered by asset tag. Each range over the sequence re-runs
// the query, so results reflect the store at iteration time. Iteration
// stops at the first error, yielded with a zero Item.
func (s *Store) Query(ctx context.Context, f Filter) iter.Seq2[Item, error] {
	query, args := buildItemQuery(f)

	return func(yield func(Item, error) bool) {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(Item{}, fmt.Errorf("querying items: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			item, err := scanItemRow(rows)
			if err != nil {
				yield(Item{}, err)
				return
			}
			if !yield(*item, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Item{}, fmt.Errorf("iterating item rows: %w", err))
		}
	}
}

// buildItemQuery assembles the filtered SELECT and its arguments.
func buildItemQuery(f Filter) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, name, model, type_id, mac_address, ip_address,
		location_id, user_id, group_id, sub_type_id, notes, type_serial,
		asset_tag, extension, archived, created_at_utc, updated_at_utc
		FROM hardware_items WHERE 1=1`)

	var args []any
	addID := func(column string, id *int64) {
		if id != nil {
			sb.WriteString(" AND " + column + " = ?")
			args = append(args, *id)
		}
	}
	addID("type_id", f.TypeID)
	addID("location_id", f.LocationID)
	addID("user_id", f.UserID)
	addID("group_id", f.GroupID)
	addID("sub_type_id", f.SubTypeID)

	if f.Archived != nil {
		sb.WriteString(" AND archived = ?")
		args = append(args, boolToInt(*f.Archived))
	}

	if search := strings.TrimSpace(f.Search); search != "" {
		sb.WriteString(` AND (name LIKE ? COLLATE NOCASE
			OR model LIKE ? COLLATE NOCASE
			OR mac_address LIKE ? COLLATE NOCASE
			OR asset_tag LIKE ? COLLATE NOCASE)`)
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern, pattern, pattern)
	}

	sb.WriteString(" ORDER BY asset_tag")
	return sb.String(), args
}
