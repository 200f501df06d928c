package inventory

import (
	"context"
	"time"
)

// ChangeEvent describes a committed item mutation for external
// listeners (GUI instances refreshing their views).
type ChangeEvent struct {
	EventID  string    `json:"event_id"`
	ItemID   int64     `json:"item_id"`
	AssetTag string    `json:"asset_tag"`
	Reason   Reason    `json:"reason"`
	At       time.Time `json:"at"`
}

// Notifier broadcasts change events after a mutation commits. The store
// never fails an operation on notifier errors; delivery is best effort.
type Notifier interface {
	ItemChanged(ctx context.Context, event ChangeEvent)
}
