package inventory

import (
	"encoding/json"
	"time"
)

// Item is a tracked hardware asset. TypeSerial and AssetTag are assigned
// at creation and maintained by the store; callers never set them.
type Item struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Model      string     `json:"model,omitempty"`
	TypeID     int64      `json:"type_id"`
	MACAddress *string    `json:"mac_address,omitempty"`
	IPAddress  *string    `json:"ip_address,omitempty"`
	LocationID *int64     `json:"location_id,omitempty"`
	UserID     *int64     `json:"user_id,omitempty"`
	GroupID    *int64     `json:"group_id,omitempty"`
	SubTypeID  *int64     `json:"sub_type_id,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	TypeSerial int64      `json:"type_serial"`
	AssetTag   string     `json:"asset_tag"`
	Extension  *string    `json:"extension,omitempty"`
	Archived   bool       `json:"archived"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Draft is the caller-supplied field set for creating or updating an
// item. Update applies the whole draft: the GUI submits the full form,
// and the store computes the field-level diff against current state.
type Draft struct {
	Name       string
	Model      string
	TypeID     int64
	MACAddress *string
	IPAddress  *string
	LocationID *int64
	UserID     *int64
	GroupID    *int64
	SubTypeID  *int64
	Notes      string
	Extension  *string
}

// Reason categorises an audit trail entry.
type Reason string

// Audit reasons. The set is open-ended; these are the ones the store
// writes itself.
const (
	ReasonCreate          Reason = "create"
	ReasonUpdate          Reason = "update"
	ReasonMove            Reason = "move"
	ReasonAssign          Reason = "assign"
	ReasonAudit           Reason = "audit"
	ReasonArchive         Reason = "archive"
	ReasonReactivate      Reason = "reactivate"
	ReasonRetire          Reason = "retire"
	ReasonAttributeAdd    Reason = "attribute_add"
	ReasonAttributeUpdate Reason = "attribute_update"
	ReasonAttributeRemove Reason = "attribute_remove"
)

// Update is one append-only audit trail entry. Entries are ordered by
// (CreatedAt, ID) for an item and are never rewritten.
type Update struct {
	ID             int64           `json:"id"`
	ItemID         int64           `json:"item_id"`
	Reason         Reason          `json:"reason"`
	Note           string          `json:"note,omitempty"`
	ChangedFields  []string        `json:"changed_fields"`
	SnapshotBefore json.RawMessage `json:"snapshot_before,omitempty"`
	SnapshotAfter  json.RawMessage `json:"snapshot_after,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Attribute is a free-form key/value extension field on an item.
type Attribute struct {
	ID        int64     `json:"id"`
	ItemID    int64     `json:"item_id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Filter narrows a Query. Zero-value fields match everything; Search is
// a case-insensitive substring match across name, model, MAC, and tag.
type Filter struct {
	TypeID     *int64
	LocationID *int64
	UserID     *int64
	GroupID    *int64
	SubTypeID  *int64
	Archived   *bool
	Search     string
}
