package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/assetforge/assetforge-core/internal/catalog"
	"github.com/assetforge/assetforge-core/internal/infrastructure/database"
	"github.com/assetforge/assetforge-core/internal/infrastructure/logging"
)

// Store behaviour constants.
const (
	// landlineTypeCode is the hardware type code that may carry an
	// extension number.
	landlineTypeCode = "LL"

	// maxWriteAttempts bounds retries when a write loses the race for the
	// database lock.
	maxWriteAttempts = 3

	// retryBackoff is the base delay between write attempts; it grows
	// linearly with the attempt number.
	retryBackoff = 50 * time.Millisecond
)

// Store owns all item mutations. Every mutation runs in one SQLite
// transaction covering validation, serial allocation, tag derivation,
// the row write, and the audit entry; there is no intermediate state
// where a serial is issued but unconsumed or a tag mismatches its
// serial.
type Store struct {
	db       *database.DB
	logger   *logging.Logger
	notifier Notifier
}

// Option configures optional Store behaviour.
type Option func(*Store)

// WithNotifier attaches a change notifier invoked after each committed
// mutation.
func WithNotifier(n Notifier) Option {
	return func(s *Store) {
		s.notifier = n
	}
}

// NewStore creates an item store on an open database.
func NewStore(db *database.DB, logger *logging.Logger, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: logger.With("component", "store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the draft, allocates the next type-scoped serial,
// derives the asset tag, inserts the item, and records a create audit
// entry, all in one transaction.
func (s *Store) Create(ctx context.Context, draft Draft) (*Item, error) {
	if err := validateDraftShape(&draft); err != nil {
		return nil, err
	}

	var created *Item
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		code, err := s.validateRefs(ctx, tx, &draft, 0)
		if err != nil {
			return err
		}

		serial, err := allocateSerial(ctx, tx, draft.TypeID)
		if err != nil {
			return err
		}
		tag := DeriveTag(code, serial)
		if err := checkTagFormat(tag); err != nil {
			return err
		}

		now := time.Now().UTC()
		item := draftToItem(&draft)
		item.TypeSerial = serial
		item.AssetTag = tag
		item.CreatedAt = now
		item.UpdatedAt = now

		const query = `INSERT INTO hardware_items
			(name, model, type_id, mac_address, ip_address, location_id, user_id,
			 group_id, sub_type_id, notes, type_serial, asset_tag, extension,
			 archived, created_at_utc, updated_at_utc)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`
		result, err := tx.ExecContext(ctx, query,
			item.Name, item.Model, item.TypeID,
			nullableString(item.MACAddress), nullableString(item.IPAddress),
			nullableID(item.LocationID), nullableID(item.UserID),
			nullableID(item.GroupID), nullableID(item.SubTypeID),
			item.Notes, item.TypeSerial, item.AssetTag,
			nullableString(item.Extension),
			now.Format(time.RFC3339), now.Format(time.RFC3339),
		)
		if err != nil {
			return classifyWriteError(err)
		}
		item.ID, _ = result.LastInsertId() //nolint:errcheck // SQLite always supports LastInsertId

		after, err := snapshotJSON(item)
		if err != nil {
			return err
		}
		if err := recordUpdate(ctx, tx, &Update{
			ItemID:        item.ID,
			Reason:        ReasonCreate,
			ChangedFields: nil,
			SnapshotAfter: after,
			CreatedAt:     now,
		}); err != nil {
			return err
		}

		created = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("item created", "item_id", created.ID, "asset_tag", created.AssetTag)
	s.notify(ctx, created, ReasonCreate)
	return created, nil
}

// Update applies the draft to an existing item and records the
// field-level diff. If the type changed, the tag is re-derived from the
// new type's code while the serial is preserved verbatim; the serial
// stays owned by the item for its lifetime. updated_at_utc is always
// refreshed, even for an empty diff.
func (s *Store) Update(ctx context.Context, id int64, draft Draft, reason Reason, note string) (*Item, error) {
	if err := validateDraftShape(&draft); err != nil {
		return nil, err
	}
	if reason == "" {
		reason = ReasonUpdate
	}

	var updated *Item
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := loadItem(ctx, tx, id)
		if err != nil {
			return err
		}

		code, err := s.validateRefs(ctx, tx, &draft, id)
		if err != nil {
			return err
		}

		next := draftToItem(&draft)
		next.ID = current.ID
		next.TypeSerial = current.TypeSerial
		next.Archived = current.Archived
		next.CreatedAt = current.CreatedAt
		next.AssetTag = current.AssetTag
		if next.TypeID != current.TypeID {
			next.AssetTag = DeriveTag(code, next.TypeSerial)
			if err := checkTagFormat(next.AssetTag); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		next.UpdatedAt = now

		if err := writeItem(ctx, tx, next, now); err != nil {
			return err
		}

		if err := s.auditChange(ctx, tx, current, next, reason, note, now); err != nil {
			return err
		}

		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, updated, reason)
	return updated, nil
}

// Archive flips the archived flag on. Identity is untouched: the serial
// stays issued and the tag stays printed on the label.
func (s *Store) Archive(ctx context.Context, id int64, note string) (*Item, error) {
	return s.setArchived(ctx, id, true, ReasonArchive, note)
}

// Reactivate flips the archived flag off, restoring the item with its
// original tag and serial.
func (s *Store) Reactivate(ctx context.Context, id int64, note string) (*Item, error) {
	return s.setArchived(ctx, id, false, ReasonReactivate, note)
}

func (s *Store) setArchived(ctx context.Context, id int64, archived bool, reason Reason, note string) (*Item, error) {
	var result *Item
	var changed bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := loadItem(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Archived == archived {
			result = current
			return nil
		}
		changed = true

		next := *current
		next.Archived = archived
		now := time.Now().UTC()
		next.UpdatedAt = now

		if err := writeItem(ctx, tx, &next, now); err != nil {
			return err
		}
		if err := s.auditChange(ctx, tx, current, &next, reason, note, now); err != nil {
			return err
		}

		result = &next
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.notify(ctx, result, reason)
	}
	return result, nil
}

// Assign sets the item's user and group in one step with reason assign.
func (s *Store) Assign(ctx context.Context, id int64, userID, groupID *int64, note string) (*Item, error) {
	return s.patch(ctx, id, ReasonAssign, note, func(next *Item) {
		next.UserID = userID
		next.GroupID = groupID
	})
}

// MoveLocation relocates the item with reason move.
func (s *Store) MoveLocation(ctx context.Context, id int64, locationID *int64, note string) (*Item, error) {
	return s.patch(ctx, id, ReasonMove, note, func(next *Item) {
		next.LocationID = locationID
	})
}

// patch applies a narrow mutation through the full update path so FK
// validation, the diff, and the audit entry behave exactly as Update.
func (s *Store) patch(ctx context.Context, id int64, reason Reason, note string, mutate func(*Item)) (*Item, error) {
	var updated *Item
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := loadItem(ctx, tx, id)
		if err != nil {
			return err
		}

		next := *current
		mutate(&next)

		draft := itemToDraft(&next)
		if _, err := s.validateRefs(ctx, tx, &draft, id); err != nil {
			return err
		}

		now := time.Now().UTC()
		next.UpdatedAt = now

		if err := writeItem(ctx, tx, &next, now); err != nil {
			return err
		}
		if err := s.auditChange(ctx, tx, current, &next, reason, note, now); err != nil {
			return err
		}

		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, updated, reason)
	return updated, nil
}

// AddAuditNote appends a free-standing audit entry with no field
// changes. The item row itself is untouched.
func (s *Store) AddAuditNote(ctx context.Context, id int64, note string) error {
	if strings.TrimSpace(note) == "" {
		return fmt.Errorf("%w: note is required", ErrValidation)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := loadItem(ctx, tx, id)
		if err != nil {
			return err
		}
		snap, err := snapshotJSON(current)
		if err != nil {
			return err
		}
		return recordUpdate(ctx, tx, &Update{
			ItemID:         id,
			Reason:         ReasonAudit,
			Note:           note,
			SnapshotBefore: snap,
			SnapshotAfter:  snap,
		})
	})
}

// Purge hard-deletes an item administratively. The audit trail and
// attributes cascade away with the row; this is the only path that
// removes history.
func (s *Store) Purge(ctx context.Context, id int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, "DELETE FROM hardware_items WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("purging item %d: %w", id, err)
		}
		n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("item purged", "item_id", id)
	return nil
}

// Get returns a single item by ID.
func (s *Store) Get(ctx context.Context, id int64) (*Item, error) {
	return loadItem(ctx, s.db, id)
}

// auditChange computes the diff between two states and appends the
// audit entry with full before/after snapshots.
func (s *Store) auditChange(ctx context.Context, tx *sql.Tx, before, after *Item, reason Reason, note string, at time.Time) error {
	beforeSnap, err := snapshotJSON(before)
	if err != nil {
		return err
	}
	afterSnap, err := snapshotJSON(after)
	if err != nil {
		return err
	}
	return recordUpdate(ctx, tx, &Update{
		ItemID:         after.ID,
		Reason:         reason,
		Note:           note,
		ChangedFields:  diffFields(before, after),
		SnapshotBefore: beforeSnap,
		SnapshotAfter:  afterSnap,
		CreatedAt:      at,
	})
}

// validateRefs resolves the draft's foreign keys and uniqueness
// constraints inside the transaction. selfID excludes the item's own row
// from uniqueness checks (0 on create). Returns the type's tag code.
func (s *Store) validateRefs(ctx context.Context, tx *sql.Tx, d *Draft, selfID int64) (string, error) {
	var code string
	err := tx.QueryRowContext(ctx,
		"SELECT code FROM hardware_types WHERE id = ?", d.TypeID,
	).Scan(&code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: hardware type %d does not exist", ErrValidation, d.TypeID)
		}
		return "", fmt.Errorf("resolving hardware type %d: %w", d.TypeID, err)
	}

	refs := []struct {
		id    *int64
		table string
		label string
	}{
		{d.LocationID, "locations", "location"},
		{d.UserID, "users", "user"},
		{d.GroupID, "groups", "group"},
		{d.SubTypeID, "sub_types", "sub-type"},
	}
	for _, ref := range refs {
		if ref.id == nil {
			continue
		}
		var one int
		err := tx.QueryRowContext(ctx,
			"SELECT 1 FROM "+ref.table+" WHERE id = ?", *ref.id, //nolint:gosec // table names are compile-time constants
		).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %s %d does not exist", ErrValidation, ref.label, *ref.id)
		}
		if err != nil {
			return "", fmt.Errorf("resolving %s %d: %w", ref.label, *ref.id, err)
		}
	}

	if d.MACAddress != nil {
		var count int
		err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM hardware_items WHERE lower(mac_address) = lower(?) AND id != ?",
			*d.MACAddress, selfID,
		).Scan(&count)
		if err != nil {
			return "", fmt.Errorf("checking mac uniqueness: %w", err)
		}
		if count > 0 {
			return "", fmt.Errorf("%w: mac address %s", ErrDuplicate, *d.MACAddress)
		}
	}

	if d.IPAddress != nil {
		normalized, err := catalog.NormalizeIP(*d.IPAddress)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrValidation, err)
		}
		d.IPAddress = &normalized

		var inPool int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM ip_addresses WHERE ip_address = ?", normalized,
		).Scan(&inPool); err != nil {
			return "", fmt.Errorf("checking ip pool: %w", err)
		}
		if inPool == 0 {
			return "", fmt.Errorf("%w: ip address %s is not in the managed pool", ErrValidation, normalized)
		}

		var held int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM hardware_items WHERE ip_address = ? AND id != ?",
			normalized, selfID,
		).Scan(&held); err != nil {
			return "", fmt.Errorf("checking ip uniqueness: %w", err)
		}
		if held > 0 {
			return "", fmt.Errorf("%w: ip address %s", ErrDuplicate, normalized)
		}
	}

	if d.Extension != nil && code != landlineTypeCode {
		return "", fmt.Errorf("%w: extension is only valid for landline phones", ErrValidation)
	}

	return code, nil
}

// writeItem persists an item's mutable fields.
func writeItem(ctx context.Context, tx *sql.Tx, item *Item, now time.Time) error {
	const query = `UPDATE hardware_items SET
		name = ?, model = ?, type_id = ?, mac_address = ?, ip_address = ?,
		location_id = ?, user_id = ?, group_id = ?, sub_type_id = ?,
		notes = ?, asset_tag = ?, extension = ?, archived = ?,
		updated_at_utc = ?
		WHERE id = ?`
	result, err := tx.ExecContext(ctx, query,
		item.Name, item.Model, item.TypeID,
		nullableString(item.MACAddress), nullableString(item.IPAddress),
		nullableID(item.LocationID), nullableID(item.UserID),
		nullableID(item.GroupID), nullableID(item.SubTypeID),
		item.Notes, item.AssetTag, nullableString(item.Extension),
		boolToInt(item.Archived), now.Format(time.RFC3339),
		item.ID,
	)
	if err != nil {
		return classifyWriteError(err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// classifyWriteError maps SQLite constraint failures onto domain errors.
// A tag collision is an invariant breach, never caller input.
func classifyWriteError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "hardware_items.asset_tag"):
		return fmt.Errorf("%w: %v", ErrTagInvariant, err)
	case strings.Contains(msg, "UNIQUE constraint failed"),
		strings.Contains(msg, "unique constraint"):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return fmt.Errorf("writing item: %w", err)
	}
}

// rowQuerier is satisfied by *sql.Tx and the database wrapper, letting
// loadItem serve reads both inside and outside transactions.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// loadItem reads a full item row.
func loadItem(ctx context.Context, q rowQuerier, id int64) (*Item, error) {
	const query = `SELECT id, name, model, type_id, mac_address, ip_address,
		location_id, user_id, group_id, sub_type_id, notes, type_serial,
		asset_tag, extension, archived, created_at_utc, updated_at_utc
		FROM hardware_items WHERE id = ?`
	return scanItem(q.QueryRowContext(ctx, query, id))
}

// scanItem scans a single row into an Item (for QueryRow).
func scanItem(row *sql.Row) (*Item, error) {
	var item Item
	var model, notes sql.NullString
	var mac, ip, extension sql.NullString
	var locationID, userID, groupID, subTypeID sql.NullInt64
	var archived int
	var createdAt, updatedAt string

	err := row.Scan(&item.ID, &item.Name, &model, &item.TypeID, &mac, &ip,
		&locationID, &userID, &groupID, &subTypeID, &notes, &item.TypeSerial,
		&item.AssetTag, &extension, &archived, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning item: %w", err)
	}

	item.Model = model.String
	item.Notes = notes.String
	item.MACAddress = strPtr(mac)
	item.IPAddress = strPtr(ip)
	item.Extension = strPtr(extension)
	item.LocationID = idPtr(locationID)
	item.UserID = idPtr(userID)
	item.GroupID = idPtr(groupID)
	item.SubTypeID = idPtr(subTypeID)
	item.Archived = archived != 0
	item.CreatedAt = parseTime(createdAt)
	item.UpdatedAt = parseTime(updatedAt)
	return &item, nil
}

// scanItemRow scans an item from a Rows cursor.
func scanItemRow(rows *sql.Rows) (*Item, error) {
	var item Item
	var model, notes sql.NullString
	var mac, ip, extension sql.NullString
	var locationID, userID, groupID, subTypeID sql.NullInt64
	var archived int
	var createdAt, updatedAt string

	err := rows.Scan(&item.ID, &item.Name, &model, &item.TypeID, &mac, &ip,
		&locationID, &userID, &groupID, &subTypeID, &notes, &item.TypeSerial,
		&item.AssetTag, &extension, &archived, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("scanning item row: %w", err)
	}

	item.Model = model.String
	item.Notes = notes.String
	item.MACAddress = strPtr(mac)
	item.IPAddress = strPtr(ip)
	item.Extension = strPtr(extension)
	item.LocationID = idPtr(locationID)
	item.UserID = idPtr(userID)
	item.GroupID = idPtr(groupID)
	item.SubTypeID = idPtr(subTypeID)
	item.Archived = archived != 0
	item.CreatedAt = parseTime(createdAt)
	item.UpdatedAt = parseTime(updatedAt)
	return &item, nil
}

// withTx runs fn in a transaction, retrying a bounded number of times
// when SQLite reports the database busy. Exhausted retries surface as
// ErrConflict.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var lastErr error
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		err := s.runTx(ctx, fn)
		if err == nil || !isBusyError(err) {
			return err
		}
		lastErr = err
		s.logger.Debug("database busy, retrying write", "attempt", attempt)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("%w: %v", ErrConflict, lastErr)
}

func (s *Store) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// isBusyError checks for SQLite lock contention.
func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}

// notify broadcasts a committed change when a notifier is attached.
func (s *Store) notify(ctx context.Context, item *Item, reason Reason) {
	if s.notifier == nil || item == nil {
		return
	}
	s.notifier.ItemChanged(ctx, ChangeEvent{
		ItemID:   item.ID,
		AssetTag: item.AssetTag,
		Reason:   reason,
		At:       time.Now().UTC(),
	})
}

// draftToItem copies caller-editable fields into a fresh Item.
func draftToItem(d *Draft) *Item {
	return &Item{
		Name:       strings.TrimSpace(d.Name),
		Model:      strings.TrimSpace(d.Model),
		TypeID:     d.TypeID,
		MACAddress: d.MACAddress,
		IPAddress:  d.IPAddress,
		LocationID: d.LocationID,
		UserID:     d.UserID,
		GroupID:    d.GroupID,
		SubTypeID:  d.SubTypeID,
		Notes:      strings.TrimSpace(d.Notes),
		Extension:  d.Extension,
	}
}

// itemToDraft extracts the caller-editable fields of an item.
func itemToDraft(item *Item) Draft {
	return Draft{
		Name:       item.Name,
		Model:      item.Model,
		TypeID:     item.TypeID,
		MACAddress: item.MACAddress,
		IPAddress:  item.IPAddress,
		LocationID: item.LocationID,
		UserID:     item.UserID,
		GroupID:    item.GroupID,
		SubTypeID:  item.SubTypeID,
		Notes:      item.Notes,
		Extension:  item.Extension,
	}
}

// nullableString converts a *string to sql.NullString for nullable columns.
func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullableID converts a *int64 to sql.NullInt64 for nullable FK columns.
func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func idPtr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	return &ni.Int64
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// parseTime parses an RFC 3339 timestamp from SQLite.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
