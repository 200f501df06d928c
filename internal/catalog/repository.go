package catalog

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// Repository defines the interface for catalog persistence operations.
// Catalogs are the reference entities items point at: hardware types,
// locations, users, groups, sub-types, and the managed IP pool.
type Repository interface {
	ListTypes(ctx context.Context) ([]HardwareType, error)
	GetType(ctx context.Context, id int64) (*HardwareType, error)
	GetTypeByCode(ctx context.Context, code string) (*HardwareType, error)
	CreateType(ctx context.Context, t *HardwareType) error
	UpdateType(ctx context.Context, t *HardwareType) error
	DeleteType(ctx context.Context, id int64) error

	CreateLocation(ctx context.Context, loc *Location) error
	ListLocations(ctx context.Context) ([]Location, error)
	GetLocation(ctx context.Context, id int64) (*Location, error)
	FindLocationByName(ctx context.Context, name string) (*Location, error)
	EnsureLocation(ctx context.Context, name string, parentID *int64) (*Location, error)
	UpdateLocation(ctx context.Context, loc *Location) error
	DeleteLocation(ctx context.Context, id int64) error

	CreateUser(ctx context.Context, u *User) error
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	FindUserByName(ctx context.Context, name string) (*User, error)
	EnsureUser(ctx context.Context, name string) (*User, error)
	UpdateUser(ctx context.Context, u *User) error
	DeleteUser(ctx context.Context, id int64) error

	CreateGroup(ctx context.Context, g *Group) error
	ListGroups(ctx context.Context) ([]Group, error)
	GetGroup(ctx context.Context, id int64) (*Group, error)
	FindGroupByName(ctx context.Context, name string) (*Group, error)
	EnsureGroup(ctx context.Context, name string) (*Group, error)
	DeleteGroup(ctx context.Context, id int64) error

	CreateSubType(ctx context.Context, s *SubType) error
	ListSubTypes(ctx context.Context) ([]SubType, error)
	GetSubType(ctx context.Context, id int64) (*SubType, error)
	FindSubTypeByName(ctx context.Context, name string) (*SubType, error)
	EnsureSubType(ctx context.Context, name string) (*SubType, error)
	DeleteSubType(ctx context.Context, id int64) error

	AddIPAddress(ctx context.Context, address string) (*IPAddress, error)
	ListIPAddresses(ctx context.Context) ([]IPAddress, error)
	ListAvailableIPAddresses(ctx context.Context) ([]IPAddress, error)
	HasIPAddress(ctx context.Context, address string) (bool, error)
	RemoveIPAddress(ctx context.Context, address string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed catalog repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// normalizeName trims surrounding whitespace from a catalog name.
// Returns ErrInvalidName for empty results.
func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidName
	}
	return name, nil
}

// nullID converts a *int64 to sql.NullInt64 for nullable FK columns.
func nullID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

// isUniqueConstraintError checks for SQLite unique constraint violations.
func isUniqueConstraintError(err error) bool {
	return err != nil && !errors.Is(err, sql.ErrNoRows) &&
		(strings.Contains(err.Error(), "UNIQUE constraint failed") ||
			strings.Contains(err.Error(), "unique constraint"))
}
