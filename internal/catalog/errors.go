package catalog

import "errors"

// Domain errors for the catalog package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, catalog.ErrTypeNotFound) {
//	    // handle not found case
//	}
var (
	// ErrTypeNotFound is returned when a hardware type id or code does not exist.
	ErrTypeNotFound = errors.New("catalog: hardware type not found")

	// ErrTypeExists is returned when creating a hardware type whose name or code is taken.
	ErrTypeExists = errors.New("catalog: hardware type already exists")

	// ErrTypeInUse is returned when changing the code of, or deleting, a hardware
	// type that items still reference. The code is an external identity component
	// (printed on asset labels) and is immutable once referenced.
	ErrTypeInUse = errors.New("catalog: hardware type is referenced by items")

	// ErrLocationNotFound is returned when a location id does not exist.
	ErrLocationNotFound = errors.New("catalog: location not found")

	// ErrUserNotFound is returned when a user id does not exist.
	ErrUserNotFound = errors.New("catalog: user not found")

	// ErrGroupNotFound is returned when a group id does not exist.
	ErrGroupNotFound = errors.New("catalog: group not found")

	// ErrSubTypeNotFound is returned when a sub-type id does not exist.
	ErrSubTypeNotFound = errors.New("catalog: sub-type not found")

	// ErrDuplicateName is returned when a catalog name collides
	// case-insensitively with an existing entry.
	ErrDuplicateName = errors.New("catalog: duplicate name")

	// ErrInvalidName is returned when a catalog name is empty or whitespace.
	ErrInvalidName = errors.New("catalog: invalid name")

	// ErrIPNotFound is returned when an address is not in the managed pool.
	ErrIPNotFound = errors.New("catalog: ip address not in pool")

	// ErrIPExists is returned when adding an address already in the pool.
	ErrIPExists = errors.New("catalog: ip address already in pool")

	// ErrIPInUse is returned when removing a pool address that an item holds.
	ErrIPInUse = errors.New("catalog: ip address assigned to an item")

	// ErrInvalidIP is returned when an address is not a valid IPv4/IPv6 literal.
	ErrInvalidIP = errors.New("catalog: invalid ip address")
)
