package inventory

import "errors"

// Domain errors for the inventory package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, inventory.ErrDuplicate) {
//	    // handle uniqueness violation
//	}
var (
	// ErrValidation is returned for invalid input: a missing or unresolvable
	// foreign key, a malformed MAC or IP, an address outside the managed
	// pool, or an extension on a non-landline type.
	ErrValidation = errors.New("inventory: validation failed")

	// ErrDuplicate is returned when a MAC, IP, or tag collides with an
	// existing item. MAC comparison is case-insensitive.
	ErrDuplicate = errors.New("inventory: duplicate value")

	// ErrNotFound is returned when an item id does not exist.
	ErrNotFound = errors.New("inventory: item not found")

	// ErrConflict is returned when a write lost the race for the database
	// lock and bounded retries were exhausted.
	ErrConflict = errors.New("inventory: concurrent write conflict")

	// ErrTagInvariant is returned when a derived asset tag fails its format
	// check or global uniqueness. This is an internal consistency failure,
	// not a caller input problem.
	ErrTagInvariant = errors.New("inventory: asset tag invariant violated")

	// ErrAttributeNotFound is returned when an attribute key is absent.
	ErrAttributeNotFound = errors.New("inventory: attribute not found")
)
