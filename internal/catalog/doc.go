// Package catalog manages the reference entities items point at:
// hardware types (with their tag codes), the location tree, users,
// groups, sub-types, and the managed IP address pool.
//
// Catalog names are unique case-insensitively; the repository surfaces
// collisions as ErrDuplicateName. Hardware type codes participate in
// printed asset tags and are immutable once any item references the
// type (ErrTypeInUse).
//
// Deleting a catalog entry never deletes items: item foreign keys are
// cleared by the schema's ON DELETE SET NULL rules, and deleting a
// parent location detaches its children rather than cascading.
package catalog
