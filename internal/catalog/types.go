package catalog

// HardwareType maps a hardware category to the short uppercase code used
// in asset tags. Seeded by migration; the code is immutable once any item
// references the type.
type HardwareType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// Location is a node in the location tree. Deleting a parent detaches its
// children (parent reference cleared, not cascaded).
type Location struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

// User is a person items can be assigned to.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Group is a team or department items can be assigned to.
type Group struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SubType is a free-form refinement of a hardware type (e.g. "MacBook Pro").
type SubType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// IPAddress is an entry in the managed address pool. Items may only be
// assigned addresses that exist here.
type IPAddress struct {
	ID      int64  `json:"id"`
	Address string `json:"ip_address"`
}
