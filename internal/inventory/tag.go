package inventory

import (
	"fmt"
	"regexp"
	"strings"
)

// tagPrefix is the fixed prefix of every asset tag. The full format
// SDMM-<CODE>-<serial> is printed on physical labels and is a durable
// external contract; changing it is a breaking change requiring its own
// migration.
const tagPrefix = "SDMM"

// tagPattern is the format check applied to every derived tag.
var tagPattern = regexp.MustCompile(`^SDMM-[A-Z0-9]+-\d{4,}$`)

// DeriveTag builds the canonical asset tag from a type code and a
// type-scoped serial. The code is uppercased, and the serial is
// zero-padded to 4 digits and widens past 9999, never truncates.
func DeriveTag(code string, serial int64) string {
	return fmt.Sprintf("%s-%s-%04d", tagPrefix, strings.ToUpper(code), serial)
}

// checkTagFormat validates a derived tag against the label format.
// Failure means the deriving inputs were corrupt, so this surfaces as
// ErrTagInvariant rather than a validation error.
func checkTagFormat(tag string) error {
	if !tagPattern.MatchString(tag) {
		return fmt.Errorf("%w: malformed tag %q", ErrTagInvariant, tag)
	}
	return nil
}
