package inventory

import (
	"fmt"
	"strings"
)

// isHexDigit reports whether c is a hexadecimal digit.
func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')
}

// NormalizeMAC canonicalises a MAC address: separators (":" and "-") are
// stripped and the result uppercased, so "aa:bb:cc:dd:ee:ff" and
// "AA-BB-CC-DD-EE-FF" store identically. Returns ErrValidation unless
// exactly 12 hex digits remain.
func NormalizeMAC(mac string) (string, error) {
	cleaned := strings.ToUpper(strings.TrimSpace(mac))
	cleaned = strings.ReplaceAll(cleaned, ":", "")
	cleaned = strings.ReplaceAll(cleaned, "-", "")

	if len(cleaned) != 12 {
		return "", fmt.Errorf("%w: mac address %q must have 12 hex digits", ErrValidation, mac)
	}
	for i := 0; i < len(cleaned); i++ {
		if !isHexDigit(cleaned[i]) {
			return "", fmt.Errorf("%w: mac address %q contains non-hex characters", ErrValidation, mac)
		}
	}
	return cleaned, nil
}

// validateDraftShape checks the parts of a draft that need no database
// access: required fields and address formats. FK resolution, pool
// membership, and the extension rule need the transaction and live in
// the store.
func validateDraftShape(d *Draft) error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if d.TypeID <= 0 {
		return fmt.Errorf("%w: type is required", ErrValidation)
	}
	if d.MACAddress != nil {
		normalized, err := NormalizeMAC(*d.MACAddress)
		if err != nil {
			return err
		}
		d.MACAddress = &normalized
	}
	if d.Extension != nil && strings.TrimSpace(*d.Extension) == "" {
		d.Extension = nil
	}
	return nil
}
