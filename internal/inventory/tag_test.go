package inventory

import (
	"errors"
	"testing"
)

func TestDeriveTag(t *testing.T) {
	tests := []struct {
		name   string
		code   string
		serial int64
		want   string
	}{
		{"first serial", "PX", 1, "SDMM-PX-0001"},
		{"mid range", "LT", 42, "SDMM-LT-0042"},
		{"four digits", "NW", 9999, "SDMM-NW-9999"},
		{"widens past four digits", "NW", 10000, "SDMM-NW-10000"},
		{"lowercase code normalised", "px", 7, "SDMM-PX-0007"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveTag(tt.code, tt.serial); got != tt.want {
				t.Errorf("DeriveTag(%q, %d) = %q, want %q", tt.code, tt.serial, got, tt.want)
			}
		})
	}
}

func TestCheckTagFormat(t *testing.T) {
	valid := []string{"SDMM-PX-0001", "SDMM-LT-0042", "SDMM-NW-10000"}
	for _, tag := range valid {
		if err := checkTagFormat(tag); err != nil {
			t.Errorf("checkTagFormat(%q) = %v, want nil", tag, err)
		}
	}

	invalid := []string{"", "PX-0001", "SDMM-PX-001", "SDMM-px-0001", "SDMM-PX-"}
	for _, tag := range invalid {
		if err := checkTagFormat(tag); !errors.Is(err, ErrTagInvariant) {
			t.Errorf("checkTagFormat(%q) = %v, want ErrTagInvariant", tag, err)
		}
	}
}
