package catalog

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
)

// NormalizeIP parses and canonicalises an IP address literal. IPv6
// addresses are lowercased and compressed, so two spellings of the same
// address cannot both enter the pool.
func NormalizeIP(address string) (string, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(address))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidIP, address)
	}
	return addr.String(), nil
}

// AddIPAddress adds an address to the managed pool.
func (r *SQLiteRepository) AddIPAddress(ctx context.Context, address string) (*IPAddress, error) {
	normalized, err := NormalizeIP(address)
	if err != nil {
		return nil, err
	}

	const query = `INSERT INTO ip_addresses (ip_address) VALUES (?)`
	result, err := r.db.ExecContext(ctx, query, normalized)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrIPExists
		}
		return nil, fmt.Errorf("inserting ip address %s: %w", normalized, err)
	}
	ip := &IPAddress{Address: normalized}
	ip.ID, _ = result.LastInsertId() //nolint:errcheck // SQLite always supports LastInsertId
	return ip, nil
}

// ListIPAddresses returns the whole pool ordered by address.
func (r *SQLiteRepository) ListIPAddresses(ctx context.Context) ([]IPAddress, error) {
	const query = `SELECT id, ip_address FROM ip_addresses ORDER BY ip_address`
	return r.queryIPs(ctx, query)
}

// ListAvailableIPAddresses returns pool addresses no live item holds.
func (r *SQLiteRepository) ListAvailableIPAddresses(ctx context.Context) ([]IPAddress, error) {
	const query = `SELECT p.id, p.ip_address FROM ip_addresses p
		WHERE NOT EXISTS (
			SELECT 1 FROM hardware_items i
			WHERE i.ip_address = p.ip_address AND i.archived = 0
		)
		ORDER BY p.ip_address`
	return r.queryIPs(ctx, query)
}

// HasIPAddress reports whether an address is in the pool.
func (r *SQLiteRepository) HasIPAddress(ctx context.Context, address string) (bool, error) {
	normalized, err := NormalizeIP(address)
	if err != nil {
		return false, err
	}

	var count int
	err = r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ip_addresses WHERE ip_address = ?", normalized,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking ip address %s: %w", normalized, err)
	}
	return count > 0, nil
}

// RemoveIPAddress removes an address from the pool. Returns ErrIPInUse
// while any item, archived or not, still records the address.
func (r *SQLiteRepository) RemoveIPAddress(ctx context.Context, address string) error {
	normalized, err := NormalizeIP(address)
	if err != nil {
		return err
	}

	var held int
	err = r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM hardware_items WHERE ip_address = ?", normalized,
	).Scan(&held)
	if err != nil {
		return fmt.Errorf("checking ip address holders: %w", err)
	}
	if held > 0 {
		return ErrIPInUse
	}

	result, err := r.db.ExecContext(ctx,
		"DELETE FROM ip_addresses WHERE ip_address = ?", normalized)
	if err != nil {
		return fmt.Errorf("deleting ip address %s: %w", normalized, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrIPNotFound
	}
	return nil
}

// queryIPs executes a query and returns a slice of IPAddress.
func (r *SQLiteRepository) queryIPs(ctx context.Context, query string, args ...any) ([]IPAddress, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying ip addresses: %w", err)
	}
	defer rows.Close()

	var ips []IPAddress
	for rows.Next() {
		var ip IPAddress
		if err := rows.Scan(&ip.ID, &ip.Address); err != nil {
			return nil, fmt.Errorf("scanning ip address row: %w", err)
		}
		ips = append(ips, ip)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ip address rows: %w", err)
	}
	return ips, nil
}
