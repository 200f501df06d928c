// Package database provides SQLite database connectivity for AssetForge Core.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations, both embedded SQL files and procedural Go steps
//   - Connection pooling and lifecycle management
//   - Integrity verification (quick_check, foreign_key_check)
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Performance Characteristics:
//   - WAL mode allows concurrent reads during writes
//   - Busy timeout prevents lock contention errors
//   - Single writer connection matches SQLite's locking model
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	// Run migrations
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration Strategy:
//
// The ledger in schema_migrations records every applied version. Each
// migration runs in its own transaction and is either fully applied or
// fully rolled back. Schema-shape changes live in .up.sql/.down.sql
// files; data transformations that need row-level logic are registered
// as Go steps with Register and share the same version namespace.
package database
