// Package database provides SQLite database connectivity for FieldGrid Core.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Foreign key enforcement (telemetry rows reference devices)
//   - Schema migrations embedded in the binary
//   - Connection lifecycle and health checks
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
