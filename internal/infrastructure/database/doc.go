// Package database provides SQLite storage for the automation controller.
//
// It manages:
//   - The connection, with WAL mode and a busy timeout
//   - Schema migrations embedded in the binary
//   - Health checks and lifecycle
//
// The automation package keeps its trigger history here
// (table automation_triggers).
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns are nullable or have defaults, and
// every .up.sql has a matching .down.sql.
package database
