// Package database provides SQLite connectivity for the IR bridge.
//
// It opens the database with WAL mode and a busy timeout, and applies
// embedded schema migrations. Migrations are additive: each version has an
// .up.sql and a .down.sql file, and new columns are nullable or defaulted.
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
