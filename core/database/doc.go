// Package database handles database connections.
//
// It provides a wrapper around GORM (Go Object Relational Mapping) that
// configures MySQL connections for production use and SQLite connections for
// local runs, based on the application's configuration.
//
// # Connect
//
// The Connect function establishes and pings a connection. Error translation
// is enabled on the returned handle, so uniqueness-constraint violations
// surface as gorm.ErrDuplicatedKey on every supported driver. The catalog
// refresh engine depends on this to distinguish retryable version-creation
// races from real failures.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
package database
