// Package storage is the registry's persistent indexed storage engine: the
// KEYS, KEY_ACCESS, and RECORDS tables of SPEC_FULL.md §4.4, plus the
// queries each domain operation needs. It mirrors the teacher's
// sa/database.go + sa/model.go split almost exactly: a dialect-pluggable
// *gorp.DbMap wrapper, and a parallel file of row<->domain-object
// converters.
package storage

import (
	"database/sql"
	"fmt"

	gorp "github.com/letsencrypt/borp"

	// Both drivers are registered so Config.DBDriver can select either at
	// runtime without a rebuild — see SPEC_FULL.md §10.3.
	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/meshregistry/registry/rlog"
)

// dialectMap mirrors the teacher's sa/database.go exactly, plus the sqlite
// alias modernc.org/sqlite registers under the stdlib driver name "sqlite".
var dialectMap = map[string]gorp.Dialect{
	"sqlite3": gorp.SqliteDialect{},
	"sqlite":  gorp.SqliteDialect{},
	"mysql":   gorp.MySQLDialect{Engine: "InnoDB", Encoding: "UTF8"},
}

// driverNameFor maps a configured logical driver to the database/sql driver
// name actually registered above.
func driverNameFor(configured string) string {
	if configured == "mysql" {
		return "mysql"
	}
	return "sqlite"
}

// Engine is the registry's storage engine: a thin wrapper around a
// *gorp.DbMap exposing one method per operation in SPEC_FULL.md §4.4.
type Engine struct {
	dbMap *gorp.DbMap
	log   rlog.Logger
}

// Open connects to driver/dsn (e.g. "sqlite3"/"/tmp/registry.db") and
// constructs the table map. It is safe to call Open lazily, on first use, as
// SPEC_FULL.md §5 requires of the storage handle.
func Open(driver, dsn string, logger rlog.Logger) (*Engine, error) {
	sqlDriverName := driverNameFor(driver)

	db, err := sql.Open(sqlDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database %s %s: %w", driver, dsn, err)
	}
	if sqlDriverName == "sqlite" {
		// SQLite serializes writers at the file level; a single pooled
		// connection avoids SQLITE_BUSY under concurrent access and keeps an
		// in-memory DSN from appearing empty on a second connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database %s %s: %w", driver, dsn, err)
	}

	dialect, ok := dialectMap[driver]
	if !ok {
		return nil, fmt.Errorf("no dialect registered for driver %q", driver)
	}

	logger.Info("connected to registry storage", "driver", driver, "dsn", dsn)

	dbMap := &gorp.DbMap{Db: db, Dialect: dialect}
	initTables(dbMap)

	if err := dbMap.CreateTablesIfNotExists(); err != nil {
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return &Engine{dbMap: dbMap, log: logger}, nil
}

// initTables constructs the gorp table map for KEYS, KEY_ACCESS, and
// RECORDS, following the teacher's initTables (sa/database.go) convention.
func initTables(dbMap *gorp.DbMap) {
	dbMap.AddTableWithName(keyRow{}, "keys").SetKeys(false, "ID")
	dbMap.AddTableWithName(keyAccessRow{}, "key_access").SetKeys(false, "ID")
	dbMap.AddTableWithName(recordRow{}, "records").SetKeys(false, "KeyId", "IssuedBy", "PeerId")
}

// Close releases the underlying database/sql handle.
func (e *Engine) Close() error {
	return e.dbMap.Db.Close()
}
