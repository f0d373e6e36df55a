package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

func OpenSQLite(path string, maxOpen, maxIdle int, maxLifetime time.Duration) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	return open("sqlite", dsn, maxOpen, maxIdle, maxLifetime)
}

// Open connects the audit store. driver is one of sqlite, mysql or pgx; for
// sqlite the path is used, otherwise the DSN.
func Open(driver, dsn, path string) (*sql.DB, error) {
	switch driver {
	case "sqlite":
		return OpenSQLite(path, 1, 1, 30*time.Minute)
	case "mysql":
		dsn, err := mysqlDSN(dsn)
		if err != nil {
			return nil, err
		}
		return open(driver, dsn, 4, 2, 30*time.Minute)
	case "pgx":
		return open(driver, dsn, 4, 2, 30*time.Minute)
	default:
		return nil, fmt.Errorf("unsupported audit db driver %q", driver)
	}
}

// mysqlDSN turns on parseTime so TIMESTAMP columns scan into time.Time, and
// pins the session to UTC.
func mysqlDSN(dsn string) (string, error) {
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	mc.ParseTime = true
	mc.Loc = time.UTC
	return mc.FormatDSN(), nil
}

func open(driver, dsn string, maxOpen, maxIdle int, maxLifetime time.Duration) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
