// Package database opens the panel SQLite database read-only and exposes it to the services.
package database

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/mhsanaei/3x-ui-usage/database/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	maxOpenConns    = 4
	connMaxIdleTime = 5 * time.Minute
	busyTimeoutMs   = 5000
)

var db *gorm.DB

// ErrNotSQLite is returned when the configured file is not a SQLite database.
var ErrNotSQLite = errors.New("file is not a SQLite database")

// Open opens dbPath read-only. The file must already exist; this package never creates
// or migrates the panel schema.
func Open(dbPath string, debug bool) (*gorm.DB, error) {
	file, err := os.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", dbPath, err)
	}
	ok, err := IsSQLiteDB(file)
	_ = file.Close()
	if err != nil || !ok {
		return nil, fmt.Errorf("%s: %w", dbPath, ErrNotSQLite)
	}

	var gormLogger logger.Interface
	if debug {
		gormLogger = logger.Default
	} else {
		gormLogger = logger.Discard
	}

	c := &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=%d", (&url.URL{Path: dbPath}).EscapedPath(), busyTimeoutMs)
	conn, err := gorm.Open(sqlite.Open(dsn), c)
	if err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxOpenConns)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return conn, nil
}

// InitDB opens the database and stores it for GetDB.
func InitDB(dbPath string, debug bool) error {
	conn, err := Open(dbPath, debug)
	if err != nil {
		return err
	}
	db = conn
	return nil
}

func CloseDB() error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	db = nil
	return sqlDB.Close()
}

func GetDB() *gorm.DB {
	return db
}

// CheckSchema returns an error naming every required table missing from conn.
func CheckSchema(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("database is not initialized")
	}
	missing := make([]string, 0)
	migrator := conn.Migrator()
	for _, table := range model.RequiredTables {
		if !migrator.HasTable(table) {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required tables: %v", missing)
	}
	return nil
}

func IsSQLiteDB(file io.ReaderAt) (bool, error) {
	signature := []byte("SQLite format 3\x00")
	buf := make([]byte, len(signature))
	_, err := file.ReadAt(buf, 0)
	if err != nil {
		return false, err
	}
	return bytes.Equal(buf, signature), nil
}
