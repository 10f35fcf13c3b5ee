// Package database resolves a DSN to a GORM connection and prepares the schema.
package database

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/MarkoPoloResearchLab/canteen/internal/store/gormstore"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	// DriverPostgres identifies postgres:// and postgresql:// DSNs.
	DriverPostgres = "postgres"
	// DriverSQLite identifies sqlite:// DSNs and bare file paths.
	DriverSQLite = "sqlite"

	defaultSQLiteFile = "canteen.db"
	sqliteMemory      = ":memory:"
)

// Connection is an open database and the driver it was opened with.
type Connection struct {
	DB     *gorm.DB
	Driver string
	close  func() error
}

// Close releases the underlying pool.
func (connection *Connection) Close() error {
	if connection.close == nil {
		return nil
	}
	return connection.close()
}

// Open connects to dsn. SQLite connections are limited to one open connection so
// writers serialise.
func Open(ctx context.Context, dsn string) (*Connection, error) {
	driver, sqlitePath, err := ResolveDriver(dsn)
	if err != nil {
		return nil, err
	}
	config := &gorm.Config{}
	var db *gorm.DB
	switch driver {
	case DriverPostgres:
		db, err = gorm.Open(postgres.Open(dsn), config)
	case DriverSQLite:
		db, err = gorm.Open(sqlite.Open(sqlitePath), config)
	default:
		return nil, fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}
	return &Connection{
		DB:     db.WithContext(ctx),
		Driver: driver,
		close:  sqlDB.Close,
	}, nil
}

// Migrate creates or updates every table.
func Migrate(connection *Connection) error {
	if err := gormstore.AutoMigrate(connection.DB); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// PrepareSchema migrates SQLite databases automatically; PostgreSQL schemas are
// migrated explicitly with canteenctl.
func PrepareSchema(connection *Connection) error {
	if connection.Driver != DriverSQLite {
		return nil
	}
	return Migrate(connection)
}

// ResolveDriver maps dsn to a driver name and, for SQLite, a file path.
func ResolveDriver(dsn string) (string, string, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return "", "", fmt.Errorf("database url is required")
	}
	if strings.HasPrefix(trimmed, "postgres://") || strings.HasPrefix(trimmed, "postgresql://") {
		return DriverPostgres, "", nil
	}
	if strings.HasPrefix(trimmed, "sqlite://") {
		parsed, err := url.Parse(trimmed)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := parsed.Path
		if path == "" {
			path = parsed.Host
		}
		if path == "" || path == "/" {
			path = defaultSQLiteFile
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return DriverSQLite, sqlitePath, err
	}
	sqlitePath, err := normalizeSQLitePath(trimmed)
	return DriverSQLite, sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == sqliteMemory {
		return path, nil
	}
	if filepath.IsAbs(path) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	relative := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(relative), 0o755); err != nil {
		return "", err
	}
	return relative, nil
}
