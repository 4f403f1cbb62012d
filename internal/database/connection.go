package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/example/passdrill/internal/config"
)

// DB is the global database connection
var DB *sqlx.DB

// Connect establishes the connection selected by the storage configuration and stores it in DB
func Connect(cfg config.StorageConfig) (*sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)

	switch cfg.Backend {
	case "postgres":
		db, err = Open("postgres", cfg.DatabaseURL)
	case "sqlite":
		// Create data directory if it doesn't exist
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		db, err = Open("sqlite3", filepath.Join(cfg.DataDir, "passdrill.db"))
	default:
		return nil, fmt.Errorf("unsupported database backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	DB = db
	return db, nil
}

// Open connects with the given driver and makes sure the schema exists
func Open(driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "sqlite3" {
		// SQLite doesn't support multiple writers; a single connection also keeps :memory: databases shared
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}

// initializeSchema creates necessary tables if they don't exist
func initializeSchema(db *sqlx.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kv_store (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create kv_store table: %w", err)
	}

	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.DriverName() == "postgres" {
		idColumn = "id SERIAL PRIMARY KEY"
	}

	// Finished tests are archived row by row so they can be queried outside the app
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS test_results (
			` + idColumn + `,
			test_date TEXT NOT NULL,
			test_type TEXT NOT NULL,
			score INTEGER NOT NULL,
			answered_count INTEGER NOT NULL,
			chapter_scores TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create test_results table: %w", err)
	}

	return nil
}
