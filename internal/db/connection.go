package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/shl-matching/internal/config"
)

// Connection holds the database connection
type Connection struct {
	DB *sql.DB
}

// NewConnection creates a new database connection. When no URL is configured
// the DSN is built from the standard PG* environment variables.
func NewConnection(ctx context.Context, cfg config.DBConfig) (*Connection, error) {
	db, err := sql.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	maxConns := cfg.MaxConnections
	if maxConns < 1 {
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns((maxConns + 1) / 2)

	return &Connection{DB: db}, nil
}

// DSN returns the connection string for a database configuration
func DSN(cfg config.DBConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}

	host := config.GetEnv("PGHOST", "localhost")
	port := config.GetEnv("PGPORT", "5432")
	user := config.GetEnv("PGUSER", "matcher")
	password := config.GetEnv("PGPASSWORD", "matcher")
	dbname := config.GetEnv("PGDATABASE", "matcher")

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)
}

// Close closes the database connection
func (c *Connection) Close() error {
	return c.DB.Close()
}
