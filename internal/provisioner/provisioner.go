// internal/provisioner/provisioner.go
package provisioner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	// ErrAlreadyExists means the target database name is taken. The
	// registry unique constraint makes this impossible on the normal
	// path, so hitting it signals an anomaly, not a retryable race.
	ErrAlreadyExists = errors.New("database already exists")

	ErrNotFound = errors.New("database does not exist")
)

// HostConfig carries the credentials for the host that physical tenant
// databases are created on.
type HostConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	SSLMode  string
}

// Provisioner creates and drops physical tenant databases. CREATE/DROP
// DATABASE cannot run inside a transaction, so every call opens a fresh
// maintenance connection against the target host.
type Provisioner struct {
	cfg HostConfig
}

func New(cfg HostConfig) *Provisioner {
	return &Provisioner{cfg: cfg}
}

func (p *Provisioner) dsn(host, dbName string) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, p.cfg.Port, p.cfg.User, p.cfg.Password, dbName, p.cfg.SSLMode)
}

// maintenance opens a short-lived connection to the host's postgres
// database, which is where CREATE/DROP DATABASE must be issued.
func (p *Provisioner) maintenance(host string) (*sql.DB, error) {
	db, err := sql.Open("postgres", p.dsn(host, "postgres"))
	if err != nil {
		return nil, fmt.Errorf("failed to open maintenance connection to %s: %w", host, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach tenant host %s: %w", host, err)
	}
	return db, nil
}

// Create creates the physical database. The name is always quoted as an
// identifier, never interpolated raw.
func (p *Provisioner) Create(ctx context.Context, host, dbName string) error {
	db, err := p.maintenance(host)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(dbName))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "42P04" { // duplicate_database
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create database %q on %s: %w", dbName, host, err)
	}
	return nil
}

// Drop destroys the physical database. Destructive and best-effort:
// failures are returned to the caller, never swallowed here.
func (p *Provisioner) Drop(ctx context.Context, host, dbName string) error {
	db, err := p.maintenance(host)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.ExecContext(ctx, "DROP DATABASE "+pq.QuoteIdentifier(dbName))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "3D000" { // invalid_catalog_name
			return ErrNotFound
		}
		return fmt.Errorf("failed to drop database %q on %s: %w", dbName, host, err)
	}
	return nil
}

// Open connects to an existing tenant database. The caller owns the
// handle and must close it.
func (p *Provisioner) Open(host, dbName string) (*sql.DB, error) {
	db, err := sql.Open("postgres", p.dsn(host, dbName))
	if err != nil {
		return nil, fmt.Errorf("failed to open tenant database %q: %w", dbName, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to tenant database %q: %w", dbName, err)
	}
	return db, nil
}
