// internal/schema/templates.go
package schema

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"tenant-provisioner/internal/model"
)

// ErrTemplateNotFound means no script exists for the tenant type. The
// caller falls back to the minimal schema; this is not escalated.
var ErrTemplateNotFound = errors.New("schema template not found")

// Templates is a filesystem repository of per-type DDL scripts, one
// model_<type>.sql file per tenant type.
type Templates struct {
	dir string
}

func NewTemplates(dir string) *Templates {
	return &Templates{dir: dir}
}

// Lookup returns the DDL script for the tenant type.
func (t *Templates) Lookup(typ model.TenantType) (string, error) {
	path := filepath.Join(t.dir, fmt.Sprintf("model_%s.sql", typ))
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrTemplateNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read template for %q: %w", typ, err)
	}
	return string(data), nil
}

// FallbackDDL is the minimal schema applied when no template exists for
// the tenant type: one table able to hold a login.
const FallbackDDL = `
CREATE TABLE IF NOT EXISTS users (
	id SERIAL PRIMARY KEY,
	name VARCHAR(100),
	email VARCHAR(100) UNIQUE,
	password_hash VARCHAR(255),
	role VARCHAR(20) DEFAULT 'admin',
	created_at TIMESTAMPTZ DEFAULT NOW()
)`
