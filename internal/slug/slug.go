// internal/slug/slug.go
package slug

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	MinLength = 3
	MaxLength = 40

	// Postgres identifiers are truncated at 63 bytes; the derived name
	// must fit without the engine silently cutting it.
	maxDatabaseName = 63
	databasePrefix  = "tenant_"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// reserved are slugs that would collide with routing or internal names.
var reserved = map[string]struct{}{
	"admin":     {},
	"api":       {},
	"auth":      {},
	"hub":       {},
	"internal":  {},
	"master":    {},
	"metrics":   {},
	"postgres":  {},
	"public":    {},
	"superuser": {},
	"system":    {},
	"template":  {},
	"tenant":    {},
	"www":       {},
}

// Validate canonicalizes and checks a human-chosen slug: lowercase
// alphanumeric plus inner hyphens, bounded length, not a reserved word.
func Validate(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if len(s) < MinLength || len(s) > MaxLength {
		return "", fmt.Errorf("slug must be between %d and %d characters", MinLength, MaxLength)
	}
	if !slugPattern.MatchString(s) {
		return "", fmt.Errorf("slug may only contain lowercase letters, digits and inner hyphens")
	}
	if _, ok := reserved[s]; ok {
		return "", fmt.Errorf("slug %q is reserved", s)
	}
	return s, nil
}

// DeriveDatabaseName maps a validated slug to the physical database name.
// Pure and deterministic: the same slug always yields the same name.
// Hyphens become underscores, so distinct slugs can collapse onto one
// name; the registry unique constraint is the only guard against that.
func DeriveDatabaseName(slug string) string {
	name := databasePrefix + strings.ReplaceAll(slug, "-", "_")
	if len(name) > maxDatabaseName {
		name = name[:maxDatabaseName]
	}
	return name
}
