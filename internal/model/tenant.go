// internal/model/tenant.go
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TenantType is the archetype tag of a tenant. It selects the schema
// template applied to the tenant database and the shape of the bootstrap
// admin row. The catalog is fixed at compile time.
type TenantType string

const (
	TenantTypePlayer  TenantType = "player"
	TenantTypeCourt   TenantType = "court"
	TenantTypeReferee TenantType = "referee"
	TenantTypeGeneric TenantType = "generic"
)

// AdminShape selects the column layout of the bootstrap admin row inside
// the tenant database. Exactly two shapes exist.
type AdminShape int

const (
	// AdminShapeMerged is the single merged user table layout where the
	// admin flags live on the user row itself.
	AdminShapeMerged AdminShape = iota
	// AdminShapeGeneric is the plain user table layout with a role column.
	AdminShapeGeneric
)

var tenantTypeCatalog = map[TenantType]AdminShape{
	TenantTypePlayer:  AdminShapeMerged,
	TenantTypeCourt:   AdminShapeGeneric,
	TenantTypeReferee: AdminShapeGeneric,
	TenantTypeGeneric: AdminShapeGeneric,
}

// ParseTenantType validates a raw tag against the catalog.
func ParseTenantType(raw string) (TenantType, error) {
	t := TenantType(raw)
	if _, ok := tenantTypeCatalog[t]; !ok {
		return "", fmt.Errorf("unknown tenant type %q", raw)
	}
	return t, nil
}

// AdminShape returns the admin row shape for the type. The catalog is
// closed, so an unknown type can only come from an unvalidated string.
func (t TenantType) AdminShape() AdminShape {
	shape, ok := tenantTypeCatalog[t]
	if !ok {
		return AdminShapeGeneric
	}
	return shape
}

// TenantTypes lists the catalog tags, for listings and validation messages.
func TenantTypes() []TenantType {
	types := make([]TenantType, 0, len(tenantTypeCatalog))
	for t := range tenantTypeCatalog {
		types = append(types, t)
	}
	return types
}

// Tenant is the registry record for one provisioned tenant. The registry
// row is the source of truth: it is written before the physical database
// exists and removed after the physical database is gone.
type Tenant struct {
	ID                uuid.UUID  `json:"id" db:"id"`
	Slug              string     `json:"slug" db:"slug"`
	DisplayName       string     `json:"displayName" db:"display_name"`
	TenantType        TenantType `json:"tenantType" db:"tenant_type"`
	DatabaseName      string     `json:"databaseName" db:"database_name"`
	DatabaseHost      string     `json:"databaseHost" db:"database_host"`
	PrimaryColor      string     `json:"primaryColor" db:"primary_color"`
	IsActive          bool       `json:"isActive" db:"is_active"`
	MaintenanceMode   bool       `json:"maintenanceMode" db:"maintenance_mode"`
	AllowRegistration bool       `json:"allowRegistration" db:"allow_registration"`
	CreatedAt         time.Time  `json:"createdAt" db:"created_at"`
}

// AdminSeed carries the bootstrap administrator credentials for a new
// tenant. PasswordHash is already hashed when the seed reaches storage.
type AdminSeed struct {
	Name         string
	Nickname     string
	Email        string
	PasswordHash string
}
