// Package auth - caller identity and access rules
package auth

import (
	"github.com/aethra/krishi/internal/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Principal is the authenticated caller of a request
type Principal struct {
	AccountID uuid.UUID
	Username  string
	IsStaff   bool
}

// Owns reports whether the caller owns a record
func (p Principal) Owns(ownerID uuid.UUID) bool {
	return p.AccountID != uuid.Nil && p.AccountID == ownerID
}

// RequireStaff rejects callers without the staff flag
func (p Principal) RequireStaff(action, resource string) error {
	if !p.IsStaff {
		return errors.NewPermissionDeniedError(action, resource)
	}
	return nil
}

// OwnedBy is a gorm scope restricting a query to the caller's rows.
// Rows of other accounts are therefore reported as not found.
func OwnedBy(p Principal) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("account_id = ?", p.AccountID)
	}
}
