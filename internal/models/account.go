// Package models contains the krishi data model.
// Every per-user entity references the owning Account.
package models

import (
	"strings"
	"time"

	"github.com/aethra/krishi/internal/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// =============================================================================
// ACCOUNTS
// =============================================================================

// Account is an authenticated user identity
type Account struct {
	ID           uuid.UUID  `json:"id" gorm:"primaryKey;size:36"`
	Username     string     `json:"username" gorm:"uniqueIndex;not null;size:150"`
	Email        string     `json:"email" gorm:"size:254;index"`
	PasswordHash string     `json:"-" gorm:"size:255"`
	FirstName    string     `json:"first_name" gorm:"size:150"`
	LastName     string     `json:"last_name" gorm:"size:150"`
	IsActive     bool       `json:"is_active" gorm:"not null"`
	IsStaff      bool       `json:"is_staff" gorm:"not null"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// Relations
	Profile *UserProfile `json:"profile,omitempty" gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE"`
}

func (Account) TableName() string {
	return "accounts"
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// Validate checks the account fields that do not depend on storage
func (a *Account) Validate() error {
	a.Username = strings.TrimSpace(a.Username)
	if a.Username == "" {
		return errors.NewValidationError("username", "username is required")
	}
	if len(a.Username) > 150 {
		return errors.NewValidationError("username", "username must be at most 150 characters")
	}
	return nil
}

// UserProfile is the 1:1 extension of an Account
type UserProfile struct {
	ID                uuid.UUID `json:"id" gorm:"primaryKey;size:36"`
	AccountID         uuid.UUID `json:"account_id" gorm:"uniqueIndex;not null;size:36"`
	PhoneNumber       *string   `json:"phone_number" gorm:"size:15"`
	PreferredLanguage Language  `json:"preferred_language" gorm:"not null;size:5"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (UserProfile) TableName() string {
	return "user_profiles"
}

// NewUserProfile returns the default profile for a freshly created account
func NewUserProfile(accountID uuid.UUID) *UserProfile {
	return &UserProfile{
		AccountID:         accountID,
		PreferredLanguage: LanguageEnglish,
	}
}

func (p *UserProfile) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

func (p *UserProfile) BeforeSave(tx *gorm.DB) error {
	return p.Validate()
}

func (p *UserProfile) Validate() error {
	if p.PreferredLanguage == "" {
		p.PreferredLanguage = LanguageEnglish
	}
	if !p.PreferredLanguage.Valid() {
		return errors.NewValidationError("preferred_language", "preferred_language must be one of: en, ml")
	}
	if p.PhoneNumber != nil {
		phone := strings.TrimSpace(*p.PhoneNumber)
		if phone == "" {
			p.PhoneNumber = nil
		} else if len(phone) > 15 {
			return errors.NewValidationError("phone_number", "phone_number must be at most 15 characters")
		} else {
			p.PhoneNumber = &phone
		}
	}
	return nil
}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
