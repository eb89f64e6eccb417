// Package models - financial ledger
package models

import (
	"strings"
	"time"

	"github.com/aethra/krishi/internal/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var minAmount = decimal.RequireFromString("0.01")

// FinancialLedgerEntry is one income or expense transaction
type FinancialLedgerEntry struct {
	ID              uuid.UUID       `json:"id" gorm:"primaryKey;size:36"`
	AccountID       uuid.UUID       `json:"account_id" gorm:"index:idx_ledger_account_date,priority:1;not null;size:36"`
	Date            Date            `json:"date" gorm:"index:idx_ledger_account_date,priority:2;not null"`
	EntryType       EntryType       `json:"entry_type" gorm:"size:10;not null"`
	Amount          decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Description     string          `json:"description" gorm:"size:200;not null"`
	Category        string          `json:"category" gorm:"size:50;not null"`
	CropRelated     *string         `json:"crop_related" gorm:"size:100"`
	PaymentMethod   *PaymentMethod  `json:"payment_method" gorm:"size:50"`
	ReferenceNumber *string         `json:"reference_number" gorm:"size:100"`
	Notes           *string         `json:"notes" gorm:"type:text"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (FinancialLedgerEntry) TableName() string {
	return "financial_ledger_entries"
}

func (e *FinancialLedgerEntry) BeforeCreate(tx *gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

func (e *FinancialLedgerEntry) BeforeSave(tx *gorm.DB) error {
	return e.Validate()
}

// SignedAmount is +amount for income and -amount for expense
func (e *FinancialLedgerEntry) SignedAmount() decimal.Decimal {
	if e.EntryType == EntryIncome {
		return e.Amount
	}
	return e.Amount.Neg()
}

// Validate enforces a positive two-decimal amount and a category that
// belongs to the entry type
func (e *FinancialLedgerEntry) Validate() error {
	if e.Date.IsZero() {
		return errors.NewValidationError("date", "date is required")
	}
	if !e.EntryType.Valid() {
		return errors.NewValidationError("entry_type", "entry_type must be one of: income, expense")
	}
	if e.Amount.LessThan(minAmount) {
		return errors.NewValidationError("amount", "amount must be at least 0.01")
	}
	if !e.Amount.Equal(e.Amount.Round(2)) {
		return errors.NewValidationError("amount", "amount must have at most two decimal places")
	}
	if e.Amount.GreaterThanOrEqual(decimal.New(1, 10)) {
		return errors.NewValidationError("amount", "amount is too large")
	}
	e.Description = strings.TrimSpace(e.Description)
	if e.Description == "" {
		return errors.NewValidationError("description", "description is required")
	}
	if len(e.Description) > 200 {
		return errors.NewValidationError("description", "description must be at most 200 characters")
	}
	e.Category = strings.TrimSpace(e.Category)
	if !e.EntryType.AllowsCategory(e.Category) {
		return errors.NewValidationError("category", "category is not valid for "+string(e.EntryType)+" entries")
	}
	if e.PaymentMethod != nil && !e.PaymentMethod.Valid() {
		return errors.NewValidationError("payment_method", "payment_method must be one of: cash, bank_transfer, cheque, upi, other")
	}
	e.CropRelated = trimOptional(e.CropRelated)
	e.ReferenceNumber = trimOptional(e.ReferenceNumber)
	e.Notes = trimOptional(e.Notes)
	return nil
}
