// Package engine - Ledger Engine
// Handles income and expense entries and their summaries
package engine

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/aethra/krishi/internal/auth"
	"github.com/aethra/krishi/internal/errors"
	"github.com/aethra/krishi/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const ledgerOrder = "date DESC, created_at DESC"

// LedgerEngine manages the financial ledger
type LedgerEngine struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewLedgerEngine creates a new ledger engine
func NewLedgerEngine(db *gorm.DB, log *zap.Logger) *LedgerEngine {
	return &LedgerEngine{db: db, log: log.Named("ledger")}
}

// LedgerInput is the full set of ledger entry fields
type LedgerInput struct {
	Date            models.Date
	EntryType       models.EntryType
	Amount          decimal.Decimal
	Description     string
	Category        string
	CropRelated     *string
	PaymentMethod   *models.PaymentMethod
	ReferenceNumber *string
	Notes           *string
}

// LedgerFilter narrows a ledger listing
type LedgerFilter struct {
	PageParams
	DateRange
	EntryType models.EntryType
	Category  string
}

// CategoryTotal is the sum of one category within a summary
type CategoryTotal struct {
	EntryType models.EntryType `json:"entry_type"`
	Category  string           `json:"category"`
	Label     string           `json:"label"`
	Total     decimal.Decimal  `json:"total"`
	Count     int              `json:"count"`
}

// Summary totals the caller's ledger over a date range
type Summary struct {
	From         *models.Date    `json:"from"`
	To           *models.Date    `json:"to"`
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	Net          decimal.Decimal `json:"net"`
	EntryCount   int             `json:"entry_count"`
	ByCategory   []CategoryTotal `json:"by_category"`
}

// MarshalJSON renders the amount with two decimals
func (c CategoryTotal) MarshalJSON() ([]byte, error) {
	type alias CategoryTotal
	return json.Marshal(struct {
		alias
		Total string `json:"total"`
	}{alias(c), c.Total.StringFixed(2)})
}

// MarshalJSON renders every amount with two decimals
func (s Summary) MarshalJSON() ([]byte, error) {
	type alias Summary
	return json.Marshal(struct {
		alias
		TotalIncome  string `json:"total_income"`
		TotalExpense string `json:"total_expense"`
		Net          string `json:"net"`
	}{alias(s), s.TotalIncome.StringFixed(2), s.TotalExpense.StringFixed(2), s.Net.StringFixed(2)})
}

// List returns the caller's entries, newest first
func (e *LedgerEngine) List(ctx context.Context, p auth.Principal, f LedgerFilter) (*Page[models.FinancialLedgerEntry], error) {
	query, err := e.filtered(ctx, p, f.DateRange, f.EntryType)
	if err != nil {
		return nil, err
	}
	if f.Category != "" {
		query = query.Where("category = ?", f.Category)
	}
	return paginate[models.FinancialLedgerEntry](query, f.PageParams, ledgerOrder)
}

// Get returns one of the caller's entries
func (e *LedgerEngine) Get(ctx context.Context, p auth.Principal, id uuid.UUID) (*models.FinancialLedgerEntry, error) {
	var entry models.FinancialLedgerEntry
	if err := e.db.WithContext(ctx).Scopes(auth.OwnedBy(p)).First(&entry, "id = ?", id).Error; err != nil {
		return nil, storeError(err, "ledger entry")
	}
	return &entry, nil
}

// Create records a new entry for the caller
func (e *LedgerEngine) Create(ctx context.Context, p auth.Principal, in LedgerInput) (*models.FinancialLedgerEntry, error) {
	entry := &models.FinancialLedgerEntry{AccountID: p.AccountID}
	in.applyTo(entry)
	if err := e.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, storeError(err, "ledger entry")
	}
	return entry, nil
}

// Update replaces the fields of one of the caller's entries
func (e *LedgerEngine) Update(ctx context.Context, p auth.Principal, id uuid.UUID, in LedgerInput) (*models.FinancialLedgerEntry, error) {
	entry, err := e.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	in.applyTo(entry)
	if err := e.db.WithContext(ctx).Save(entry).Error; err != nil {
		return nil, storeError(err, "ledger entry")
	}
	return entry, nil
}

// Summary totals income, expense and net over the range, with a
// per-category breakdown. Sums are computed in fixed point.
func (e *LedgerEngine) Summary(ctx context.Context, p auth.Principal, r DateRange) (*Summary, error) {
	query, err := e.filtered(ctx, p, r, "")
	if err != nil {
		return nil, err
	}

	var entries []models.FinancialLedgerEntry
	if err := query.Select("entry_type", "category", "amount").Find(&entries).Error; err != nil {
		return nil, errors.NewInternalError(err)
	}

	summary := &Summary{
		From:         r.From,
		To:           r.To,
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
		Net:          decimal.Zero,
		EntryCount:   len(entries),
		ByCategory:   []CategoryTotal{},
	}

	byKey := make(map[string]*CategoryTotal)
	for i := range entries {
		entry := &entries[i]
		if entry.EntryType == models.EntryIncome {
			summary.TotalIncome = summary.TotalIncome.Add(entry.Amount)
		} else {
			summary.TotalExpense = summary.TotalExpense.Add(entry.Amount)
		}
		summary.Net = summary.Net.Add(entry.SignedAmount())

		key := string(entry.EntryType) + "/" + entry.Category
		total, ok := byKey[key]
		if !ok {
			total = &CategoryTotal{
				EntryType: entry.EntryType,
				Category:  entry.Category,
				Label:     categoryLabel(entry.EntryType, entry.Category),
				Total:     decimal.Zero,
			}
			byKey[key] = total
		}
		total.Total = total.Total.Add(entry.Amount)
		total.Count++
	}

	for _, total := range byKey {
		summary.ByCategory = append(summary.ByCategory, *total)
	}
	sort.Slice(summary.ByCategory, func(i, j int) bool {
		a, b := summary.ByCategory[i], summary.ByCategory[j]
		if a.EntryType != b.EntryType {
			return a.EntryType == models.EntryIncome
		}
		if !a.Total.Equal(b.Total) {
			return a.Total.GreaterThan(b.Total)
		}
		return a.Category < b.Category
	})

	return summary, nil
}

func (e *LedgerEngine) filtered(ctx context.Context, p auth.Principal, r DateRange, entryType models.EntryType) (*gorm.DB, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	if entryType != "" && !entryType.Valid() {
		return nil, errors.NewValidationError("entry_type", "entry_type must be one of: income, expense")
	}

	query := e.db.WithContext(ctx).Model(&models.FinancialLedgerEntry{}).Scopes(auth.OwnedBy(p))
	query = r.apply(query, "date")
	if entryType != "" {
		query = query.Where("entry_type = ?", entryType)
	}
	return query, nil
}

func (in LedgerInput) applyTo(entry *models.FinancialLedgerEntry) {
	entry.Date = in.Date
	entry.EntryType = in.EntryType
	entry.Amount = in.Amount
	entry.Description = in.Description
	entry.Category = in.Category
	entry.CropRelated = in.CropRelated
	entry.PaymentMethod = in.PaymentMethod
	entry.ReferenceNumber = in.ReferenceNumber
	entry.Notes = in.Notes
}

func categoryLabel(entryType models.EntryType, category string) string {
	labels := models.ExpenseCategories
	if entryType == models.EntryIncome {
		labels = models.IncomeCategories
	}
	if label, ok := labels[category]; ok {
		return label
	}
	return category
}
