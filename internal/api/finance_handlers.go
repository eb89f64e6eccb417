// Package api - Financial ledger handlers
package api

import (
	"net/http"

	"github.com/aethra/krishi/internal/engine"
	"github.com/aethra/krishi/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// LedgerRequest is the body of a ledger create or update
type LedgerRequest struct {
	Date            models.Date           `json:"date" binding:"required"`
	EntryType       models.EntryType      `json:"entry_type" binding:"required,enum"`
	Amount          decimal.Decimal       `json:"amount" binding:"gt=0"`
	Description     string                `json:"description" binding:"required,max=200"`
	Category        string                `json:"category" binding:"required,max=50"`
	CropRelated     *string               `json:"crop_related" binding:"omitempty,max=100"`
	PaymentMethod   *models.PaymentMethod `json:"payment_method" binding:"omitempty,enum"`
	ReferenceNumber *string               `json:"reference_number" binding:"omitempty,max=100"`
	Notes           *string               `json:"notes"`
}

func (r LedgerRequest) input() engine.LedgerInput {
	return engine.LedgerInput{
		Date:            r.Date,
		EntryType:       r.EntryType,
		Amount:          r.Amount,
		Description:     r.Description,
		Category:        r.Category,
		CropRelated:     r.CropRelated,
		PaymentMethod:   r.PaymentMethod,
		ReferenceNumber: r.ReferenceNumber,
		Notes:           r.Notes,
	}
}

// ListLedger returns the caller's ledger entries, newest first
// GET /api/finance/ledger/
func (h *Handler) ListLedger(c *gin.Context) {
	dates, ok := dateRange(c)
	if !ok {
		return
	}
	entryType, ok := enumQuery[models.EntryType](c, "entry_type")
	if !ok {
		return
	}

	page, err := h.ledger.List(c.Request.Context(), principal(c), engine.LedgerFilter{
		PageParams: pageParams(c),
		DateRange:  dates,
		EntryType:  entryType,
		Category:   c.Query("category"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetLedger returns one ledger entry
// GET /api/finance/ledger/:id/
func (h *Handler) GetLedger(c *gin.Context) {
	id, ok := uuidParam(c, "id", "ledger entry")
	if !ok {
		return
	}

	entry, err := h.ledger.Get(c.Request.Context(), principal(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// CreateLedger records an income or expense
// POST /api/finance/ledger/
func (h *Handler) CreateLedger(c *gin.Context) {
	var req LedgerRequest
	if !bindJSON(c, &req) {
		return
	}

	entry, err := h.ledger.Create(c.Request.Context(), principal(c), req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// UpdateLedger replaces a ledger entry's fields
// PUT /api/finance/ledger/:id/
func (h *Handler) UpdateLedger(c *gin.Context) {
	id, ok := uuidParam(c, "id", "ledger entry")
	if !ok {
		return
	}
	var req LedgerRequest
	if !bindJSON(c, &req) {
		return
	}

	entry, err := h.ledger.Update(c.Request.Context(), principal(c), id, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// LedgerSummary totals the caller's ledger over an optional date range
// GET /api/finance/summary/
func (h *Handler) LedgerSummary(c *gin.Context) {
	dates, ok := dateRange(c)
	if !ok {
		return
	}

	summary, err := h.ledger.Summary(c.Request.Context(), principal(c), dates)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
