// Package engine - Usage Engine
// Handles reporting on external provider calls
package engine

import (
	"context"
	"time"

	"github.com/aethra/krishi/internal/errors"
	"github.com/aethra/krishi/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UsageEngine reads the api usage log
type UsageEngine struct {
	db *gorm.DB
}

// NewUsageEngine creates a new usage engine
func NewUsageEngine(db *gorm.DB) *UsageEngine {
	return &UsageEngine{db: db}
}

// UsageFilter narrows a usage listing
type UsageFilter struct {
	PageParams
	APIType models.APIType
	From    *time.Time
	To      *time.Time
}

// UsageTotal aggregates the calls made to one provider
type UsageTotal struct {
	APIType      models.APIType `json:"api_type"`
	Calls        int64          `json:"calls"`
	Errors       int64          `json:"errors"`
	TokensUsed   int64          `json:"tokens_used"`
	AvgLatencyMS float64        `json:"avg_response_time_ms"`
}

// List returns usage log entries, newest first
func (e *UsageEngine) List(ctx context.Context, f UsageFilter) (*Page[models.APIUsageLog], error) {
	query, err := e.filtered(ctx, f)
	if err != nil {
		return nil, err
	}
	return paginate[models.APIUsageLog](query, f.PageParams,
		clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}, Desc: true})
}

// Totals aggregates the filtered log per provider
func (e *UsageEngine) Totals(ctx context.Context, f UsageFilter) ([]UsageTotal, error) {
	query, err := e.filtered(ctx, f)
	if err != nil {
		return nil, err
	}

	totals := []UsageTotal{}
	err = query.Select("api_type, COUNT(*) AS calls, " +
		"SUM(CASE WHEN error_message IS NULL THEN 0 ELSE 1 END) AS errors, " +
		"COALESCE(SUM(tokens_used), 0) AS tokens_used, " +
		"AVG(response_time_ms) AS avg_latency_ms").
		Group("api_type").Order("api_type").Scan(&totals).Error
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	return totals, nil
}

func (e *UsageEngine) filtered(ctx context.Context, f UsageFilter) (*gorm.DB, error) {
	if f.APIType != "" && !f.APIType.Valid() {
		return nil, errors.NewValidationError("api_type", "api_type must be one of: gemini, openai, openweather, twilio, smtp")
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return nil, errors.NewValidationError("from", "from must not be after to")
	}

	query := e.db.WithContext(ctx).Model(&models.APIUsageLog{})
	if f.APIType != "" {
		query = query.Where("api_type = ?", f.APIType)
	}
	ts := clause.Column{Name: "timestamp"}
	if f.From != nil {
		query = query.Where(clause.Gte{Column: ts, Value: *f.From})
	}
	if f.To != nil {
		query = query.Where(clause.Lte{Column: ts, Value: *f.To})
	}
	return query, nil
}
