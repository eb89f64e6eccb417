// Package engine holds the krishi business logic. Engines take the caller
// as an auth.Principal and scope every per-user query to it.
package engine

import (
	stderrors "errors"

	"github.com/aethra/krishi/internal/errors"
	"github.com/aethra/krishi/internal/models"
	"gorm.io/gorm"
)

// Pagination limits
const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

// PageParams selects one page of a list
type PageParams struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

func (p *PageParams) normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
}

// Page is one page of a list result
type Page[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// DateRange is an optional inclusive date filter
type DateRange struct {
	From *models.Date
	To   *models.Date
}

func (r DateRange) validate() error {
	if r.From != nil && r.To != nil && r.From.After(r.To.Time) {
		return errors.NewValidationError("from", "from must not be after to")
	}
	return nil
}

func (r DateRange) apply(query *gorm.DB, column string) *gorm.DB {
	if r.From != nil {
		query = query.Where(column+" >= ?", *r.From)
	}
	if r.To != nil {
		query = query.Where(column+" <= ?", *r.To)
	}
	return query
}

// paginate counts the rows matched by query and loads the requested page
func paginate[T any](query *gorm.DB, params PageParams, order interface{}) (*Page[T], error) {
	params.normalize()
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, errors.NewInternalError(err)
	}

	data := make([]T, 0, params.PageSize)
	offset := (params.Page - 1) * params.PageSize
	if err := query.Order(order).Offset(offset).Limit(params.PageSize).Find(&data).Error; err != nil {
		return nil, errors.NewInternalError(err)
	}

	totalPages := int(total) / params.PageSize
	if int(total)%params.PageSize > 0 {
		totalPages++
	}

	return &Page[T]{
		Data:       data,
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: totalPages,
	}, nil
}

// storeError maps a gorm error to an application error. Errors that are
// already application errors, such as model validation, pass through.
func storeError(err error, resource string) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return errors.NewNotFoundError(resource)
	}
	var appErr errors.AppError
	if stderrors.As(err, &appErr) {
		return err
	}
	return errors.NewInternalError(err)
}

// isNotFound reports a missing row from a raw gorm error
func isNotFound(err error) bool {
	return stderrors.Is(err, gorm.ErrRecordNotFound)
}
