// Package models - weather alerts and external API audit log
package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aethra/krishi/internal/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WeatherAlert warns an account about a weather hazard at its farm
type WeatherAlert struct {
	ID          uuid.UUID       `json:"id" gorm:"primaryKey;size:36"`
	AccountID   uuid.UUID       `json:"account_id" gorm:"index;not null;size:36"`
	AlertType   AlertType       `json:"alert_type" gorm:"size:20;not null"`
	Severity    Severity        `json:"severity" gorm:"size:10;not null"`
	Title       string          `json:"title" gorm:"size:200;not null"`
	Message     string          `json:"message" gorm:"type:text;not null"`
	WeatherData datatypes.JSON  `json:"weather_data"`
	Latitude    decimal.Decimal `json:"location_lat" gorm:"column:location_lat;type:numeric(10,8);not null"`
	Longitude   decimal.Decimal `json:"location_lon" gorm:"column:location_lon;type:numeric(11,8);not null"`
	ValidFrom   time.Time       `json:"valid_from" gorm:"index;not null"`
	ValidUntil  time.Time       `json:"valid_until" gorm:"index;not null"`
	IsSentSMS   bool            `json:"is_sent_sms" gorm:"column:is_sent_sms;not null"`
	IsSentEmail bool            `json:"is_sent_email" gorm:"not null"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (WeatherAlert) TableName() string {
	return "weather_alerts"
}

func (w *WeatherAlert) BeforeCreate(tx *gorm.DB) error {
	ensureID(&w.ID)
	if len(w.WeatherData) == 0 {
		w.WeatherData = datatypes.JSON("{}")
	}
	return nil
}

func (w *WeatherAlert) BeforeSave(tx *gorm.DB) error {
	return w.Validate()
}

// Validate enforces the enums and valid_from <= valid_until
func (w *WeatherAlert) Validate() error {
	if !w.AlertType.Valid() {
		return errors.NewValidationError("alert_type", "alert_type is not a recognised alert")
	}
	if !w.Severity.Valid() {
		return errors.NewValidationError("severity", "severity must be one of: low, medium, high, critical")
	}
	w.Title = strings.TrimSpace(w.Title)
	if w.Title == "" {
		return errors.NewValidationError("title", "title is required")
	}
	w.Title = Truncate(w.Title, 200)
	if strings.TrimSpace(w.Message) == "" {
		return errors.NewValidationError("message", "message is required")
	}
	if err := ValidateCoordinates(w.Latitude, w.Longitude); err != nil {
		return err
	}
	if w.ValidFrom.IsZero() || w.ValidUntil.IsZero() {
		return errors.NewValidationError("valid_from", "validity window is required")
	}
	if w.ValidFrom.After(w.ValidUntil) {
		return errors.NewValidationError("valid_until", "valid_until must not be before valid_from")
	}
	return nil
}

// ActiveAt reports whether t falls inside the validity window
func (w *WeatherAlert) ActiveAt(t time.Time) bool {
	return !t.Before(w.ValidFrom) && !t.After(w.ValidUntil)
}

// APIUsageLog is an append-only record of one call to an external provider
type APIUsageLog struct {
	ID             uuid.UUID      `json:"id" gorm:"primaryKey;size:36"`
	AccountID      *uuid.UUID     `json:"account_id" gorm:"index;size:36"`
	APIType        APIType        `json:"api_type" gorm:"column:api_type;size:20;not null;index"`
	Endpoint       string         `json:"endpoint" gorm:"size:200;not null"`
	RequestData    datatypes.JSON `json:"request_data"`
	ResponseStatus int            `json:"response_status" gorm:"not null"`
	ResponseTimeMS int64          `json:"response_time_ms" gorm:"column:response_time_ms;not null"`
	TokensUsed     *int           `json:"tokens_used"`
	ErrorMessage   *string        `json:"error_message" gorm:"type:text"`
	Timestamp      time.Time      `json:"timestamp" gorm:"index;not null"`
}

func (APIUsageLog) TableName() string {
	return "api_usage_logs"
}

func (l *APIUsageLog) BeforeCreate(tx *gorm.DB) error {
	ensureID(&l.ID)
	if l.Timestamp.IsZero() {
		l.Timestamp = time.Now().UTC()
	}
	if len(l.RequestData) == 0 {
		l.RequestData = datatypes.JSON("{}")
	}
	l.Endpoint = Truncate(l.Endpoint, 200)
	return nil
}

// BeforeUpdate keeps usage logs immutable
func (l *APIUsageLog) BeforeUpdate(tx *gorm.DB) error {
	return errors.NewPermissionDeniedError("update", "api usage log")
}

// Truncate shortens s to at most n characters without splitting a rune
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
