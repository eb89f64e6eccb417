// Package models - farm profile and diary
package models

import (
	"strings"
	"time"

	"github.com/aethra/krishi/internal/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	minFarmArea  = decimal.RequireFromString("0.01")
	maxLatitude  = decimal.NewFromInt(90)
	maxLongitude = decimal.NewFromInt(180)
)

// FarmProfile holds the location and make-up of an account's farm.
// At most one exists per account.
type FarmProfile struct {
	ID           uuid.UUID       `json:"id" gorm:"primaryKey;size:36"`
	AccountID    uuid.UUID       `json:"account_id" gorm:"uniqueIndex;not null;size:36"`
	Latitude     decimal.Decimal `json:"location_lat" gorm:"column:location_lat;type:numeric(10,8);not null"`
	Longitude    decimal.Decimal `json:"location_lon" gorm:"column:location_lon;type:numeric(11,8);not null"`
	FarmSize     decimal.Decimal `json:"farm_size" gorm:"type:numeric(10,2);not null"`
	PrimaryCrops string          `json:"primary_crops" gorm:"size:200;not null"`
	SoilType     SoilType        `json:"soil_type" gorm:"size:50;not null"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (FarmProfile) TableName() string {
	return "farm_profiles"
}

func (f *FarmProfile) BeforeCreate(tx *gorm.DB) error {
	ensureID(&f.ID)
	return nil
}

func (f *FarmProfile) BeforeSave(tx *gorm.DB) error {
	return f.Validate()
}

// Validate enforces coordinate ranges, positive size and the soil enum
func (f *FarmProfile) Validate() error {
	if err := ValidateCoordinates(f.Latitude, f.Longitude); err != nil {
		return err
	}
	if f.FarmSize.LessThan(minFarmArea) {
		return errors.NewValidationError("farm_size", "farm_size must be at least 0.01 acres")
	}
	f.PrimaryCrops = strings.TrimSpace(f.PrimaryCrops)
	if f.PrimaryCrops == "" {
		return errors.NewValidationError("primary_crops", "primary_crops is required")
	}
	if len(f.PrimaryCrops) > 200 {
		return errors.NewValidationError("primary_crops", "primary_crops must be at most 200 characters")
	}
	if !f.SoilType.Valid() {
		return errors.NewValidationError("soil_type", "soil_type must be one of: clay, sandy, loamy, silt, peaty, chalky")
	}
	f.Latitude = f.Latitude.Round(8)
	f.Longitude = f.Longitude.Round(8)
	f.FarmSize = f.FarmSize.Round(2)
	return nil
}

// Crops splits the comma-separated crop list
func (f *FarmProfile) Crops() []string {
	return SplitList(f.PrimaryCrops)
}

// ValidateCoordinates checks latitude ∈ [-90,90] and longitude ∈ [-180,180]
func ValidateCoordinates(lat, lon decimal.Decimal) error {
	if lat.Abs().GreaterThan(maxLatitude) {
		return errors.NewValidationError("location_lat", "latitude must be between -90 and 90")
	}
	if lon.Abs().GreaterThan(maxLongitude) {
		return errors.NewValidationError("location_lon", "longitude must be between -180 and 180")
	}
	return nil
}

// DiaryEntry records one farming activity
type DiaryEntry struct {
	ID               uuid.UUID        `json:"id" gorm:"primaryKey;size:36"`
	AccountID        uuid.UUID        `json:"account_id" gorm:"index:idx_diary_account_date,priority:1;not null;size:36"`
	Date             Date             `json:"date" gorm:"index:idx_diary_account_date,priority:2;not null"`
	ActivityType     ActivityType     `json:"activity_type" gorm:"size:20;not null"`
	Notes            string           `json:"notes" gorm:"type:text;not null"`
	CropInvolved     *string          `json:"crop_involved" gorm:"size:100"`
	AreaCovered      *decimal.Decimal `json:"area_covered" gorm:"type:numeric(8,2)"`
	WeatherCondition *string          `json:"weather_condition" gorm:"size:100"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func (DiaryEntry) TableName() string {
	return "diary_entries"
}

func (d *DiaryEntry) BeforeCreate(tx *gorm.DB) error {
	ensureID(&d.ID)
	return nil
}

func (d *DiaryEntry) BeforeSave(tx *gorm.DB) error {
	return d.Validate()
}

// Validate enforces the activity enum and a positive area when present
func (d *DiaryEntry) Validate() error {
	if d.Date.IsZero() {
		return errors.NewValidationError("date", "date is required")
	}
	if !d.ActivityType.Valid() {
		return errors.NewValidationError("activity_type", "activity_type is not a recognised activity")
	}
	d.Notes = strings.TrimSpace(d.Notes)
	if d.Notes == "" {
		return errors.NewValidationError("notes", "notes is required")
	}
	if d.AreaCovered != nil {
		if d.AreaCovered.LessThan(minFarmArea) {
			return errors.NewValidationError("area_covered", "area_covered must be at least 0.01 acres")
		}
		rounded := d.AreaCovered.Round(2)
		d.AreaCovered = &rounded
	}
	d.CropInvolved = trimOptional(d.CropInvolved)
	d.WeatherCondition = trimOptional(d.WeatherCondition)
	if d.CropInvolved != nil && len(*d.CropInvolved) > 100 {
		return errors.NewValidationError("crop_involved", "crop_involved must be at most 100 characters")
	}
	if d.WeatherCondition != nil && len(*d.WeatherCondition) > 100 {
		return errors.NewValidationError("weather_condition", "weather_condition must be at most 100 characters")
	}
	return nil
}

// SplitList splits a comma-separated list, dropping blanks
func SplitList(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
