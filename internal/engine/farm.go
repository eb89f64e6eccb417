// Package engine - Farm Engine
// Handles the farm profile and the activity diary
package engine

import (
	"context"

	"github.com/aethra/krishi/internal/auth"
	"github.com/aethra/krishi/internal/errors"
	"github.com/aethra/krishi/internal/models"
	"github.com/aethra/krishi/internal/security"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const diaryOrder = "date DESC, created_at DESC"

// FarmEngine manages farm profiles and diary entries
type FarmEngine struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewFarmEngine creates a new farm engine
func NewFarmEngine(db *gorm.DB, log *zap.Logger) *FarmEngine {
	return &FarmEngine{db: db, log: log.Named("farm")}
}

// FarmProfileInput is the full set of farm profile fields
type FarmProfileInput struct {
	Latitude     decimal.Decimal
	Longitude    decimal.Decimal
	FarmSize     decimal.Decimal
	PrimaryCrops string
	SoilType     models.SoilType
}

// DiaryInput is the full set of diary entry fields
type DiaryInput struct {
	Date             models.Date
	ActivityType     models.ActivityType
	Notes            string
	CropInvolved     *string
	AreaCovered      *decimal.Decimal
	WeatherCondition *string
}

// DiaryFilter narrows a diary listing
type DiaryFilter struct {
	PageParams
	DateRange
	ActivityType models.ActivityType
	Crop         string
}

// =============================================================================
// FARM PROFILE
// =============================================================================

// GetProfile returns the caller's farm profile
func (e *FarmEngine) GetProfile(ctx context.Context, p auth.Principal) (*models.FarmProfile, error) {
	var profile models.FarmProfile
	if err := e.db.WithContext(ctx).Scopes(auth.OwnedBy(p)).First(&profile).Error; err != nil {
		return nil, storeError(err, "farm profile")
	}
	return &profile, nil
}

// UpsertProfile creates the caller's farm profile or replaces its fields.
// The returned flag reports whether a new profile was created.
func (e *FarmEngine) UpsertProfile(ctx context.Context, p auth.Principal, in FarmProfileInput) (*models.FarmProfile, bool, error) {
	profile, err := e.GetProfile(ctx, p)
	created := false
	switch {
	case errors.IsNotFound(err):
		profile = &models.FarmProfile{AccountID: p.AccountID}
		created = true
	case err != nil:
		return nil, false, err
	}

	profile.Latitude = in.Latitude
	profile.Longitude = in.Longitude
	profile.FarmSize = in.FarmSize
	profile.PrimaryCrops = in.PrimaryCrops
	profile.SoilType = in.SoilType

	if err := e.db.WithContext(ctx).Save(profile).Error; err != nil {
		return nil, false, storeError(err, "farm profile")
	}

	if created {
		e.log.Info("farm profile created", zap.String("account_id", p.AccountID.String()))
	}
	return profile, created, nil
}

// ListProfiles returns every farm profile, used by alert evaluation
func (e *FarmEngine) ListProfiles(ctx context.Context) ([]models.FarmProfile, error) {
	var profiles []models.FarmProfile
	if err := e.db.WithContext(ctx).Order("created_at ASC").Find(&profiles).Error; err != nil {
		return nil, errors.NewInternalError(err)
	}
	return profiles, nil
}

// =============================================================================
// DIARY
// =============================================================================

// ListDiary returns the caller's diary entries, newest first
func (e *FarmEngine) ListDiary(ctx context.Context, p auth.Principal, f DiaryFilter) (*Page[models.DiaryEntry], error) {
	if err := f.DateRange.validate(); err != nil {
		return nil, err
	}
	if f.ActivityType != "" && !f.ActivityType.Valid() {
		return nil, errors.NewValidationError("activity_type", "activity_type is not a recognised activity")
	}

	query := e.db.WithContext(ctx).Model(&models.DiaryEntry{}).Scopes(auth.OwnedBy(p))
	query = f.DateRange.apply(query, "date")
	if f.ActivityType != "" {
		query = query.Where("activity_type = ?", f.ActivityType)
	}
	if f.Crop != "" {
		if cond, params := security.ContainsAny([]string{"crop_involved"}, []string{f.Crop}); cond != "" {
			query = query.Where(cond, params...)
		}
	}

	return paginate[models.DiaryEntry](query, f.PageParams, diaryOrder)
}

// GetDiary returns one of the caller's entries
func (e *FarmEngine) GetDiary(ctx context.Context, p auth.Principal, id uuid.UUID) (*models.DiaryEntry, error) {
	var entry models.DiaryEntry
	if err := e.db.WithContext(ctx).Scopes(auth.OwnedBy(p)).First(&entry, "id = ?", id).Error; err != nil {
		return nil, storeError(err, "diary entry")
	}
	return &entry, nil
}

// CreateDiary records a new entry for the caller
func (e *FarmEngine) CreateDiary(ctx context.Context, p auth.Principal, in DiaryInput) (*models.DiaryEntry, error) {
	entry := &models.DiaryEntry{AccountID: p.AccountID}
	in.applyTo(entry)
	if err := e.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, storeError(err, "diary entry")
	}
	return entry, nil
}

// UpdateDiary replaces the fields of one of the caller's entries
func (e *FarmEngine) UpdateDiary(ctx context.Context, p auth.Principal, id uuid.UUID, in DiaryInput) (*models.DiaryEntry, error) {
	entry, err := e.GetDiary(ctx, p, id)
	if err != nil {
		return nil, err
	}
	in.applyTo(entry)
	if err := e.db.WithContext(ctx).Save(entry).Error; err != nil {
		return nil, storeError(err, "diary entry")
	}
	return entry, nil
}

// DeleteDiary removes one of the caller's entries
func (e *FarmEngine) DeleteDiary(ctx context.Context, p auth.Principal, id uuid.UUID) error {
	result := e.db.WithContext(ctx).Scopes(auth.OwnedBy(p)).Where("id = ?", id).Delete(&models.DiaryEntry{})
	if result.Error != nil {
		return errors.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("diary entry")
	}
	return nil
}

func (in DiaryInput) applyTo(entry *models.DiaryEntry) {
	entry.Date = in.Date
	entry.ActivityType = in.ActivityType
	entry.Notes = in.Notes
	entry.CropInvolved = in.CropInvolved
	entry.AreaCovered = in.AreaCovered
	entry.WeatherCondition = in.WeatherCondition
}
