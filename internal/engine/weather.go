// Package engine - Weather Engine
// Handles forecasts for the caller's farm, alert evaluation and delivery
package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"github.com/aethra/krishi/internal/auth"
	"github.com/aethra/krishi/internal/config"
	"github.com/aethra/krishi/internal/errors"
	"github.com/aethra/krishi/internal/models"
	"github.com/aethra/krishi/internal/notify"
	"github.com/aethra/krishi/internal/usage"
	"github.com/aethra/krishi/internal/weather"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// dispatchSeverity is the lowest severity that is sent to users
const dispatchSeverity = models.SeverityMedium

// WeatherEngine serves forecasts and manages weather alerts
type WeatherEngine struct {
	db     *gorm.DB
	client weather.Client
	cfg    *config.ConfigService
	farms  *FarmEngine
	sms    notify.SMSSender
	email  notify.EmailSender
	log    *zap.Logger
	now    func() time.Time
}

// NewWeatherEngine creates a new weather engine
func NewWeatherEngine(db *gorm.DB, client weather.Client, cfg *config.ConfigService, farms *FarmEngine,
	sms notify.SMSSender, email notify.EmailSender, log *zap.Logger) *WeatherEngine {
	return &WeatherEngine{
		db:     db,
		client: client,
		cfg:    cfg,
		farms:  farms,
		sms:    sms,
		email:  email,
		log:    log.Named("weather"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// AlertFilter narrows an alert listing
type AlertFilter struct {
	// All includes alerts outside their validity window
	All         bool
	MinSeverity models.Severity
}

// EvaluationResult counts the outcome of one evaluation run
type EvaluationResult struct {
	Farms   int `json:"farms"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// DispatchResult counts the outcome of one dispatch run
type DispatchResult struct {
	Alerts     int `json:"alerts"`
	SMSSent    int `json:"sms_sent"`
	EmailsSent int `json:"emails_sent"`
	Failed     int `json:"failed"`
}

// Current returns the forecast for the caller's farm location
func (e *WeatherEngine) Current(ctx context.Context, p auth.Principal) (*weather.Report, error) {
	farm, err := e.farms.GetProfile(ctx, p)
	if err != nil {
		return nil, err
	}
	return e.client.Forecast(usage.WithAccount(ctx, p.AccountID), farm.Latitude, farm.Longitude)
}

// Alerts returns the caller's alerts. By default only alerts active now
// are returned, most severe first.
func (e *WeatherEngine) Alerts(ctx context.Context, p auth.Principal, f AlertFilter) ([]models.WeatherAlert, error) {
	if f.MinSeverity != "" && !f.MinSeverity.Valid() {
		return nil, errors.NewValidationError("severity", "severity must be one of: low, medium, high, critical")
	}

	query := e.db.WithContext(ctx).Scopes(auth.OwnedBy(p))
	if !f.All {
		now := e.now()
		query = query.Where("valid_from <= ? AND valid_until >= ?", now, now)
	}
	if f.MinSeverity != "" {
		query = query.Where("severity IN ?", f.MinSeverity.AtLeast())
	}

	alerts := []models.WeatherAlert{}
	if err := query.Order("created_at DESC").Find(&alerts).Error; err != nil {
		return nil, errors.NewInternalError(err)
	}

	if !f.All {
		sort.SliceStable(alerts, func(i, j int) bool {
			return alerts[i].Severity.Rank() > alerts[j].Severity.Rank()
		})
	}
	return alerts, nil
}

// Thresholds reads the alert thresholds from the runtime settings
func (e *WeatherEngine) Thresholds() weather.Thresholds {
	return weather.Thresholds{
		RainMM: e.cfg.GetFloat(config.KeyAlertRainMM, 50),
		HeatC:  e.cfg.GetFloat(config.KeyAlertHeatC, 40),
		FrostC: e.cfg.GetFloat(config.KeyAlertFrostC, 2),
		WindMS: e.cfg.GetFloat(config.KeyAlertWindMS, 17),
	}
}

// EvaluateAlerts fetches the forecast of every farm and stores the alerts
// it raises. An alert already stored for the same account, type and start
// is not stored again; a drought warning is skipped while an earlier one for
// the account is still in effect. A failing farm does not stop the run.
func (e *WeatherEngine) EvaluateAlerts(ctx context.Context) (*EvaluationResult, error) {
	farms, err := e.farms.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}

	thresholds := e.Thresholds()
	result := &EvaluationResult{Farms: len(farms)}

	for i := range farms {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		farm := &farms[i]

		report, err := e.client.Forecast(usage.WithAccount(ctx, farm.AccountID), farm.Latitude, farm.Longitude)
		if err != nil {
			result.Failed++
			e.log.Warn("forecast failed",
				zap.String("account_id", farm.AccountID.String()),
				zap.Error(err))
			continue
		}

		for _, c := range weather.Evaluate(report, thresholds, e.now()) {
			created, err := e.storeCandidate(ctx, farm, c)
			if err != nil {
				result.Failed++
				e.log.Error("failed to store alert",
					zap.String("account_id", farm.AccountID.String()),
					zap.String("alert_type", string(c.AlertType)),
					zap.Error(err))
				continue
			}
			if created {
				result.Created++
			} else {
				result.Skipped++
			}
		}
	}

	e.log.Info("alert evaluation finished",
		zap.Int("farms", result.Farms),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))
	return result, nil
}

func (e *WeatherEngine) storeCandidate(ctx context.Context, farm *models.FarmProfile, c weather.Candidate) (bool, error) {
	validFrom := c.ValidFrom.UTC()

	query := e.db.WithContext(ctx).Model(&models.WeatherAlert{}).
		Where("account_id = ? AND alert_type = ?", farm.AccountID, c.AlertType)
	if c.AlertType == models.AlertDroughtWarning {
		// a dry spell keeps moving its first day forward, so any overlap counts
		query = query.Where("valid_until >= ?", validFrom)
	} else {
		query = query.Where("valid_from = ?", validFrom)
	}

	var count int64
	err := query.Count(&count).Error
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	alert := &models.WeatherAlert{
		AccountID:   farm.AccountID,
		AlertType:   c.AlertType,
		Severity:    c.Severity,
		Title:       c.Title,
		Message:     c.Message,
		WeatherData: datatypes.JSON(c.Data),
		Latitude:    farm.Latitude,
		Longitude:   farm.Longitude,
		ValidFrom:   validFrom,
		ValidUntil:  c.ValidUntil.UTC(),
	}
	if err := e.db.WithContext(ctx).Create(alert).Error; err != nil {
		return false, err
	}
	return true, nil
}

// DispatchAlerts sends every unsent alert of at least medium severity that
// has not yet expired. Each channel is marked sent on its own, so a failed
// channel is retried on the next run without repeating the other.
func (e *WeatherEngine) DispatchAlerts(ctx context.Context) (*DispatchResult, error) {
	var alerts []models.WeatherAlert
	err := e.db.WithContext(ctx).
		Where("severity IN ?", dispatchSeverity.AtLeast()).
		Where("is_sent_sms = ? OR is_sent_email = ?", false, false).
		Where("valid_until >= ?", e.now()).
		Order("created_at ASC").
		Find(&alerts).Error
	if err != nil {
		return nil, errors.NewInternalError(err)
	}

	result := &DispatchResult{Alerts: len(alerts)}
	recipients := make(map[uuid.UUID]*models.Account)

	for i := range alerts {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		alert := &alerts[i]

		account, ok := recipients[alert.AccountID]
		if !ok {
			account, err = e.recipient(ctx, alert.AccountID)
			if err != nil {
				result.Failed++
				e.log.Warn("alert recipient not found", zap.String("alert_id", alert.ID.String()), zap.Error(err))
				continue
			}
			recipients[alert.AccountID] = account
		}
		sendCtx := usage.WithAccount(ctx, account.ID)

		if !alert.IsSentSMS && account.Profile != nil && account.Profile.PhoneNumber != nil {
			err := e.sms.SendSMS(sendCtx, *account.Profile.PhoneNumber, smsBody(alert))
			switch {
			case err == nil:
				if err := e.markSent(ctx, alert, "is_sent_sms"); err != nil {
					return result, err
				}
				result.SMSSent++
			case !stderrors.Is(err, notify.ErrDisabled):
				result.Failed++
				e.log.Warn("alert sms failed", zap.String("alert_id", alert.ID.String()), zap.Error(err))
			}
		}

		if !alert.IsSentEmail && account.Email != "" {
			err := e.email.SendEmail(sendCtx, account.Email, "Weather alert: "+alert.Title, emailBody(alert))
			switch {
			case err == nil:
				if err := e.markSent(ctx, alert, "is_sent_email"); err != nil {
					return result, err
				}
				result.EmailsSent++
			case !stderrors.Is(err, notify.ErrDisabled):
				result.Failed++
				e.log.Warn("alert email failed", zap.String("alert_id", alert.ID.String()), zap.Error(err))
			}
		}
	}

	e.log.Info("alert dispatch finished",
		zap.Int("alerts", result.Alerts),
		zap.Int("sms_sent", result.SMSSent),
		zap.Int("emails_sent", result.EmailsSent),
		zap.Int("failed", result.Failed))
	return result, nil
}

func (e *WeatherEngine) recipient(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	var account models.Account
	err := e.db.WithContext(ctx).Preload("Profile").
		Where("id = ? AND is_active = ?", accountID, true).
		First(&account).Error
	if err != nil {
		return nil, storeError(err, "account")
	}
	return &account, nil
}

func (e *WeatherEngine) markSent(ctx context.Context, alert *models.WeatherAlert, column string) error {
	if err := e.db.WithContext(ctx).Model(alert).UpdateColumn(column, true).Error; err != nil {
		return errors.NewInternalError(err)
	}
	return nil
}

func smsBody(alert *models.WeatherAlert) string {
	return fmt.Sprintf("Krishi %s alert: %s. %s", alert.Severity, alert.Title, alert.Message)
}

func emailBody(alert *models.WeatherAlert) string {
	return fmt.Sprintf("%s\n\n%s\n\nSeverity: %s\nValid: %s to %s (UTC)\n",
		alert.Title,
		alert.Message,
		alert.Severity,
		alert.ValidFrom.Format("2 Jan 2006 15:04"),
		alert.ValidUntil.Format("2 Jan 2006 15:04"))
}
