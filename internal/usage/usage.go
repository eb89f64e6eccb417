// Package usage records every call to an external provider in the
// append-only api_usage_logs table
package usage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aethra/krishi/internal/models"
	"github.com/aethra/krishi/internal/resilience"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type accountKey struct{}

// WithAccount attaches the calling account to ctx so provider calls made
// on its behalf are attributed to it
func WithAccount(ctx context.Context, accountID uuid.UUID) context.Context {
	return context.WithValue(ctx, accountKey{}, accountID)
}

// AccountFrom returns the account attached by WithAccount
func AccountFrom(ctx context.Context) *uuid.UUID {
	if id, ok := ctx.Value(accountKey{}).(uuid.UUID); ok && id != uuid.Nil {
		return &id
	}
	return nil
}

// Call describes one finished provider call
type Call struct {
	API        models.APIType
	Endpoint   string
	Request    interface{}
	Started    time.Time
	TokensUsed *int
	Err        error
}

// Recorder persists provider calls
type Recorder interface {
	Record(ctx context.Context, call Call)
}

// DBRecorder writes calls to the database
type DBRecorder struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewDBRecorder creates a recorder writing to db
func NewDBRecorder(db *gorm.DB, log *zap.Logger) *DBRecorder {
	return &DBRecorder{db: db, log: log.Named("usage")}
}

// Record stores the call. Failures are logged, never returned, so that
// auditing cannot break the request that made the call.
func (r *DBRecorder) Record(ctx context.Context, call Call) {
	entry := NewLog(ctx, call)
	if err := r.db.WithContext(context.WithoutCancel(ctx)).Create(entry).Error; err != nil {
		r.log.Error("failed to record api usage",
			zap.String("api_type", string(call.API)),
			zap.String("endpoint", call.Endpoint),
			zap.Error(err))
	}
}

// NewLog builds the log row for a call
func NewLog(ctx context.Context, call Call) *models.APIUsageLog {
	started := call.Started
	if started.IsZero() {
		started = time.Now()
	}
	entry := &models.APIUsageLog{
		AccountID:      AccountFrom(ctx),
		APIType:        call.API,
		Endpoint:       call.Endpoint,
		ResponseStatus: resilience.StatusOf(call.Err),
		ResponseTimeMS: time.Since(started).Milliseconds(),
		TokensUsed:     call.TokensUsed,
		Timestamp:      started.UTC(),
	}
	if call.Request != nil {
		if raw, err := json.Marshal(call.Request); err == nil {
			entry.RequestData = datatypes.JSON(raw)
		}
	}
	if call.Err != nil {
		msg := call.Err.Error()
		entry.ErrorMessage = &msg
	}
	return entry
}

// Nop discards calls
type Nop struct{}

func (Nop) Record(context.Context, Call) {}
