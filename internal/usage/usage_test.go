package usage_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/aethra/krishi/internal/database/dbtest"
	"github.com/aethra/krishi/internal/models"
	"github.com/aethra/krishi/internal/resilience"
	"github.com/aethra/krishi/internal/usage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDBRecorder_Record(t *testing.T) {
	db := dbtest.New(t)
	rec := usage.NewDBRecorder(db, zap.NewNop())

	accountID := uuid.New()
	ctx := usage.WithAccount(context.Background(), accountID)
	tokens := 42

	rec.Record(ctx, usage.Call{
		API:        models.APIGemini,
		Endpoint:   "models/gemini-2.0-flash:generateContent",
		Request:    map[string]string{"language": "en"},
		Started:    time.Now().Add(-120 * time.Millisecond),
		TokensUsed: &tokens,
	})
	rec.Record(context.Background(), usage.Call{
		API:      models.APIOpenWeather,
		Endpoint: "onecall",
		Err:      &resilience.StatusError{StatusCode: http.StatusTooManyRequests, Body: "slow down"},
	})

	var logs []models.APIUsageLog
	require.NoError(t, db.Order("api_type").Find(&logs).Error)
	require.Len(t, logs, 2)

	gemini := logs[0]
	assert.Equal(t, models.APIGemini, gemini.APIType)
	require.NotNil(t, gemini.AccountID)
	assert.Equal(t, accountID, *gemini.AccountID)
	assert.Equal(t, http.StatusOK, gemini.ResponseStatus)
	assert.GreaterOrEqual(t, gemini.ResponseTimeMS, int64(100))
	assert.JSONEq(t, `{"language":"en"}`, string(gemini.RequestData))
	assert.Nil(t, gemini.ErrorMessage)

	weather := logs[1]
	assert.Nil(t, weather.AccountID)
	assert.Equal(t, http.StatusTooManyRequests, weather.ResponseStatus)
	require.NotNil(t, weather.ErrorMessage)
	assert.JSONEq(t, `{}`, string(weather.RequestData))
}

func TestUsageLogIsAppendOnly(t *testing.T) {
	db := dbtest.New(t)
	entry := usage.NewLog(context.Background(), usage.Call{API: models.APITwilio, Endpoint: "Messages.json", Err: errors.New("boom")})
	require.NoError(t, db.Create(entry).Error)

	entry.ResponseStatus = http.StatusOK
	assert.Error(t, db.Save(entry).Error)
}
