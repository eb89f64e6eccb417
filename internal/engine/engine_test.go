package engine

import (
	"context"
	"testing"
	"time"

	"github.com/aethra/krishi/internal/auth"
	"github.com/aethra/krishi/internal/cache"
	"github.com/aethra/krishi/internal/config"
	"github.com/aethra/krishi/internal/database/dbtest"
	"github.com/aethra/krishi/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	db       *gorm.DB
	cfg      *config.ConfigService
	jwt      *auth.JWTService
	accounts *AccountEngine
	farms    *FarmEngine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := dbtest.New(t)
	jwt := auth.NewJWTService(config.AuthConfig{
		JWTSecret:     "test-secret",
		AccessExpiry:  time.Hour,
		RefreshExpiry: 2 * time.Hour,
	}, cache.NewMemory())

	return &testEnv{
		db:       db,
		cfg:      config.NewConfigService(db),
		jwt:      jwt,
		accounts: NewAccountEngine(db, jwt, zap.NewNop()),
		farms:    NewFarmEngine(db, zap.NewNop()),
	}
}

// signup creates an account and returns its principal
func (env *testEnv) signup(t *testing.T, username string) auth.Principal {
	t.Helper()
	account, err := env.accounts.CreateAccount(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	return auth.Principal{AccountID: account.ID, Username: account.Username}
}

func (env *testEnv) farm(t *testing.T, p auth.Principal) *models.FarmProfile {
	t.Helper()
	profile, _, err := env.farms.UpsertProfile(context.Background(), p, FarmProfileInput{
		Latitude:     decimal.RequireFromString("10.8505"),
		Longitude:    decimal.RequireFromString("76.2711"),
		FarmSize:     decimal.RequireFromString("2.50"),
		PrimaryCrops: "paddy, banana",
		SoilType:     models.SoilLoamy,
	})
	require.NoError(t, err)
	return profile
}

// stepClock returns a clock that advances by step on every call
func stepClock(start time.Time, step time.Duration) func() time.Time {
	current := start
	return func() time.Time {
		now := current
		current = current.Add(step)
		return now
	}
}

func strPtr(s string) *string {
	return &s
}

func nopLog() *zap.Logger {
	return zap.NewNop()
}

func principalOf(a *models.Account) auth.Principal {
	return auth.Principal{AccountID: a.ID, Username: a.Username, IsStaff: a.IsStaff}
}
