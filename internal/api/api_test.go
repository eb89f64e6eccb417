package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aethra/krishi/internal/auth"
	"github.com/aethra/krishi/internal/cache"
	"github.com/aethra/krishi/internal/config"
	"github.com/aethra/krishi/internal/database/dbtest"
	"github.com/aethra/krishi/internal/engine"
	"github.com/aethra/krishi/internal/llm"
	"github.com/aethra/krishi/internal/notify"
	"github.com/aethra/krishi/internal/weather"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubForecast struct{}

func (stubForecast) Forecast(_ context.Context, lat, lon decimal.Decimal) (*weather.Report, error) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	return &weather.Report{
		Latitude:  lat,
		Longitude: lon,
		Timezone:  "Asia/Kolkata",
		FetchedAt: time.Now().UTC(),
		Current:   weather.Current{Time: time.Now().UTC(), TempC: 29.5, Humidity: 80, Condition: "Clouds"},
		Daily:     []weather.Day{{Date: today, TempMinC: 24, TempMaxC: 31, RainMM: 4}},
	}, nil
}

type testServer struct {
	db       *gorm.DB
	router   *gin.Engine
	accounts *engine.AccountEngine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := dbtest.New(t)
	log := zap.NewNop()
	cfg := config.NewConfigService(db)
	jwt := auth.NewJWTService(config.AuthConfig{
		JWTSecret:     "test-secret",
		AccessExpiry:  time.Hour,
		RefreshExpiry: 2 * time.Hour,
	}, cache.NewMemory())

	accounts := engine.NewAccountEngine(db, jwt, log)
	farms := engine.NewFarmEngine(db, log)
	ledger := engine.NewLedgerEngine(db, log)
	weatherEngine := engine.NewWeatherEngine(db, stubForecast{}, cfg, farms, notify.Disabled{}, notify.Disabled{}, log)
	chat := engine.NewChatEngine(db, llm.NewExtractive(), cfg, log)

	handler := NewHandler(db, farms, ledger, weatherEngine, chat, jwt, log)
	admin := NewAdminHandler(cfg, accounts, engine.NewKnowledgeEngine(db, log), engine.NewUsageEngine(db), weatherEngine)
	authHandler := NewAuthHandler(accounts, NewLoginRateLimiter())

	return &testServer{
		db:       db,
		router:   SetupRouter(config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}}, log, handler, admin, authHandler),
		accounts: accounts,
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// register signs up a farmer through the API and returns the access token
func (s *testServer) register(t *testing.T, username string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/users/register/", "", gin.H{
		"username": username,
		"email":    username + "@example.com",
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Tokens auth.TokenPair `json:"tokens"`
	}
	decode(t, w, &resp)
	return resp.Tokens.AccessToken
}

// staff creates a staff account directly and returns its access token
func (s *testServer) staff(t *testing.T, username string) string {
	t.Helper()
	_, err := s.accounts.CreateAccount(context.Background(), engine.RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "correct-horse",
		IsStaff:  true,
	})
	require.NoError(t, err)

	result, err := s.accounts.Login(context.Background(), username, "correct-horse")
	require.NoError(t, err)
	return result.Tokens.AccessToken
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	decode(t, w, &body)
	return body
}
