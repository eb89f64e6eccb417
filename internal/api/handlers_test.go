package api

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	decode(t, w, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "krishi", body["service"])
	assert.Equal(t, "ok", body["database"])
}

func farmProfileBody() gin.H {
	return gin.H{
		"location_lat":  "10.85051590",
		"location_lon":  "76.27108330",
		"farm_size":     "2.50",
		"primary_crops": "paddy, banana",
		"soil_type":     "loamy",
	}
}

func TestFarmProfile_Upsert(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "meera")

	w := s.do(t, http.MethodGet, "/api/farm/profile/", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPut, "/api/farm/profile/", token, farmProfileBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := farmProfileBody()
	body["soil_type"] = "clay"
	w = s.do(t, http.MethodPut, "/api/farm/profile/", token, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/farm/profile/", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var profile map[string]interface{}
	decode(t, w, &profile)
	assert.Equal(t, "clay", profile["soil_type"])

	body = farmProfileBody()
	body["location_lat"] = "91"
	w = s.do(t, http.MethodPut, "/api/farm/profile/", token, body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "location_lat", errorBody(t, w)["field"])

	body = farmProfileBody()
	delete(body, "location_lon")
	w = s.do(t, http.MethodPut, "/api/farm/profile/", token, body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "location_lon", errorBody(t, w)["field"])

	body = farmProfileBody()
	body["soil_type"] = "gravel"
	w = s.do(t, http.MethodPut, "/api/farm/profile/", token, body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "soil_type", errorBody(t, w)["field"])
}

func diaryBody(date, activity string) gin.H {
	return gin.H{
		"date":          date,
		"activity_type": activity,
		"notes":         activity + " on the north plot",
		"crop_involved": "paddy",
	}
}

func TestDiary_CRUDAndOwnership(t *testing.T) {
	s := newTestServer(t)
	owner := s.register(t, "meera")
	other := s.register(t, "ravi")

	w := s.do(t, http.MethodPost, "/api/farm/diary/", owner, diaryBody("2024-06-01", "sowing"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var entry struct {
		ID   string `json:"id"`
		Date string `json:"date"`
	}
	decode(t, w, &entry)
	assert.Equal(t, "2024-06-01", entry.Date)

	w = s.do(t, http.MethodPost, "/api/farm/diary/", owner, diaryBody("2024-06-03", "watering"))
	require.Equal(t, http.StatusCreated, w.Code)

	path := "/api/farm/diary/" + entry.ID + "/"

	// Other accounts cannot tell the entry exists
	w = s.do(t, http.MethodGet, path, other, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(t, http.MethodPut, path, other, diaryBody("2024-06-01", "weeding"))
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(t, http.MethodDelete, path, other, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPut, path, owner, diaryBody("2024-06-02", "weeding"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/farm/diary/", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Data []struct {
			ActivityType string `json:"activity_type"`
		} `json:"data"`
		Total int64 `json:"total"`
	}
	decode(t, w, &page)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "watering", page.Data[0].ActivityType)
	assert.Equal(t, "weeding", page.Data[1].ActivityType)

	w = s.do(t, http.MethodGet, "/api/farm/diary/?activity_type=weeding&from=2024-06-02&to=2024-06-02", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &page)
	assert.Equal(t, int64(1), page.Total)

	w = s.do(t, http.MethodGet, "/api/farm/diary/", other, nil)
	decode(t, w, &page)
	assert.Equal(t, int64(0), page.Total)

	w = s.do(t, http.MethodDelete, path, owner, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodGet, path, owner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDiary_BadInput(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "meera")

	w := s.do(t, http.MethodPost, "/api/farm/diary/", token, diaryBody("2024-06-01", "dancing"))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "activity_type", errorBody(t, w)["field"])

	w = s.do(t, http.MethodPost, "/api/farm/diary/", token, diaryBody("01/06/2024", "sowing"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/farm/diary/?from=yesterday", token, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "from", errorBody(t, w)["field"])

	w = s.do(t, http.MethodGet, "/api/farm/diary/not-a-uuid/", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLedger_Summary(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "meera")

	w := s.do(t, http.MethodPost, "/api/finance/ledger/", token, gin.H{
		"date":           "2024-06-01",
		"entry_type":     "income",
		"amount":         "500.00",
		"description":    "Sold paddy",
		"category":       "crop_sale",
		"payment_method": "upi",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/finance/ledger/", token, gin.H{
		"date":        "2024-06-05",
		"entry_type":  "expense",
		"amount":      "120",
		"description": "Seeds",
		"category":    "seeds",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/finance/summary/", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary struct {
		TotalIncome  string `json:"total_income"`
		TotalExpense string `json:"total_expense"`
		Net          string `json:"net"`
		EntryCount   int    `json:"entry_count"`
		ByCategory   []struct {
			Category string `json:"category"`
			Total    string `json:"total"`
		} `json:"by_category"`
	}
	decode(t, w, &summary)
	assert.Equal(t, "500.00", summary.TotalIncome)
	assert.Equal(t, "120.00", summary.TotalExpense)
	assert.Equal(t, "380.00", summary.Net)
	assert.Equal(t, 2, summary.EntryCount)
	require.Len(t, summary.ByCategory, 2)
	assert.Equal(t, "crop_sale", summary.ByCategory[0].Category)

	w = s.do(t, http.MethodGet, "/api/finance/summary/?from=2024-06-02", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &summary)
	assert.Equal(t, "-120.00", summary.Net)

	w = s.do(t, http.MethodGet, "/api/finance/summary/?from=2024-06-10&to=2024-06-01", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLedger_Validation(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "meera")

	entry := gin.H{
		"date":        "2024-06-01",
		"entry_type":  "expense",
		"amount":      "10",
		"description": "Diesel",
		"category":    "crop_sale",
	}
	w := s.do(t, http.MethodPost, "/api/finance/ledger/", token, entry)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "category", errorBody(t, w)["field"])

	entry["category"] = "fuel"
	entry["amount"] = "0"
	w = s.do(t, http.MethodPost, "/api/finance/ledger/", token, entry)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "amount", errorBody(t, w)["field"])

	w = s.do(t, http.MethodGet, "/api/finance/ledger/?entry_type=gift", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWeather_RequiresFarm(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "meera")

	w := s.do(t, http.MethodGet, "/api/core/weather/", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPut, "/api/farm/profile/", token, farmProfileBody())
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodGet, "/api/core/weather/", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var report struct {
		Timezone string `json:"timezone"`
		Daily    []struct {
			RainMM float64 `json:"rain_mm"`
		} `json:"daily"`
	}
	decode(t, w, &report)
	assert.Equal(t, "Asia/Kolkata", report.Timezone)
	assert.Len(t, report.Daily, 1)

	w = s.do(t, http.MethodGet, "/api/core/weather/alerts/?all=true", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var alerts struct {
		Count int `json:"count"`
	}
	decode(t, w, &alerts)
	assert.Equal(t, 0, alerts.Count)

	w = s.do(t, http.MethodGet, "/api/core/weather/alerts/?severity=extreme", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdmin_RequiresStaff(t *testing.T) {
	s := newTestServer(t)
	farmer := s.register(t, "meera")
	admin := s.staff(t, "admin")

	for _, path := range []string{"/api/core/config/", "/api/core/usage/", "/api/chatbot/articles/", "/api/users/admin/"} {
		w := s.do(t, http.MethodGet, path, farmer, nil)
		assert.Equal(t, http.StatusForbidden, w.Code, path)

		w = s.do(t, http.MethodGet, path, admin, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := s.do(t, http.MethodPost, "/api/core/weather/alerts/evaluate/", farmer, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdmin_Config(t *testing.T) {
	s := newTestServer(t)
	admin := s.staff(t, "admin")

	w := s.do(t, http.MethodPut, "/api/core/config/RAG_TOP_K/", admin, gin.H{"value": "5"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/core/config/", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data []struct {
			Key      string `json:"key"`
			Value    string `json:"value"`
			IsActive bool   `json:"is_active"`
		} `json:"data"`
	}
	decode(t, w, &list)
	found := false
	for _, cfg := range list.Data {
		if cfg.Key == "RAG_TOP_K" {
			found = true
			assert.Equal(t, "5", cfg.Value)
			assert.True(t, cfg.IsActive)
		}
	}
	assert.True(t, found)

	w = s.do(t, http.MethodDelete, "/api/core/config/RAG_TOP_K/", admin, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodDelete, "/api/core/config/NO_SUCH_KEY/", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdmin_Users(t *testing.T) {
	s := newTestServer(t)
	admin := s.staff(t, "admin")

	w := s.do(t, http.MethodPost, "/api/users/admin/", admin, gin.H{
		"username": "officer",
		"email":    "officer@example.com",
		"password": "correct-horse",
		"is_staff": true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/users/admin/", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Count int `json:"count"`
	}
	decode(t, w, &list)
	assert.Equal(t, 2, list.Count)
}

func TestUsage_FilterValidation(t *testing.T) {
	s := newTestServer(t)
	admin := s.staff(t, "admin")

	w := s.do(t, http.MethodGet, "/api/core/usage/?api_type=fax", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	from := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/core/usage/?api_type=openweather&from=%s&to=2099-01-01", from), admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Total  int64         `json:"total"`
		Totals []interface{} `json:"totals"`
	}
	decode(t, w, &body)
	assert.Equal(t, int64(0), body.Total)
	assert.Empty(t, body.Totals)
}
