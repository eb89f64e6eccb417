package weather

import (
	"testing"
	"time"

	"github.com/aethra/krishi/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultThresholds = Thresholds{RainMM: 50, HeatC: 40, FrostC: 2, WindMS: 17}

func day(date time.Time, rain, minC, maxC, wind float64) Day {
	return Day{Date: date, RainMM: rain, TempMinC: minC, TempMaxC: maxC, WindSpeedMS: wind}
}

func byType(cs []Candidate) map[models.AlertType]Candidate {
	out := make(map[models.AlertType]Candidate, len(cs))
	for _, c := range cs {
		out[c.AlertType] = c
	}
	return out
}

func TestEvaluate_Thresholds(t *testing.T) {
	now := time.Date(2024, 7, 1, 6, 0, 0, 0, time.UTC)
	today := dayStart(now)

	report := &Report{Daily: []Day{
		day(today, 160, 22, 30, 5),
		day(today.Add(24*time.Hour), 20, 1.5, 44, 20),
	}}

	got := byType(Evaluate(report, defaultThresholds, now))
	require.Len(t, got, 4)

	rain := got[models.AlertHeavyRain]
	assert.Equal(t, models.SeverityCritical, rain.Severity)
	assert.Equal(t, today, rain.ValidFrom)
	assert.Equal(t, today.Add(24*time.Hour-time.Second), rain.ValidUntil)
	assert.NotEmpty(t, rain.Data)

	assert.Equal(t, models.SeverityHigh, got[models.AlertHeatwave].Severity)
	assert.Equal(t, models.SeverityMedium, got[models.AlertFrostWarning].Severity)
	assert.Equal(t, models.SeverityMedium, got[models.AlertHighWind].Severity)

	for _, c := range got {
		assert.False(t, c.ValidFrom.After(c.ValidUntil))
	}
}

func TestEvaluate_SkipsPastDays(t *testing.T) {
	now := time.Date(2024, 7, 2, 6, 0, 0, 0, time.UTC)
	yesterday := dayStart(now).Add(-24 * time.Hour)
	report := &Report{Daily: []Day{day(yesterday, 200, 20, 30, 0)}}
	assert.Empty(t, Evaluate(report, defaultThresholds, now))
}

func TestEvaluate_Drought(t *testing.T) {
	now := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	today := dayStart(now)
	var days []Day
	for i := 0; i < 8; i++ {
		days = append(days, day(today.Add(time.Duration(i)*24*time.Hour), 0.2, 22, 34, 3))
	}

	got := byType(Evaluate(&Report{Daily: days}, defaultThresholds, now))
	drought, ok := got[models.AlertDroughtWarning]
	require.True(t, ok)
	assert.Equal(t, today, drought.ValidFrom)
	assert.Equal(t, today.Add(7*24*time.Hour-time.Second), drought.ValidUntil)

	days[3].RainMM = 12
	got = byType(Evaluate(&Report{Daily: days}, defaultThresholds, now))
	_, ok = got[models.AlertDroughtWarning]
	assert.False(t, ok)
}

func TestEvaluate_ProviderAlerts(t *testing.T) {
	now := time.Date(2024, 5, 20, 6, 0, 0, 0, time.UTC)
	report := &Report{Alerts: []ProviderAlert{
		{Event: "Cyclone Alert", Description: "Very severe cyclonic storm", Start: now, End: now.Add(36 * time.Hour)},
		{Event: "Orange alert", Description: "Flash flood likely in low lying areas", Start: now, End: now.Add(12 * time.Hour)},
		{Event: "Thunderstorm", Description: "Lightning", Start: now, End: now.Add(time.Hour)},
		{Event: "Hailstorm", Start: now.Add(-48 * time.Hour), End: now.Add(-24 * time.Hour)},
	}}

	got := byType(Evaluate(report, defaultThresholds, now))
	require.Len(t, got, 2)
	assert.Equal(t, models.SeverityCritical, got[models.AlertCyclone].Severity)
	assert.Equal(t, "Cyclone Alert", got[models.AlertCyclone].Title)
	assert.Equal(t, models.SeverityHigh, got[models.AlertFlood].Severity)
}
