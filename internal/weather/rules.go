package weather

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aethra/krishi/internal/models"
)

// Thresholds decide when a forecast value becomes an alert
type Thresholds struct {
	RainMM float64
	HeatC  float64
	FrostC float64
	WindMS float64
}

// dryDayMM is the daily rainfall below which a day counts as dry
const dryDayMM = 1.0

// droughtDays is the run of dry forecast days that raises a drought warning
const droughtDays = 7

// Candidate is an alert derived from a report, not yet stored
type Candidate struct {
	AlertType  models.AlertType
	Severity   models.Severity
	Title      string
	Message    string
	ValidFrom  time.Time
	ValidUntil time.Time
	Data       json.RawMessage
}

// Evaluate applies the thresholds to every forecast day and maps provider
// alerts. Days that ended before now are skipped.
func Evaluate(report *Report, t Thresholds, now time.Time) []Candidate {
	var out []Candidate

	for _, day := range report.Daily {
		from, until := day.Date, day.Date.Add(24*time.Hour-time.Second)
		if until.Before(now) {
			continue
		}
		date := day.Date.Format("2 Jan")

		if t.RainMM > 0 && day.RainMM >= t.RainMM {
			out = append(out, dayCandidate(models.AlertHeavyRain, scaleUp(day.RainMM, t.RainMM),
				"Heavy rain expected on "+date,
				fmt.Sprintf("About %.0f mm of rain is forecast. Clear field drains, delay fertilizer and pesticide application and harvest mature produce early.", day.RainMM),
				from, until, day))
		}
		if t.HeatC > 0 && day.TempMaxC >= t.HeatC {
			out = append(out, dayCandidate(models.AlertHeatwave, stepsAbove(day.TempMaxC, t.HeatC, 3, 5),
				"Heatwave on "+date,
				fmt.Sprintf("Maximum temperature of %.1f°C is forecast. Irrigate in the early morning or evening, mulch beds and shade nurseries and livestock.", day.TempMaxC),
				from, until, day))
		}
		if day.TempMinC <= t.FrostC {
			out = append(out, dayCandidate(models.AlertFrostWarning, stepsAbove(t.FrostC-day.TempMinC, 0, 2, 5),
				"Frost risk on "+date,
				fmt.Sprintf("Minimum temperature of %.1f°C is forecast. Cover sensitive seedlings and irrigate lightly in the evening.", day.TempMinC),
				from, until, day))
		}
		wind := day.WindSpeedMS
		if day.WindGustMS > wind {
			wind = day.WindGustMS
		}
		if t.WindMS > 0 && wind >= t.WindMS {
			out = append(out, dayCandidate(models.AlertHighWind, scaleUp(wind, t.WindMS),
				"Strong winds on "+date,
				fmt.Sprintf("Winds up to %.0f m/s are forecast. Stake banana and other tall crops and secure polyhouse covers.", wind),
				from, until, day))
		}
	}

	if c, ok := drought(report.Daily, now); ok {
		out = append(out, c)
	}

	for _, a := range report.Alerts {
		if c, ok := mapProviderAlert(a, now); ok {
			out = append(out, c)
		}
	}
	return out
}

func dayCandidate(alertType models.AlertType, severity models.Severity, title, message string, from, until time.Time, day Day) Candidate {
	data, _ := json.Marshal(day)
	return Candidate{
		AlertType:  alertType,
		Severity:   severity,
		Title:      title,
		Message:    message,
		ValidFrom:  from,
		ValidUntil: until,
		Data:       data,
	}
}

// scaleUp grades a value by how many times it exceeds the threshold
func scaleUp(value, threshold float64) models.Severity {
	switch ratio := value / threshold; {
	case ratio >= 3:
		return models.SeverityCritical
	case ratio >= 2:
		return models.SeverityHigh
	default:
		return models.SeverityMedium
	}
}

// stepsAbove grades a value by its absolute margin over the threshold
func stepsAbove(value, threshold, high, critical float64) models.Severity {
	switch margin := value - threshold; {
	case margin >= critical:
		return models.SeverityCritical
	case margin >= high:
		return models.SeverityHigh
	default:
		return models.SeverityMedium
	}
}

func drought(days []Day, now time.Time) (Candidate, bool) {
	run := 0
	var first, last Day
	for _, day := range days {
		if day.RainMM >= dryDayMM {
			run = 0
			continue
		}
		if run == 0 {
			first = day
		}
		run++
		last = day
		if run >= droughtDays {
			break
		}
	}
	if run < droughtDays {
		return Candidate{}, false
	}

	until := last.Date.Add(24*time.Hour - time.Second)
	if until.Before(now) {
		return Candidate{}, false
	}
	data, _ := json.Marshal(map[string]interface{}{"dry_days": run, "from": first.Date, "to": last.Date})
	return Candidate{
		AlertType:  models.AlertDroughtWarning,
		Severity:   models.SeverityMedium,
		Title:      fmt.Sprintf("Dry spell from %s", first.Date.Format("2 Jan")),
		Message:    fmt.Sprintf("No significant rain is forecast for %d days. Plan irrigation, mulch to conserve soil moisture and avoid fresh sowing.", run),
		ValidFrom:  first.Date,
		ValidUntil: until,
		Data:       data,
	}, true
}

var providerEvents = []struct {
	keyword   string
	alertType models.AlertType
	severity  models.Severity
}{
	{"cyclone", models.AlertCyclone, models.SeverityCritical},
	{"flood", models.AlertFlood, models.SeverityHigh},
	{"hail", models.AlertHail, models.SeverityHigh},
}

func mapProviderAlert(a ProviderAlert, now time.Time) (Candidate, bool) {
	if !a.End.IsZero() && a.End.Before(now) {
		return Candidate{}, false
	}
	text := strings.ToLower(a.Event + " " + a.Description)
	for _, ev := range providerEvents {
		if !strings.Contains(text, ev.keyword) {
			continue
		}
		from, until := a.Start, a.End
		if from.IsZero() {
			from = now
		}
		if until.Before(from) {
			until = from.Add(24 * time.Hour)
		}
		data, _ := json.Marshal(a)
		title := strings.TrimSpace(a.Event)
		if title == "" {
			title = "Weather warning"
		}
		message := strings.TrimSpace(a.Description)
		if message == "" {
			message = title
		}
		return Candidate{
			AlertType:  ev.alertType,
			Severity:   ev.severity,
			Title:      title,
			Message:    message,
			ValidFrom:  from,
			ValidUntil: until,
			Data:       data,
		}, true
	}
	return Candidate{}, false
}
