package conflict

import (
	"strings"
	"time"

	"github.com/zulandar/foreman/internal/schedule"
)

// Weather is an already-resolved forecast summary. Days overrides Condition
// for specific dates, keyed as YYYY-MM-DD.
type Weather struct {
	Condition string            `json:"condition" yaml:"condition"`
	Days      map[string]string `json:"days,omitempty" yaml:"days"`
}

// ConditionOn returns the forecast condition for a date.
func (w *Weather) ConditionOn(day time.Time) string {
	if w == nil {
		return ""
	}
	if c, ok := w.Days[schedule.Day(day).Format("2006-01-02")]; ok {
		return c
	}
	return w.Condition
}

// adverseSeverity classifies a weather condition. ok is false for
// conditions that do not disrupt outdoor work.
func adverseSeverity(condition string) (Severity, bool) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(condition), " ", "_")) {
	case "storm", "thunderstorm", "snow", "blizzard", "freezing", "ice", "hail":
		return SeverityHigh, true
	case "rain", "heavy_rain", "high_wind", "wind", "sleet":
		return SeverityMedium, true
	case "drizzle", "fog", "heat", "extreme_heat":
		return SeverityLow, true
	}
	return "", false
}
