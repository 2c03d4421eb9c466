package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// Hours
// =============================================================================

// Hours is a duration of service time in hundredths of an hour. Keeping it
// integral makes every sum exact; an empty sum is Hours(0), rendered "0.00".
type Hours int64

const (
	// MinLogHours is the smallest single HourLog entry (0.25h).
	MinLogHours Hours = 25
	// MaxLogHours is the largest single HourLog entry (24h).
	MaxLogHours Hours = 2400
)

// maxHoursLiteral bounds the length of a parsed hours literal.
const maxHoursLiteral = 32

// HoursFromFloat converts a float literal known to carry at most two
// decimals. Input from callers goes through ParseHours or HoursFromDecimal.
func HoursFromFloat(f float64) Hours {
	return Hours(math.Round(f * 100))
}

// HoursFromDecimal converts a decimal number of hours exactly, failing when
// its shortest representation has more than two decimal places.
func HoursFromDecimal(f float64) (Hours, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, Invalidf("hours", "invalid hours %v", f)
	}
	return ParseHours(strconv.FormatFloat(f, 'f', -1, 64))
}

// WholeHours converts an integer number of hours.
func WholeHours(n int) Hours {
	return Hours(n * 100)
}

// ParseHours parses a decimal string such as "2.5" or "12.75" without
// rounding. A non-zero third decimal place is rejected with
// ErrHoursPrecision; bounds are left to the caller.
func ParseHours(s string) (Hours, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, NewValidationError("hours", ErrRequired)
	}
	if len(s) > maxHoursLiteral || strings.ContainsAny(s, "/_xXpP") {
		return 0, Invalidf("hours", "invalid hours %q", s)
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return 0, Invalidf("hours", "invalid hours %q", s)
	}
	r.Mul(r, big.NewRat(100, 1))
	if !r.IsInt() {
		return 0, NewValidationError("hours", ErrHoursPrecision)
	}
	if !r.Num().IsInt64() {
		return 0, NewValidationError("hours", ErrOutOfRange)
	}
	return Hours(r.Num().Int64()), nil
}

// Float returns the value as a float64 number of hours.
func (h Hours) Float() float64 {
	return float64(h) / 100
}

// String renders the value with exactly two decimals.
func (h Hours) String() string {
	sign := ""
	v := int64(h)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// ValidateLogEntry checks the per-entry bounds of an HourLog.
func (h Hours) ValidateLogEntry() error {
	if h < MinLogHours || h > MaxLogHours {
		return NewValidationError("hours", ErrHoursOutOfRange)
	}
	return nil
}

// MarshalJSON renders hours as a two-decimal string.
func (h Hours) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON accepts either a JSON number or a numeric string.
func (h *Hours) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*h = 0
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	parsed, err := ParseHours(raw)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// =============================================================================
// Progress
// =============================================================================

// Percentage returns 100 * completed / target rounded to two decimals.
// A zero or negative target yields 0.
func Percentage(completed, target Hours) float64 {
	if target <= 0 {
		return 0
	}
	p := float64(completed) / float64(target) * 100
	return math.Round(p*100) / 100
}

// Remaining returns max(0, target - completed).
func Remaining(completed, target Hours) Hours {
	if completed >= target {
		return 0
	}
	return target - completed
}

// =============================================================================
// Calendar Helpers
// =============================================================================

// DateLayout is the wire and storage layout for calendar dates.
const DateLayout = "2006-01-02"

// DateOf truncates t to midnight UTC of its calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", ErrValidation, s)
	}
	return t, nil
}

// TimeOfDay is a wall-clock time in minutes after midnight.
type TimeOfDay int

// ClockLayout is the wire and storage layout for TimeOfDay.
const ClockLayout = "15:04"

// ParseTimeOfDay parses "HH:MM" (seconds are accepted and ignored).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	layout := ClockLayout
	if strings.Count(s, ":") == 2 {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid time %q", ErrValidation, s)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

// Clock builds a TimeOfDay from hour and minute.
func Clock(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// MarshalJSON renders "HH:MM".
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses "HH:MM".
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
