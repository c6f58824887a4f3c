package heartbeat

import (
	"fmt"
	"time"
)

// SchemaVersion is the version written into every new Heartbeat.
const SchemaVersion = 0

// DistantPast is the last-logged date of a period that was never logged.
var DistantPast = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)

// TimePeriod is a tracked logging cycle.
type TimePeriod int

const (
	// Daily allows one heartbeat per UTC calendar day.
	Daily TimePeriod = iota + 1
)

var timePeriodNames = map[TimePeriod]string{
	Daily: "daily",
}

var timePeriodDays = map[TimePeriod]int{
	Daily: 1,
}

// AllTimePeriods returns every tracked period.
func AllTimePeriods() []TimePeriod {
	return []TimePeriod{Daily}
}

// Days returns the period length in whole days.
func (p TimePeriod) Days() int {
	return timePeriodDays[p]
}

// Duration returns the period length.
func (p TimePeriod) Duration() time.Duration {
	return time.Duration(p.Days()) * 24 * time.Hour
}

// String returns the period name.
func (p TimePeriod) String() string {
	if name, ok := timePeriodNames[p]; ok {
		return name
	}
	return fmt.Sprintf("TimePeriod(%d)", int(p))
}

// MarshalText implements encoding.TextMarshaler.
func (p TimePeriod) MarshalText() ([]byte, error) {
	name, ok := timePeriodNames[p]
	if !ok {
		return nil, fmt.Errorf("unknown time period %d", int(p))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *TimePeriod) UnmarshalText(text []byte) error {
	period, ok := parseTimePeriod(string(text))
	if !ok {
		return fmt.Errorf("unknown time period %q", text)
	}
	*p = period
	return nil
}

func parseTimePeriod(name string) (TimePeriod, bool) {
	for p, n := range timePeriodNames {
		if n == name {
			return p, true
		}
	}
	return 0, false
}

// Heartbeat is one recorded usage event. Treat it as immutable once
// appended to a Bundle.
type Heartbeat struct {
	// Agent identifies the SDK component that logged.
	Agent string `json:"agent"`

	// Date is a UTC start-of-day timestamp.
	Date time.Time `json:"date"`

	// TimePeriods are the periods this heartbeat satisfied.
	TimePeriods []TimePeriod `json:"timePeriods"`

	// Version is the schema version the heartbeat was written with.
	Version int `json:"version"`
}

// NormalizeDate returns the start of t's UTC calendar day.
func NormalizeDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
