package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClockTime is a wall-clock time of day expressed in minutes since midnight.
type ClockTime int

// MinutesPerDay bounds valid ClockTime values; 24:00 is accepted as an end of day.
const MinutesPerDay = 24 * 60

// ParseClockTime parses "HH:MM" or "HH:MM:SS" (seconds must be zero).
func ParseClockTime(raw string) (ClockTime, error) {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock time %q", raw)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) == 0 || len(parts[0]) > 2 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	if len(parts) == 3 {
		seconds, err := strconv.Atoi(parts[2])
		if err != nil || seconds != 0 {
			return 0, fmt.Errorf("invalid seconds in %q", raw)
		}
	}
	if minutes < 0 || minutes > 59 || hours < 0 || hours > 24 || (hours == 24 && minutes != 0) {
		return 0, fmt.Errorf("clock time %q out of range", raw)
	}
	return ClockTime(hours*60 + minutes), nil
}

// MustClockTime parses raw and panics on failure. Intended for fixtures and constants.
func MustClockTime(raw string) ClockTime {
	ct, err := ParseClockTime(raw)
	if err != nil {
		panic(err)
	}
	return ct
}

// String renders the time as HH:MM.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// MarshalJSON renders the time as a "HH:MM" string.
func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts "HH:MM" strings.
func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("clock time must be a string: %w", err)
	}
	parsed, err := ParseClockTime(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Value stores the time in a PostgreSQL TIME column.
func (c ClockTime) Value() (driver.Value, error) {
	return c.String() + ":00", nil
}

// Scan reads TIME columns returned as text or time.Time.
func (c *ClockTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*c = 0
		return nil
	case []byte:
		return c.scanString(string(v))
	case string:
		return c.scanString(v)
	case time.Time:
		*c = ClockTime(v.Hour()*60 + v.Minute())
		return nil
	case int64:
		*c = ClockTime(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into ClockTime", src)
	}
}

func (c *ClockTime) scanString(raw string) error {
	// PostgreSQL may append fractional seconds or a zone offset.
	if idx := strings.IndexAny(raw, ".+-"); idx > 0 {
		raw = raw[:idx]
	}
	parsed, err := ParseClockTime(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Interval is the half-open range [Start, End).
type Interval struct {
	Start ClockTime `json:"start"`
	End   ClockTime `json:"end"`
}

// NewInterval builds an interval, rejecting empty or inverted ranges.
func NewInterval(start, end ClockTime) (Interval, error) {
	if start < 0 || end > MinutesPerDay {
		return Interval{}, fmt.Errorf("interval %s-%s outside of a day", start, end)
	}
	if start >= end {
		return Interval{}, fmt.Errorf("interval start %s must be before end %s", start, end)
	}
	return Interval{Start: start, End: end}, nil
}

// ParseInterval parses a pair of clock strings into an interval.
func ParseInterval(start, end string) (Interval, error) {
	s, err := ParseClockTime(start)
	if err != nil {
		return Interval{}, err
	}
	e, err := ParseClockTime(end)
	if err != nil {
		return Interval{}, err
	}
	return NewInterval(s, e)
}

// Overlaps reports whether two half-open intervals share any instant. Touching ranges do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start < other.End && other.Start < i.End
}

// Intersect returns the shared range and whether it is non-empty.
func (i Interval) Intersect(other Interval) (Interval, bool) {
	if !i.Overlaps(other) {
		return Interval{}, false
	}
	start, end := i.Start, i.End
	if other.Start > start {
		start = other.Start
	}
	if other.End < end {
		end = other.End
	}
	return Interval{Start: start, End: end}, true
}

// Duration returns the length of the interval.
func (i Interval) Duration() time.Duration {
	return time.Duration(i.End-i.Start) * time.Minute
}

func (i Interval) String() string {
	return i.Start.String() + "-" + i.End.String()
}

// Weekday numbers days ISO style: MONDAY=1 ... SUNDAY=7.
type Weekday int

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"", "MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY"}

// AllWeekdays lists every weekday in calendar order.
func AllWeekdays() []Weekday {
	return []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
}

// SchoolWeek is the default set of days for a new timetable.
func SchoolWeek() []Weekday {
	return []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday}
}

// Valid reports whether the weekday is within 1..7.
func (d Weekday) Valid() bool {
	return d >= Monday && d <= Sunday
}

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// ParseWeekday accepts names (any case, 3-letter prefixes included) or numbers 1..7.
func ParseWeekday(raw string) (Weekday, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if value == "" {
		return 0, fmt.Errorf("weekday is required")
	}
	if n, err := strconv.Atoi(value); err == nil {
		d := Weekday(n)
		if !d.Valid() {
			return 0, fmt.Errorf("weekday %d out of range 1-7", n)
		}
		return d, nil
	}
	for i := 1; i < len(weekdayNames); i++ {
		name := weekdayNames[i]
		if value == name || (len(value) == 3 && strings.HasPrefix(name, value)) {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", raw)
}

// MarshalText renders the weekday name, which also makes it usable as a JSON map key.
func (d Weekday) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid weekday %d", int(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText parses names or numbers.
func (d *Weekday) UnmarshalText(text []byte) error {
	parsed, err := ParseWeekday(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// UnmarshalJSON accepts either a JSON number or a string.
func (d *Weekday) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		parsed := Weekday(n)
		if !parsed.Valid() {
			return fmt.Errorf("weekday %d out of range 1-7", n)
		}
		*d = parsed
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("weekday must be a string or number: %w", err)
	}
	return d.UnmarshalText([]byte(raw))
}
