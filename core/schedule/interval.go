package schedule

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/remindme/core"
)

var ErrInvalidInterval = core.NewError(core.KindValidation, "start time must be before end time")

// TimeOfDay is a wall-clock time within a day, in seconds since midnight.
type TimeOfDay int

const (
	secondsPerDay   = 24 * 60 * 60
	clock12hLayout  = "03:04 PM"
	dateTimeLayout  = core.DateLayout + " " + core.TimeOfDayLayout
	shortTimeLayout = "15:04"
)

func NewTimeOfDay(hour, min, sec int) TimeOfDay {
	return TimeOfDay(hour*3600 + min*60 + sec)
}

// ParseTimeOfDay parses "HH:MM:SS" or "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	layout := core.TimeOfDayLayout
	if len(s) == len(shortTimeLayout) {
		layout = shortTimeLayout
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing time of day %q", s)
	}
	return NewTimeOfDay(t.Hour(), t.Minute(), t.Second()), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 3600 }
func (t TimeOfDay) Minute() int { return int(t) % 3600 / 60 }
func (t TimeOfDay) Second() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

// Format12h renders the time as "03:04 PM".
func (t TimeOfDay) Format12h() string {
	return time.Date(2000, 1, 1, t.Hour(), t.Minute(), t.Second(), 0, time.UTC).Format(clock12hLayout)
}

func (t TimeOfDay) IsValid() bool { return t >= 0 && t < secondsPerDay }

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

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

// Scan reads TIME columns (as text or time.Time depending on the driver).
func (t *TimeOfDay) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return t.scanString(v)
	case []byte:
		return t.scanString(string(v))
	case time.Time:
		*t = NewTimeOfDay(v.Hour(), v.Minute(), v.Second())
		return nil
	default:
		return errors.Errorf("cannot scan %T into TimeOfDay", src)
	}
}

func (t *TimeOfDay) scanString(s string) error {
	if i := strings.IndexByte(s, '.'); i > 0 { // drop fractional seconds
		s = s[:i]
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String(), nil
}

// Date is a calendar day, always held at midnight UTC.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(core.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, errors.Wrapf(err, "parsing date %q", s)
	}
	return DateOf(t), nil
}

func (d Date) String() string { return d.Format(core.DateLayout) }

func (d Date) AddDays(n int) Date { return DateOf(d.Time.AddDate(0, 0, n)) }

func (d Date) Equal(other Date) bool { return d.Time.Equal(other.Time) }

func (d Date) After(other Date) bool { return d.Time.After(other.Time) }

func (d Date) Before(other Date) bool { return d.Time.Before(other.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan reads DATE columns (time.Time with lib/pq & pgx, text otherwise).
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*d = DateOf(v)
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	default:
		return errors.Errorf("cannot scan %T into Date", src)
	}
}

func (d *Date) scanString(s string) error {
	if len(s) > len(core.DateLayout) {
		s = s[:len(core.DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// Interval is the half-open time range [Start, End) within a day.
type Interval struct {
	Start TimeOfDay
	End   TimeOfDay
}

func NewInterval(start, end TimeOfDay) (Interval, error) {
	if !start.IsValid() || !end.IsValid() || start >= end {
		return Interval{}, ErrInvalidInterval
	}
	return Interval{Start: start, End: end}, nil
}

// Overlaps reports whether both intervals share any point in time.
// Touching intervals (a.End == b.Start) do not overlap.
func (a Interval) Overlaps(b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

// StartsWithin reports whether a starts inside b.
func (a Interval) StartsWithin(b Interval) bool {
	return b.Start <= a.Start && a.Start < b.End
}

// EndsWithin reports whether a ends inside b.
func (a Interval) EndsWithin(b Interval) bool {
	return b.Start < a.End && a.End <= b.End
}

// Contains reports whether b lies entirely within a.
func (a Interval) Contains(b Interval) bool {
	return a.Start <= b.Start && b.End <= a.End
}

func (a Interval) Duration() time.Duration {
	return time.Duration(a.End-a.Start) * time.Second
}

func (a Interval) String() string {
	return "[" + a.Start.String() + ", " + a.End.String() + ")"
}

// Slot is an Interval on a given Date.
type Slot struct {
	Date Date
	Interval
}

// Overlaps reports whether both slots are on the same date and their intervals overlap.
func (s Slot) Overlaps(other Slot) bool {
	return s.Date.Equal(other.Date) && s.Interval.Overlaps(other.Interval)
}
