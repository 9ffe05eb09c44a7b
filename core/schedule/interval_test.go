package schedule

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hm(h, m int) TimeOfDay { return NewTimeOfDay(h, m, 0) }

func iv(t *testing.T, start, end TimeOfDay) Interval {
	t.Helper()
	i, err := NewInterval(start, end)
	require.NoError(t, err)
	return i
}

func TestNewInterval(t *testing.T) {
	tests := []struct {
		name    string
		start   TimeOfDay
		end     TimeOfDay
		wantErr bool
	}{
		{name: "valid", start: hm(9, 0), end: hm(10, 0)},
		{name: "one second", start: hm(9, 0), end: NewTimeOfDay(9, 0, 1)},
		{name: "empty", start: hm(9, 0), end: hm(9, 0), wantErr: true},
		{name: "reversed", start: hm(10, 0), end: hm(9, 0), wantErr: true},
		{name: "out of day", start: hm(23, 0), end: NewTimeOfDay(24, 0, 1), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewInterval(tt.start, tt.end)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewInterval() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInterval_Overlaps(t *testing.T) {
	base := iv(t, hm(9, 0), hm(10, 0))

	tests := []struct {
		name  string
		other Interval
		want  bool
	}{
		{name: "same", other: base, want: true},
		{name: "starts within", other: iv(t, hm(9, 30), hm(10, 30)), want: true},
		{name: "ends within", other: iv(t, hm(8, 30), hm(9, 30)), want: true},
		{name: "contained", other: iv(t, hm(9, 15), hm(9, 45)), want: true},
		{name: "containing", other: iv(t, hm(8, 0), hm(11, 0)), want: true},
		{name: "same start", other: iv(t, hm(9, 0), hm(9, 1)), want: true},
		{name: "same end", other: iv(t, hm(9, 59), hm(10, 0)), want: true},
		{name: "touching after", other: iv(t, hm(10, 0), hm(11, 0))},
		{name: "touching before", other: iv(t, hm(8, 0), hm(9, 0))},
		{name: "disjoint", other: iv(t, hm(14, 0), hm(15, 0))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Overlaps(tt.other), "base.Overlaps(other)")
			assert.Equal(t, tt.want, tt.other.Overlaps(base), "other.Overlaps(base)")
		})
	}
}

// every pair of quarter-hour intervals between 08:00 and 11:00
func quarterIntervals(t *testing.T) []Interval {
	var ivs []Interval
	for s := hm(8, 0); s < hm(11, 0); s += 15 * 60 {
		for e := s + 15*60; e <= hm(11, 0); e += 15 * 60 {
			ivs = append(ivs, iv(t, s, e))
		}
	}
	return ivs
}

func TestInterval_Overlaps_Symmetric(t *testing.T) {
	ivs := quarterIntervals(t)
	for _, a := range ivs {
		for _, b := range ivs {
			if a.Overlaps(b) != b.Overlaps(a) {
				t.Errorf("%s.Overlaps(%s) = %v but %s.Overlaps(%s) = %v", a, b, a.Overlaps(b), b, a, b.Overlaps(a))
			}
		}
	}
}

// the three overlap shapes (start inside, end inside, containment) together are exactly Overlaps
func TestInterval_Overlaps_Shapes(t *testing.T) {
	ivs := quarterIntervals(t)
	for _, a := range ivs {
		for _, b := range ivs {
			shapes := a.StartsWithin(b) || a.EndsWithin(b) || a.Contains(b)
			if shapes != a.Overlaps(b) {
				t.Errorf("%s vs %s: shapes = %v, Overlaps = %v", a, b, shapes, a.Overlaps(b))
			}
		}
	}
}

func TestSlot_Overlaps(t *testing.T) {
	day := NewDate(2030, time.March, 4)
	a := Slot{Date: day, Interval: iv(t, hm(9, 0), hm(10, 0))}
	b := Slot{Date: day, Interval: iv(t, hm(9, 30), hm(10, 30))}
	c := Slot{Date: day.AddDays(1), Interval: b.Interval}

	assert.True(t, a.Overlaps(b))
	assert.False(t, a.Overlaps(c), "different dates never overlap")
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "09:00:00", want: hm(9, 0)},
		{in: "09:00", want: hm(9, 0)},
		{in: "23:59:59", want: NewTimeOfDay(23, 59, 59)},
		{in: "24:00:00", wantErr: true},
		{in: "9h", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTimeOfDay() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseTimeOfDay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTimeOfDay_Format(t *testing.T) {
	assert.Equal(t, "13:05:09", NewTimeOfDay(13, 5, 9).String())
	assert.Equal(t, "01:05 PM", NewTimeOfDay(13, 5, 9).Format12h())
	assert.Equal(t, "12:00 AM", hm(0, 0).Format12h())
}

func TestTimeOfDay_Scan(t *testing.T) {
	tests := []struct {
		name string
		src  interface{}
		want TimeOfDay
	}{
		{name: "string", src: "10:30:00", want: hm(10, 30)},
		{name: "bytes", src: []byte("10:30:00"), want: hm(10, 30)},
		{name: "fractional", src: "10:30:00.000000", want: hm(10, 30)},
		{name: "time", src: time.Date(0, 1, 1, 10, 30, 0, 0, time.UTC), want: hm(10, 30)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got TimeOfDay
			require.NoError(t, got.Scan(tt.src))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDate_JSON(t *testing.T) {
	d := NewDate(2030, time.March, 4)
	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2030-03-04"`, string(data))

	var got Date
	require.NoError(t, json.Unmarshal(data, &got))
	assert.True(t, got.Equal(d))
}
