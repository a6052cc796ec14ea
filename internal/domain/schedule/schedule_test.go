package schedule

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextDue(t *testing.T) {
	tests := []struct {
		billing string
		cadence Cadence
		want    string
	}{
		{"2024-01-01", Weekly, "2024-01-08"},
		{"2024-01-01", BiWeekly, "2024-01-15"},
		{"2024-01-01", Monthly, "2024-01-29"},
		{"2024-01-01", Custom, "2024-01-29"},
		{"2024-01-01", "", "2024-01-29"},
		{"2024-01-01", "Quarterly", "2024-01-29"},
		{"2024-02-20", Weekly, "2024-02-27"},
		{"2024-02-25", Weekly, "2024-03-03"},
		{"2023-02-25", Weekly, "2023-03-04"},
		{"2024-12-25", BiWeekly, "2025-01-08"},
		{"2024-12-31", Monthly, "2025-01-28"},
	}

	for _, tt := range tests {
		t.Run(tt.billing+"/"+string(tt.cadence), func(t *testing.T) {
			got := NextDue(MustParseDate(tt.billing), tt.cadence)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestNextDue_MonthlyIsNotCalendarMonth(t *testing.T) {
	got := NextDue(MustParseDate("2024-03-31"), Monthly)
	assert.Equal(t, "2024-04-28", got.String())
}

func TestNextDueString(t *testing.T) {
	got, err := NextDueString("2024-01-01", "Monthly")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-29", got)

	_, err = NextDueString("01/02/2024", "Monthly")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestParseDate_Invalid(t *testing.T) {
	for _, s := range []string{"", "2024-1-01", "2024-02-30", "2024-13-01", "20240101", "2024-01-01T00:00:00Z", "abc"} {
		_, err := ParseDate(s)
		assert.ErrorIs(t, err, ErrInvalidDate, "input %q", s)
	}
}

func TestParseDate_LeapDay(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, 2024, d.Year())
	assert.Equal(t, time.February, d.Month())
	assert.Equal(t, 29, d.Day())

	_, err = ParseDate("2023-02-29")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestDate_Compare(t *testing.T) {
	a := MustParseDate("2024-01-09")
	b := MustParseDate("2024-01-10")

	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.True(t, a.Equal(MustParseDate("2024-01-09")))
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 0, b.Compare(b))
}

func TestDate_JSON(t *testing.T) {
	type payload struct {
		D Date `json:"d"`
	}

	b, err := json.Marshal(payload{D: MustParseDate("2024-02-01")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2024-02-01"}`, string(b))

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"d":"2024-03-04"}`), &p))
	assert.Equal(t, "2024-03-04", p.D.String())

	err = json.Unmarshal([]byte(`{"d":"2024-03-40"}`), &p)
	assert.ErrorIs(t, err, ErrInvalidDate)

	var empty payload
	require.NoError(t, json.Unmarshal([]byte(`{"d":null}`), &empty))
	assert.True(t, empty.D.IsZero())
}

func TestDate_Scan(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan(time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-05-06", d.String())

	require.NoError(t, d.Scan("2024-07-08"))
	assert.Equal(t, "2024-07-08", d.String())

	require.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())

	assert.Error(t, d.Scan(42))
}

func TestDate_Value(t *testing.T) {
	v, err := MustParseDate("2024-01-29").Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-01-29", v)

	v, err = Date{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestCadence_Known(t *testing.T) {
	for _, c := range Cadences() {
		assert.True(t, c.Known(), string(c))
	}
	assert.False(t, Cadence("Daily").Known())
	assert.False(t, Cadence("").Known())
}

func TestCadence_ScanValue(t *testing.T) {
	var c Cadence
	require.NoError(t, c.Scan(nil))
	assert.Equal(t, Cadence(""), c)

	require.NoError(t, c.Scan("Weekly"))
	assert.Equal(t, Weekly, c)

	v, err := Cadence("").Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}
