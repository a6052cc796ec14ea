// Package schedule holds the calendar date type and the cadence rules that
// turn a billing date into the next due date.
package schedule

import (
	"database/sql/driver"
	"fmt"
)

// Cadence names how often a patient's blister pack is refilled. Values other
// than the named constants are accepted and treated like Custom.
type Cadence string

const (
	Weekly   Cadence = "Weekly"
	BiWeekly Cadence = "Bi-weekly"
	Monthly  Cadence = "Monthly"
	Custom   Cadence = "Custom"
)

// DefaultOffsetDays applies to Custom, unknown and empty cadences.
const DefaultOffsetDays = 28

var offsets = map[Cadence]int{
	Weekly:   7,
	BiWeekly: 14,
	Monthly:  28,
}

// Cadences lists the named cadences in display order.
func Cadences() []Cadence {
	return []Cadence{Weekly, BiWeekly, Monthly, Custom}
}

// Known reports whether c is one of the named cadences.
func (c Cadence) Known() bool {
	switch c {
	case Weekly, BiWeekly, Monthly, Custom:
		return true
	}
	return false
}

// OffsetDays is the number of days between consecutive billing dates.
// Monthly is a fixed 28 days, not a calendar month.
func (c Cadence) OffsetDays() int {
	if n, ok := offsets[c]; ok {
		return n
	}
	return DefaultOffsetDays
}

// NextDue returns the date of the next refill after billing.
func NextDue(billing Date, c Cadence) Date {
	return billing.AddDays(c.OffsetDays())
}

// NextDueString is NextDue over the wire format.
func NextDueString(billing, cadence string) (string, error) {
	d, err := ParseDate(billing)
	if err != nil {
		return "", err
	}
	return NextDue(d, Cadence(cadence)).String(), nil
}

// Scan implements sql.Scanner. NULL scans to the empty cadence.
func (c *Cadence) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*c = ""
	case string:
		*c = Cadence(v)
	case []byte:
		*c = Cadence(v)
	default:
		return fmt.Errorf("cannot scan %T into schedule.Cadence", src)
	}
	return nil
}

// Value implements driver.Valuer. The empty cadence is stored as NULL.
func (c Cadence) Value() (driver.Value, error) {
	if c == "" {
		return nil, nil
	}
	return string(c), nil
}
