// ============================================================================
// internal/shared/clock.go
// Injectable time source and canonical-timezone date handling. Grading window
// checks compare against a single configured timezone so "is it open today"
// is unambiguous across server and client timezones.
// ============================================================================

package shared

import (
	"time"
)

// Clock abstracts "now" so window checks are deterministic in tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock returns a Clock backed by the wall clock.
func RealClock() Clock { return realClock{} }

// DefaultTimezone matches the institution the original deployment serves.
const DefaultTimezone = "America/Argentina/Buenos_Aires"

// LoadLocation resolves the canonical timezone, falling back to the default
// when name is empty.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultTimezone
	}
	return time.LoadLocation(name)
}

// ParseDateInLocation accepts "2006-01-02" or RFC3339 input and anchors plain
// dates at midnight in the canonical timezone.
func ParseDateInLocation(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", value, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, Validationf("invalid date %q: expected YYYY-MM-DD or RFC3339", value)
	}
	return t.In(loc), nil
}
