package gallery

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidCron is returned when a cron expression cannot be parsed.
var ErrInvalidCron = errors.New("invalid cron expression")

// ValidCronString is a cron expression parsed once at construction.
// Construction rejects an expression with no occurrence in the five years
// after parsing (such as one naming February 30), so an instance produces a
// next occurrence from the time it was built.
type ValidCronString struct {
	raw      string
	schedule cron.Schedule
}

// ParseCronString parses s, failing with ErrInvalidCron if unparseable.
func ParseCronString(s string) (ValidCronString, error) {
	sched, err := cron.ParseStandard(s)
	if err != nil {
		return ValidCronString{}, fmt.Errorf("%w: %q: %v", ErrInvalidCron, s, err)
	}
	if sched.Next(time.Now()).IsZero() {
		return ValidCronString{}, fmt.Errorf("%w: %q: no next occurrence", ErrInvalidCron, s)
	}
	return ValidCronString{raw: s, schedule: sched}, nil
}

// String returns the original cron text.
func (c ValidCronString) String() string { return c.raw }

// NextOccurrence returns the next time the schedule fires strictly after now.
func (c ValidCronString) NextOccurrence(now time.Time) time.Time {
	return c.schedule.Next(now)
}

func (c ValidCronString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.raw + `"`), nil
}

func (c *ValidCronString) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseCronString(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
