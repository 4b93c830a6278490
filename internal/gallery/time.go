package gallery

import (
	"strconv"
	"time"
)

// UnixUtcDateTime is an instant with second precision, serialized over the
// wire as integer Unix seconds.
type UnixUtcDateTime struct {
	t time.Time
}

// Epoch is the zero value: "fetch all available" in search-scrape semantics.
var Epoch = UnixUtcDateTime{}

// Now samples the wall clock, truncated to second precision.
func Now() UnixUtcDateTime {
	return FromTime(time.Now())
}

// FromTime truncates t to second precision and tags it UTC.
func FromTime(t time.Time) UnixUtcDateTime {
	return UnixUtcDateTime{t: t.UTC().Truncate(time.Second)}
}

// FromUnixSeconds builds an instant from a Unix-seconds integer.
func FromUnixSeconds(sec int64) UnixUtcDateTime {
	return UnixUtcDateTime{t: time.Unix(sec, 0).UTC()}
}

// Time returns the underlying time.Time.
func (u UnixUtcDateTime) Time() time.Time { return u.t }

// Unix returns the Unix-seconds representation.
func (u UnixUtcDateTime) Unix() int64 { return u.t.Unix() }

// IsZero reports whether this is the epoch/unset value.
func (u UnixUtcDateTime) IsZero() bool { return u.t.IsZero() }

// Before reports strict ordering.
func (u UnixUtcDateTime) Before(other UnixUtcDateTime) bool { return u.t.Before(other.t) }

// After reports strict ordering.
func (u UnixUtcDateTime) After(other UnixUtcDateTime) bool { return u.t.After(other.t) }

func (u UnixUtcDateTime) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(u.Unix(), 10)), nil
}

func (u *UnixUtcDateTime) UnmarshalJSON(b []byte) error {
	sec, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*u = FromUnixSeconds(sec)
	return nil
}

func (u UnixUtcDateTime) String() string {
	return u.t.Format(time.RFC3339)
}
