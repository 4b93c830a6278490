package gallery

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEpochIsZero(t *testing.T) {
	if !Epoch.IsZero() {
		t.Fatal("expected Epoch to be zero")
	}
}

func TestFromTimeTruncatesToSeconds(t *testing.T) {
	src := time.Date(2026, 3, 4, 5, 6, 7, 123456789, time.FixedZone("EST", -5*3600))
	got := FromTime(src)
	if got.Time().Nanosecond() != 0 {
		t.Fatalf("expected sub-second truncation, got %v", got.Time())
	}
	if got.Time().Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", got.Time().Location())
	}
}

func TestFromUnixSecondsRoundTrip(t *testing.T) {
	u := FromUnixSeconds(1_700_000_000)
	if u.Unix() != 1_700_000_000 {
		t.Fatalf("expected 1700000000, got %d", u.Unix())
	}
}

func TestBeforeAfterOrdering(t *testing.T) {
	earlier := FromUnixSeconds(100)
	later := FromUnixSeconds(200)
	if !earlier.Before(later) {
		t.Fatal("expected earlier.Before(later)")
	}
	if !later.After(earlier) {
		t.Fatal("expected later.After(earlier)")
	}
	if earlier.After(later) || later.Before(earlier) {
		t.Fatal("ordering inconsistent")
	}
}

func TestUnixUtcDateTimeJSONRoundTrip(t *testing.T) {
	u := FromUnixSeconds(1_234_567_890)
	b, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != "1234567890" {
		t.Fatalf("expected bare integer, got %s", b)
	}

	var roundTripped UnixUtcDateTime
	if err := json.Unmarshal(b, &roundTripped); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if roundTripped.Unix() != u.Unix() {
		t.Fatalf("expected %d, got %d", u.Unix(), roundTripped.Unix())
	}
}

func TestUnixUtcDateTimeStringIsRFC3339(t *testing.T) {
	u := FromUnixSeconds(0)
	if _, err := time.Parse(time.RFC3339, u.String()); err != nil {
		t.Fatalf("expected RFC3339 string, got %q: %v", u.String(), err)
	}
}
