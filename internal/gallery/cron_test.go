package gallery

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseCronStringRejectsGarbage(t *testing.T) {
	if _, err := ParseCronString("not a cron"); !errors.Is(err, ErrInvalidCron) {
		t.Fatalf("expected ErrInvalidCron, got %v", err)
	}
}

func TestParseCronStringAcceptsStandardExpression(t *testing.T) {
	c, err := ParseCronString("0 * * * *")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.String() != "0 * * * *" {
		t.Fatalf("expected raw string preserved, got %q", c.String())
	}
}

func TestNextOccurrenceIsStrictlyAfterNow(t *testing.T) {
	c, err := ParseCronString("* * * * *")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	now := time.Date(2026, 1, 1, 0, 0, 30, 0, time.UTC)
	next := c.NextOccurrence(now)
	if !next.After(now) {
		t.Fatalf("expected next occurrence after now, got %v <= %v", next, now)
	}
}

func TestValidCronStringJSONRoundTrip(t *testing.T) {
	c, err := ParseCronString("*/5 * * * *")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	b, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var roundTripped ValidCronString
	if err := json.Unmarshal(b, &roundTripped); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if roundTripped.String() != c.String() {
		t.Fatalf("expected %q, got %q", c.String(), roundTripped.String())
	}
}

func TestValidCronStringUnmarshalRejectsGarbage(t *testing.T) {
	var c ValidCronString
	if err := json.Unmarshal([]byte(`"garbage"`), &c); !errors.Is(err, ErrInvalidCron) {
		t.Fatalf("expected ErrInvalidCron, got %v", err)
	}
}
