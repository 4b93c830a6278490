package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mhbka/itemtracker/internal/gallery"
)

func TestRowToGalleryRoundTripsSearchAndCriteriaJSON(t *testing.T) {
	id := uuid.New()
	searchJSON, _ := json.Marshal(gallery.SearchCriteria{Keyword: "camera"})
	critJSON, _ := json.Marshal(gallery.EvaluationCriteria{Criteria: []gallery.EvaluationCriterion{
		{Question: "Is it new?", Type: gallery.YesNo, Hard: true},
	}})
	lastScraped := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	g, err := rowToGallery(id, "* * * * *", searchJSON, critJSON, true, &lastScraped)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.GalleryID != id {
		t.Fatalf("expected gallery id to round trip, got %v", g.GalleryID)
	}
	if g.SearchCriteria.Keyword != "camera" {
		t.Fatalf("expected search criteria to round trip, got %+v", g.SearchCriteria)
	}
	if len(g.EvaluationCriteria.Criteria) != 1 || g.EvaluationCriteria.Criteria[0].Question != "Is it new?" {
		t.Fatalf("expected evaluation criteria to round trip, got %+v", g.EvaluationCriteria)
	}
	if !g.IsActive {
		t.Fatal("expected IsActive to round trip as true")
	}
	got, ok := g.MarketplacePreviousScrapedDatetimes[gallery.Mercari]
	if !ok || got.Unix() != lastScraped.Unix() {
		t.Fatalf("expected mercari last-scraped time to round trip, got %+v", g.MarketplacePreviousScrapedDatetimes)
	}
}

func TestRowToGalleryNilLastScrapedLeavesMapEmpty(t *testing.T) {
	id := uuid.New()
	searchJSON, _ := json.Marshal(gallery.SearchCriteria{})
	critJSON, _ := json.Marshal(gallery.EvaluationCriteria{})

	g, err := rowToGallery(id, "@hourly", searchJSON, critJSON, false, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := g.MarketplacePreviousScrapedDatetimes[gallery.Mercari]; ok {
		t.Fatal("expected no previous-scraped entry when the column is NULL")
	}
}

func TestRowToGalleryMalformedCronIsError(t *testing.T) {
	searchJSON, _ := json.Marshal(gallery.SearchCriteria{})
	critJSON, _ := json.Marshal(gallery.EvaluationCriteria{})

	if _, err := rowToGallery(uuid.New(), "not a cron", searchJSON, critJSON, false, nil); err == nil {
		t.Fatal("expected a malformed cron string to be rejected")
	}
}

func TestRowToGalleryMalformedSearchJSONIsError(t *testing.T) {
	critJSON, _ := json.Marshal(gallery.EvaluationCriteria{})

	if _, err := rowToGallery(uuid.New(), "* * * * *", []byte("not json"), critJSON, false, nil); err == nil {
		t.Fatal("expected malformed search_criteria JSON to be rejected")
	}
}

func TestRowToGalleryMalformedEvaluationJSONIsError(t *testing.T) {
	searchJSON, _ := json.Marshal(gallery.SearchCriteria{})

	if _, err := rowToGallery(uuid.New(), "* * * * *", searchJSON, []byte("not json"), false, nil); err == nil {
		t.Fatal("expected malformed evaluation_criteria JSON to be rejected")
	}
}
