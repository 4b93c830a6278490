package analyzer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mhbka/itemtracker/internal/gallery"
)

type fakeVendor struct {
	reply string
	err   error
	calls int
}

func (f *fakeVendor) Complete(ctx context.Context, systemPrompt string, images []Image, itemJSON string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func oneImageServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A 1x1 transparent PNG.
		w.Write([]byte{
			0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
			0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
			0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
			0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
			0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
			0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
		})
	}))
}

func yesNoHardCriteria() gallery.EvaluationCriteria {
	return gallery.EvaluationCriteria{Criteria: []gallery.EvaluationCriterion{
		{Question: "Is it new?", Type: gallery.YesNo, Hard: true},
	}}
}

func TestAnalyzeItemNoImagesIsError(t *testing.T) {
	a := New(&fakeVendor{}, nil)
	outcome, _, reason := a.AnalyzeItem(context.Background(), gallery.MarketplaceItemData{}, yesNoHardCriteria())
	if outcome != OutcomeError {
		t.Fatalf("expected OutcomeError for an item with no thumbnails, got %v", outcome)
	}
	if reason != "no images" {
		t.Fatalf("expected 'no images' reason, got %q", reason)
	}
}

func TestAnalyzeItemRelevantWhenHardCriteriaSatisfied(t *testing.T) {
	srv := oneImageServer(t)
	defer srv.Close()

	vendor := &fakeVendor{reply: `{"answers":["Y"],"item_description":"a nice item","best_fit_image":0}`}
	a := New(vendor, nil)

	item := gallery.MarketplaceItemData{ItemID: "i1", Thumbnails: []string{srv.URL}}
	outcome, analyzed, reason := a.AnalyzeItem(context.Background(), item, yesNoHardCriteria())
	if outcome != OutcomeRelevant {
		t.Fatalf("expected OutcomeRelevant, got %v (%s)", outcome, reason)
	}
	if analyzed.ItemDescription != "a nice item" {
		t.Fatalf("expected description to roundtrip, got %q", analyzed.ItemDescription)
	}
	if vendor.calls != 1 {
		t.Fatalf("expected exactly 1 vendor call, got %d", vendor.calls)
	}
}

func TestAnalyzeItemIrrelevantWhenHardCriteriaFail(t *testing.T) {
	srv := oneImageServer(t)
	defer srv.Close()

	vendor := &fakeVendor{reply: `{"answers":["N"],"item_description":"desc","best_fit_image":0}`}
	a := New(vendor, nil)

	item := gallery.MarketplaceItemData{ItemID: "i1", Thumbnails: []string{srv.URL}}
	outcome, _, _ := a.AnalyzeItem(context.Background(), item, yesNoHardCriteria())
	if outcome != OutcomeIrrelevant {
		t.Fatalf("expected OutcomeIrrelevant, got %v", outcome)
	}
}

func TestAnalyzeItemMalformedJSONIsError(t *testing.T) {
	srv := oneImageServer(t)
	defer srv.Close()

	vendor := &fakeVendor{reply: `not json`}
	a := New(vendor, nil)

	item := gallery.MarketplaceItemData{ItemID: "i1", Thumbnails: []string{srv.URL}}
	outcome, _, reason := a.AnalyzeItem(context.Background(), item, yesNoHardCriteria())
	if outcome != OutcomeError {
		t.Fatalf("expected OutcomeError for malformed vendor reply, got %v", outcome)
	}
	if reason == "" {
		t.Fatal("expected a non-empty error reason")
	}
}

func TestAnalyzeItemAnswerCountMismatchIsError(t *testing.T) {
	srv := oneImageServer(t)
	defer srv.Close()

	vendor := &fakeVendor{reply: `{"answers":["Y","N"],"item_description":"d","best_fit_image":0}`}
	a := New(vendor, nil)

	item := gallery.MarketplaceItemData{ItemID: "i1", Thumbnails: []string{srv.URL}}
	outcome, _, _ := a.AnalyzeItem(context.Background(), item, yesNoHardCriteria())
	if outcome != OutcomeError {
		t.Fatalf("expected OutcomeError on answer/criteria count mismatch, got %v", outcome)
	}
}

func TestBuildSystemPromptIncludesCriteria(t *testing.T) {
	prompt := BuildSystemPrompt(yesNoHardCriteria())
	if !strings.Contains(prompt, "Is it new?") {
		t.Fatalf("expected prompt to include the criterion question, got %q", prompt)
	}
}

func TestBuildItemJSONEscapesFields(t *testing.T) {
	item := gallery.MarketplaceItemData{Name: `quoted "name"`, Price: 12.5, Category: "c", ItemCondition: "used"}
	j := BuildItemJSON(item)
	if !strings.Contains(j, `\"name\"`) {
		t.Fatalf("expected escaped quotes in rendered JSON, got %q", j)
	}
}
