package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mhbka/itemtracker/internal/gallery"
	"github.com/mhbka/itemtracker/pkg/fn"
	"github.com/mhbka/itemtracker/pkg/resilience"
)

// Outcome is the per-item classification Stage 3 partitions on.
type Outcome int

const (
	OutcomeRelevant Outcome = iota
	OutcomeIrrelevant
	OutcomeError
)

// Analyzer is the LLM Analyzer (C2): fetches thumbnails, composes the
// multimodal prompt, calls the vendor, and classifies the result.
type Analyzer struct {
	vendor     VendorClient
	httpClient *http.Client
	breaker    *resilience.Breaker
	logger     *slog.Logger
}

// New builds an Analyzer around a vendor client.
func New(vendor VendorClient, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		vendor:     vendor,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		breaker:    resilience.NewBreaker(resilience.BreakerOpts{FailThreshold: 3, Timeout: 15 * time.Second, HalfOpenMax: 1}),
		logger:     logger,
	}
}

type modelReply struct {
	Answers         []string `json:"answers"`
	ItemDescription string   `json:"item_description"`
	BestFitImage    int      `json:"best_fit_image"`
}

// AnalyzeItem runs one item through the analyzer, returning its outcome
// and either the analyzed item (Relevant/Irrelevant) or the failure
// reason (Error).
func (a *Analyzer) AnalyzeItem(ctx context.Context, item gallery.MarketplaceItemData, criteria gallery.EvaluationCriteria) (Outcome, gallery.AnalyzedItem, string) {
	images, err := a.fetchImages(ctx, item.Thumbnails)
	if err != nil || len(images) == 0 {
		return OutcomeError, gallery.AnalyzedItem{}, "no images"
	}

	systemPrompt := BuildSystemPrompt(criteria)
	itemJSON := BuildItemJSON(item)

	raw, err := resilience.CallResult(a.breaker, ctx, func(ctx context.Context) fn.Result[string] {
		return fn.FromPair(a.vendor.Complete(ctx, systemPrompt, images, itemJSON))
	}).Unwrap()
	if err != nil {
		if httpErr, ok := err.(*VendorHTTPError); ok {
			return OutcomeError, gallery.AnalyzedItem{}, fmt.Sprintf("llm status %d: %s", httpErr.Status, httpErr.Body)
		}
		return OutcomeError, gallery.AnalyzedItem{}, err.Error()
	}

	var reply modelReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return OutcomeError, gallery.AnalyzedItem{}, fmt.Sprintf("json parse: %v", err)
	}

	parsed, hardSatisfied, err := criteria.ParseAnswersAndCheckHardCriteria(reply.Answers)
	if err != nil {
		return OutcomeError, gallery.AnalyzedItem{}, err.Error()
	}

	bestFit := reply.BestFitImage
	if bestFit < 0 || bestFit >= len(item.Thumbnails) {
		bestFit = 0
	}

	analyzed := gallery.AnalyzedItem{
		Item:              item,
		EvaluationAnswers: parsed,
		ItemDescription:   reply.ItemDescription,
		BestFitImage:      bestFit,
	}

	if hardSatisfied {
		return OutcomeRelevant, analyzed, ""
	}
	return OutcomeIrrelevant, analyzed, ""
}

// fetchImages downloads and decodes each thumbnail, re-encoding to PNG.
// Individual fetch/decode failures are skipped, not fatal to the item —
// only a wholly empty result is an error (per the "no images" partition).
func (a *Analyzer) fetchImages(ctx context.Context, urls []string) ([]Image, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	results := fn.ParMap(urls, 4, func(u string) fn.Result[Image] {
		return fn.FromPair(a.fetchOneImage(ctx, u))
	})
	out := make([]Image, 0, len(urls))
	for _, r := range results {
		if img, err := r.Unwrap(); err == nil {
			out = append(out, img)
		}
	}
	return out, nil
}

func (a *Analyzer) fetchOneImage(ctx context.Context, u string) (Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Image{}, err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return Image{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Image{}, fmt.Errorf("image fetch: status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Image{}, err
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Image{}, fmt.Errorf("image decode: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Image{}, fmt.Errorf("png encode: %w", err)
	}

	return Image{PNGBytes: buf.Bytes(), MediaType: "image/png"}, nil
}
