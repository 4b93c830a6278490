package pipeline

import (
	"context"
	"sort"

	"github.com/mhbka/itemtracker/internal/embedder"
	"github.com/mhbka/itemtracker/internal/analyzer"
	"github.com/mhbka/itemtracker/internal/gallery"
	"github.com/mhbka/itemtracker/pkg/fn"
)

// marketplaceKeys returns the sorted marketplace keys of m, for
// deterministic fan-out ordering.
func marketplaceKeys[V any](m map[gallery.Marketplace]V) []gallery.Marketplace {
	keys := make([]gallery.Marketplace, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// searchScrape is Stage 1. It dispatches every marketplace's search-scrape
// in parallel and never fails the run as a whole, even if every
// marketplace fails or returns zero items.
func (p *Pipeline) searchScrape(ctx context.Context, start gallery.SearchScrapingState) gallery.ItemScrapingState {
	marketplaces := marketplaceKeys(start.MarketplacePreviousScrapedDatetimes)
	now := gallery.Now()

	type outcome struct {
		marketplace gallery.Marketplace
		ids         []gallery.ItemId
		err         error
	}

	outcomes := fn.ParMap(marketplaces, 0, func(m gallery.Marketplace) outcome {
		adapter, ok := p.deps.Adapters.Get(m)
		if !ok {
			return outcome{marketplace: m, err: errNoAdapter(m)}
		}
		since := start.MarketplacePreviousScrapedDatetimes[m]
		result := adapter.SearchScrape(ctx, start.SearchCriteria, since)
		ids, err := result.Unwrap()
		return outcome{marketplace: m, ids: ids, err: err}
	})

	out := gallery.ItemScrapingState{
		RunCommon: gallery.NewRunCommon(start.GalleryID, start.EvaluationCriteria),
		ItemIDs:   map[gallery.Marketplace][]gallery.ItemId{},
	}
	for _, o := range outcomes {
		if o.err != nil {
			out.FailedMarketplaceReasons = append(out.FailedMarketplaceReasons, gallery.FailedMarketplaceReason{
				Marketplace: o.marketplace,
				Reason:      o.err.Error(),
			})
			continue
		}
		out.ItemIDs[o.marketplace] = o.ids
		out.MarketplaceUpdatedDatetimes[o.marketplace] = now
	}
	return out
}

// itemScrape is Stage 2. Item fetches within a marketplace are isolated;
// the whole run aborts with ErrTotalScrapeFailure only if every
// marketplace present had a non-empty id list and every fetch failed.
func (p *Pipeline) itemScrape(ctx context.Context, in gallery.ItemScrapingState) (gallery.ItemAnalysisState, error) {
	out := gallery.ItemAnalysisState{
		RunCommon: in.RunCommon,
		Items:     map[gallery.Marketplace][]gallery.MarketplaceItemData{},
	}

	marketplaces := marketplaceKeys(in.ItemIDs)
	allNonEmptyAndFailed := len(marketplaces) > 0

	for _, m := range marketplaces {
		ids := in.ItemIDs[m]
		if len(ids) == 0 {
			allNonEmptyAndFailed = false
			continue
		}

		adapter, ok := p.deps.Adapters.Get(m)
		if !ok {
			allNonEmptyAndFailed = allNonEmptyAndFailed
			continue
		}

		cached, uncached, err := p.deps.Store.CachedItems(ctx, m, ids, gallery.Now())
		if err != nil {
			cached, uncached = nil, ids // cache lookup failure degrades to scraping everything
		}

		var fetched []gallery.MarketplaceItemData
		anySucceeded := len(cached) > 0
		if len(uncached) > 0 {
			results := adapter.ItemScrape(ctx, uncached)
			for _, r := range results {
				item, err := r.Unwrap()
				if err != nil {
					continue
				}
				anySucceeded = true
				fetched = append(fetched, item)
			}
		}

		if anySucceeded {
			allNonEmptyAndFailed = false
		}

		items := append(cached, fetched...)
		if len(items) > 0 {
			out.Items[m] = items
		}
	}

	if allNonEmptyAndFailed {
		return gallery.ItemAnalysisState{}, gallery.ErrTotalScrapeFailure
	}
	return out, nil
}

// itemAnalysis is Stage 3. All items of a marketplace run in parallel;
// marketplaces run sequentially to cap concurrent model usage.
func (p *Pipeline) itemAnalysis(ctx context.Context, in gallery.ItemAnalysisState) gallery.ItemEmbeddingState {
	out := gallery.ItemEmbeddingState{
		RunCommon: in.RunCommon,
		Items:     map[gallery.Marketplace]gallery.MarketplaceAnalyzedItems{},
	}

	for _, m := range marketplaceKeys(in.Items) {
		items := in.Items[m]
		type result struct {
			outcome  analyzer.Outcome
			analyzed gallery.AnalyzedItem
			reason   string
			itemID   gallery.ItemId
		}

		results := fn.ParMap(items, 0, func(item gallery.MarketplaceItemData) result {
			outcome, analyzed, reason := p.deps.Analyzer.AnalyzeItem(ctx, item, in.EvaluationCriteria)
			return result{outcome: outcome, analyzed: analyzed, reason: reason, itemID: item.ItemID}
		})

		var partition gallery.MarketplaceAnalyzedItems
		for _, r := range results {
			switch r.outcome {
			case analyzer.OutcomeRelevant:
				partition.Relevant = append(partition.Relevant, r.analyzed)
			case analyzer.OutcomeIrrelevant:
				partition.Irrelevant = append(partition.Irrelevant, r.analyzed)
			default:
				partition.Error = append(partition.Error, gallery.ItemError{ItemID: r.itemID, Reason: r.reason})
			}
		}
		out.Items[m] = partition
	}
	return out
}

// itemEmbedding is Stage 4. Only the relevant partition is embedded;
// irrelevant and already-errored items pass through unchanged. Embedding
// never aborts the run — failures demote items to error_embedded.
func (p *Pipeline) itemEmbedding(ctx context.Context, in gallery.ItemEmbeddingState) gallery.FinalState {
	out := gallery.FinalState{
		RunCommon: in.RunCommon,
		Items:     map[gallery.Marketplace]gallery.MarketplaceEmbeddedAndAnalyzedItems{},
	}

	for _, m := range marketplaceKeys(in.Items) {
		partition := in.Items[m]
		final := gallery.MarketplaceEmbeddedAndAnalyzedItems{
			IrrelevantAnalyzed: partition.Irrelevant,
			ErrorAnalyzed:      partition.Error,
		}

		var inputs []embedder.Input
		var eligible []gallery.AnalyzedItem
		for _, item := range partition.Relevant {
			imgBytes, err := embedder.SelectImage(ctx, p.deps.HTTPClient, item.Item.Thumbnails, item.BestFitImage)
			if err != nil {
				final.ErrorEmbedded = append(final.ErrorEmbedded, gallery.ItemError{ItemID: item.Item.ItemID, Reason: err.Error()})
				continue
			}
			inputs = append(inputs, embedder.Input{Description: item.ItemDescription, ImageBytes: imgBytes})
			eligible = append(eligible, item)
		}

		if len(inputs) > 0 {
			outputs, err := p.deps.Embedder.EmbedBatch(ctx, inputs)
			if err != nil {
				for _, item := range eligible {
					final.ErrorEmbedded = append(final.ErrorEmbedded, gallery.ItemError{ItemID: item.Item.ItemID, Reason: err.Error()})
				}
			} else {
				for i, item := range eligible {
					final.Embedded = append(final.Embedded, gallery.EmbeddedItem{
						Analyzed:              item,
						DescriptionEmbedding:   outputs[i].TextEmbedding,
						ImageEmbedding:         outputs[i].ImageEmbedding,
					})
				}
			}
		}

		out.Items[m] = final
	}
	return out
}

func errNoAdapter(m gallery.Marketplace) error {
	return &noAdapterError{marketplace: m}
}

type noAdapterError struct{ marketplace gallery.Marketplace }

func (e *noAdapterError) Error() string {
	return "no adapter registered for marketplace " + string(e.marketplace)
}
