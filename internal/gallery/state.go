package gallery

// GallerySchedulerState is the scheduler's view of a gallery: mutated only
// via Update, destroyed on Delete.
type GallerySchedulerState struct {
	GalleryID                         GalleryId                        `json:"gallery_id"`
	ScrapingPeriodicity                ValidCronString                   `json:"scraping_periodicity"`
	SearchCriteria                     SearchCriteria                    `json:"search_criteria"`
	MarketplacePreviousScrapedDatetimes map[Marketplace]UnixUtcDateTime `json:"marketplace_previous_scraped_datetimes"`
	EvaluationCriteria                  EvaluationCriteria                `json:"evaluation_criteria"`
	IsActive                            bool                              `json:"is_active"`
}

// Clone returns a deep-enough copy safe to hand to a concurrent reader: the
// map is copied so a later Update to the original cannot mutate a snapshot
// already read by an in-flight tick.
func (s GallerySchedulerState) Clone() GallerySchedulerState {
	out := s
	out.MarketplacePreviousScrapedDatetimes = make(map[Marketplace]UnixUtcDateTime, len(s.MarketplacePreviousScrapedDatetimes))
	for k, v := range s.MarketplacePreviousScrapedDatetimes {
		out.MarketplacePreviousScrapedDatetimes[k] = v
	}
	return out
}

// FailedMarketplaceReason pairs a marketplace with why it failed this run.
type FailedMarketplaceReason struct {
	Marketplace Marketplace `json:"marketplace"`
	Reason      string      `json:"reason"`
}

// RunCommon is embedded in every pipeline state variant: fields every stage
// boundary carries regardless of how far the run has progressed.
type RunCommon struct {
	GalleryID                   GalleryId                        `json:"gallery_id"`
	MarketplaceUpdatedDatetimes map[Marketplace]UnixUtcDateTime   `json:"marketplace_updated_datetimes"`
	FailedMarketplaceReasons    []FailedMarketplaceReason         `json:"failed_marketplace_reasons"`
	EvaluationCriteria          EvaluationCriteria                `json:"evaluation_criteria"`
}

// NewRunCommon seeds a fresh RunCommon at the start of a run.
func NewRunCommon(id GalleryId, criteria EvaluationCriteria) RunCommon {
	return RunCommon{
		GalleryID:                   id,
		MarketplaceUpdatedDatetimes: map[Marketplace]UnixUtcDateTime{},
		EvaluationCriteria:          criteria,
	}
}

// SearchScrapingState is the pipeline's entry state, built by the scheduler
// from a gallery's current snapshot at tick time.
type SearchScrapingState struct {
	RunCommon
	SearchCriteria                      SearchCriteria                    `json:"search_criteria"`
	MarketplacePreviousScrapedDatetimes map[Marketplace]UnixUtcDateTime `json:"marketplace_previous_scraped_datetimes"`
}

// NewSearchScrapingState builds the initial pipeline state from a gallery
// scheduler snapshot.
func NewSearchScrapingState(g GallerySchedulerState) SearchScrapingState {
	return SearchScrapingState{
		RunCommon:                           NewRunCommon(g.GalleryID, g.EvaluationCriteria),
		SearchCriteria:                      g.SearchCriteria,
		MarketplacePreviousScrapedDatetimes: g.MarketplacePreviousScrapedDatetimes,
	}
}

// ItemScrapingState is produced by Stage 1: per-marketplace item ids for
// marketplaces whose search-scrape succeeded.
type ItemScrapingState struct {
	RunCommon
	ItemIDs map[Marketplace][]ItemId `json:"item_ids"`
}

// ItemAnalysisState is produced by Stage 2: per-marketplace scraped items.
type ItemAnalysisState struct {
	RunCommon
	Items map[Marketplace][]MarketplaceItemData `json:"items"`
}

// ItemEmbeddingState is produced by Stage 3: per-marketplace analysis
// partitions ready for embedding.
type ItemEmbeddingState struct {
	RunCommon
	Items map[Marketplace]MarketplaceAnalyzedItems `json:"items"`
}

// FinalState is produced by Stage 4, consumed by Stage 5 (Session Store).
type FinalState struct {
	RunCommon
	Items map[Marketplace]MarketplaceEmbeddedAndAnalyzedItems `json:"items"`
}
