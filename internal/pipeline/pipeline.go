// Package pipeline implements the Pipeline Instance (C5): the stateless,
// cloneable orchestrator that runs the five stages — search-scrape, item-
// scrape, item-analysis, item-embedding, storage — in strict order,
// narrowing and partitioning the typed state at each boundary.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mhbka/itemtracker/internal/analyzer"
	"github.com/mhbka/itemtracker/internal/embedder"
	"github.com/mhbka/itemtracker/internal/gallery"
	"github.com/mhbka/itemtracker/internal/marketplace"
	"github.com/mhbka/itemtracker/internal/sellergraph"
	"github.com/mhbka/itemtracker/internal/vectorindex"
	"github.com/mhbka/itemtracker/pkg/metrics"
)

// SessionStore is the narrow slice of the Session Store a pipeline run
// needs: the Stage 2 item cache lookup and the Stage 5 transactional
// write. *store.Store satisfies this; tests substitute a fake.
type SessionStore interface {
	CachedItems(ctx context.Context, marketplace gallery.Marketplace, ids []gallery.ItemId, upTo gallery.UnixUtcDateTime) ([]gallery.MarketplaceItemData, []gallery.ItemId, error)
	SaveFinalState(ctx context.Context, final gallery.FinalState) (gallery.SessionId, error)
}

// Notifier is the Pipeline Instance's sole reference back toward the
// Scheduler: a bounded channel send, not a direct back-pointer, closing
// the ownership loop without creating a cycle.
type Notifier interface {
	NotifyCompletion(ctx context.Context, id gallery.GalleryId) error
}

// Deps holds every external collaborator a run needs.
type Deps struct {
	Adapters    marketplace.Registry
	Analyzer    *analyzer.Analyzer
	Embedder    *embedder.Client
	Store       SessionStore
	SellerGraph *sellergraph.Graph // optional; nil disables graph enrichment
	VectorIndex *vectorindex.Index // optional; nil disables vector indexing
	Notifier    Notifier
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// Pipeline runs the five stages for one gallery tick. It carries no
// mutable state of its own — every field in Deps is safe to share across
// concurrently-running galleries.
type Pipeline struct {
	deps Deps
}

// New builds a Pipeline instance from its dependencies.
func New(deps Deps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{}
	}
	return &Pipeline{deps: deps}
}

// Run executes Stage 1 through Stage 5 for start, returning the new
// SessionId on success. A Stage 2 TotalScrapeFailure aborts the run with
// no session written and no last_scraped advance.
func (p *Pipeline) Run(ctx context.Context, start gallery.SearchScrapingState) (gallery.SessionId, error) {
	log := p.deps.Logger.With("gallery_id", start.GalleryID)

	itemScraping := p.searchScrape(ctx, start)
	log.Info("pipeline.stage1.done", "marketplaces_ok", len(itemScraping.ItemIDs), "marketplaces_failed", len(itemScraping.FailedMarketplaceReasons))

	itemAnalysisInput, err := p.itemScrape(ctx, itemScraping)
	if err != nil {
		log.Warn("pipeline.stage2.failed", "error", err)
		metrics.PipelineRunsTotal.WithLabelValues("total_scrape_failure").Inc()
		return 0, err
	}
	log.Info("pipeline.stage2.done")

	embeddingInput := p.itemAnalysis(ctx, itemAnalysisInput)
	log.Info("pipeline.stage3.done")

	final := p.itemEmbedding(ctx, embeddingInput)
	log.Info("pipeline.stage4.done")

	sessionID, err := p.deps.Store.SaveFinalState(ctx, final)
	if err != nil {
		log.Error("pipeline.stage5.failed", "error", err)
		metrics.PipelineRunsTotal.WithLabelValues("storage_error").Inc()
		return 0, err
	}
	log.Info("pipeline.stage5.done", "session_id", sessionID)

	p.enrichSupplementaryStores(ctx, start.GalleryID, sessionID, final, log)

	if p.deps.Notifier != nil {
		if err := p.deps.Notifier.NotifyCompletion(ctx, start.GalleryID); err != nil {
			log.Error("pipeline.notify_completion.failed", "error", fmt.Errorf("%w: %v", gallery.ErrMessageFailure, err))
			metrics.PipelineRunsTotal.WithLabelValues("message_failure").Inc()
			return sessionID, fmt.Errorf("%w: %v", gallery.ErrMessageFailure, err)
		}
	}

	metrics.PipelineRunsTotal.WithLabelValues("ok").Inc()
	return sessionID, nil
}

// enrichSupplementaryStores writes the seller/category graph and the
// vector index. Both are best-effort: failures are logged, never
// propagated, since they are not part of the Session Store's transaction.
func (p *Pipeline) enrichSupplementaryStores(ctx context.Context, galleryID gallery.GalleryId, sessionID gallery.SessionId, final gallery.FinalState, log *slog.Logger) {
	for marketplaceName, partition := range final.Items {
		if p.deps.SellerGraph != nil {
			listings := make([]sellergraph.Listing, len(partition.Embedded))
			for i, e := range partition.Embedded {
				listings[i] = sellergraph.Listing{
					GalleryID:   galleryID.String(),
					SellerID:    e.Analyzed.Item.SellerID,
					ItemID:      e.Analyzed.Item.ItemID,
					Category:    e.Analyzed.Item.Category,
					Marketplace: string(marketplaceName),
					Name:        e.Analyzed.Item.Name,
				}
			}
			if err := p.deps.SellerGraph.UpsertListings(ctx, listings); err != nil {
				log.Warn("pipeline.sellergraph", "error", err)
			}
		}

		if p.deps.VectorIndex != nil {
			records := make([]vectorindex.Record, len(partition.Embedded))
			for i, e := range partition.Embedded {
				records[i] = vectorindex.Record{
					GalleryID:            galleryID.String(),
					SessionID:            sessionID,
					Marketplace:          string(marketplaceName),
					ItemID:               e.Analyzed.Item.ItemID,
					DescriptionEmbedding: e.DescriptionEmbedding,
					ImageEmbedding:       e.ImageEmbedding,
				}
			}
			if err := p.deps.VectorIndex.UpsertVectors(ctx, records); err != nil {
				log.Warn("pipeline.vectorindex", "error", err)
			}
		}
	}
}
