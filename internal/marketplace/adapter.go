// Package marketplace defines the uniform per-marketplace scraping
// interface the pipeline's search-scrape and item-scrape stages dispatch
// through, keyed by gallery.Marketplace.
package marketplace

import (
	"context"

	"github.com/mhbka/itemtracker/internal/gallery"
	"github.com/mhbka/itemtracker/pkg/fn"
)

// Adapter is the capability set a marketplace integration implements.
// Errors from SearchScrape and the per-item errors from ItemScrape are
// contained at marketplace/item granularity by the pipeline; the adapter
// itself need not retry.
type Adapter interface {
	// SearchScrape pages through listing search results for criteria,
	// stopping once a page's newest item does not exceed since, or the
	// source reports no further page. A zero since means fetch all
	// available. Returns newest-first.
	SearchScrape(ctx context.Context, criteria gallery.SearchCriteria, since gallery.UnixUtcDateTime) fn.Result[[]gallery.ItemId]

	// ItemScrape fetches item details for each id, one request per id.
	// The returned slice always has the same length as ids, except when
	// request-signing key generation itself fails, in which case a
	// single error entry is returned.
	ItemScrape(ctx context.Context, ids []gallery.ItemId) []fn.Result[gallery.MarketplaceItemData]
}

// Registry dispatches by gallery.Marketplace tag.
type Registry map[gallery.Marketplace]Adapter

// Get returns the adapter registered for m, or false if none is.
func (r Registry) Get(m gallery.Marketplace) (Adapter, bool) {
	a, ok := r[m]
	return a, ok
}
