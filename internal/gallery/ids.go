// Package gallery defines the core domain types shared by the scheduler,
// pipeline, and store: gallery identity, scheduler state, and the
// discriminated pipeline states that flow stage to stage.
package gallery

import "github.com/google/uuid"

// GalleryId identifies a gallery across the scheduler, pipeline, and store.
type GalleryId = uuid.UUID

// ItemId is a marketplace-scoped opaque item identifier.
type ItemId = string

// SessionId is the monotonic id the store assigns to a completed run.
type SessionId = int64

// Marketplace is a closed, extensible enumeration of listing sources.
type Marketplace string

const (
	Mercari Marketplace = "mercari"
)

// ValidMarketplaces is the set of marketplace tags the adapter registry knows.
var ValidMarketplaces = map[Marketplace]bool{
	Mercari: true,
}
