// Package sellergraph is a supplementary store alongside the relational
// Session Store: it upserts a seller/item/category subgraph into Neo4j so
// future "other items from this seller" or "items in this category"
// queries have a graph to traverse. Failures here are logged by the
// caller and never fail the pipeline run — they are best-effort
// enrichment, not part of the Session Store's transaction.
package sellergraph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/mhbka/itemtracker/pkg/repo"
)

// Graph is the sole owner of the Neo4j driver used for seller/category
// enrichment.
type Graph struct {
	driver neo4j.DriverWithContext
	items  *repo.Neo4jRepo[RelatedItem, string]
}

// RelatedItem is one item node reached by walking the seller/category
// subgraph from a given item, used to answer "other items from this
// seller" and "other items in this category" lookups.
type RelatedItem struct {
	ItemID      string `json:"item_id"`
	Marketplace string `json:"marketplace"`
	Name        string `json:"name"`
	GalleryID   string `json:"gallery_id"`
}

func relatedItemFromRecord(rec *neo4j.Record) (RelatedItem, error) {
	node, ok := rec.Get("n")
	if !ok {
		return RelatedItem{}, fmt.Errorf("sellergraph: record missing node")
	}
	n, ok := node.(dbtype.Node)
	if !ok {
		return RelatedItem{}, fmt.Errorf("sellergraph: unexpected node type %T", node)
	}
	props := n.Props
	get := func(k string) string {
		if v, ok := props[k].(string); ok {
			return v
		}
		return ""
	}
	return RelatedItem{
		ItemID:      get("id"),
		Marketplace: get("marketplace"),
		Name:        get("name"),
		GalleryID:   get("gallery_id"),
	}, nil
}

func relatedItemToMap(i RelatedItem) map[string]any {
	return map[string]any{
		"id":          i.ItemID,
		"marketplace": i.Marketplace,
		"name":        i.Name,
		"gallery_id":  i.GalleryID,
	}
}

// New wraps an already-constructed Neo4j driver. The embedded Neo4jRepo
// backs single-item lookups by id; the multi-hop seller/category queries
// below use the driver directly since they fall outside generic CRUD.
func New(driver neo4j.DriverWithContext) *Graph {
	return &Graph{
		driver: driver,
		items:  repo.NewNeo4jRepo[RelatedItem, string](driver, "Item", relatedItemToMap, relatedItemFromRecord),
	}
}

// ItemByID looks up a single item node by its marketplace item id.
func (g *Graph) ItemByID(ctx context.Context, itemID string) (RelatedItem, error) {
	return g.items.Get(ctx, itemID)
}

// Listing is one embedded item's graph-relevant attributes.
type Listing struct {
	GalleryID   string
	SellerID    string
	ItemID      string
	Category    string
	Marketplace string
	Name        string
}

// UpsertListing merges (seller)-[:LISTED]->(item)-[:IN_CATEGORY]->(category)
// for one embedded item.
func (g *Graph) UpsertListing(ctx context.Context, l Listing) error {
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	_, err := sess.Run(ctx, `
		MERGE (s:Seller {id: $sellerId, marketplace: $marketplace})
		MERGE (i:Item {id: $itemId, marketplace: $marketplace})
		SET i.name = $name, i.gallery_id = $galleryId
		MERGE (c:Category {name: $category})
		MERGE (s)-[:LISTED]->(i)
		MERGE (i)-[:IN_CATEGORY]->(c)
	`, map[string]any{
		"sellerId":    l.SellerID,
		"itemId":      l.ItemID,
		"marketplace": l.Marketplace,
		"name":        l.Name,
		"galleryId":   l.GalleryID,
		"category":    l.Category,
	})
	if err != nil {
		return fmt.Errorf("sellergraph: upsert listing: %w", err)
	}
	return nil
}

// RelatedBySeller returns other items listed by the same seller as itemID,
// excluding itemID itself.
func (g *Graph) RelatedBySeller(ctx context.Context, itemID, marketplace string, limit int) ([]RelatedItem, error) {
	return g.walkRelated(ctx, `
		MATCH (:Item {id: $itemId, marketplace: $marketplace})<-[:LISTED]-(s:Seller)-[:LISTED]->(n:Item)
		WHERE n.id <> $itemId
		RETURN DISTINCT n LIMIT $limit
	`, itemID, marketplace, limit)
}

// RelatedByCategory returns other items in the same category as itemID,
// excluding itemID itself.
func (g *Graph) RelatedByCategory(ctx context.Context, itemID, marketplace string, limit int) ([]RelatedItem, error) {
	return g.walkRelated(ctx, `
		MATCH (:Item {id: $itemId, marketplace: $marketplace})-[:IN_CATEGORY]->(c:Category)<-[:IN_CATEGORY]-(n:Item)
		WHERE n.id <> $itemId
		RETURN DISTINCT n LIMIT $limit
	`, itemID, marketplace, limit)
}

func (g *Graph) walkRelated(ctx context.Context, cypher, itemID, marketplace string, limit int) ([]RelatedItem, error) {
	if limit <= 0 {
		limit = 20
	}
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, cypher, map[string]any{
		"itemId":      itemID,
		"marketplace": marketplace,
		"limit":       limit,
	})
	if err != nil {
		return nil, fmt.Errorf("sellergraph: related query: %w", err)
	}

	var out []RelatedItem
	for res.Next(ctx) {
		item, err := relatedItemFromRecord(res.Record())
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// UpsertListings merges a batch of listings, continuing past individual
// failures and returning the first error encountered (if any) after all
// have been attempted — enrichment graph writes are best-effort.
func (g *Graph) UpsertListings(ctx context.Context, listings []Listing) error {
	var firstErr error
	for _, l := range listings {
		if err := g.UpsertListing(ctx, l); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
