package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mhbka/itemtracker/internal/gallery"
)

// SaveFinalState persists a completed run within a single serializable
// transaction: a new gallery_session row, one marketplace_items row and
// one embedding row per embedded item across every marketplace, and an
// advance of each successful marketplace's last_scraped column. Either
// all of it commits or none of it does.
func (s *Store) SaveFinalState(ctx context.Context, final gallery.FinalState) (gallery.SessionId, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return 0, fmt.Errorf("%w: begin tx: %v", gallery.ErrStorage, err)
	}
	defer tx.Rollback(ctx)

	usedCriteria, err := json.Marshal(final.EvaluationCriteria)
	if err != nil {
		return 0, err
	}

	var sessionID gallery.SessionId
	row := tx.QueryRow(ctx, `
		INSERT INTO gallery_sessions (gallery_id, created, used_evaluation_criteria)
		VALUES ($1, now(), $2) RETURNING session_id
	`, final.GalleryID, usedCriteria)
	if err := row.Scan(&sessionID); err != nil {
		return 0, fmt.Errorf("%w: insert session: %v", gallery.ErrStorage, err)
	}

	for marketplace, partitions := range final.Items {
		for _, embedded := range partitions.Embedded {
			item := embedded.Analyzed.Item

			var itemID int64
			itemRow := tx.QueryRow(ctx, `
				INSERT INTO marketplace_items
					(session_id, marketplace, marketplace_item_id, name, price, description, status,
					 seller_id, category, thumbnails, item_condition, item_created, item_updated)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
				RETURNING item_id
			`, sessionID, string(marketplace), item.ItemID, item.Name, item.Price, item.Description, item.Status,
				item.SellerID, item.Category, item.Thumbnails, item.ItemCondition, item.Created.Time(), item.Updated.Time())
			if err := itemRow.Scan(&itemID); err != nil {
				return 0, fmt.Errorf("%w: insert item: %v", gallery.ErrStorage, err)
			}

			answersJSON, err := json.Marshal(embedded.Analyzed.EvaluationAnswers)
			if err != nil {
				return 0, err
			}

			descEmb := make([]float64, len(embedded.DescriptionEmbedding))
			for i, v := range embedded.DescriptionEmbedding {
				descEmb[i] = float64(v)
			}
			imgEmb := make([]float64, len(embedded.ImageEmbedding))
			for i, v := range embedded.ImageEmbedding {
				imgEmb[i] = float64(v)
			}

			_, err = tx.Exec(ctx, `
				INSERT INTO embedded_marketplace_items
					(session_id, item_id, item_description, description_embedding, image_embedding, evaluation_answers)
				VALUES ($1,$2,$3,$4,$5,$6)
			`, sessionID, itemID, embedded.Analyzed.ItemDescription, descEmb, imgEmb, answersJSON)
			if err != nil {
				return 0, fmt.Errorf("%w: insert embedding: %v", gallery.ErrStorage, err)
			}
		}
	}

	for marketplace, updated := range final.MarketplaceUpdatedDatetimes {
		if marketplace != gallery.Mercari {
			continue // column exists only for marketplaces with a dedicated schema column
		}
		_, err := tx.Exec(ctx, `UPDATE galleries SET mercari_last_scraped_time=$2 WHERE gallery_id=$1`,
			final.GalleryID, updated.Time())
		if err != nil {
			return 0, fmt.Errorf("%w: update last_scraped: %v", gallery.ErrStorage, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%w: commit: %v", gallery.ErrStorage, err)
	}
	return sessionID, nil
}

// CachedItems looks up previously-stored MarketplaceItemData for ids,
// scoped to items updated no later than upTo (the item cache
// supplementary feature: Stage 2 skips re-scraping ids already cached).
// It returns the cached items found and the subset of ids still uncached.
func (s *Store) CachedItems(ctx context.Context, marketplace gallery.Marketplace, ids []gallery.ItemId, upTo gallery.UnixUtcDateTime) ([]gallery.MarketplaceItemData, []gallery.ItemId, error) {
	if len(ids) == 0 {
		return nil, nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (marketplace_item_id)
			marketplace_item_id, name, price, description, status, seller_id, category, thumbnails, item_condition, item_created, item_updated
		FROM marketplace_items
		WHERE marketplace=$1 AND marketplace_item_id = ANY($2) AND item_updated <= $3
		ORDER BY marketplace_item_id, item_updated DESC
	`, string(marketplace), ids, upTo.Time())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: cached items: %v", gallery.ErrStorage, err)
	}
	defer rows.Close()

	found := map[gallery.ItemId]gallery.MarketplaceItemData{}
	for rows.Next() {
		var item gallery.MarketplaceItemData
		var created, updated time.Time
		if err := rows.Scan(&item.ItemID, &item.Name, &item.Price, &item.Description, &item.Status,
			&item.SellerID, &item.Category, &item.Thumbnails, &item.ItemCondition, &created, &updated); err != nil {
			return nil, nil, err
		}
		item.Created = gallery.FromTime(created)
		item.Updated = gallery.FromTime(updated)
		found[item.ItemID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var cached []gallery.MarketplaceItemData
	var uncached []gallery.ItemId
	for _, id := range ids {
		if item, ok := found[id]; ok {
			cached = append(cached, item)
		} else {
			uncached = append(uncached, id)
		}
	}
	return cached, uncached, nil
}
