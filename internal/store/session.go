package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mhbka/itemtracker/internal/gallery"
)

// SessionItem is one embedded item belonging to a session, as read back
// for the GET /s/{session_id} endpoint.
type SessionItem struct {
	Marketplace          gallery.Marketplace `json:"marketplace"`
	ItemID               string              `json:"item_id"`
	Name                 string              `json:"name"`
	Price                float64             `json:"price"`
	ItemDescription      string              `json:"item_description"`
	DescriptionEmbedding []float64           `json:"description_embedding"`
	ImageEmbedding       []float64           `json:"image_embedding"`
}

// Session is a completed pipeline run, as read back for the admin API.
type Session struct {
	SessionID gallery.SessionId       `json:"session_id"`
	GalleryID gallery.GalleryId       `json:"gallery_id"`
	Created   gallery.UnixUtcDateTime `json:"created"`
	Items     []SessionItem           `json:"items"`
}

// GetSession reads a session and its embedded items, alongside the owner
// id of its parent gallery so the caller can authorize the request.
func (s *Store) GetSession(ctx context.Context, id gallery.SessionId) (Session, string, error) {
	var (
		galleryID   gallery.GalleryId
		ownerID     string
		createdTime time.Time
	)
	row := s.pool.QueryRow(ctx, `
		SELECT gs.gallery_id, gs.created, g.owner_id
		FROM gallery_sessions gs
		JOIN galleries g ON g.gallery_id = gs.gallery_id
		WHERE gs.session_id = $1
	`, id)
	if err := row.Scan(&galleryID, &createdTime, &ownerID); err != nil {
		if err == pgx.ErrNoRows {
			return Session{}, "", gallery.ErrNotFound
		}
		return Session{}, "", fmt.Errorf("%w: get session: %v", gallery.ErrStorage, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT mi.marketplace, mi.marketplace_item_id, mi.name, mi.price,
			emi.item_description, emi.description_embedding, emi.image_embedding
		FROM embedded_marketplace_items emi
		JOIN marketplace_items mi ON mi.item_id = emi.item_id
		WHERE emi.session_id = $1
	`, id)
	if err != nil {
		return Session{}, "", fmt.Errorf("%w: get session items: %v", gallery.ErrStorage, err)
	}
	defer rows.Close()

	var items []SessionItem
	for rows.Next() {
		var it SessionItem
		if err := rows.Scan(&it.Marketplace, &it.ItemID, &it.Name, &it.Price,
			&it.ItemDescription, &it.DescriptionEmbedding, &it.ImageEmbedding); err != nil {
			return Session{}, "", err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return Session{}, "", err
	}

	return Session{
		SessionID: id,
		GalleryID: galleryID,
		Created:   gallery.FromTime(createdTime),
		Items:     items,
	}, ownerID, nil
}
