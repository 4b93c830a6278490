// Package store implements the Session Store (C4): transactional
// persistence of a finished pipeline run, and the gallery CRUD surface the
// HTTP admin API and the scheduler's startup load read from.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mhbka/itemtracker/internal/gallery"
)

// Store wraps a pooled Postgres connection implementing the Session
// Store's transactional write and the gallery CRUD operations.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL and applies the idempotent schema.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

// CreateGallery inserts a new gallery row owned by ownerID.
func (s *Store) CreateGallery(ctx context.Context, ownerID string, g gallery.GallerySchedulerState) error {
	searchJSON, err := json.Marshal(g.SearchCriteria)
	if err != nil {
		return err
	}
	critJSON, err := json.Marshal(g.EvaluationCriteria)
	if err != nil {
		return err
	}
	var lastScraped *time.Time
	if t, ok := g.MarketplacePreviousScrapedDatetimes[gallery.Mercari]; ok && !t.IsZero() {
		tt := t.Time()
		lastScraped = &tt
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO galleries (gallery_id, owner_id, scraping_periodicity, search_criteria, evaluation_criteria, is_active, mercari_last_scraped_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, g.GalleryID, ownerID, g.ScrapingPeriodicity.String(), searchJSON, critJSON, g.IsActive, lastScraped)
	if err != nil {
		return fmt.Errorf("%w: create gallery: %v", gallery.ErrStorage, err)
	}
	return nil
}

// GetGallery reads a gallery by id, returning its owner alongside.
func (s *Store) GetGallery(ctx context.Context, id gallery.GalleryId) (gallery.GallerySchedulerState, string, error) {
	var (
		ownerID                string
		cronText               string
		searchJSON, critJSON   []byte
		isActive               bool
		mercariLastScraped     *time.Time
	)
	row := s.pool.QueryRow(ctx, `
		SELECT owner_id, scraping_periodicity, search_criteria, evaluation_criteria, is_active, mercari_last_scraped_time
		FROM galleries WHERE gallery_id = $1
	`, id)
	if err := row.Scan(&ownerID, &cronText, &searchJSON, &critJSON, &isActive, &mercariLastScraped); err != nil {
		if err == pgx.ErrNoRows {
			return gallery.GallerySchedulerState{}, "", gallery.ErrNotFound
		}
		return gallery.GallerySchedulerState{}, "", fmt.Errorf("%w: get gallery: %v", gallery.ErrStorage, err)
	}

	g, err := rowToGallery(id, cronText, searchJSON, critJSON, isActive, mercariLastScraped)
	if err != nil {
		return gallery.GallerySchedulerState{}, "", err
	}
	return g, ownerID, nil
}

// UpdateGallery replaces a gallery's mutable fields.
func (s *Store) UpdateGallery(ctx context.Context, g gallery.GallerySchedulerState) error {
	searchJSON, err := json.Marshal(g.SearchCriteria)
	if err != nil {
		return err
	}
	critJSON, err := json.Marshal(g.EvaluationCriteria)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE galleries SET scraping_periodicity=$2, search_criteria=$3, evaluation_criteria=$4, is_active=$5
		WHERE gallery_id=$1
	`, g.GalleryID, g.ScrapingPeriodicity.String(), searchJSON, critJSON, g.IsActive)
	if err != nil {
		return fmt.Errorf("%w: update gallery: %v", gallery.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return gallery.ErrNotFound
	}
	return nil
}

// DeleteGallery removes a gallery and cascades to its sessions.
func (s *Store) DeleteGallery(ctx context.Context, id gallery.GalleryId) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM galleries WHERE gallery_id=$1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete gallery: %v", gallery.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return gallery.ErrNotFound
	}
	return nil
}

// LoadAllGalleries returns every gallery, for scheduler startup Add-all.
func (s *Store) LoadAllGalleries(ctx context.Context) ([]gallery.GallerySchedulerState, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT gallery_id, scraping_periodicity, search_criteria, evaluation_criteria, is_active, mercari_last_scraped_time
		FROM galleries
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: load galleries: %v", gallery.ErrStorage, err)
	}
	defer rows.Close()

	var out []gallery.GallerySchedulerState
	for rows.Next() {
		var (
			id                   gallery.GalleryId
			cronText             string
			searchJSON, critJSON []byte
			isActive             bool
			mercariLastScraped   *time.Time
		)
		if err := rows.Scan(&id, &cronText, &searchJSON, &critJSON, &isActive, &mercariLastScraped); err != nil {
			return nil, err
		}
		g, err := rowToGallery(id, cronText, searchJSON, critJSON, isActive, mercariLastScraped)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func rowToGallery(id gallery.GalleryId, cronText string, searchJSON, critJSON []byte, isActive bool, mercariLastScraped *time.Time) (gallery.GallerySchedulerState, error) {
	cronSched, err := gallery.ParseCronString(cronText)
	if err != nil {
		return gallery.GallerySchedulerState{}, err
	}
	var search gallery.SearchCriteria
	if err := json.Unmarshal(searchJSON, &search); err != nil {
		return gallery.GallerySchedulerState{}, err
	}
	var crit gallery.EvaluationCriteria
	if err := json.Unmarshal(critJSON, &crit); err != nil {
		return gallery.GallerySchedulerState{}, err
	}

	prevScraped := map[gallery.Marketplace]gallery.UnixUtcDateTime{}
	if mercariLastScraped != nil {
		prevScraped[gallery.Mercari] = gallery.FromTime(*mercariLastScraped)
	}

	return gallery.GallerySchedulerState{
		GalleryID:                          id,
		ScrapingPeriodicity:                cronSched,
		SearchCriteria:                     search,
		MarketplacePreviousScrapedDatetimes: prevScraped,
		EvaluationCriteria:                  crit,
		IsActive:                           isActive,
	}, nil
}

// GalleryStats is the aggregated view returned by the stats endpoints.
type GalleryStats struct {
	GalleryID           gallery.GalleryId                       `json:"gallery_id"`
	TotalSessions       int64                                    `json:"total_sessions"`
	TotalEmbeddedItems  int64                                    `json:"total_embedded_items"`
	LatestScrape        map[gallery.Marketplace]gallery.UnixUtcDateTime `json:"latest_scrape"`
}

// GalleryStats aggregates session/item counts and last-scrape times.
func (s *Store) GalleryStats(ctx context.Context, id gallery.GalleryId) (GalleryStats, error) {
	var sessions, items int64
	var mercariLastScraped *time.Time

	row := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM gallery_sessions WHERE gallery_id=$1),
			(SELECT count(*) FROM embedded_marketplace_items emi
				JOIN gallery_sessions gs ON gs.session_id = emi.session_id
				WHERE gs.gallery_id=$1),
			(SELECT mercari_last_scraped_time FROM galleries WHERE gallery_id=$1)
	`, id)
	if err := row.Scan(&sessions, &items, &mercariLastScraped); err != nil {
		if err == pgx.ErrNoRows {
			return GalleryStats{}, gallery.ErrNotFound
		}
		return GalleryStats{}, fmt.Errorf("%w: gallery stats: %v", gallery.ErrStorage, err)
	}

	latest := map[gallery.Marketplace]gallery.UnixUtcDateTime{}
	if mercariLastScraped != nil {
		latest[gallery.Mercari] = gallery.FromTime(*mercariLastScraped)
	}

	return GalleryStats{
		GalleryID:          id,
		TotalSessions:      sessions,
		TotalEmbeddedItems: items,
		LatestScrape:       latest,
	}, nil
}

// ListGalleryIDs returns every gallery id owned by ownerID, for the
// gallery_stats/all endpoint.
func (s *Store) ListGalleryIDs(ctx context.Context, ownerID string) ([]gallery.GalleryId, error) {
	rows, err := s.pool.Query(ctx, `SELECT gallery_id FROM galleries WHERE owner_id=$1`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: list galleries: %v", gallery.ErrStorage, err)
	}
	defer rows.Close()

	var ids []gallery.GalleryId
	for rows.Next() {
		var id gallery.GalleryId
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
