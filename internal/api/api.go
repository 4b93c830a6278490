// Package api implements the admin HTTP surface (spec §6): gallery CRUD,
// gallery stats, and session reads, each authorized against the bearer
// token's owner id.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/mhbka/itemtracker/internal/auth"
	"github.com/mhbka/itemtracker/internal/gallery"
	"github.com/mhbka/itemtracker/internal/sellergraph"
	"github.com/mhbka/itemtracker/internal/store"
	"github.com/mhbka/itemtracker/pkg/mid"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// GalleryStore is the slice of the Session Store this surface needs.
// *store.Store satisfies it; tests substitute a fake.
type GalleryStore interface {
	CreateGallery(ctx context.Context, ownerID string, g gallery.GallerySchedulerState) error
	GetGallery(ctx context.Context, id gallery.GalleryId) (gallery.GallerySchedulerState, string, error)
	UpdateGallery(ctx context.Context, g gallery.GallerySchedulerState) error
	DeleteGallery(ctx context.Context, id gallery.GalleryId) error
	GalleryStats(ctx context.Context, id gallery.GalleryId) (store.GalleryStats, error)
	ListGalleryIDs(ctx context.Context, ownerID string) ([]gallery.GalleryId, error)
	GetSession(ctx context.Context, id gallery.SessionId) (store.Session, string, error)
}

// GallerySchedulerCtl is the Scheduler surface this API needs to keep the
// live per-gallery tasks in sync with store writes. *scheduler.Scheduler
// satisfies it; tests substitute a fake.
type GallerySchedulerCtl interface {
	Add(ctx context.Context, state gallery.GallerySchedulerState) error
	Update(ctx context.Context, state gallery.GallerySchedulerState) error
	Delete(ctx context.Context, id gallery.GalleryId) error
}

// RelatedItemsGraph is the sellergraph surface the related-items endpoint
// needs. *sellergraph.Graph satisfies it; tests substitute a fake.
type RelatedItemsGraph interface {
	RelatedBySeller(ctx context.Context, itemID, marketplace string, limit int) ([]sellergraph.RelatedItem, error)
	RelatedByCategory(ctx context.Context, itemID, marketplace string, limit int) ([]sellergraph.RelatedItem, error)
}

// Server holds the collaborators every handler needs.
type Server struct {
	store       GalleryStore
	scheduler   GallerySchedulerCtl
	sellerGraph RelatedItemsGraph
	logger      *slog.Logger
}

// New builds a Server. sg may be nil — the related-items endpoints then
// return 503, since the graph is best-effort supplementary storage.
func New(st GalleryStore, sched GallerySchedulerCtl, sg RelatedItemsGraph, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: st, scheduler: sched, sellerGraph: sg, logger: logger}
}

// Routes registers every endpoint on mux, wrapped with verifier-backed
// auth middleware.
func (s *Server) Routes(mux *http.ServeMux, verifier *auth.Verifier) {
	authMW := mid.Auth(verifier, func(ownerID string, r *http.Request) *http.Request {
		return r.WithContext(auth.WithOwnerID(r.Context(), ownerID))
	})

	mux.Handle("POST /g/gallery", authMW(http.HandlerFunc(s.createGallery)))
	mux.Handle("GET /g/gallery/{id}", authMW(http.HandlerFunc(s.getGallery)))
	mux.Handle("PATCH /g/gallery/{id}", authMW(http.HandlerFunc(s.updateGallery)))
	mux.Handle("DELETE /g/gallery/{id}", authMW(http.HandlerFunc(s.deleteGallery)))
	mux.Handle("GET /g/gallery_stats/{id}", authMW(http.HandlerFunc(s.galleryStats)))
	mux.Handle("GET /g/gallery_stats/all", authMW(http.HandlerFunc(s.allGalleryStats)))
	mux.Handle("GET /s/{session_id}", authMW(http.HandlerFunc(s.getSession)))
	mux.Handle("GET /g/related_items/{marketplace}/{item_id}", authMW(http.HandlerFunc(s.relatedItems)))
}

// NewGallery is the POST /g/gallery request body.
type NewGallery struct {
	ScrapingPeriodicity string                    `json:"scraping_periodicity" validate:"required"`
	SearchCriteria      gallery.SearchCriteria    `json:"search_criteria" validate:"required"`
	EvaluationCriteria  gallery.EvaluationCriteria `json:"evaluation_criteria" validate:"required"`
	IsActive            bool                      `json:"is_active"`
}

func (s *Server) createGallery(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := auth.OwnerID(r.Context())

	var body NewGallery
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cron, err := gallery.ParseCronString(body.ScrapingPeriodicity)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	g := gallery.GallerySchedulerState{
		GalleryID:                           uuid.New(),
		ScrapingPeriodicity:                 cron,
		SearchCriteria:                      body.SearchCriteria,
		MarketplacePreviousScrapedDatetimes: map[gallery.Marketplace]gallery.UnixUtcDateTime{},
		EvaluationCriteria:                  body.EvaluationCriteria,
		IsActive:                            body.IsActive,
	}

	if err := s.store.CreateGallery(r.Context(), ownerID, g); err != nil {
		s.handleStoreErr(w, err)
		return
	}
	if err := s.scheduler.Add(r.Context(), g); err != nil {
		s.logger.Error("api.create_gallery.scheduler_add_failed", "error", err)
	}

	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) getGallery(w http.ResponseWriter, r *http.Request) {
	id, ok := parseGalleryID(w, r)
	if !ok {
		return
	}
	ownerID, _ := auth.OwnerID(r.Context())

	g, owner, err := s.store.GetGallery(r.Context(), id)
	if err != nil {
		s.handleStoreErr(w, err)
		return
	}
	if owner != ownerID {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// GalleryUpdate is the PATCH /g/gallery/{id} request body.
type GalleryUpdate struct {
	ScrapingPeriodicity string                     `json:"scraping_periodicity" validate:"required"`
	SearchCriteria      gallery.SearchCriteria     `json:"search_criteria" validate:"required"`
	EvaluationCriteria  gallery.EvaluationCriteria `json:"evaluation_criteria" validate:"required"`
	IsActive            bool                       `json:"is_active"`
}

func (s *Server) updateGallery(w http.ResponseWriter, r *http.Request) {
	id, ok := parseGalleryID(w, r)
	if !ok {
		return
	}
	ownerID, _ := auth.OwnerID(r.Context())

	existing, owner, err := s.store.GetGallery(r.Context(), id)
	if err != nil {
		s.handleStoreErr(w, err)
		return
	}
	if owner != ownerID {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	var body GalleryUpdate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cron, err := gallery.ParseCronString(body.ScrapingPeriodicity)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated := existing
	updated.ScrapingPeriodicity = cron
	updated.SearchCriteria = body.SearchCriteria
	updated.EvaluationCriteria = body.EvaluationCriteria
	updated.IsActive = body.IsActive

	if err := s.store.UpdateGallery(r.Context(), updated); err != nil {
		s.handleStoreErr(w, err)
		return
	}
	if err := s.scheduler.Update(r.Context(), updated); err != nil && !errors.Is(err, gallery.ErrNotFound) {
		s.logger.Error("api.update_gallery.scheduler_update_failed", "error", err)
	}

	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteGallery(w http.ResponseWriter, r *http.Request) {
	id, ok := parseGalleryID(w, r)
	if !ok {
		return
	}
	ownerID, _ := auth.OwnerID(r.Context())

	_, owner, err := s.store.GetGallery(r.Context(), id)
	if err != nil {
		s.handleStoreErr(w, err)
		return
	}
	if owner != ownerID {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if err := s.store.DeleteGallery(r.Context(), id); err != nil {
		s.handleStoreErr(w, err)
		return
	}
	if err := s.scheduler.Delete(r.Context(), id); err != nil && !errors.Is(err, gallery.ErrNotFound) {
		s.logger.Error("api.delete_gallery.scheduler_delete_failed", "error", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) galleryStats(w http.ResponseWriter, r *http.Request) {
	id, ok := parseGalleryID(w, r)
	if !ok {
		return
	}
	ownerID, _ := auth.OwnerID(r.Context())

	_, owner, err := s.store.GetGallery(r.Context(), id)
	if err != nil {
		s.handleStoreErr(w, err)
		return
	}
	if owner != ownerID {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	stats, err := s.store.GalleryStats(r.Context(), id)
	if err != nil {
		s.handleStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) allGalleryStats(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := auth.OwnerID(r.Context())

	ids, err := s.store.ListGalleryIDs(r.Context(), ownerID)
	if err != nil {
		s.handleStoreErr(w, err)
		return
	}

	out := make([]store.GalleryStats, 0, len(ids))
	for _, id := range ids {
		stats, err := s.store.GalleryStats(r.Context(), id)
		if err != nil {
			s.logger.Error("api.all_gallery_stats.lookup_failed", "gallery_id", id, "error", err)
			continue
		}
		out = append(out, stats)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("session_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	ownerID, _ := auth.OwnerID(r.Context())

	sess, owner, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		s.handleStoreErr(w, err)
		return
	}
	if owner != ownerID {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// relatedItems answers "other items from this seller" (default) or
// "other items in this category" (?by=category) lookups against the
// seller/category graph. The graph is cross-gallery and best-effort, so
// this endpoint only requires a valid bearer token, not gallery ownership.
func (s *Server) relatedItems(w http.ResponseWriter, r *http.Request) {
	if s.sellerGraph == nil {
		writeError(w, http.StatusServiceUnavailable, "related items graph not configured")
		return
	}

	marketplace := r.PathValue("marketplace")
	itemID := r.PathValue("item_id")
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	var (
		related []sellergraph.RelatedItem
		err     error
	)
	if r.URL.Query().Get("by") == "category" {
		related, err = s.sellerGraph.RelatedByCategory(r.Context(), itemID, marketplace, limit)
	} else {
		related, err = s.sellerGraph.RelatedBySeller(r.Context(), itemID, marketplace, limit)
	}
	if err != nil {
		s.logger.Error("api.related_items.graph_query_failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, related)
}

func parseGalleryID(w http.ResponseWriter, r *http.Request) (gallery.GalleryId, bool) {
	raw := r.PathValue("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid gallery id")
		return gallery.GalleryId{}, false
	}
	return id, true
}

func (s *Server) handleStoreErr(w http.ResponseWriter, err error) {
	if errors.Is(err, gallery.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.logger.Error("api.store_error", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
