package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/mhbka/itemtracker/internal/auth"
	"github.com/mhbka/itemtracker/internal/gallery"
	"github.com/mhbka/itemtracker/internal/sellergraph"
	"github.com/mhbka/itemtracker/internal/store"
)

type fakeStore struct {
	galleries map[gallery.GalleryId]gallery.GallerySchedulerState
	owners    map[gallery.GalleryId]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		galleries: map[gallery.GalleryId]gallery.GallerySchedulerState{},
		owners:    map[gallery.GalleryId]string{},
	}
}

func (f *fakeStore) CreateGallery(ctx context.Context, ownerID string, g gallery.GallerySchedulerState) error {
	f.galleries[g.GalleryID] = g
	f.owners[g.GalleryID] = ownerID
	return nil
}

func (f *fakeStore) GetGallery(ctx context.Context, id gallery.GalleryId) (gallery.GallerySchedulerState, string, error) {
	g, ok := f.galleries[id]
	if !ok {
		return gallery.GallerySchedulerState{}, "", gallery.ErrNotFound
	}
	return g, f.owners[id], nil
}

func (f *fakeStore) UpdateGallery(ctx context.Context, g gallery.GallerySchedulerState) error {
	if _, ok := f.galleries[g.GalleryID]; !ok {
		return gallery.ErrNotFound
	}
	f.galleries[g.GalleryID] = g
	return nil
}

func (f *fakeStore) DeleteGallery(ctx context.Context, id gallery.GalleryId) error {
	if _, ok := f.galleries[id]; !ok {
		return gallery.ErrNotFound
	}
	delete(f.galleries, id)
	delete(f.owners, id)
	return nil
}

func (f *fakeStore) GalleryStats(ctx context.Context, id gallery.GalleryId) (store.GalleryStats, error) {
	if _, ok := f.galleries[id]; !ok {
		return store.GalleryStats{}, gallery.ErrNotFound
	}
	return store.GalleryStats{GalleryID: id}, nil
}

func (f *fakeStore) ListGalleryIDs(ctx context.Context, ownerID string) ([]gallery.GalleryId, error) {
	var out []gallery.GalleryId
	for id, owner := range f.owners {
		if owner == ownerID {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeStore) GetSession(ctx context.Context, id gallery.SessionId) (store.Session, string, error) {
	return store.Session{}, "", gallery.ErrNotFound
}

type fakeScheduler struct {
	added, updated, deleted int
}

func (f *fakeScheduler) Add(ctx context.Context, state gallery.GallerySchedulerState) error {
	f.added++
	return nil
}
func (f *fakeScheduler) Update(ctx context.Context, state gallery.GallerySchedulerState) error {
	f.updated++
	return nil
}
func (f *fakeScheduler) Delete(ctx context.Context, id gallery.GalleryId) error {
	f.deleted++
	return nil
}

func newTestServer() (*Server, *fakeStore, *fakeScheduler) {
	st := newFakeStore()
	sched := &fakeScheduler{}
	return New(st, sched, nil, nil), st, sched
}

func withOwner(req *http.Request, owner string) *http.Request {
	return req.WithContext(auth.WithOwnerID(req.Context(), owner))
}

func TestCreateGalleryThenGetRoundTrip(t *testing.T) {
	s, _, sched := newTestServer()

	body := `{"scraping_periodicity":"* * * * *","search_criteria":{"keyword":"camera"},"evaluation_criteria":{"criteria":[]}}`
	req := withOwner(httptest.NewRequest(http.MethodPost, "/g/gallery", bytes.NewBufferString(body)), "owner1")
	rec := httptest.NewRecorder()
	s.createGallery(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created gallery.GallerySchedulerState
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if sched.added != 1 {
		t.Fatalf("expected scheduler.Add to be called once, got %d", sched.added)
	}

	getReq := withOwner(httptest.NewRequest(http.MethodGet, "/g/gallery/"+created.GalleryID.String(), nil), "owner1")
	getReq.SetPathValue("id", created.GalleryID.String())
	getRec := httptest.NewRecorder()
	s.getGallery(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", getRec.Code, getRec.Body.String())
	}
}

func TestCreateGalleryRejectsMalformedCron(t *testing.T) {
	s, _, _ := newTestServer()
	body := `{"scraping_periodicity":"not a cron","search_criteria":{"keyword":"x"},"evaluation_criteria":{"criteria":[]}}`
	req := withOwner(httptest.NewRequest(http.MethodPost, "/g/gallery", bytes.NewBufferString(body)), "owner1")
	rec := httptest.NewRecorder()
	s.createGallery(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a malformed cron string, got %d", rec.Code)
	}
}

func TestGetGalleryWrongOwnerIsNotFound(t *testing.T) {
	s, st, _ := newTestServer()
	id := uuid.New()
	st.galleries[id] = gallery.GallerySchedulerState{GalleryID: id}
	st.owners[id] = "owner1"

	req := withOwner(httptest.NewRequest(http.MethodGet, "/g/gallery/"+id.String(), nil), "owner2")
	req.SetPathValue("id", id.String())
	rec := httptest.NewRecorder()
	s.getGallery(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for cross-owner access, got %d", rec.Code)
	}
}

func TestGetGalleryMalformedIDIsBadRequest(t *testing.T) {
	s, _, _ := newTestServer()
	req := withOwner(httptest.NewRequest(http.MethodGet, "/g/gallery/bad-id", nil), "owner1")
	req.SetPathValue("id", "not-a-uuid")
	rec := httptest.NewRecorder()
	s.getGallery(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a malformed gallery id, got %d", rec.Code)
	}
}

func TestDeleteGalleryRemovesFromStoreAndScheduler(t *testing.T) {
	s, st, sched := newTestServer()
	id := uuid.New()
	st.galleries[id] = gallery.GallerySchedulerState{GalleryID: id}
	st.owners[id] = "owner1"

	req := withOwner(httptest.NewRequest(http.MethodDelete, "/g/gallery/"+id.String(), nil), "owner1")
	req.SetPathValue("id", id.String())
	rec := httptest.NewRecorder()
	s.deleteGallery(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if _, ok := st.galleries[id]; ok {
		t.Fatal("expected gallery to be removed from the store")
	}
	if sched.deleted != 1 {
		t.Fatalf("expected scheduler.Delete to be called once, got %d", sched.deleted)
	}
}

func TestRelatedItemsWithoutSellerGraphReturns503(t *testing.T) {
	s, _, _ := newTestServer()
	req := withOwner(httptest.NewRequest(http.MethodGet, "/g/related_items/mercari/item1", nil), "owner1")
	req.SetPathValue("marketplace", "mercari")
	req.SetPathValue("item_id", "item1")
	rec := httptest.NewRecorder()
	s.relatedItems(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when no seller graph is configured, got %d", rec.Code)
	}
}

type fakeGraph struct {
	bySellerCalls, byCategoryCalls int
}

func (f *fakeGraph) RelatedBySeller(ctx context.Context, itemID, marketplace string, limit int) ([]sellergraph.RelatedItem, error) {
	f.bySellerCalls++
	return []sellergraph.RelatedItem{{ItemID: "other"}}, nil
}

func (f *fakeGraph) RelatedByCategory(ctx context.Context, itemID, marketplace string, limit int) ([]sellergraph.RelatedItem, error) {
	f.byCategoryCalls++
	return []sellergraph.RelatedItem{{ItemID: "other-cat"}}, nil
}

func TestRelatedItemsDispatchesBySellerByDefault(t *testing.T) {
	fg := &fakeGraph{}
	s := New(newFakeStore(), &fakeScheduler{}, fg, nil)

	req := withOwner(httptest.NewRequest(http.MethodGet, "/g/related_items/mercari/item1", nil), "owner1")
	req.SetPathValue("marketplace", "mercari")
	req.SetPathValue("item_id", "item1")
	rec := httptest.NewRecorder()
	s.relatedItems(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if fg.bySellerCalls != 1 || fg.byCategoryCalls != 0 {
		t.Fatalf("expected RelatedBySeller only, got seller=%d category=%d", fg.bySellerCalls, fg.byCategoryCalls)
	}
}

func TestRelatedItemsDispatchesByCategoryWhenRequested(t *testing.T) {
	fg := &fakeGraph{}
	s := New(newFakeStore(), &fakeScheduler{}, fg, nil)

	req := withOwner(httptest.NewRequest(http.MethodGet, "/g/related_items/mercari/item1?by=category", nil), "owner1")
	req.SetPathValue("marketplace", "mercari")
	req.SetPathValue("item_id", "item1")
	rec := httptest.NewRecorder()
	s.relatedItems(rec, req)

	if fg.byCategoryCalls != 1 || fg.bySellerCalls != 0 {
		t.Fatalf("expected RelatedByCategory only, got seller=%d category=%d", fg.bySellerCalls, fg.byCategoryCalls)
	}
}
