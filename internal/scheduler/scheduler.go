// Package scheduler implements the Scheduler (C6): owns one long-lived
// task per gallery, firing the Pipeline Instance on its cron schedule, and
// serializes Add/Update/Delete control messages through a bounded channel
// processed by a single writer.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mhbka/itemtracker/internal/gallery"
	"github.com/mhbka/itemtracker/internal/pipeline"
	"github.com/mhbka/itemtracker/internal/store"
	"github.com/mhbka/itemtracker/pkg/metrics"
)

// ControlChannelCapacity is the recommended bound for the control channel;
// a full channel blocks the caller until drained.
const ControlChannelCapacity = 10_000

type requestKind int

const (
	reqAdd requestKind = iota
	reqUpdate
	reqDelete
)

type request struct {
	kind      requestKind
	galleryID gallery.GalleryId
	state     gallery.GallerySchedulerState
	resp      chan error
}

// task is one gallery's long-lived loop. Its snapshot is guarded by its
// own lock so Update can mutate it without restarting the sleep.
type task struct {
	ctx      context.Context
	cancel   context.CancelFunc
	snapMu   sync.Mutex
	snapshot gallery.GallerySchedulerState
}

// Scheduler owns the gallery registry and dispatches pipeline runs.
type Scheduler struct {
	rootCtx    context.Context
	rootCancel context.CancelFunc

	mu    sync.RWMutex
	tasks map[gallery.GalleryId]*task

	control  chan request
	pipeline *pipeline.Pipeline
	store    *store.Store
	logger   *slog.Logger

	wg sync.WaitGroup
}

// New builds a Scheduler. Call Start to begin processing control messages
// and load the initial gallery set.
func New(p *pipeline.Pipeline, st *store.Store, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		rootCtx:    ctx,
		rootCancel: cancel,
		tasks:      make(map[gallery.GalleryId]*task),
		control:    make(chan request, ControlChannelCapacity),
		pipeline:   p,
		store:      st,
		logger:     logger,
	}
}

// Start launches the control loop and adds every gallery the store
// currently holds, as if by Add. Per-gallery failures are counted and
// logged, never fatal to startup.
func (s *Scheduler) Start(ctx context.Context) error {
	s.wg.Add(1)
	go s.controlLoop()

	initial, err := s.store.LoadAllGalleries(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: load initial galleries: %w", err)
	}

	failed := 0
	for _, g := range initial {
		if err := s.Add(ctx, g); err != nil {
			failed++
			s.logger.Error("scheduler.start.add_failed", "gallery_id", g.GalleryID, "error", err)
		}
	}
	s.logger.Info("scheduler.start", "galleries", len(initial), "failed", failed)
	return nil
}

// SetPipeline assigns the Pipeline instance a Scheduler dispatches runs
// through. Must be called before Start — it exists as a separate step
// because the Pipeline's Notifier is the Scheduler itself, and Go has no
// way to construct the two simultaneously.
func (s *Scheduler) SetPipeline(p *pipeline.Pipeline) {
	s.pipeline = p
}

// Shutdown cancels every per-gallery task. No other cleanup is required.
func (s *Scheduler) Shutdown() {
	s.rootCancel()
	s.wg.Wait()
}

func (s *Scheduler) controlLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.rootCtx.Done():
			return
		case req := <-s.control:
			s.handle(req)
		}
	}
}

func (s *Scheduler) handle(req request) {
	switch req.kind {
	case reqAdd:
		s.mu.Lock()
		if _, exists := s.tasks[req.galleryID]; exists {
			s.mu.Unlock()
			req.resp <- gallery.ErrAlreadyExists
			return
		}
		taskCtx, cancel := context.WithCancel(s.rootCtx)
		t := &task{ctx: taskCtx, cancel: cancel, snapshot: req.state}
		s.tasks[req.galleryID] = t
		s.mu.Unlock()

		s.wg.Add(1)
		go s.runTask(req.galleryID, t)
		metrics.SchedulerTasksActive.Inc()
		req.resp <- nil

	case reqUpdate:
		if req.state.GalleryID != req.galleryID {
			req.resp <- gallery.ErrIdMismatch
			return
		}
		s.mu.RLock()
		t, ok := s.tasks[req.galleryID]
		s.mu.RUnlock()
		if !ok {
			req.resp <- gallery.ErrNotFound
			return
		}
		t.snapMu.Lock()
		t.snapshot = req.state
		t.snapMu.Unlock()
		req.resp <- nil

	case reqDelete:
		s.mu.Lock()
		t, ok := s.tasks[req.galleryID]
		if ok {
			delete(s.tasks, req.galleryID)
		}
		s.mu.Unlock()
		if !ok {
			req.resp <- gallery.ErrNotFound
			return
		}
		t.cancel()
		metrics.SchedulerTasksActive.Dec()
		req.resp <- nil
	}
}

func (s *Scheduler) send(ctx context.Context, req request) error {
	req.resp = make(chan error, 1)
	select {
	case s.control <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Add registers a new gallery and spawns its task. Fails with
// gallery.ErrAlreadyExists if the id is already known.
func (s *Scheduler) Add(ctx context.Context, state gallery.GallerySchedulerState) error {
	return s.send(ctx, request{kind: reqAdd, galleryID: state.GalleryID, state: state})
}

// Update replaces a task's gallery snapshot atomically, without
// restarting its sleep. Fails with gallery.ErrNotFound or
// gallery.ErrIdMismatch.
func (s *Scheduler) Update(ctx context.Context, state gallery.GallerySchedulerState) error {
	return s.send(ctx, request{kind: reqUpdate, galleryID: state.GalleryID, state: state})
}

// Delete cancels a gallery's task. Any in-flight pipeline run is allowed
// to complete but its completion notification is silently dropped once
// the task is gone. Fails with gallery.ErrNotFound.
func (s *Scheduler) Delete(ctx context.Context, id gallery.GalleryId) error {
	return s.send(ctx, request{kind: reqDelete, galleryID: id})
}

// NotifyCompletion implements pipeline.Notifier: it is the self-addressed
// Update the Pipeline Instance sends after a successful run, reloading the
// gallery (whose last_scraped fields have just advanced) from the store.
func (s *Scheduler) NotifyCompletion(ctx context.Context, id gallery.GalleryId) error {
	g, _, err := s.store.GetGallery(ctx, id)
	if err != nil {
		return fmt.Errorf("scheduler: reload gallery for completion notice: %w", err)
	}
	if err := s.Update(ctx, g); err != nil && err != gallery.ErrNotFound {
		return err
	}
	return nil
}

// earliestScraped returns the oldest of a gallery's per-marketplace
// previous-scraped timestamps, or gallery.Epoch if none are recorded yet
// (a brand new gallery, which — like a marketplace never scraped before —
// is due immediately). This is the baseline runTask advances its next-due
// time from, instead of wall-clock time.Now(), so that a schedule left
// dormant (scheduler downtime, a gallery just resumed) computes a next
// occurrence that is genuinely still in the past and catches up on its
// first tick, per the source's catch-up contract.
func earliestScraped(snap gallery.GallerySchedulerState) gallery.UnixUtcDateTime {
	earliest := gallery.Epoch
	first := true
	for _, t := range snap.MarketplacePreviousScrapedDatetimes {
		if first || t.Before(earliest) {
			earliest = t
			first = false
		}
	}
	return earliest
}

// runTask is the per-gallery loop: compute next occurrence, sleep or
// catch up immediately, invoke the pipeline if active, repeat. Pipeline
// failure is logged, never fatal to the schedule.
//
// next is task-local state, carried across iterations rather than
// recomputed from time.Now() each time: only its initial value (derived
// from the gallery's persisted previous-scraped timestamps) can land in
// the past, which is what lets the first tick after a dormancy period
// fire immediately instead of waiting a full period.
func (s *Scheduler) runTask(id gallery.GalleryId, t *task) {
	defer s.wg.Done()
	log := s.logger.With("gallery_id", id)

	t.snapMu.Lock()
	snap := t.snapshot.Clone()
	t.snapMu.Unlock()
	next := snap.ScrapingPeriodicity.NextOccurrence(earliestScraped(snap).Time())

	for {
		if t.ctx.Err() != nil {
			return
		}

		now := time.Now()
		if next.After(now) {
			timer := time.NewTimer(next.Sub(now))
			select {
			case <-timer.C:
			case <-t.ctx.Done():
				timer.Stop()
				return
			}
		}
		// next <= now: catch-up, proceed immediately.

		if t.ctx.Err() != nil {
			return
		}

		t.snapMu.Lock()
		snap = t.snapshot.Clone()
		t.snapMu.Unlock()

		if !snap.IsActive {
			log.Info("scheduler.tick.inactive")
			next = snap.ScrapingPeriodicity.NextOccurrence(time.Now())
			continue
		}

		start := gallery.NewSearchScrapingState(snap)
		// The run gets the scheduler's root context, not t.ctx: Delete's
		// cancel does not abort a run in flight, while Shutdown still does.
		sessionID, err := s.pipeline.Run(s.rootCtx, start)
		if err != nil {
			log.Warn("scheduler.tick.pipeline_failed", "error", err)
		} else {
			log.Info("scheduler.tick.pipeline_ok", "session_id", sessionID)
		}
		next = snap.ScrapingPeriodicity.NextOccurrence(time.Now())
	}
}
