// SPDX-License-Identifier: MIT

// Package backfill repairs catalog gaps discovered on the read path. Reads
// never wait for it: detection schedules a task and the request proceeds
// with whatever the database has.
package backfill

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/filmgrid/catalogd/internal/metrics"
	"github.com/filmgrid/catalogd/internal/store"
	"github.com/filmgrid/catalogd/internal/tmdb"
)

// key deduplicates work. Two locales for the same title are distinct keys
// because they fetch different localized payloads.
type key struct {
	mt   store.MediaType
	id   int64
	tag  string // provider language tag, e.g. "de-DE"
	full bool
}

type task struct {
	key    key
	lang   string
	region string
}

// Scheduler owns the worker pool and the dedupe state.
type Scheduler struct {
	store  *store.Store
	client *tmdb.Client
	log    zerolog.Logger

	ttl        time.Duration
	queueLimit int

	mu       sync.Mutex
	closed   bool
	recent   map[key]time.Time
	inflight map[key]struct{}

	work    chan task
	workers errgroup.Group

	now func() time.Time
}

// New starts the worker pool immediately.
func New(st *store.Store, client *tmdb.Client, workers, queueLimit int, ttl time.Duration, log zerolog.Logger) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	s := &Scheduler{
		store:      st,
		client:     client,
		log:        log,
		ttl:        ttl,
		queueLimit: queueLimit,
		recent:     make(map[key]time.Time),
		inflight:   make(map[key]struct{}),
		work:       make(chan task, queueLimit),
		now:        time.Now,
	}
	for i := 0; i < workers; i++ {
		s.workers.Go(func() error {
			for t := range s.work {
				s.runTask(t)
			}
			return nil
		})
	}
	return s
}

// Submit schedules a backfill for one title and locale unless the key was
// seen recently, is already inflight, or the queue is at capacity. Never
// blocks.
func (s *Scheduler) Submit(mt store.MediaType, id int64, lang, region string, full bool) {
	if !s.client.Enabled() || !mt.Valid() || id <= 0 {
		return
	}
	k := key{mt: mt, id: id, tag: langTag(lang, region), full: full}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	now := s.now()
	if t0, ok := s.recent[k]; ok && now.Sub(t0) < s.ttl {
		s.mu.Unlock()
		metrics.BackfillSubmits.WithLabelValues("recent").Inc()
		return
	}
	// Marked before capacity checks: a dropped submission stays suppressed
	// for the TTL instead of hammering a full queue.
	s.recent[k] = now
	if len(s.inflight) >= s.queueLimit {
		s.mu.Unlock()
		metrics.BackfillSubmits.WithLabelValues("queue_full").Inc()
		return
	}
	if _, ok := s.inflight[k]; ok {
		s.mu.Unlock()
		metrics.BackfillSubmits.WithLabelValues("inflight").Inc()
		return
	}
	s.inflight[k] = struct{}{}
	// The buffer is sized to the inflight cap, so this send cannot block.
	// Sending under the lock keeps it ordered before a concurrent close.
	s.work <- task{key: k, lang: lang, region: region}
	s.mu.Unlock()

	metrics.BackfillSubmits.WithLabelValues("scheduled").Inc()
	metrics.BackfillInflight.Inc()
}

// Stop drains the queue and waits for running tasks. Safe to call once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.work)
	_ = s.workers.Wait()
}

// Pending reports keys queued or running, for tests and health output.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

func (s *Scheduler) done(k key) {
	s.mu.Lock()
	delete(s.inflight, k)
	s.mu.Unlock()
	metrics.BackfillInflight.Dec()
}

func langTag(lang, region string) string {
	if region != "" {
		return lang + "-" + region
	}
	return lang
}
