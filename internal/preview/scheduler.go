package preview

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	fsutil "github.com/kk-code-lab/mill/internal/fs"
)

// Priority orders requests; user requests always pre-empt prefetch.
type Priority int

const (
	PriorityPrefetch Priority = iota
	PriorityUser
)

// RequestStatus reports what Request did.
type RequestStatus int

const (
	// StatusPending means generation was queued or is already running.
	StatusPending RequestStatus = iota
	// StatusHit means the artifact was already cached; no work was started.
	StatusHit
)

// DefaultPrefetchDelay is the quiescence window before neighbors are
// prefetched.
const DefaultPrefetchDelay = 250 * time.Millisecond

// Options configure a Scheduler.
type Options struct {
	Workers       int
	PrefetchDelay time.Duration // negative disables prefetch
	Limits        Limits
	Registry      *Registry
	Logger        *slog.Logger

	// Retain reports whether artifacts for a directory are still wanted.
	// Results for other directories are dropped right after they land.
	Retain func(dir string) bool
}

// SchedulerStats are cumulative scheduler counters. PrefetchGenerated counts
// generations that finished at prefetch priority; promoted tasks count as
// user work.
type SchedulerStats struct {
	Requested         uint64
	Hits              uint64
	Generated         uint64
	PrefetchGenerated uint64
	Failed            uint64
	Cancelled         uint64
	Discarded         uint64
	Prefetched        uint64
	Promoted          uint64
}

type task struct {
	key       Key
	entry     fsutil.Entry
	priority  Priority
	cancelled atomic.Bool
	running   bool
}

// Scheduler runs preview generation on a bounded worker pool. It keeps one
// user slot: a new user request for a different key cancels the previous
// one, so fast cursor movement never accumulates work.
type Scheduler struct {
	cache    *Cache
	registry *Registry
	limits   Limits
	retain   func(dir string) bool
	delay    time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	cond      *sync.Cond
	queue     []*task
	inflight  map[Key]*task
	current   *task
	prefetch  []*task
	neighbors []fsutil.Entry
	timer     *time.Timer
	seq       uint64
	closed    bool
	stats     SchedulerStats

	updates chan Key
	wg      sync.WaitGroup
}

// NewScheduler starts the worker pool.
func NewScheduler(cache *Cache, opts Options) *Scheduler {
	workers := opts.Workers
	if workers <= 0 {
		workers = min(4, runtime.NumCPU())
	}
	delay := opts.PrefetchDelay
	if delay == 0 {
		delay = DefaultPrefetchDelay
	}
	registry := opts.Registry
	if registry == nil {
		registry = DefaultRegistry()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Scheduler{
		cache:    cache,
		registry: registry,
		limits:   opts.Limits.withDefaults(),
		retain:   opts.Retain,
		delay:    delay,
		logger:   logger,
		inflight: make(map[Key]*task),
		updates:  make(chan Key, 64),
	}
	s.cond = sync.NewCond(&s.mu)
	for range workers {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

// Cache returns the cache the scheduler publishes into.
func (s *Scheduler) Cache() *Cache {
	return s.cache
}

// Updates delivers keys of artifacts as they land in the cache. Sends never
// block; a full channel drops the notification.
func (s *Scheduler) Updates() <-chan Key {
	return s.updates
}

// Lookup is a pure cache read for the entry's current key.
func (s *Scheduler) Lookup(e fsutil.Entry) (*Artifact, bool) {
	return s.cache.Get(KeyFor(e))
}

// Request asks for a preview of e. It never blocks on generation.
func (s *Scheduler) Request(e fsutil.Entry, priority Priority) RequestStatus {
	key := KeyFor(e)
	hit := s.cache.Contains(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return StatusPending
	}
	s.stats.Requested++

	if priority == PriorityPrefetch {
		if hit {
			s.stats.Hits++
			return StatusHit
		}
		s.enqueuePrefetchLocked(key, e)
		return StatusPending
	}

	s.cancelPrefetchLocked(key)
	s.armPrefetchLocked()

	if s.current != nil && s.current.key != key {
		s.cancelLocked(s.current)
		s.current = nil
	}
	if hit {
		s.stats.Hits++
		return StatusHit
	}
	if s.current != nil && s.current.key == key {
		return StatusPending
	}

	if t, ok := s.inflight[key]; ok && !t.cancelled.Load() {
		t.priority = PriorityUser
		s.current = t
		s.prefetch = slices.DeleteFunc(s.prefetch, func(p *task) bool { return p == t })
		if !t.running {
			s.removeQueuedLocked(t)
			s.queue = slices.Insert(s.queue, 0, t)
		}
		s.stats.Promoted++
		return StatusPending
	}

	t := &task{key: key, entry: e, priority: PriorityUser}
	s.inflight[key] = t
	s.current = t
	s.queue = slices.Insert(s.queue, 0, t)
	s.cond.Signal()
	return StatusPending
}

// SetNeighbors replaces the entries prefetched once requests go quiet.
func (s *Scheduler) SetNeighbors(entries []fsutil.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.neighbors = slices.Clone(entries)
	s.armPrefetchLocked()
}

// Stats returns cumulative counters.
func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close cancels all work and waits for the workers to exit.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	for _, t := range s.inflight {
		t.cancelled.Store(true)
	}
	s.queue = nil
	s.cond.Broadcast()
	s.mu.Unlock()

	s.wg.Wait()
	close(s.updates)
}

func (s *Scheduler) armPrefetchLocked() {
	if s.delay < 0 {
		return
	}
	s.seq++
	seq := s.seq
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, func() { s.firePrefetch(seq) })
}

func (s *Scheduler) firePrefetch(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || seq != s.seq {
		return
	}
	for _, e := range s.neighbors {
		key := KeyFor(e)
		if s.cache.Contains(key) {
			continue
		}
		s.enqueuePrefetchLocked(key, e)
	}
}

func (s *Scheduler) enqueuePrefetchLocked(key Key, e fsutil.Entry) {
	if t, ok := s.inflight[key]; ok && !t.cancelled.Load() {
		return
	}
	t := &task{key: key, entry: e, priority: PriorityPrefetch}
	s.inflight[key] = t
	s.prefetch = append(s.prefetch, t)
	s.queue = append(s.queue, t)
	s.stats.Prefetched++
	s.cond.Signal()
}

// cancelPrefetchLocked cancels every prefetch task except one for keep.
func (s *Scheduler) cancelPrefetchLocked(keep Key) {
	kept := s.prefetch[:0]
	for _, t := range s.prefetch {
		if t.key == keep {
			kept = append(kept, t)
			continue
		}
		s.cancelLocked(t)
	}
	clear(s.prefetch[len(kept):])
	s.prefetch = kept
}

func (s *Scheduler) cancelLocked(t *task) {
	if t.cancelled.Swap(true) {
		return
	}
	s.stats.Cancelled++
	if s.inflight[t.key] == t {
		delete(s.inflight, t.key)
	}
	if !t.running {
		s.removeQueuedLocked(t)
	}
}

func (s *Scheduler) removeQueuedLocked(t *task) {
	s.queue = slices.DeleteFunc(s.queue, func(q *task) bool { return q == t })
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		t := s.queue[0]
		s.queue = s.queue[1:]
		t.running = true
		s.mu.Unlock()

		s.run(t)
	}
}

func (s *Scheduler) run(t *task) {
	artifact, name, err := s.generate(t)

	s.mu.Lock()
	if s.inflight[t.key] == t {
		delete(s.inflight, t.key)
	}
	if s.current == t {
		s.current = nil
	}
	s.prefetch = slices.DeleteFunc(s.prefetch, func(p *task) bool { return p == t })
	if t.cancelled.Load() || errors.Is(err, fsutil.ErrCancelled) {
		s.stats.Discarded++
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.stats.Failed++
	} else {
		s.stats.Generated++
		if t.priority == PriorityPrefetch {
			s.stats.PrefetchGenerated++
		}
	}
	priority := t.priority
	s.mu.Unlock()

	if err != nil {
		s.logger.Debug("preview failed", "path", t.key.Path, "generator", name, "prefetch", priority == PriorityPrefetch, "error", err)
		artifact = ErrorArtifact(t.key, name, err)
	}
	artifact.Key = t.key
	artifact.Generator = name
	artifact.Size = artifact.estimateSize()
	s.cache.Put(t.key, artifact)

	if s.retain != nil && !s.retain(t.key.Dir()) {
		s.cache.Remove(t.key)
		return
	}

	select {
	case s.updates <- t.key:
	default:
	}
}

// generate runs the selected generator, turning panics into errors.
func (s *Scheduler) generate(t *task) (artifact *Artifact, name string, err error) {
	name = "sniff"
	defer func() {
		if r := recover(); r != nil {
			artifact = nil
			err = fmt.Errorf("%w: %s panicked: %v", fsutil.ErrGenerationFailed, name, r)
		}
	}()

	job := &Job{Entry: t.entry, Key: t.key, Limits: s.limits, cancelled: &t.cancelled}
	sniff, err := sniffEntry(job.Context(), t.entry)
	if err != nil {
		return nil, name, err
	}
	job.Sniff = sniff
	if err := job.Check(); err != nil {
		return nil, name, err
	}

	gen := s.registry.Select(job)
	if gen == nil {
		return nil, name, fmt.Errorf("%w: no generator", fsutil.ErrGenerationFailed)
	}
	name = gen.Name()
	artifact, err = gen.Generate(job)
	if err == nil && artifact == nil {
		err = fmt.Errorf("%w: %s returned nothing", fsutil.ErrGenerationFailed, name)
	}
	return artifact, name, err
}
