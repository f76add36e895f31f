// Package syncgw persists shop state locally first and mirrors it to a
// remote store in the background.
//
// Persist is synchronous: the caller learns right away whether the local
// save worked. Remote pushes are queued per profile and coalesced, so a
// burst of edits results in one push of the newest snapshot. Pushes that
// keep failing are parked until the next resync.
package syncgw

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"dokan/internal/cache"
	"dokan/internal/domain"
	"dokan/internal/session"
)

const (
	defaultMaxAttempts = 4
	defaultQueueSize   = 64
	pushTimeout        = 10 * time.Second
)

// StateSaver is the local durable store.
type StateSaver interface {
	SaveState(ctx context.Context, st session.State) error
}

type Options struct {
	MaxAttempts int
	QueueSize   int
	// ResyncSpec is a cron spec with a seconds field, e.g. "0 */5 * * * *".
	// Empty disables the periodic resync.
	ResyncSpec string
	Logger     *slog.Logger
	// Backoff overrides the sleep between push attempts.
	Backoff func(attempt int)
}

type Gateway struct {
	local       StateSaver
	mirror      cache.Mirror
	logger      *slog.Logger
	maxAttempts int
	backoff     func(attempt int)
	queue       chan string

	mu       sync.Mutex
	sources  map[string]*session.Store
	parked   map[string]session.State
	queued   map[string]bool
	failed   map[string]bool
	inflight int
	status   map[string]*domain.SyncStatus
	closed   bool

	sched     *cron.Cron
	done      chan struct{}
	closeOnce sync.Once
}

func New(local StateSaver, mirror cache.Mirror, opts Options) (*Gateway, error) {
	if mirror == nil {
		mirror = cache.NoopMirror{}
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Backoff == nil {
		opts.Backoff = sleepWithBackoff
	}

	g := &Gateway{
		local:       local,
		mirror:      mirror,
		logger:      opts.Logger.With("component", "syncgw", "mirror", mirror.Name()),
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
		queue:       make(chan string, opts.QueueSize),
		sources:     make(map[string]*session.Store),
		parked:      make(map[string]session.State),
		queued:      make(map[string]bool),
		failed:      make(map[string]bool),
		status:      make(map[string]*domain.SyncStatus),
		done:        make(chan struct{}),
	}

	if opts.ResyncSpec != "" {
		g.sched = cron.New(cron.WithSeconds())
		if _, err := g.sched.AddFunc(opts.ResyncSpec, func() {
			if n := g.ResyncFailed(); n > 0 {
				g.logger.Info("resync scheduled", "profiles", n)
			}
		}); err != nil {
			return nil, domain.Validation("sync_resync_spec", err.Error())
		}
	}

	go g.run()
	if g.sched != nil {
		g.sched.Start()
	}
	return g, nil
}

// Persist writes st to the local store. A failure comes back as SYNC_FAILED;
// the caller keeps its in-memory state either way.
func (g *Gateway) Persist(ctx context.Context, st session.State) error {
	if err := g.local.SaveState(ctx, st); err != nil {
		g.logger.Warn("local save failed", "profile_id", st.Profile.ID, "error", err)
		return domain.SyncFailed(err)
	}
	now := time.Now().UTC()
	g.mu.Lock()
	g.statusLocked(st.Profile.ID).LastLocalSave = &now
	g.mu.Unlock()
	return nil
}

// Watch mirrors every change of store to the remote side. The returned func
// stops watching; a push still pending at that point uses the last state.
func (g *Gateway) Watch(store *session.Store) func() {
	id := store.ProfileID()
	g.mu.Lock()
	g.sources[id] = store
	delete(g.parked, id)
	g.mu.Unlock()

	unsubscribe := store.Subscribe(func(session.State) {
		g.enqueue(id)
	})
	return func() {
		unsubscribe()
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.sources[id] != store {
			return
		}
		delete(g.sources, id)
		if g.queued[id] || g.failed[id] {
			g.parked[id] = store.Get()
		}
	}
}

// Enqueue schedules a push of profileID's current state.
func (g *Gateway) Enqueue(profileID string) {
	g.enqueue(profileID)
}

// ResyncFailed re-queues every profile whose last push failed and returns
// how many were queued.
func (g *Gateway) ResyncFailed() int {
	g.mu.Lock()
	ids := make([]string, 0, len(g.failed))
	for id := range g.failed {
		ids = append(ids, id)
	}
	g.mu.Unlock()

	for _, id := range ids {
		g.enqueue(id)
	}
	return len(ids)
}

func (g *Gateway) Status(profileID string) domain.SyncStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.status[profileID]
	if !ok {
		return domain.SyncStatus{ProfileID: profileID}
	}
	return *st
}

// Flush waits until no push is queued or running.
func (g *Gateway) Flush(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		g.mu.Lock()
		idle := g.inflight == 0
		g.mu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close stops the resync schedule, drains queued pushes within ctx and
// stops the worker.
func (g *Gateway) Close(ctx context.Context) error {
	var err error
	g.closeOnce.Do(func() {
		if g.sched != nil {
			<-g.sched.Stop().Done()
		}
		err = g.Flush(ctx)
		g.mu.Lock()
		g.closed = true
		close(g.queue)
		g.mu.Unlock()
		<-g.done
	})
	return err
}

func (g *Gateway) enqueue(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed || g.queued[id] {
		return
	}
	select {
	case g.queue <- id:
		g.queued[id] = true
		g.inflight++
		g.statusLocked(id).PendingRemote = true
	default:
		g.failed[id] = true
		g.statusLocked(id).PendingRemote = true
		g.logger.Warn("sync queue full, push deferred to resync", "profile_id", id)
	}
}

func (g *Gateway) run() {
	defer close(g.done)
	for id := range g.queue {
		g.mu.Lock()
		delete(g.queued, id)
		st, ok := g.snapshotLocked(id)
		g.mu.Unlock()

		if ok {
			g.record(id, g.push(st))
		}

		g.mu.Lock()
		g.inflight--
		g.mu.Unlock()
	}
}

func (g *Gateway) snapshotLocked(id string) (session.State, bool) {
	if src, ok := g.sources[id]; ok {
		return src.Get(), true
	}
	st, ok := g.parked[id]
	return st, ok
}

func (g *Gateway) push(st session.State) error {
	var err error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		err = g.mirror.Push(ctx, st)
		cancel()
		if err == nil {
			return nil
		}
		if attempt < g.maxAttempts {
			g.backoff(attempt)
		}
	}
	return err
}

func (g *Gateway) record(id string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	status := g.statusLocked(id)
	if err != nil {
		g.failed[id] = true
		status.LastRemoteError = err.Error()
		g.logger.Warn("remote push failed", "profile_id", id, "attempts", g.maxAttempts, "error", err)
		return
	}
	now := time.Now().UTC()
	delete(g.failed, id)
	delete(g.parked, id)
	status.LastRemotePush = &now
	status.LastRemoteError = ""
	status.PendingRemote = g.queued[id]
}

func (g *Gateway) statusLocked(id string) *domain.SyncStatus {
	st, ok := g.status[id]
	if !ok {
		st = &domain.SyncStatus{ProfileID: id}
		g.status[id] = st
	}
	return st
}

func sleepWithBackoff(attempt int) {
	base := 20 * time.Millisecond
	backoff := time.Duration(attempt*attempt) * base
	jitter := time.Duration(rand.Int63n(int64(10 * time.Millisecond)))
	time.Sleep(backoff + jitter)
}
