package trending

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"trending-coordinator/internal/platform/logger"
	"trending-coordinator/internal/platform/metrics"
	"trending-coordinator/internal/session"
)

const (
	// DefaultRefreshInterval is the auto-refresh period once location resolves.
	DefaultRefreshInterval = 5 * time.Minute

	sessionTimeout = 2 * time.Second
)

// Options configures a Coordinator. Fetcher is required; everything else
// has a usable zero value.
type Options struct {
	Fetcher Fetcher
	// Locator may be nil, in which case location is Unavailable.
	Locator Locator
	// Session, when set, restores and persists radius, limit and the last
	// granted location.
	Session session.Store
	Clock   Clock

	CacheTTL        time.Duration
	RefreshInterval time.Duration
	LocateTimeout   time.Duration
	RadiusKm        int
	Limit           int

	Log     *slog.Logger
	Metrics *metrics.Metrics
}

// Coordinator owns the trending query state: location, paging parameters,
// a TTL cache, the single in-flight request and the auto-refresh timer.
//
// All state lives behind mu. A fetch completion applies only if it is still
// the latest request (seq matches) and its context was not cancelled, so a
// slow superseded response can never overwrite a newer one.
type Coordinator struct {
	fetcher       Fetcher
	locator       Locator
	session       session.Store
	clock         Clock
	cache         *Cache
	refreshEvery  time.Duration
	locateTimeout time.Duration
	log           *slog.Logger
	metrics       *metrics.Metrics

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu          sync.Mutex
	phase       LocationPhase
	location    *Location
	relocating  bool
	radius      int
	limit       int
	page        int
	videos      []TrendingVideo
	loading     bool
	errMsg      string
	lastUpdated time.Time
	seq         uint64
	cancelFetch context.CancelFunc
	ticker      Ticker
	disposed    bool
	subs        map[int]chan View
	nextSub     int
}

// NewCoordinator builds an uninitialized Coordinator. Call Initialize to
// start location acquisition.
func NewCoordinator(opts Options) *Coordinator {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	refresh := opts.RefreshInterval
	if refresh <= 0 {
		refresh = DefaultRefreshInterval
	}
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	radius := opts.RadiusKm
	if radius <= 0 {
		radius = DefaultRadiusKm
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	ctx, stop := context.WithCancel(context.Background())
	c := &Coordinator{
		fetcher:       opts.Fetcher,
		locator:       opts.Locator,
		session:       opts.Session,
		clock:         clock,
		cache:         NewCache(opts.CacheTTL),
		refreshEvery:  refresh,
		locateTimeout: opts.LocateTimeout,
		log:           log,
		metrics:       opts.Metrics,
		ctx:           ctx,
		stop:          stop,
		radius:        radius,
		limit:         limit,
		videos:        []TrendingVideo{},
		subs:          make(map[int]chan View),
	}
	c.restorePreferences()
	return c
}

// Initialize starts the one-shot location lookup. It does not block; the
// first fetch is issued once the location phase leaves Pending, and the
// auto-refresh timer starts at the same moment. Calling it again is a no-op.
func (c *Coordinator) Initialize() {
	c.mu.Lock()
	if c.disposed || c.phase != LocationUninitialized {
		c.mu.Unlock()
		return
	}
	c.phase = LocationPending
	c.notifyLocked()
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		c.resolveLocation(false)
	}()
}

// Relocate asks the Locator again, as a manual user action. The current
// phase is kept until the new attempt finishes; the outcome then replaces
// it and a forced fetch follows. Ignored before the initial lookup resolves
// or while another relocation runs.
func (c *Coordinator) Relocate() {
	c.mu.Lock()
	if c.disposed || !c.phase.Resolved() || c.relocating {
		c.mu.Unlock()
		return
	}
	c.relocating = true
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		c.resolveLocation(true)
	}()
}

func (c *Coordinator) resolveLocation(manual bool) {
	res := Resolve(c.ctx, c.locator, c.locateTimeout)
	if c.ctx.Err() != nil {
		return
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.phase = res.Phase
	c.location = res.Location
	c.relocating = false
	startTimer := c.ticker == nil
	if startTimer {
		c.ticker = c.clock.NewTicker(c.refreshEvery)
		c.wg.Add(1)
		go c.autoRefresh(c.ticker)
	}
	c.notifyLocked()
	c.mu.Unlock()

	attrs := []any{slog.String("phase", res.Phase.String()), slog.Bool("manual", manual)}
	if res.Err != nil {
		attrs = append(attrs, slog.String("error", res.Err.Error()))
	}
	c.log.Info("location resolved", attrs...)

	if res.Location != nil {
		c.persist(session.KeyLocation, FormatLocation(*res.Location))
	}
	c.fetch(manual)
}

// autoRefresh forces a fetch on every tick until the coordinator is disposed.
func (c *Coordinator) autoRefresh(t Ticker) {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-t.C():
			c.log.Debug("auto refresh tick")
			c.fetch(true)
		}
	}
}

// SetRadius changes the search radius (clamped to >= 1 km), resets the page
// to 0 and fetches.
func (c *Coordinator) SetRadius(km int) {
	km = max(km, 1)
	c.mu.Lock()
	c.radius = km
	c.page = 0
	c.notifyLocked()
	c.mu.Unlock()

	c.persist(session.KeyRadius, strconv.Itoa(km))
	c.fetch(false)
}

// SetLimit changes the page size (clamped to >= 1), resets the page to 0
// and fetches.
func (c *Coordinator) SetLimit(n int) {
	n = max(n, 1)
	c.mu.Lock()
	c.limit = n
	c.page = 0
	c.notifyLocked()
	c.mu.Unlock()

	c.persist(session.KeyLimit, strconv.Itoa(n))
	c.fetch(false)
}

// GoToPage moves to page n (negative values become 0) keeping radius and
// limit, and fetches. Pages past the end simply come back empty.
func (c *Coordinator) GoToPage(n int) {
	n = max(n, 0)
	c.mu.Lock()
	c.page = n
	c.notifyLocked()
	c.mu.Unlock()

	c.fetch(false)
}

// NextPage advances one page.
func (c *Coordinator) NextPage() {
	c.mu.Lock()
	next := c.page + 1
	c.mu.Unlock()
	c.GoToPage(next)
}

// PrevPage goes back one page, stopping at 0.
func (c *Coordinator) PrevPage() {
	c.mu.Lock()
	prev := c.page - 1
	c.mu.Unlock()
	c.GoToPage(prev)
}

// Refresh re-derives the current query and loads it. Without force a valid
// cache entry is applied synchronously and Refresh reports true; with force
// the cache is bypassed for the lookup but still updated on success.
// Before the location phase resolves Refresh does nothing.
func (c *Coordinator) Refresh(force bool) bool {
	return c.fetch(force)
}

// fetch serves q from cache or starts a request that supersedes any
// request still in flight. It reports whether the cache answered.
func (c *Coordinator) fetch(force bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed || !c.phase.Resolved() {
		return false
	}

	q := NewQuery(c.location, c.radius, c.limit, c.page)
	if !force {
		if e, ok := c.cache.Lookup(q, c.clock.Now()); ok {
			// A cache hit is the newest answer; any older request must not
			// land on top of it.
			c.supersedeLocked()
			c.videos = e.Videos
			c.errMsg = ""
			c.loading = false
			c.lastUpdated = e.FetchedAt
			c.metrics.CacheHit()
			c.log.Debug("trending cache hit", slog.String("query", q.Key()))
			c.notifyLocked()
			return true
		}
		c.metrics.CacheMiss()
	}

	c.supersedeLocked()
	ctx, cancel := context.WithCancel(c.ctx)
	seq := c.seq
	c.cancelFetch = cancel
	c.loading = true
	c.errMsg = ""
	c.notifyLocked()

	c.metrics.FetchStarted()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		start := time.Now()
		videos, err := c.fetcher.FetchTrending(ctx, q)
		c.complete(ctx, seq, q, videos, err, time.Since(start))
	}()
	return false
}

// supersedeLocked cancels the in-flight request, if any, and invalidates
// every outstanding completion.
func (c *Coordinator) supersedeLocked() {
	c.seq++
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}
}

func (c *Coordinator) complete(ctx context.Context, seq uint64, q Query, videos []TrendingVideo, err error, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.seq || ctx.Err() != nil || c.disposed {
		c.metrics.ObserveFetch(metrics.OutcomeSuperseded, elapsed)
		c.log.Debug("discarded superseded trending response", slog.String("query", q.Key()))
		return
	}

	c.cancelFetch = nil
	c.loading = false
	if err != nil {
		c.errMsg = errorMessage(err)
		c.videos = []TrendingVideo{}
		c.metrics.ObserveFetch(metrics.OutcomeError, elapsed)
		c.log.Warn("trending fetch failed",
			slog.String("query", q.Key()),
			slog.String("error", err.Error()))
		c.notifyLocked()
		return
	}

	if videos == nil {
		videos = []TrendingVideo{}
	}
	fetchedAt := c.clock.Now()
	c.cache.Put(q, videos, fetchedAt)
	c.videos = videos
	c.errMsg = ""
	c.lastUpdated = fetchedAt
	c.metrics.ObserveFetch(metrics.OutcomeSuccess, elapsed)
	c.metrics.SetCacheEntries(c.cache.Len())
	c.log.Debug("trending fetch applied",
		slog.String("query", q.Key()),
		slog.Int("count", len(videos)))
	c.notifyLocked()
}

// Snapshot returns the current view.
func (c *Coordinator) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Subscribe returns a channel that receives the current view immediately
// and then the latest view after every change. Only the newest pending view
// is kept, so slow readers skip intermediate states instead of blocking the
// coordinator. The channel is closed by the returned cancel func or by
// Dispose.
func (c *Coordinator) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 1)

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.viewLocked()
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

// CacheLen reports how many entries the cache holds.
func (c *Coordinator) CacheLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

// Dispose cancels the in-flight request, stops the auto-refresh timer and
// closes all subscriptions. It waits for background goroutines to exit and
// is safe to call more than once.
func (c *Coordinator) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}
	if c.ticker != nil {
		c.ticker.Stop()
	}
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.mu.Unlock()

	c.stop()
	c.wg.Wait()
	c.log.Debug("trending coordinator disposed")
}

func (c *Coordinator) viewLocked() View {
	v := View{
		Videos:        c.videos,
		Loading:       c.loading,
		Error:         c.errMsg,
		LocationPhase: c.phase,
		RadiusKm:      c.radius,
		Limit:         c.limit,
		Page:          c.page,
	}
	if !c.lastUpdated.IsZero() {
		t := c.lastUpdated
		v.LastUpdated = &t
	}
	if c.location != nil {
		loc := *c.location
		v.Location = &loc
	}
	return v
}

// notifyLocked publishes the current view to subscribers, replacing any
// view they have not read yet. Caller must hold c.mu.
func (c *Coordinator) notifyLocked() {
	if len(c.subs) == 0 {
		return
	}
	v := c.viewLocked()
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}

func (c *Coordinator) restorePreferences() {
	if c.session == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, sessionTimeout)
	defer cancel()

	if n, ok := c.readInt(ctx, session.KeyRadius); ok && n >= 1 {
		c.radius = n
	}
	if n, ok := c.readInt(ctx, session.KeyLimit); ok && n >= 1 {
		c.limit = n
	}
}

func (c *Coordinator) readInt(ctx context.Context, key string) (int, bool) {
	raw, ok, err := c.session.Get(ctx, key)
	if err != nil {
		c.log.Warn("session read failed", slog.String("key", key), slog.String("error", err.Error()))
		return 0, false
	}
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		c.log.Warn("ignoring invalid session value", slog.String("key", key), slog.String("value", raw))
		return 0, false
	}
	return n, true
}

// persist writes a preference; failures are logged and otherwise ignored.
func (c *Coordinator) persist(key, value string) {
	if c.session == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, sessionTimeout)
	defer cancel()
	if err := c.session.Set(ctx, key, value); err != nil {
		c.log.Warn("session write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}
