package trending

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"trending-coordinator/internal/platform/metrics"
	"trending-coordinator/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

// testT is what the harness needs from a test; *testing.T and *rapid.T
// both satisfy it.
type testT interface {
	Helper()
	Cleanup(func())
	Errorf(format string, args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	FailNow()
}

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time, 1), period: d}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) ticker(t *testing.T) *fakeTicker {
	t.Helper()
	var tk *fakeTicker
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if len(c.tickers) == 0 {
			return false
		}
		tk = c.tickers[0]
		return true
	}, waitFor, time.Millisecond)
	return tk
}

func (c *fakeClock) tickerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

type fakeTicker struct {
	ch      chan time.Time
	period  time.Duration
	mu      sync.Mutex
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *fakeTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *fakeTicker) Tick(now time.Time) { t.ch <- now }

// fetchCall is one request seen by fakeFetcher, answered by reply.
type fetchCall struct {
	q    Query
	ctx  context.Context
	resp chan fetchResult
}

type fetchResult struct {
	videos []TrendingVideo
	err    error
}

func (c *fetchCall) reply(videos []TrendingVideo, err error) {
	c.resp <- fetchResult{videos: videos, err: err}
}

// fakeFetcher hands every request to the test. With ignoreCancel set it
// keeps waiting for a reply after its context is cancelled, like a backend
// that answers late.
type fakeFetcher struct {
	calls        chan *fetchCall
	issued       atomic.Int32
	ignoreCancel bool
	release      chan struct{}
	once         sync.Once
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{calls: make(chan *fetchCall, 64), release: make(chan struct{})}
}

func (f *fakeFetcher) FetchTrending(ctx context.Context, q Query) ([]TrendingVideo, error) {
	call := &fetchCall{q: q, ctx: ctx, resp: make(chan fetchResult, 1)}
	f.issued.Add(1)
	f.calls <- call
	if f.ignoreCancel {
		select {
		case r := <-call.resp:
			return r.videos, r.err
		case <-f.release:
			return nil, ErrCancelled
		}
	}
	select {
	case r := <-call.resp:
		return r.videos, r.err
	case <-ctx.Done():
		return nil, ErrCancelled
	case <-f.release:
		return nil, ErrCancelled
	}
}

func (f *fakeFetcher) Close() { f.once.Do(func() { close(f.release) }) }

func (f *fakeFetcher) next(t testT) *fetchCall {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for a fetch")
		return nil
	}
}

func (f *fakeFetcher) assertNoCall(t testT) {
	t.Helper()
	select {
	case c := <-f.calls:
		t.Fatalf("unexpected fetch for %s", c.q.Key())
	case <-time.After(50 * time.Millisecond):
	}
}

type harness struct {
	coord   *Coordinator
	clock   *fakeClock
	fetcher *fakeFetcher
}

var berlin = Location{Lat: 52.52, Lon: 13.405}

func newHarness(t testT, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{clock: newFakeClock(), fetcher: newFakeFetcher()}
	opts := Options{
		Fetcher: h.fetcher,
		Locator: StaticLocator{Position: berlin},
		Clock:   h.clock,
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.coord = NewCoordinator(opts)
	t.Cleanup(h.coord.Dispose)
	t.Cleanup(h.fetcher.Close)
	return h
}

func videosNamed(names ...string) []TrendingVideo {
	out := make([]TrendingVideo, len(names))
	for i, n := range names {
		out[i] = TrendingVideo{ID: int64(i + 1), Title: n}
	}
	return out
}

func waitView(t testT, c *Coordinator, cond func(View) bool) View {
	t.Helper()
	var v View
	require.Eventually(t, func() bool {
		v = c.Snapshot()
		return cond(v)
	}, waitFor, time.Millisecond)
	return v
}

func settled(v View) bool { return !v.Loading }

// answer replies to the pending fetch, if there is one, and waits for the
// view to settle. It reports the answered query.
func (h *harness) answer(t testT, videos []TrendingVideo) (Query, bool) {
	t.Helper()
	if !h.coord.Snapshot().Loading {
		return Query{}, false
	}
	call := h.fetcher.next(t)
	call.reply(videos, nil)
	waitView(t, h.coord, settled)
	return call.q, true
}

// start initializes the coordinator and answers the first fetch.
func (h *harness) start(t testT, videos []TrendingVideo) *fetchCall {
	t.Helper()
	h.coord.Initialize()
	call := h.fetcher.next(t)
	call.reply(videos, nil)
	waitView(t, h.coord, func(v View) bool { return !v.Loading && v.LastUpdated != nil })
	return call
}

func TestCoordinator_initial_state(t *testing.T) {
	h := newHarness(t, nil)
	v := h.coord.Snapshot()
	assert.Equal(t, LocationUninitialized, v.LocationPhase)
	assert.Empty(t, v.Videos)
	assert.NotNil(t, v.Videos)
	assert.False(t, v.Loading)
	assert.Empty(t, v.Error)
	assert.Nil(t, v.LastUpdated)
	assert.Equal(t, DefaultRadiusKm, v.RadiusKm)
	assert.Equal(t, DefaultLimit, v.Limit)
	assert.Equal(t, 0, v.Page)
}

func TestCoordinator_no_fetch_before_location_resolves(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, func(o *Options) {
		o.Locator = LocatorFunc(func(ctx context.Context) (Location, error) {
			select {
			case <-release:
				return berlin, nil
			case <-ctx.Done():
				return Location{}, ctx.Err()
			}
		})
	})

	assert.False(t, h.coord.Refresh(false), "uninitialized coordinator must not fetch")
	h.coord.Initialize()
	waitView(t, h.coord, func(v View) bool { return v.LocationPhase == LocationPending })

	h.coord.SetRadius(25)
	h.coord.GoToPage(2)
	assert.False(t, h.coord.Refresh(true))
	h.fetcher.assertNoCall(t)
	assert.Equal(t, 0, h.clock.tickerCount(), "auto refresh starts only after location resolves")

	v := h.coord.Snapshot()
	assert.Equal(t, 25, v.RadiusKm)
	assert.Equal(t, 2, v.Page)

	close(release)
	call := h.fetcher.next(t)
	assert.Equal(t, 25, call.q.RadiusKm)
	assert.Equal(t, 2, call.q.Page)
	assert.True(t, call.q.HasLocation())
	h.fetcher.assertNoCall(t)
}

func TestCoordinator_granted_location_scopes_query(t *testing.T) {
	h := newHarness(t, nil)
	h.coord.Initialize()

	call := h.fetcher.next(t)
	assert.Equal(t, "lat=52.520000&lon=13.405000&radius=10&limit=8&page=0", call.q.Key())

	v := h.coord.Snapshot()
	assert.True(t, v.Loading)
	assert.Equal(t, LocationGranted, v.LocationPhase)
	require.NotNil(t, v.Location)
	assert.Equal(t, berlin, *v.Location)

	call.reply(videosNamed("a", "b"), nil)
	v = waitView(t, h.coord, settled)
	assert.Len(t, v.Videos, 2)
	require.NotNil(t, v.LastUpdated)
	assert.Equal(t, h.clock.Now(), *v.LastUpdated)
}

func TestCoordinator_location_failure_fetches_global(t *testing.T) {
	cases := []struct {
		name    string
		locator Locator
		phase   LocationPhase
	}{
		{
			name: "denied",
			locator: LocatorFunc(func(context.Context) (Location, error) {
				return Location{}, errors.New("user denied geolocation")
			}),
			phase: LocationDenied,
		},
		{
			name:    "no_locator",
			locator: nil,
			phase:   LocationUnavailable,
		},
		{
			name: "unsupported",
			locator: LocatorFunc(func(context.Context) (Location, error) {
				return Location{}, ErrLocationUnavailable
			}),
			phase: LocationUnavailable,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, func(o *Options) { o.Locator = tc.locator })
			h.coord.Initialize()

			call := h.fetcher.next(t)
			assert.False(t, call.q.HasLocation())
			assert.Equal(t, "radius=10&limit=8&page=0", call.q.Key())

			v := h.coord.Snapshot()
			assert.Equal(t, tc.phase, v.LocationPhase)
			assert.Nil(t, v.Location)
		})
	}
}

func TestCoordinator_cache_hit_within_ttl(t *testing.T) {
	h := newHarness(t, nil)
	first := videosNamed("a", "b", "c")
	h.start(t, first)
	fetchedAt := h.clock.Now()

	h.clock.Advance(100 * time.Second)
	assert.True(t, h.coord.Refresh(false))
	h.fetcher.assertNoCall(t)

	v := h.coord.Snapshot()
	assert.False(t, v.Loading)
	require.Len(t, v.Videos, len(first))
	assert.Same(t, &first[0], &v.Videos[0], "cache hit returns the stored slice")
	require.NotNil(t, v.LastUpdated)
	assert.Equal(t, fetchedAt, *v.LastUpdated, "cache hit keeps the original fetch time")

	// 301s after the fetch the entry has expired.
	h.clock.Advance(201 * time.Second)
	assert.False(t, h.coord.Refresh(false))
	call := h.fetcher.next(t)
	assert.True(t, h.coord.Snapshot().Loading)

	second := videosNamed("d")
	call.reply(second, nil)
	v = waitView(t, h.coord, settled)
	assert.Equal(t, second, v.Videos)
	assert.Equal(t, h.clock.Now(), *v.LastUpdated)
}

func TestCoordinator_failure_keeps_other_cache_entries(t *testing.T) {
	h := newHarness(t, nil)
	a := videosNamed("a", "b")
	h.start(t, a)

	h.coord.SetRadius(20)
	h.fetcher.next(t).reply(nil, &StatusError{StatusCode: 500})
	v := waitView(t, h.coord, settled)
	assert.Equal(t, "Trending request failed (500)", v.Error)
	assert.Empty(t, v.Videos)
	assert.Equal(t, 1, h.coord.CacheLen())

	h.coord.SetRadius(10)
	h.fetcher.assertNoCall(t)
	v = h.coord.Snapshot()
	assert.False(t, v.Loading)
	assert.Empty(t, v.Error)
	require.Len(t, v.Videos, len(a))
	assert.Same(t, &a[0], &v.Videos[0])
}

func TestCoordinator_force_refresh_bypasses_cache(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t, videosNamed("a"))

	h.clock.Advance(10 * time.Second)
	assert.False(t, h.coord.Refresh(true))
	call := h.fetcher.next(t)
	call.reply(videosNamed("x", "y"), nil)
	v := waitView(t, h.coord, func(v View) bool { return !v.Loading && len(v.Videos) == 2 })
	assert.Equal(t, h.clock.Now(), *v.LastUpdated)

	// The forced result was cached.
	h.clock.Advance(10 * time.Second)
	assert.True(t, h.coord.Refresh(false))
	assert.Len(t, h.coord.Snapshot().Videos, 2)
	h.fetcher.assertNoCall(t)
}

func TestCoordinator_superseded_response_is_discarded(t *testing.T) {
	h := newHarness(t, nil)
	h.fetcher.ignoreCancel = true
	h.coord.Initialize()

	call10 := h.fetcher.next(t)
	assert.Equal(t, 10, call10.q.RadiusKm)

	h.coord.SetRadius(20)
	call20 := h.fetcher.next(t)
	assert.Equal(t, 20, call20.q.RadiusKm)
	assert.Error(t, call10.ctx.Err(), "older request is cancelled")

	b := videosNamed("B")
	call20.reply(b, nil)
	waitView(t, h.coord, settled)

	// The radius-10 response arrives late and must be ignored.
	call10.reply(videosNamed("A"), nil)
	h.fetcher.assertNoCall(t)
	v := h.coord.Snapshot()
	assert.Equal(t, b, v.Videos)
	assert.Equal(t, 20, v.RadiusKm)

	// Nor was it cached: going back to radius 10 needs a fetch.
	h.coord.SetRadius(10)
	call := h.fetcher.next(t)
	assert.Equal(t, 10, call.q.RadiusKm)
	call.reply(nil, nil)
}

func TestCoordinator_superseded_failure_is_discarded(t *testing.T) {
	h := newHarness(t, nil)
	h.fetcher.ignoreCancel = true
	h.coord.Initialize()

	first := h.fetcher.next(t)
	h.coord.GoToPage(1)
	second := h.fetcher.next(t)

	first.reply(nil, &StatusError{StatusCode: 500})
	second.reply(videosNamed("p1"), nil)
	v := waitView(t, h.coord, settled)
	assert.Empty(t, v.Error)
	assert.Equal(t, 1, v.Page)
	assert.Len(t, v.Videos, 1)
}

func TestCoordinator_supersession_with_half_open_breaker(t *testing.T) {
	var breaker *BreakerFetcher
	h := newHarness(t, func(o *Options) {
		breaker = newBreakerFetcher(o.Fetcher, nil, nil, 20*time.Millisecond)
		o.Fetcher = breaker
	})
	h.fetcher.ignoreCancel = true
	h.start(t, videosNamed("a"))

	for i := 0; i < breakerTripFailures; i++ {
		h.coord.Refresh(true)
		h.fetcher.next(t).reply(nil, &StatusError{StatusCode: 503})
		waitView(t, h.coord, func(v View) bool { return !v.Loading && v.Error != "" })
	}
	require.Equal(t, "open", breaker.State())
	require.Eventually(t, func() bool { return breaker.State() == "half-open" }, time.Second, 5*time.Millisecond)

	h.coord.Refresh(true)
	stale := h.fetcher.next(t)

	// The user changes radius while the first half-open request is out.
	h.coord.SetRadius(20)
	fresh := h.fetcher.next(t)
	assert.Equal(t, 20, fresh.q.RadiusKm)
	assert.Error(t, stale.ctx.Err())

	fresh.reply(videosNamed("near"), nil)
	v := waitView(t, h.coord, settled)
	assert.Empty(t, v.Error)
	assert.Equal(t, videosNamed("near"), v.Videos)

	stale.reply(nil, ErrCancelled)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, "half-open", breaker.State())
	assert.Equal(t, videosNamed("near"), h.coord.Snapshot().Videos)

	// Only real successes count towards closing the breaker.
	for i := 1; i < breakerHalfOpenRequests; i++ {
		require.Equal(t, "half-open", breaker.State())
		h.coord.Refresh(true)
		h.fetcher.next(t).reply(videosNamed("near"), nil)
		waitView(t, h.coord, settled)
	}
	require.Eventually(t, func() bool { return breaker.State() == "closed" }, waitFor, time.Millisecond)
}

func TestCoordinator_cache_hit_supersedes_inflight_request(t *testing.T) {
	h := newHarness(t, nil)
	h.fetcher.ignoreCancel = true
	a := videosNamed("A")
	h.start(t, a)

	h.coord.SetRadius(20)
	inflight := h.fetcher.next(t)

	h.coord.SetRadius(10)
	h.fetcher.assertNoCall(t)
	assert.Error(t, inflight.ctx.Err())
	v := h.coord.Snapshot()
	assert.False(t, v.Loading)
	assert.Equal(t, a, v.Videos)

	inflight.reply(videosNamed("B"), nil)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, a, h.coord.Snapshot().Videos)
}

func TestCoordinator_parameter_changes_reset_page(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t, videosNamed("a"))

	h.coord.GoToPage(3)
	call := h.fetcher.next(t)
	assert.Equal(t, 3, call.q.Page)
	assert.Equal(t, 10, call.q.RadiusKm)
	assert.Equal(t, 8, call.q.Limit)

	h.coord.SetLimit(12)
	call = h.fetcher.next(t)
	assert.Equal(t, 0, call.q.Page)
	assert.Equal(t, 12, call.q.Limit)
	assert.Equal(t, 0, h.coord.Snapshot().Page)

	h.coord.GoToPage(2)
	call = h.fetcher.next(t)
	assert.Equal(t, 2, call.q.Page)
	assert.Equal(t, 12, call.q.Limit)

	h.coord.SetRadius(50)
	call = h.fetcher.next(t)
	assert.Equal(t, 0, call.q.Page)
	assert.Equal(t, 50, call.q.RadiusKm)
	assert.Equal(t, 12, call.q.Limit)
	call.reply(nil, nil)
}

func TestCoordinator_clamps_parameters(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t, nil)

	h.coord.SetRadius(0)
	call := h.fetcher.next(t)
	assert.Equal(t, 1, call.q.RadiusKm)

	h.coord.SetLimit(-4)
	call = h.fetcher.next(t)
	assert.Equal(t, 1, call.q.Limit)

	h.coord.GoToPage(-2)
	// The previous request for this key was never answered.
	call = h.fetcher.next(t)
	assert.Equal(t, 0, call.q.Page)
	call.reply(nil, nil)
}

func TestCoordinator_next_and_prev_page(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t, videosNamed("a"))

	h.coord.PrevPage()
	// Page 0 again: served from cache.
	h.fetcher.assertNoCall(t)
	assert.Equal(t, 0, h.coord.Snapshot().Page)

	h.coord.NextPage()
	call := h.fetcher.next(t)
	assert.Equal(t, 1, call.q.Page)
	call.reply(videosNamed("b"), nil)
	waitView(t, h.coord, settled)

	h.coord.NextPage()
	call = h.fetcher.next(t)
	assert.Equal(t, 2, call.q.Page)
	call.reply(nil, nil)
	v := waitView(t, h.coord, settled)
	assert.Empty(t, v.Videos, "pages past the end are empty, not an error")
	assert.Empty(t, v.Error)

	h.coord.PrevPage()
	h.fetcher.assertNoCall(t)
	v = h.coord.Snapshot()
	assert.Equal(t, 1, v.Page)
	assert.Equal(t, "b", v.Videos[0].Title)
}

func TestCoordinator_failure_sets_error(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t, videosNamed("a"))
	before := *h.coord.Snapshot().LastUpdated

	h.clock.Advance(time.Minute)
	h.coord.Refresh(true)
	call := h.fetcher.next(t)
	call.reply(nil, &StatusError{StatusCode: 500})

	v := waitView(t, h.coord, settled)
	assert.Equal(t, "Trending request failed (500)", v.Error)
	assert.True(t, v.HasError())
	assert.Empty(t, v.Videos)
	assert.NotNil(t, v.Videos)
	assert.Equal(t, before, *v.LastUpdated)

	// The next attempt clears the error while loading.
	h.coord.Refresh(true)
	call = h.fetcher.next(t)
	v = h.coord.Snapshot()
	assert.True(t, v.Loading)
	assert.Empty(t, v.Error)
	call.reply(videosNamed("ok"), nil)
	v = waitView(t, h.coord, settled)
	assert.Empty(t, v.Error)
	assert.Len(t, v.Videos, 1)
}

func TestCoordinator_timeout_message(t *testing.T) {
	h := newHarness(t, nil)
	h.coord.Initialize()
	h.fetcher.next(t).reply(nil, ErrTimeout)
	v := waitView(t, h.coord, settled)
	assert.Equal(t, "Request timed out", v.Error)
}

func TestCoordinator_auto_refresh_forces_fetch(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.RefreshInterval = time.Minute })
	h.start(t, videosNamed("a"))

	tk := h.clock.ticker(t)
	assert.Equal(t, time.Minute, tk.period)

	h.clock.Advance(time.Minute)
	tk.Tick(h.clock.Now())
	call := h.fetcher.next(t)
	assert.Equal(t, "lat=52.520000&lon=13.405000&radius=10&limit=8&page=0", call.q.Key())
	call.reply(videosNamed("fresh"), nil)
	v := waitView(t, h.coord, func(v View) bool { return !v.Loading && v.Videos[0].Title == "fresh" })
	assert.Equal(t, h.clock.Now(), *v.LastUpdated)
}

func TestCoordinator_relocate(t *testing.T) {
	var mu sync.Mutex
	pos := berlin
	h := newHarness(t, func(o *Options) {
		o.Locator = LocatorFunc(func(context.Context) (Location, error) {
			mu.Lock()
			defer mu.Unlock()
			return pos, nil
		})
	})

	h.coord.Relocate()
	h.fetcher.assertNoCall(t)

	h.start(t, videosNamed("berlin"))

	mu.Lock()
	pos = Location{Lat: 48.8566, Lon: 2.3522}
	mu.Unlock()
	h.coord.Relocate()

	call := h.fetcher.next(t)
	require.True(t, call.q.HasLocation())
	assert.InDelta(t, 48.8566, *call.q.Lat, 1e-9)
	call.reply(videosNamed("paris"), nil)
	v := waitView(t, h.coord, func(v View) bool { return !v.Loading && v.Videos[0].Title == "paris" })
	assert.Equal(t, LocationGranted, v.LocationPhase)
	assert.Equal(t, 1, h.clock.tickerCount(), "relocation does not start a second timer")
}

func TestCoordinator_session_preferences(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(ctx, session.KeyRadius, "30"))
	require.NoError(t, store.Set(ctx, session.KeyLimit, "not-a-number"))

	h := newHarness(t, func(o *Options) { o.Session = store })
	v := h.coord.Snapshot()
	assert.Equal(t, 30, v.RadiusKm)
	assert.Equal(t, DefaultLimit, v.Limit)

	h.start(t, nil)
	loc, ok, err := store.Get(ctx, session.KeyLocation)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, FormatLocation(berlin), loc)

	h.coord.SetLimit(16)
	h.fetcher.next(t).reply(nil, nil)
	raw, ok, err := store.Get(ctx, session.KeyLimit)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, strconv.Itoa(16), raw)
}

func TestCoordinator_subscribe(t *testing.T) {
	h := newHarness(t, nil)
	views, cancel := h.coord.Subscribe()
	defer cancel()

	first := <-views
	assert.Equal(t, LocationUninitialized, first.LocationPhase)

	h.coord.Initialize()
	call := h.fetcher.next(t)
	call.reply(videosNamed("a"), nil)

	require.Eventually(t, func() bool {
		select {
		case v := <-views:
			return !v.Loading && len(v.Videos) == 1
		default:
			return false
		}
	}, waitFor, time.Millisecond)

	cancel()
	cancel()
	for range views {
	}
	assert.Equal(t, 0, len(h.coord.subs))
}

func TestCoordinator_dispose(t *testing.T) {
	m := metrics.New()
	h := newHarness(t, func(o *Options) { o.Metrics = m })
	h.coord.Initialize()
	call := h.fetcher.next(t)
	tk := h.clock.ticker(t)
	views, _ := h.coord.Subscribe()

	h.coord.Dispose()
	assert.Error(t, call.ctx.Err(), "in-flight request is cancelled")
	assert.True(t, tk.isStopped())
	for range views {
	}

	h.coord.SetRadius(99)
	h.coord.Relocate()
	assert.False(t, h.coord.Refresh(true))
	h.fetcher.assertNoCall(t)
	h.coord.Dispose()

	closed, cancel := h.coord.Subscribe()
	defer cancel()
	_, ok := <-closed
	assert.False(t, ok)
	assert.Equal(t, 0.0, gaugeValue(t, m, "trending_inflight_requests"))
}

func TestView_HasNextPage(t *testing.T) {
	assert.True(t, View{Videos: videosNamed("a", "b"), Limit: 2}.HasNextPage())
	assert.False(t, View{Videos: videosNamed("a"), Limit: 2}.HasNextPage())
	assert.False(t, View{Videos: videosNamed("a", "b"), Limit: 2, Loading: true}.HasNextPage())
}

func TestLocationPhase(t *testing.T) {
	assert.False(t, LocationPending.Resolved())
	assert.True(t, LocationDenied.Resolved())
	b, err := LocationGranted.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "granted", string(b))
	assert.Equal(t, "Location was denied; showing global trends.", LocationDenied.Message())
}
