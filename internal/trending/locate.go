package trending

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"trending-coordinator/internal/session"

	"github.com/goccy/go-json"
)

const (
	// DefaultLocateTimeout bounds a single location attempt.
	DefaultLocateTimeout = 5 * time.Second

	// DefaultLocateMaxAge is how old a previously obtained position may be
	// and still be reused.
	DefaultLocateMaxAge = 60 * time.Second
)

// Locator obtains the current position once. Implementations return
// ErrLocationUnavailable when they have no way to determine a position.
type Locator interface {
	Locate(ctx context.Context) (Location, error)
}

// LocationResult is the outcome of one location attempt.
type LocationResult struct {
	Phase    LocationPhase
	Location *Location
	Err      error
}

// Resolve runs loc under timeout and maps the outcome to a phase: a nil
// locator or ErrLocationUnavailable yields Unavailable, any other failure
// (including the timeout) yields Denied.
func Resolve(ctx context.Context, loc Locator, timeout time.Duration) LocationResult {
	if loc == nil {
		return LocationResult{Phase: LocationUnavailable, Err: ErrLocationUnavailable}
	}
	if timeout <= 0 {
		timeout = DefaultLocateTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pos, err := loc.Locate(ctx)
	switch {
	case err == nil:
		if !isFinite(pos.Lat) || !isFinite(pos.Lon) {
			return LocationResult{Phase: LocationDenied, Err: ErrLocationDenied}
		}
		return LocationResult{Phase: LocationGranted, Location: &pos}
	case errors.Is(err, ErrLocationUnavailable):
		return LocationResult{Phase: LocationUnavailable, Err: err}
	default:
		return LocationResult{Phase: LocationDenied, Err: err}
	}
}

// StaticLocator always reports a fixed position.
type StaticLocator struct {
	Position Location
}

// Locate implements Locator.
func (s StaticLocator) Locate(ctx context.Context) (Location, error) {
	if err := ctx.Err(); err != nil {
		return Location{}, err
	}
	return s.Position, nil
}

// LocatorFunc adapts a function to the Locator interface.
type LocatorFunc func(ctx context.Context) (Location, error)

// Locate implements Locator.
func (f LocatorFunc) Locate(ctx context.Context) (Location, error) { return f(ctx) }

// ipLookupResponse is the subset of an ip-api style JSON answer we read.
type ipLookupResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// IPLocator approximates the position from the caller's public IP using an
// ip-api compatible endpoint (e.g. http://ip-api.com/json).
type IPLocator struct {
	URL    string
	Client *http.Client
}

// Locate implements Locator.
func (l IPLocator) Locate(ctx context.Context) (Location, error) {
	if l.URL == "" {
		return Location{}, ErrLocationUnavailable
	}
	hc := l.Client
	if hc == nil {
		hc = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return Location{}, fmt.Errorf("ip locate request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("ip locate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
		return Location{}, fmt.Errorf("ip locate: status %d: %w", resp.StatusCode, ErrLocationDenied)
	}

	var out ipLookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Location{}, fmt.Errorf("ip locate decode: %w", err)
	}
	if out.Status != "success" {
		return Location{}, fmt.Errorf("ip locate %q: %w", out.Message, ErrLocationDenied)
	}
	return Location{Lat: out.Lat, Lon: out.Lon}, nil
}

// MaxAgeLocator reuses a position obtained less than MaxAge ago instead of
// asking the wrapped Locator again.
type MaxAgeLocator struct {
	Locator Locator
	MaxAge  time.Duration
	Now     func() time.Time

	mu     sync.Mutex
	last   Location
	lastAt time.Time
	ok     bool
}

// NewMaxAgeLocator wraps loc. If maxAge <= 0, DefaultLocateMaxAge is used.
func NewMaxAgeLocator(loc Locator, maxAge time.Duration) *MaxAgeLocator {
	if maxAge <= 0 {
		maxAge = DefaultLocateMaxAge
	}
	return &MaxAgeLocator{Locator: loc, MaxAge: maxAge, Now: time.Now}
}

// Locate implements Locator.
func (m *MaxAgeLocator) Locate(ctx context.Context) (Location, error) {
	now := m.Now()

	m.mu.Lock()
	if m.ok && now.Sub(m.lastAt) < m.MaxAge {
		pos := m.last
		m.mu.Unlock()
		return pos, nil
	}
	m.mu.Unlock()

	pos, err := m.Locator.Locate(ctx)
	if err != nil {
		return Location{}, err
	}

	m.mu.Lock()
	m.last, m.lastAt, m.ok = pos, now, true
	m.mu.Unlock()
	return pos, nil
}

// SessionLocator reports the last position saved in a session store, as
// written by the coordinator after a granted lookup or by an external UI.
type SessionLocator struct {
	Store session.Store
}

// Locate implements Locator.
func (s SessionLocator) Locate(ctx context.Context) (Location, error) {
	if s.Store == nil {
		return Location{}, ErrLocationUnavailable
	}
	raw, ok, err := s.Store.Get(ctx, session.KeyLocation)
	if err != nil {
		return Location{}, fmt.Errorf("session locate: %w", err)
	}
	if !ok {
		return Location{}, ErrLocationUnavailable
	}
	return ParseLocation(raw)
}

// ParseLocation parses the "lat,lon" form written by FormatLocation.
func ParseLocation(raw string) (Location, error) {
	latStr, lonStr, found := strings.Cut(raw, ",")
	if !found {
		return Location{}, fmt.Errorf("parse location %q: missing comma", raw)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return Location{}, fmt.Errorf("parse latitude %q: %w", latStr, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return Location{}, fmt.Errorf("parse longitude %q: %w", lonStr, err)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Location{}, fmt.Errorf("location %q out of range", raw)
	}
	return Location{Lat: lat, Lon: lon}, nil
}

// FormatLocation renders loc as "lat,lon" with six decimals.
func FormatLocation(loc Location) string {
	return strconv.FormatFloat(loc.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(loc.Lon, 'f', 6, 64)
}
