package trending

import "time"

// TrendingVideo is the read-only projection of a trending video returned by
// the backend.
type TrendingVideo struct {
	ID            int64    `json:"id"`
	Title         string   `json:"title"`
	TrendingScore float64  `json:"trendingScore"`
	DistanceKm    *float64 `json:"distanceKm,omitempty"`
	ThumbnailPath string   `json:"thumbnailPath,omitempty"`
	VideoPath     string   `json:"videoPath,omitempty"`
	Description   string   `json:"description,omitempty"`
	Author        string   `json:"author,omitempty"`
	UploadedAt    string   `json:"uploadedAt,omitempty"`
}

// CacheEntry holds a stored result for one query key.
type CacheEntry struct {
	Query     Query
	Videos    []TrendingVideo
	FetchedAt time.Time
}

// LocationPhase is the resolved or unresolved state of location acquisition.
// Pending resolves exactly once to Granted, Denied or Unavailable.
type LocationPhase int

const (
	LocationUninitialized LocationPhase = iota
	LocationPending
	LocationGranted
	LocationDenied
	LocationUnavailable
)

func (p LocationPhase) String() string {
	switch p {
	case LocationUninitialized:
		return "uninitialized"
	case LocationPending:
		return "pending"
	case LocationGranted:
		return "granted"
	case LocationDenied:
		return "denied"
	case LocationUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// MarshalText renders the phase by name in logs and JSON.
func (p LocationPhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Resolved reports whether location acquisition has finished.
func (p LocationPhase) Resolved() bool {
	return p == LocationGranted || p == LocationDenied || p == LocationUnavailable
}

// Message returns the user-facing description of the phase.
func (p LocationPhase) Message() string {
	switch p {
	case LocationUninitialized, LocationPending:
		return "We use your approximate location to show nearby trending videos."
	case LocationGranted:
		return "Showing trends near you."
	case LocationDenied:
		return "Location was denied; showing global trends."
	default:
		return "Location unavailable; showing global trends."
	}
}

// Location is a latitude/longitude pair in decimal degrees.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// View is a consistent snapshot of the coordinator's reactive state.
type View struct {
	Videos        []TrendingVideo
	Loading       bool
	Error         string
	LastUpdated   *time.Time
	LocationPhase LocationPhase
	Location      *Location
	RadiusKm      int
	Limit         int
	Page          int
}

// HasError reports whether the last fetch failed.
func (v View) HasError() bool { return v.Error != "" }

// HasNextPage reports whether paging forward can yield more results:
// the current page is full and nothing is loading.
func (v View) HasNextPage() bool {
	return !v.Loading && len(v.Videos) >= v.Limit
}
