package trending

import (
	"math"
	"strconv"
	"strings"

	"github.com/google/go-querystring/query"
)

const (
	DefaultRadiusKm = 10
	DefaultLimit    = 8
)

// Query identifies one backend result set. Lat and Lon are either both set
// or both nil.
type Query struct {
	Lat      *float64 `url:"lat,omitempty"`
	Lon      *float64 `url:"lon,omitempty"`
	RadiusKm int      `url:"radius"`
	Limit    int      `url:"limit"`
	Page     int      `url:"page"`
}

// NewQuery builds a Query, dropping the location unless it is present and
// finite, and clamping radius and limit to at least 1 and page to at least 0.
func NewQuery(loc *Location, radiusKm, limit, page int) Query {
	q := Query{
		RadiusKm: max(radiusKm, 1),
		Limit:    max(limit, 1),
		Page:     max(page, 0),
	}
	if loc != nil && isFinite(loc.Lat) && isFinite(loc.Lon) {
		lat, lon := loc.Lat, loc.Lon
		q.Lat, q.Lon = &lat, &lon
	}
	return q
}

// HasLocation reports whether the query is geo-scoped.
func (q Query) HasLocation() bool {
	return q.Lat != nil && q.Lon != nil
}

// Key returns the canonical cache key: fields in fixed order, coordinates
// rounded to six decimals and omitted when absent.
func (q Query) Key() string {
	var b strings.Builder
	if q.HasLocation() {
		b.WriteString("lat=")
		b.WriteString(formatCoord(*q.Lat))
		b.WriteString("&lon=")
		b.WriteString(formatCoord(*q.Lon))
		b.WriteString("&")
	}
	b.WriteString("radius=")
	b.WriteString(strconv.Itoa(q.RadiusKm))
	b.WriteString("&limit=")
	b.WriteString(strconv.Itoa(q.Limit))
	b.WriteString("&page=")
	b.WriteString(strconv.Itoa(q.Page))
	return b.String()
}

// formatCoord renders v to six decimals. Anything that rounds to zero,
// negative zero included, renders unsigned.
func formatCoord(v float64) string {
	s := strconv.FormatFloat(v, 'f', 6, 64)
	if s == "-0.000000" {
		return "0.000000"
	}
	return s
}

// Encode renders the query as URL parameters for the trending endpoint.
func (q Query) Encode() (string, error) {
	v, err := query.Values(q)
	if err != nil {
		return "", err
	}
	return v.Encode(), nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
