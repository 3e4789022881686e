package view

import (
	"log/slog"
	"net/http"
	"strconv"

	"trending-coordinator/internal/platform/logger"
	"trending-coordinator/internal/platform/metrics"
	"trending-coordinator/internal/trending"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// Coordinator is the part of *trending.Coordinator the view drives.
type Coordinator interface {
	Snapshot() trending.View
	Subscribe() (<-chan trending.View, func())
	SetRadius(km int)
	SetLimit(n int)
	GoToPage(n int)
	Refresh(force bool) bool
	Relocate()
}

// Handler exposes the coordinator's reactive view over HTTP and WebSocket.
type Handler struct {
	coord    Coordinator
	log      *slog.Logger
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
	live     LiveConfig
}

// NewHandler returns a Handler for coord. Metrics may be nil to disable
// metric recording (e.g. in tests).
func NewHandler(coord Coordinator, log *slog.Logger, m *metrics.Metrics) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		coord:   coord,
		log:     log,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		live: DefaultLiveConfig(),
	}
}

// viewResponse is the wire form of trending.View. lastUpdated is epoch
// milliseconds of the network fetch that produced the videos.
type viewResponse struct {
	Videos          []trending.TrendingVideo `json:"videos"`
	Loading         bool                     `json:"loading"`
	Error           *string                  `json:"error"`
	LastUpdated     *int64                   `json:"lastUpdated"`
	LocationPhase   string                   `json:"locationPhase"`
	LocationMessage string                   `json:"locationMessage"`
	Location        *trending.Location       `json:"location,omitempty"`
	RadiusKm        int                      `json:"radiusKm"`
	Limit           int                      `json:"limit"`
	Page            int                      `json:"page"`
	HasNextPage     bool                     `json:"hasNextPage"`
}

func toResponse(v trending.View) viewResponse {
	resp := viewResponse{
		Videos:          v.Videos,
		Loading:         v.Loading,
		LocationPhase:   v.LocationPhase.String(),
		LocationMessage: v.LocationPhase.Message(),
		Location:        v.Location,
		RadiusKm:        v.RadiusKm,
		Limit:           v.Limit,
		Page:            v.Page,
		HasNextPage:     v.HasNextPage(),
	}
	if resp.Videos == nil {
		resp.Videos = []trending.TrendingVideo{}
	}
	if v.HasError() {
		msg := v.Error
		resp.Error = &msg
	}
	if v.LastUpdated != nil {
		ms := v.LastUpdated.UnixMilli()
		resp.LastUpdated = &ms
	}
	return resp
}

// GetView handles GET /trending.
func (h *Handler) GetView(w http.ResponseWriter, r *http.Request) {
	h.writeView(w, http.StatusOK, h.coord.Snapshot())
}

// SetRadius handles POST /trending/radius. Body: { "radiusKm": 20 }.
func (h *Handler) SetRadius(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RadiusKm *int `json:"radiusKm"`
	}
	if !h.decode(w, r, &body) || body.RadiusKm == nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	h.coord.SetRadius(*body.RadiusKm)
	h.log.Debug("radius changed", slog.Int("radius_km", *body.RadiusKm))
	h.writeView(w, http.StatusAccepted, h.coord.Snapshot())
}

// SetLimit handles POST /trending/limit. Body: { "limit": 12 }.
func (h *Handler) SetLimit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Limit *int `json:"limit"`
	}
	if !h.decode(w, r, &body) || body.Limit == nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	h.coord.SetLimit(*body.Limit)
	h.log.Debug("limit changed", slog.Int("limit", *body.Limit))
	h.writeView(w, http.StatusAccepted, h.coord.Snapshot())
}

// GoToPage handles POST /trending/page. Body: { "page": 2 }.
func (h *Handler) GoToPage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Page *int `json:"page"`
	}
	if !h.decode(w, r, &body) || body.Page == nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	h.coord.GoToPage(*body.Page)
	h.writeView(w, http.StatusAccepted, h.coord.Snapshot())
}

// Refresh handles POST /trending/refresh[?force=true]. A cache hit answers
// 200, a started request 202.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	force := false
	if s := r.URL.Query().Get("force"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		force = b
	}
	status := http.StatusAccepted
	if h.coord.Refresh(force) {
		status = http.StatusOK
	}
	h.writeView(w, status, h.coord.Snapshot())
}

// Relocate handles POST /trending/relocate.
func (h *Handler) Relocate(w http.ResponseWriter, r *http.Request) {
	h.coord.Relocate()
	h.writeView(w, http.StatusAccepted, h.coord.Snapshot())
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<10)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.log.Debug("invalid request body", slog.String("error", err.Error()))
		return false
	}
	return true
}

func (h *Handler) writeView(w http.ResponseWriter, status int, v trending.View) {
	b, err := json.Marshal(toResponse(v))
	if err != nil {
		h.log.Error("encode view failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}
