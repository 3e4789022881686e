package trending

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"trending-coordinator/internal/platform/logger"
	"trending-coordinator/internal/session"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const (
	// DefaultFetchTimeout bounds a single trending request.
	DefaultFetchTimeout = 8 * time.Second

	trendingPath = "/api/videos/trending"

	// maxDrainBytes caps how much of an error body is read before closing.
	maxDrainBytes = 4 << 10
)

// Fetcher retrieves one page of trending videos.
type Fetcher interface {
	FetchTrending(ctx context.Context, q Query) ([]TrendingVideo, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, q Query) ([]TrendingVideo, error)

// FetchTrending implements Fetcher.
func (f FetcherFunc) FetchTrending(ctx context.Context, q Query) ([]TrendingVideo, error) {
	return f(ctx, q)
}

// ClientOptions configures Client. Only BaseURL is required.
type ClientOptions struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	// Session, when set, supplies the bearer token stored under session.KeyToken.
	Session session.Store
	Log     *slog.Logger
}

// Client calls the backend trending endpoint over HTTP.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	session session.Store
	log     *slog.Logger
}

// NewClient returns a Client. If opts.Timeout <= 0, DefaultFetchTimeout is used.
func NewClient(opts ClientOptions) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		timeout: timeout,
		http:    hc,
		session: opts.Session,
		log:     log,
	}
}

// FetchTrending issues GET /api/videos/trending for q.
// Errors are ErrCancelled when ctx is cancelled, ErrTimeout when the
// client's own deadline fires, *StatusError for non-2xx responses and
// *NetworkError for transport failures or malformed bodies.
func (c *Client) FetchTrending(ctx context.Context, q Query) ([]TrendingVideo, error) {
	params, err := q.Encode()
	if err != nil {
		return nil, &NetworkError{Msg: "invalid trending query", Err: err}
	}

	reqCtx, cancel := context.WithTimeoutCause(ctx, c.timeout, ErrTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+trendingPath+"?"+params, nil)
	if err != nil {
		return nil, &NetworkError{Msg: "invalid trending request", Err: err}
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if token := c.bearerToken(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyFetchError(ctx, reqCtx, &NetworkError{Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
		c.log.Debug("trending request rejected",
			slog.String("request_id", requestID),
			slog.Int("status", resp.StatusCode))
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	var videos []TrendingVideo
	if err := json.NewDecoder(resp.Body).Decode(&videos); err != nil {
		return nil, classifyFetchError(ctx, reqCtx, &NetworkError{Msg: "malformed trending response", Err: err})
	}
	if videos == nil {
		videos = []TrendingVideo{}
	}

	c.log.Debug("trending request completed",
		slog.String("request_id", requestID),
		slog.String("query", q.Key()),
		slog.Int("count", len(videos)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return videos, nil
}

func (c *Client) bearerToken(ctx context.Context) string {
	if c.session == nil {
		return ""
	}
	token, ok, err := c.session.Get(ctx, session.KeyToken)
	if err != nil {
		c.log.Warn("read session token failed", slog.String("error", err.Error()))
		return ""
	}
	if !ok {
		return ""
	}
	return token
}

// classifyFetchError prefers cancellation, then timeout, over the transport
// error that the aborted request produced.
func classifyFetchError(parent, reqCtx context.Context, fallback error) error {
	if parent.Err() != nil {
		return ErrCancelled
	}
	if errors.Is(context.Cause(reqCtx), ErrTimeout) {
		return ErrTimeout
	}
	return fallback
}
