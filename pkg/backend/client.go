// Package backend is the REST client for the lineage backend.
//
// Every response is normalised at this boundary: the backend has shipped
// several spellings of the same fields (hash/id, parentHash/parent_hash,
// papacyStartDate/startDate/...), and callers only ever see
// [lineage.Entry] values.
//
// Responses are cached through [cache.Cache] and transient failures (transport
// errors, 5xx and 429 statuses) are retried with backoff; a Retry-After
// header overrides the computed delay.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/lineage/pkg/cache"
	"github.com/matzehuels/lineage/pkg/lineage"
	"github.com/matzehuels/lineage/pkg/observability"
)

// DefaultBaseURL is the public backend.
const DefaultBaseURL = "https://backend-apostolicchain.onrender.com/api"

const (
	httpTimeout = 20 * time.Second
	maxBody     = 32 << 20
)

var (
	// ErrNotFound is returned when the backend answers 404.
	ErrNotFound = cache.ErrNotFound

	// ErrNetwork is returned for transport failures and unexpected statuses.
	ErrNetwork = cache.ErrNetwork

	// ErrRateLimited marks 429 responses that outlasted the retries.
	ErrRateLimited = errors.New("rate limited")
)

// Stats are the public counters of the backend.
type Stats struct {
	TotalBishops int             `json:"totalBishops"`
	TotalPopes   int             `json:"totalPopes"`
	TotalClergy  int             `json:"totalClergy"`
	TodayViews   int             `json:"todayViews"`
	TotalViews   int             `json:"totalViews"`
	RecentPopes  []lineage.Entry `json:"recentPopes,omitempty"`
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Token   string
	RootID  string

	HTTP   *http.Client
	Cache  cache.Cache
	Keyer  cache.Keyer
	TTL    time.Duration
	Logger *log.Logger

	// Refresh bypasses cached responses but still stores fresh ones.
	Refresh bool
}

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	base    string
	token   string
	rootID  string
	http    *http.Client
	cache   cache.Cache
	keyer   cache.Keyer
	ttl     time.Duration
	logger  *log.Logger
	refresh bool
}

// New returns a client. Zero options select the public backend, the
// default root and no caching.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.RootID == "" {
		opts.RootID = lineage.DefaultRootID
	}
	if opts.HTTP == nil {
		opts.HTTP = &http.Client{Timeout: httpTimeout}
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewNullCache()
	}
	if opts.Keyer == nil {
		opts.Keyer = cache.NewDefaultKeyer()
	}
	if opts.TTL <= 0 {
		opts.TTL = cache.TTLHTTP
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Client{
		base:    strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		rootID:  opts.RootID,
		http:    opts.HTTP,
		cache:   opts.Cache,
		keyer:   opts.Keyer,
		ttl:     opts.TTL,
		logger:  opts.Logger,
		refresh: opts.Refresh,
	}
}

// MainChain returns the backbone entries in backend order. The root is
// owned by the client configuration and filtered out.
func (c *Client) MainChain(ctx context.Context) ([]lineage.Entry, error) {
	var raw []rawEntry
	if err := c.cached(ctx, "main-chain:", "all", "/public/clergy/main-chain", &raw); err != nil {
		return nil, err
	}
	entries := normalize(raw)
	out := entries[:0]
	for _, e := range entries {
		if e.ID != c.rootID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Search returns entries whose name matches. Results are not cached.
func (c *Client) Search(ctx context.Context, name string) ([]lineage.Entry, error) {
	var raw []rawEntry
	if err := c.get(ctx, "/public/clergy/search?name="+url.QueryEscape(name), &raw); err != nil {
		return nil, err
	}
	return normalize(raw), nil
}

// Trace returns the ancestry chain of id, nearest first.
func (c *Client) Trace(ctx context.Context, id string) ([]lineage.Entry, error) {
	var raw []rawEntry
	if err := c.cached(ctx, "trace:", id, "/public/clergy/trace/"+url.PathEscape(id), &raw); err != nil {
		return nil, err
	}
	return normalize(raw), nil
}

// Node returns a single entry.
func (c *Client) Node(ctx context.Context, id string) (lineage.Entry, error) {
	var raw rawEntry
	if err := c.cached(ctx, "node:", id, "/public/clergy/node/"+url.PathEscape(id), &raw); err != nil {
		return lineage.Entry{}, err
	}
	e := raw.entry()
	if e.ID == "" {
		return lineage.Entry{}, fmt.Errorf("node %s: %w", id, ErrNotFound)
	}
	return e, nil
}

// Stats returns the public counters. They change constantly and are never
// cached.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var raw struct {
		Stats
		RecentPopes []rawEntry `json:"recentPopes"`
	}
	if err := c.get(ctx, "/public/stats", &raw); err != nil {
		return Stats{}, err
	}
	s := raw.Stats
	s.RecentPopes = normalize(raw.RecentPopes)
	return s, nil
}

// =============================================================================
// Transport
// =============================================================================

// cached serves v from the cache or fetches path and stores the raw body.
func (c *Client) cached(ctx context.Context, namespace, key, path string, v any) error {
	ck := c.keyer.HTTPKey(namespace, key)
	if !c.refresh {
		data, ok, err := c.cache.Get(ctx, ck)
		if err != nil {
			c.logger.Debug("cache read failed", "key", ck, "error", err)
		}
		if ok {
			if err := json.Unmarshal(data, v); err == nil {
				observability.Cache().OnCacheHit(ctx, namespace)
				return nil
			}
			_ = c.cache.Delete(ctx, ck)
		}
		observability.Cache().OnCacheMiss(ctx, namespace)
	}

	var body []byte
	err := cache.RetryWithBackoff(ctx, func() error {
		var err error
		body, err = c.fetch(ctx, path)
		return err
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	if err := c.cache.Set(ctx, ck, body, c.ttl); err != nil {
		c.logger.Debug("cache write failed", "key", ck, "error", err)
	} else {
		observability.Cache().OnCacheSet(ctx, namespace, len(body))
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	var body []byte
	err := cache.RetryWithBackoff(ctx, func() error {
		var err error
		body, err = c.fetch(ctx, path)
		return err
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	hooks := observability.HTTP()
	hooks.OnRequest(ctx, req.Method, req.URL.Host, req.URL.Path)
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, req.URL.Host, req.URL.Path, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, cache.Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, req.Method, req.URL.Host, req.URL.Path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, cache.Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	return body, nil
}

// checkStatus maps a response status to an error, reading the backend's
// {"message": ...} payload when present.
func checkStatus(resp *http.Response) error {
	code := resp.StatusCode
	if code >= 200 && code < 300 {
		return nil
	}
	msg := fmt.Sprintf("status %d", code)
	var payload struct {
		Message string `json:"message"`
	}
	if data, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil {
		if json.Unmarshal(data, &payload) == nil && payload.Message != "" {
			msg = fmt.Sprintf("status %d: %s", code, payload.Message)
		}
	}
	switch {
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case code == http.StatusTooManyRequests:
		return cache.RetryAfter(fmt.Errorf("%w: %w: %s", ErrNetwork, ErrRateLimited, msg), retryAfter(resp.Header.Get("Retry-After")))
	case code >= 500:
		return cache.Retryable(fmt.Errorf("%w: %s", ErrNetwork, msg))
	default:
		return fmt.Errorf("%w: %s", ErrNetwork, msg)
	}
}

// retryAfter parses a Retry-After header given in seconds. Dates and
// garbage yield zero, leaving the delay to the backoff schedule.
func retryAfter(h string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// IsNotFound reports whether err came from a 404.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
