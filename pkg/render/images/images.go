// Package images loads node portraits for the renderer.
//
// [Cache.Image] never blocks: the first request for a URL starts a
// background download and returns nil until the image is decoded. Failed
// URLs are remembered and logged once so a broken portrait costs one
// request per process. Raw bytes go through a [cache.Cache] so portraits
// survive restarts.
//
// JPEG, PNG, GIF and WebP are decoded; EXIF orientation is honoured.
package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/lineage/pkg/cache"
	"github.com/matzehuels/lineage/pkg/observability"
	"github.com/matzehuels/lineage/pkg/render"
)

const (
	// DefaultParallel bounds concurrent downloads in Prefetch.
	DefaultParallel = 8

	// DefaultTimeout bounds a single download.
	DefaultTimeout = 15 * time.Second

	maxImageBytes = 10 << 20
	userAgent     = "lineage/1.0 (portrait fetcher)"
	cacheKeyType  = "image"
)

// ErrEmptyImage is recorded for images that decode to zero size.
var ErrEmptyImage = errors.New("image has zero size")

// Options configures a Cache.
type Options struct {
	Client   *http.Client
	Store    cache.Cache
	Keyer    cache.Keyer
	Logger   *log.Logger
	Parallel int
	TTL      time.Duration

	// OnLoad is called from the download goroutine after an image becomes
	// available. Interactive hosts use it to request a redraw.
	OnLoad func(url string)
}

// Cache resolves portrait URLs to decoded images.
type Cache struct {
	client   *http.Client
	store    cache.Cache
	keyer    cache.Keyer
	logger   *log.Logger
	parallel int
	ttl      time.Duration
	onLoad   func(string)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	group  singleflight.Group

	mu      sync.Mutex
	images  map[string]image.Image
	failed  map[string]error
	pending map[string]bool
}

// New returns an empty cache. Zero options select defaults and a null
// byte store.
func New(opts Options) *Cache {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: DefaultTimeout}
	}
	if opts.Store == nil {
		opts.Store = cache.NewNullCache()
	}
	if opts.Keyer == nil {
		opts.Keyer = cache.NewDefaultKeyer()
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if opts.Parallel <= 0 {
		opts.Parallel = DefaultParallel
	}
	if opts.TTL <= 0 {
		opts.TTL = cache.TTLImage
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		client:   opts.Client,
		store:    opts.Store,
		keyer:    opts.Keyer,
		logger:   opts.Logger,
		parallel: opts.Parallel,
		ttl:      opts.TTL,
		onLoad:   opts.OnLoad,
		ctx:      ctx,
		cancel:   cancel,
		images:   make(map[string]image.Image),
		failed:   make(map[string]error),
		pending:  make(map[string]bool),
	}
}

// Image implements [render.ImageSource]. It returns nil while the image is
// loading, after it failed, or for an empty url.
func (c *Cache) Image(url string) image.Image {
	if url == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if img, ok := c.images[url]; ok {
		return img
	}
	if _, ok := c.failed[url]; ok || c.pending[url] || c.ctx.Err() != nil {
		return nil
	}
	c.pending[url] = true
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if _, err := c.Load(c.ctx, url); err == nil && c.onLoad != nil {
			c.onLoad(url)
		}
	}()
	return nil
}

// Failed reports whether url was tried and could not be loaded.
func (c *Cache) Failed(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.failed[url]
	return ok
}

// Load fetches and decodes url, blocking until done. Concurrent calls for
// the same url share a single download.
func (c *Cache) Load(ctx context.Context, url string) (image.Image, error) {
	c.mu.Lock()
	if img, ok := c.images[url]; ok {
		c.mu.Unlock()
		return img, nil
	}
	if err, ok := c.failed[url]; ok {
		c.mu.Unlock()
		return nil, err
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(url, func() (any, error) {
		img, err := c.fetch(ctx, url)
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.pending, url)
		if err != nil {
			// Cancellation is not a property of the URL; allow a retry.
			if ctx.Err() == nil {
				c.failed[url] = err
				c.logger.Warn("portrait unavailable", "url", url, "error", err)
			}
			return nil, err
		}
		c.images[url] = img
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(image.Image), nil
}

// Prefetch loads urls with bounded parallelism. Individual failures are
// recorded and logged; only cancellation of ctx is returned.
func (c *Cache) Prefetch(ctx context.Context, urls []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallel)
	seen := make(map[string]bool, len(urls))
	for _, url := range urls {
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true
		g.Go(func() error {
			_, _ = c.Load(gctx, url)
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

// Close stops background downloads and waits for them to return.
func (c *Cache) Close() {
	c.cancel()
	c.wg.Wait()
}

func (c *Cache) fetch(ctx context.Context, url string) (image.Image, error) {
	key := c.keyer.ImageKey(url)
	data, hit, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Debug("image cache read failed", "error", err)
	}
	if hit {
		observability.Cache().OnCacheHit(ctx, cacheKeyType)
		if img, err := decode(data); err == nil {
			return img, nil
		}
		_ = c.store.Delete(ctx, key)
	} else {
		observability.Cache().OnCacheMiss(ctx, cacheKeyType)
	}

	data, err = c.download(ctx, url)
	if err != nil {
		return nil, err
	}
	img, err := decode(data)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Debug("image cache write failed", "error", err)
	} else {
		observability.Cache().OnCacheSet(ctx, cacheKeyType, len(data))
	}
	return img, nil
}

func (c *Cache) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "image/*")

	hooks := observability.HTTP()
	hooks.OnRequest(ctx, req.Method, req.URL.Host, req.URL.Path)
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, req.URL.Host, req.URL.Path, err)
		return nil, fmt.Errorf("%w: %v", cache.ErrNetwork, err)
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, req.Method, req.URL.Host, req.URL.Path, resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, cache.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", cache.ErrNetwork, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cache.ErrNetwork, err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	return data, nil
}

func decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	return img, nil
}

var _ render.ImageSource = (*Cache)(nil)
