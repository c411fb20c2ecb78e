// Package search runs debounced name lookups against the backend.
//
// A [Debouncer] waits [DefaultDelay] after the last keystroke before
// querying, so typing "gregory" issues one request instead of seven.
// Each new term cancels the pending lookup and any result still in flight
// for an older term is dropped.
package search

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/lineage/pkg/errors"
	"github.com/matzehuels/lineage/pkg/lineage"
	"github.com/matzehuels/lineage/pkg/sched"
)

const (
	// DefaultDelay is the quiet period before a lookup runs.
	DefaultDelay = 350 * time.Millisecond

	// MaxResults caps every result list.
	MaxResults = 5
)

// Searcher looks entries up by name.
type Searcher interface {
	Search(ctx context.Context, name string) ([]lineage.Entry, error)
}

// Lookup runs a single search. Invalid terms and backend errors yield no
// results; the latter are logged.
func Lookup(ctx context.Context, src Searcher, term string, logger *log.Logger) []lineage.Entry {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if err := errors.ValidateSearchTerm(term); err != nil {
		logger.Debug("search term rejected", "term", term, "error", err)
		return nil
	}
	results, err := src.Search(ctx, term)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("search failed", "term", term, "error", err)
		}
		return nil
	}
	if len(results) > MaxResults {
		results = results[:MaxResults]
	}
	return results
}

// Options configures a Debouncer.
type Options struct {
	// Scheduler defers lookups. It must not hold a lock the results
	// callback needs. Defaults to a wall-clock timer.
	Scheduler sched.Scheduler
	Delay     time.Duration
	Logger    *log.Logger
}

// Debouncer coalesces rapid queries.
type Debouncer struct {
	src     Searcher
	sched   sched.Scheduler
	delay   time.Duration
	logger  *log.Logger
	deliver func(term string, results []lineage.Entry)

	mu      sync.Mutex
	gen     uint64
	pending *sched.Task
	cancel  context.CancelFunc
	closed  bool
}

// NewDebouncer returns a debouncer that reports the results of the
// latest term to deliver. deliver runs on a background goroutine.
func NewDebouncer(src Searcher, deliver func(term string, results []lineage.Entry), opts Options) *Debouncer {
	if opts.Scheduler == nil {
		opts.Scheduler = sched.NewTimer(nil)
	}
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Debouncer{
		src:     src,
		sched:   opts.Scheduler,
		delay:   opts.Delay,
		logger:  opts.Logger,
		deliver: deliver,
	}
}

// Query replaces the current term. An empty term resolves immediately to
// no results.
func (d *Debouncer) Query(term string) {
	term = strings.TrimSpace(term)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.supersede()
	gen := d.gen
	if term == "" {
		d.mu.Unlock()
		d.deliver(term, nil)
		return
	}
	d.pending = d.sched.After(d.delay, func() { d.run(gen, term) })
	d.mu.Unlock()
}

// Close cancels pending and in-flight lookups. Later queries are ignored.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.supersede()
	d.closed = true
}

// supersede invalidates older lookups. Callers hold d.mu.
func (d *Debouncer) supersede() {
	d.gen++
	d.pending.Cancel()
	d.pending = nil
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

func (d *Debouncer) run(gen uint64, term string) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.mu.Unlock()

	go func() {
		defer cancel()
		results := Lookup(ctx, d.src, term, d.logger)

		d.mu.Lock()
		current := gen == d.gen
		d.mu.Unlock()
		if !current {
			d.logger.Debug("dropping stale search results", "term", term)
			return
		}
		d.deliver(term, results)
	}()
}
