package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/stemsi/classroom-client/internal/docstore"
	"github.com/stemsi/classroom-client/internal/metrics"
)

// View is a read-only copy of one feed.
type View[T any] struct {
	Items   []T  `json:"items"`
	HasMore bool `json:"has_more"`
	Loading bool `json:"loading"`
}

// kind describes how one feed kind is stored and ordered. follows reports
// whether a new item sorts after the given last item; nil means new items
// always sort first.
type kind[T any] struct {
	name     string
	path     func(classID string) string
	order    docstore.OrderBy
	pageSize int
	decode   func(classID string, r *docstore.Record) T
	merge    func(items []T, item T) []T
	id       func(item T) string
	follows  func(last, item T) bool
}

type state[T any] struct {
	items   []T
	cursor  *docstore.Cursor
	loading bool
	loaded  bool
	epoch   uint64
}

// pager holds every feed of one kind, keyed by class id. State only changes
// under mu and mu is never held across a store call.
type pager[T any] struct {
	kind    kind[T]
	metrics *metrics.Metrics
	log     zerolog.Logger

	mu    sync.Mutex
	feeds map[string]*state[T]
}

func newPager[T any](k kind[T], m *metrics.Metrics, log zerolog.Logger) *pager[T] {
	return &pager[T]{
		kind:    k,
		metrics: m,
		log:     log.With().Str("feed", k.name).Logger(),
		feeds:   make(map[string]*state[T]),
	}
}

func (p *pager[T]) stateLocked(classID string) *state[T] {
	st, ok := p.feeds[classID]
	if !ok {
		st = &state[T]{}
		p.feeds[classID] = st
	}
	return st
}

// loadFirst resets the feed and fetches its first page. A page that resolves
// after a newer reset is dropped.
func (p *pager[T]) loadFirst(ctx context.Context, store docstore.Store, classID string) (View[T], error) {
	p.mu.Lock()
	st := p.stateLocked(classID)
	st.epoch++
	epoch := st.epoch
	st.items = nil
	st.cursor = nil
	st.loading = false
	st.loaded = false
	p.mu.Unlock()

	p.metrics.FeedRequests.WithLabelValues(p.kind.name).Inc()
	page, err := store.QueryPage(ctx, p.kind.path(classID), p.kind.order, nil, p.kind.pageSize)

	p.mu.Lock()
	defer p.mu.Unlock()
	if st.epoch != epoch {
		p.discardedLocked(classID)
		return p.viewLocked(st), nil
	}
	if err != nil {
		return p.viewLocked(st), fmt.Errorf("load first %s page: %w", p.kind.name, err)
	}
	st.items = p.decodeAll(classID, page.Records)
	st.cursor = p.nextCursor(page)
	st.loaded = true
	return p.viewLocked(st), nil
}

// more appends the next page. It issues no request while a page is in flight
// or once the feed is exhausted.
func (p *pager[T]) more(ctx context.Context, store docstore.Store, classID string) (View[T], error) {
	p.mu.Lock()
	st := p.stateLocked(classID)
	switch {
	case st.loading:
		p.metrics.FeedSuppressed.WithLabelValues(p.kind.name, "loading").Inc()
		v := p.viewLocked(st)
		p.mu.Unlock()
		return v, nil
	case st.cursor == nil:
		p.metrics.FeedSuppressed.WithLabelValues(p.kind.name, "exhausted").Inc()
		v := p.viewLocked(st)
		p.mu.Unlock()
		return v, nil
	}
	st.loading = true
	epoch := st.epoch
	after := st.cursor
	p.mu.Unlock()

	p.metrics.FeedRequests.WithLabelValues(p.kind.name).Inc()
	page, err := store.QueryPage(ctx, p.kind.path(classID), p.kind.order, after, p.kind.pageSize)

	p.mu.Lock()
	defer p.mu.Unlock()
	if st.epoch != epoch {
		p.discardedLocked(classID)
		return p.viewLocked(st), nil
	}
	st.loading = false
	if err != nil {
		return p.viewLocked(st), fmt.Errorf("load more %s: %w", p.kind.name, err)
	}
	st.items = p.appendNew(st.items, p.decodeAll(classID, page.Records))
	st.cursor = p.nextCursor(page)
	return p.viewLocked(st), nil
}

// mark returns the epoch a create must still observe for its item to be
// merged locally.
func (p *pager[T]) mark(classID string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st, ok := p.feeds[classID]; ok {
		return st.epoch
	}
	return 0
}

// add merges a freshly created item into the feed without refetching. The
// item is left out when the feed was never loaded, was reset since mark, or
// when the item sorts past the loaded tail of an unexhausted feed, where
// paging will deliver it.
func (p *pager[T]) add(classID string, item T, epoch uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.feeds[classID]
	if !ok || !st.loaded || st.epoch != epoch {
		return
	}
	if st.cursor != nil && len(st.items) > 0 && p.kind.follows != nil &&
		p.kind.follows(st.items[len(st.items)-1], item) {
		return
	}
	st.items = p.kind.merge(st.items, item)
}

func (p *pager[T]) view(classID string) View[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.feeds[classID]
	if !ok {
		return View[T]{Items: []T{}}
	}
	return p.viewLocked(st)
}

// reset drops every feed. In-flight pages are discarded when they resolve.
func (p *pager[T]) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, st := range p.feeds {
		st.epoch++
		st.items = nil
		st.cursor = nil
		st.loading = false
		st.loaded = false
	}
}

// nextCursor applies the exhaustion rule: a short page or a missing cursor ends the feed.
func (p *pager[T]) nextCursor(page docstore.Page) *docstore.Cursor {
	if page.Next == nil || len(page.Records) < p.kind.pageSize {
		return nil
	}
	return page.Next
}

func (p *pager[T]) decodeAll(classID string, records []docstore.Record) []T {
	out := make([]T, 0, len(records))
	for i := range records {
		out = append(out, p.kind.decode(classID, &records[i]))
	}
	return out
}

// appendNew appends page items whose ids are not already in the feed.
func (p *pager[T]) appendNew(items, page []T) []T {
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		seen[p.kind.id(it)] = struct{}{}
	}
	for _, it := range page {
		if _, dup := seen[p.kind.id(it)]; dup {
			continue
		}
		seen[p.kind.id(it)] = struct{}{}
		items = append(items, it)
	}
	return items
}

func (p *pager[T]) discardedLocked(classID string) {
	p.metrics.FeedDiscarded.WithLabelValues(p.kind.name).Inc()
	p.log.Debug().Str("class_id", classID).Msg("Dropping page that resolved after a reset")
}

func (p *pager[T]) viewLocked(st *state[T]) View[T] {
	items := make([]T, len(st.items))
	copy(items, st.items)
	return View[T]{Items: items, HasMore: st.cursor != nil, Loading: st.loading}
}
