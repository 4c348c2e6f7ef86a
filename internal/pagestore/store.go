// Package pagestore is the single source of truth for loaded pages: an
// explicit keyed store of page cells with subscriber notification, mediating
// loads and saves against the persistence layer.
package pagestore

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/varga/laguz/internal/notify"
	"github.com/varga/laguz/internal/outline"
	"github.com/varga/laguz/internal/pageservice"
)

// Store caches pages keyed by page id. Cells are created on first access and
// evicted on page deletion or rename; there is no other eviction.
type Store struct {
	svc    *pageservice.Service
	broker *notify.Broker
	loads  singleflight.Group

	mu    sync.Mutex
	cells map[string]*cell
}

// Handle is a live view onto one page cell.
type Handle struct {
	c *cell
}

type cell struct {
	pageID string

	// saveMu serializes full-page saves. The snapshot is taken inside the
	// lock, so a slow earlier save can never overwrite newer content.
	saveMu sync.Mutex

	mu   sync.Mutex
	page *outline.Page
	subs map[chan *outline.Page]struct{}
}

// NewStore creates a page store over the given persistence service.
func NewStore(svc *pageservice.Service, broker *notify.Broker) *Store {
	return &Store{
		svc:    svc,
		broker: broker,
		cells:  make(map[string]*cell),
	}
}

// GetOrCreate returns the handle for a page, seeding an empty placeholder
// cell on first access. It never blocks on I/O and never fails.
func (s *Store) GetOrCreate(pageID string) *Handle {
	return &Handle{c: s.cellFor(pageID)}
}

func (s *Store) cellFor(pageID string) *cell {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cells[pageID]
	if !ok {
		c = &cell{
			pageID: pageID,
			page:   outline.EmptyPage(pageID),
			subs:   make(map[chan *outline.Page]struct{}),
		}
		s.cells[pageID] = c
	}
	return c
}

func (s *Store) cached(pageID string) (*cell, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cells[pageID]
	return c, ok
}

func (s *Store) evict(pageID string) {
	s.mu.Lock()
	c, ok := s.cells[pageID]
	delete(s.cells, pageID)
	s.mu.Unlock()
	if !ok {
		return
	}
	c.mu.Lock()
	for ch := range c.subs {
		delete(c.subs, ch)
		close(ch)
	}
	c.mu.Unlock()
}

// Load fetches a page asynchronously and replaces the cached blocks
// wholesale on success. Concurrent loads for the same page id collapse into
// one fetch; sequential overlapping loads race and the last response to
// arrive wins. On failure the previous snapshot stays visible.
func (s *Store) Load(ctx context.Context, pageID string) <-chan error {
	done := make(chan error, 1)
	go func() {
		v, err, _ := s.loads.Do(pageID, func() (any, error) {
			dto, err := s.svc.LoadPage(ctx, pageID)
			if err != nil {
				return nil, err
			}
			return outline.FromPageDTO(dto, outline.PageName(pageID), pageID)
		})
		if err != nil {
			done <- err
			return
		}
		s.commit(s.cellFor(pageID), v.(*outline.Page))
		done <- nil
	}()
	return done
}

// Commit replaces the entire block list for a page and notifies subscribers.
// All in-memory mutation funnels through here so every subscriber observes a
// consistent snapshot.
func (s *Store) Commit(pageID string, blocks []*outline.Block) {
	c := s.cellFor(pageID)
	c.mu.Lock()
	page := c.page
	c.mu.Unlock()

	next := &outline.Page{
		Name:        page.Name,
		PageID:      page.PageID,
		Title:       page.Title,
		IsFavourite: page.IsFavourite,
		Blocks:      blocks,
	}
	s.commit(c, next)
}

func (s *Store) commit(c *cell, page *outline.Page) {
	c.mu.Lock()
	c.page = page
	snap := page.Clone()
	for ch := range c.subs {
		select {
		case ch <- snap:
		default:
			// Subscriber is behind; it will resync from the next commit.
		}
	}
	c.mu.Unlock()
}

// Save serializes the page's current full block list and persists it
// asynchronously. The snapshot is taken when the save's turn comes, so the
// last save to commit always carries the newest content. On success a change
// notification keyed by the triggering block fires.
func (s *Store) Save(ctx context.Context, pageID, triggeringBlockID string) <-chan error {
	c := s.cellFor(pageID)
	done := make(chan error, 1)
	go func() {
		c.saveMu.Lock()
		defer c.saveMu.Unlock()

		c.mu.Lock()
		flat := outline.Flatten(c.page.Blocks)
		c.mu.Unlock()

		if _, err := s.svc.SavePage(ctx, pageID, flat); err != nil {
			done <- err
			return
		}
		s.broker.Publish(notify.Change{Kind: "block.changed", Key: triggeringBlockID})
		done <- nil
	}()
	return done
}

// SaveSingleBlock persists an out-of-line edit to a block on its own page,
// addressed by 1-based position. On success the change notification fires
// and, if that page is itself cached, it reloads so every view of it
// converges.
func (s *Store) SaveSingleBlock(ctx context.Context, pageID string, blockNumber int, newText, changeKey string) <-chan error {
	done := make(chan error, 1)
	go func() {
		if _, err := s.svc.SaveBlock(ctx, pageID, blockNumber, newText); err != nil {
			done <- err
			return
		}
		s.broker.Publish(notify.Change{Kind: "block.changed", Key: changeKey})
		if _, ok := s.cached(pageID); ok {
			<-s.Load(ctx, pageID)
		}
		done <- nil
	}()
	return done
}

// Refresh reloads a page only when it is already cached. Uncached pages are
// left alone so a refresh never seeds cells.
func (s *Store) Refresh(ctx context.Context, pageID string) error {
	if _, ok := s.cached(pageID); ok {
		return <-s.Load(ctx, pageID)
	}
	return nil
}

// Rename persists a user-page rename, evicts the old cell, and emits a
// change notification keyed by the whole old page id.
func (s *Store) Rename(ctx context.Context, pageID, newName string) <-chan error {
	done := make(chan error, 1)
	go func() {
		if err := s.svc.RenamePage(ctx, outline.PageName(pageID), newName); err != nil {
			done <- err
			return
		}
		s.evict(pageID)
		s.broker.Publish(notify.Change{Kind: "page.renamed", Key: pageID})
		done <- nil
	}()
	return done
}

// Delete persists a page deletion, evicts the cell, and emits a whole-page
// change notification.
func (s *Store) Delete(ctx context.Context, pageID string) <-chan error {
	done := make(chan error, 1)
	go func() {
		if err := s.svc.DeletePage(ctx, pageID); err != nil {
			done <- err
			return
		}
		s.evict(pageID)
		s.broker.Publish(notify.Change{Kind: "page.deleted", Key: pageID})
		done <- nil
	}()
	return done
}

// Snapshot returns a deep copy of the current page state.
func (h *Handle) Snapshot() *outline.Page {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	return h.c.page.Clone()
}

// PageID returns the cell's page id.
func (h *Handle) PageID() string { return h.c.pageID }

// Subscribe registers for page snapshots. Every commit delivers one; the
// channel closes when the cell is evicted.
func (h *Handle) Subscribe() chan *outline.Page {
	ch := make(chan *outline.Page, 8)
	h.c.mu.Lock()
	h.c.subs[ch] = struct{}{}
	h.c.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Handle) Unsubscribe(ch chan *outline.Page) {
	h.c.mu.Lock()
	if _, ok := h.c.subs[ch]; ok {
		delete(h.c.subs, ch)
		close(ch)
	}
	h.c.mu.Unlock()
}
