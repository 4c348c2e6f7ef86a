package assist

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/varga/laguz/internal/editor"
	"github.com/varga/laguz/internal/outline"
	"github.com/varga/laguz/internal/pagestore"
	"github.com/varga/laguz/internal/templates"
)

// MinFilterLength is the shortest filter that triggers a remote search.
const MinFilterLength = 4

// TextTooShort is the placeholder shown instead of results for short input.
const TextTooShort = "Please enter at least 4 characters to search."

// DefaultDebounce is the quiet period before the filter text takes effect.
const DefaultDebounce = 120 * time.Millisecond

// Searcher supplies externally computed search results.
type Searcher interface {
	Search(ctx context.Context, term string) (SearchData, error)
}

// MetaProvider supplies the live tag and media lists for menu resolution.
type MetaProvider interface {
	DomainInfo(ctx context.Context) (DomainInfo, error)
}

// Controller owns one client's assist session: the transition state, the
// debounced filter, the submenu payload, and the confirmation dispatch
// against the edit action bus.
type Controller struct {
	bus   *editor.Bus
	store *pagestore.Store
	srch  Searcher
	meta  MetaProvider
	tmpl  *templates.Manager
	log   *slog.Logger

	debounce time.Duration

	mu      sync.Mutex
	state   State
	filter  string // debounced buffer
	pending string
	timer   *time.Timer
	search  SearchData
	submenu Section
}

// NewController creates an assist controller.
func NewController(bus *editor.Bus, store *pagestore.Store, srch Searcher, meta MetaProvider, tmpl *templates.Manager, log *slog.Logger) *Controller {
	return &Controller{
		bus:      bus,
		store:    store,
		srch:     srch,
		meta:     meta,
		tmpl:     tmpl,
		log:      log,
		debounce: DefaultDebounce,
		search:   placeholderSearch(),
	}
}

// SetDebounce overrides the filter quiet period (tests).
func (c *Controller) SetDebounce(d time.Duration) { c.debounce = d }

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// HandleKey feeds one keystroke through the transition function and
// schedules the debounced filter update.
func (c *Controller) HandleKey(ctx context.Context, ev KeyEvent) Effect {
	_, _, hasTarget := c.bus.OpenTarget()

	c.mu.Lock()
	next, effect := HandleKey(c.state, ev, hasTarget)
	bufferChanged := next.Buffer != c.state.Buffer || next.Mode != c.state.Mode
	c.state = next
	if next.Mode == Closed {
		c.filter = ""
		c.pending = ""
		c.search = placeholderSearch()
	} else if bufferChanged {
		c.pending = next.Buffer
		c.scheduleFlushLocked(ctx)
	}
	c.mu.Unlock()

	return effect
}

// scheduleFlushLocked coalesces buffer updates: the pending value is applied
// after one quiet interval. Callers hold c.mu.
func (c *Controller) scheduleFlushLocked(ctx context.Context) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, func() { c.flush(ctx) })
}

func (c *Controller) flush(ctx context.Context) {
	c.mu.Lock()
	c.filter = c.pending
	mode := c.state.Mode
	term := c.filter
	c.mu.Unlock()

	if mode != Search {
		return
	}
	if len(term) < MinFilterLength {
		c.mu.Lock()
		c.search = placeholderSearch()
		c.mu.Unlock()
		return
	}
	res, err := c.srch.Search(ctx, term)
	if err != nil {
		c.log.Warn("assist: search failed", slog.String("term", term), slog.String("error", err.Error()))
		return
	}
	c.mu.Lock()
	// A newer filter may have been typed while searching; last result wins
	// regardless, the next flush replaces it.
	c.search = res
	c.mu.Unlock()
}

// Menu resolves the current menu from live domain info.
func (c *Controller) Menu(ctx context.Context) ([]Section, error) {
	info, err := c.meta.DomainInfo(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	s, filter, search, submenu := c.state, c.filter, c.search, c.submenu
	c.mu.Unlock()
	return Resolve(s, filter, info, search, submenu), nil
}

// Confirm re-derives the highlighted item, dispatches its command, and
// returns it so transport callers can act on navigation. The session closes
// unless the command opens a submenu.
func (c *Controller) Confirm(ctx context.Context) (Command, error) {
	sections, err := c.Menu(ctx)
	if err != nil {
		return Command{}, err
	}
	c.mu.Lock()
	s := c.state
	c.mu.Unlock()

	cmd := Confirm(s, sections)
	if err := c.dispatch(ctx, cmd); err != nil {
		return cmd, err
	}

	c.mu.Lock()
	if cmd.StayOpen {
		switch cmd.Kind {
		case CmdOpenMediaSubmenu:
			c.state = OpenSubmenu(cmd.Name)
			c.submenu = mediaSubmenu(cmd.Name)
			c.filter = cmd.Name
			c.pending = cmd.Name
		case CmdOpenTemplateSubmenu:
			c.state = OpenSubmenu("")
			c.filter = ""
			c.pending = ""
		}
	} else {
		c.state = ForceClose()
		c.filter = ""
		c.pending = ""
		c.search = placeholderSearch()
		c.submenu = Section{}
	}
	c.mu.Unlock()
	return cmd, nil
}

func (c *Controller) dispatch(ctx context.Context, cmd Command) error {
	pageID, blockID, hasTarget := c.bus.OpenTarget()

	switch cmd.Kind {
	case CmdInsertText:
		if !hasTarget {
			return nil
		}
		return c.bus.InsertInlineText(ctx, pageID, blockID, cmd.Text)

	case CmdDeleteBlock:
		if !hasTarget {
			return nil
		}
		c.bus.CloseBlock()
		return c.bus.DeleteBlock(ctx, pageID, blockID)

	case CmdDeletePage:
		if !hasTarget {
			return nil
		}
		c.bus.CloseBlock()
		return <-c.store.Delete(ctx, pageID)

	case CmdNewBlockAfter:
		if !hasTarget {
			return nil
		}
		token := strconv.FormatInt(time.Now().UnixNano(), 36)
		_, err := c.bus.NewBlock(ctx, pageID, blockID, editor.InsertAfter, token)
		return err

	case CmdOpenTemplateSubmenu:
		list, err := c.tmpl.List(ctx)
		if err != nil {
			return err
		}
		sub := Section{Title: TitleTemplateSubmenu}
		for _, t := range list {
			sub.Items = append(sub.Items, Item{Name: t.Title})
		}
		if len(sub.Items) == 0 {
			sub.Items = []Item{{Name: NoTemplatesFound}}
		}
		c.mu.Lock()
		c.submenu = sub
		c.mu.Unlock()
		return nil

	case CmdInsertTemplate:
		return c.insertTemplate(ctx, cmd.Name)
	}
	return nil
}

// insertTemplate splices the template after the open block and reloads the
// page so every view converges on the persisted result.
func (c *Controller) insertTemplate(ctx context.Context, title string) error {
	pageID, blockID, hasTarget := c.bus.OpenTarget()
	if !hasTarget {
		return nil
	}
	list, err := c.tmpl.List(ctx)
	if err != nil {
		return err
	}
	templateID := ""
	for _, t := range list {
		if t.Title == title {
			templateID = t.ID
			break
		}
	}
	if templateID == "" {
		return fmt.Errorf("assist: no template named %q", title)
	}

	page := c.store.GetOrCreate(pageID).Snapshot()
	blockNumber := outline.IndexOf(page.Blocks, blockID) + 1

	c.bus.CloseBlock()
	if _, err := c.tmpl.Insert(ctx, templateID, pageID, blockNumber); err != nil {
		return err
	}
	return <-c.store.Load(ctx, pageID)
}

func mediaSubmenu(name string) Section {
	return Section{Title: TitleMediaSubmenu, Items: []Item{
		{Name: fmt.Sprintf("Insert %s as embedded media", name)},
	}}
}

func placeholderSearch() SearchData {
	return SearchData{
		Pages:    []Finding{{TextLine: TextTooShort}},
		Journals: []Finding{{TextLine: TextTooShort}},
	}
}
