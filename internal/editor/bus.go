// Package editor implements the edit action bus: discrete editing intents
// turned into block-list mutations, committed to the page store, with an
// asynchronous save scheduled for each.
package editor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/varga/laguz/internal/apperr"
	"github.com/varga/laguz/internal/notify"
	"github.com/varga/laguz/internal/outline"
	"github.com/varga/laguz/internal/pagestore"
)

// InsertMode says where newBlock splices relative to its target.
type InsertMode int

const (
	InsertBefore InsertMode = iota
	InsertAfter
)

// Direction is an indentation change.
type Direction int

const (
	Increase Direction = iota
	Decrease
)

// Validator is the single path turning raw user text into a renderable
// block: prepared markdown, resolved references, dynamic-content flag.
type Validator interface {
	ValidateBlock(ctx context.Context, markdown string, indentation int) outline.BlockDTO
}

// CaretSink receives inline insertions for the view that owns the live text
// cursor of a block. Insertion replaces any active selection and collapses
// the caret to just after the inserted text.
type CaretSink interface {
	InsertAtCaret(text string)
}

// Bus converts editing intents into page store commits plus scheduled saves.
// It also tracks the single active edit target and the per-block
// editing sessions.
type Bus struct {
	store     *pagestore.Store
	validator Validator
	broker    *notify.Broker
	logger    *slog.Logger

	// openDelay postpones opening a freshly created block so the committed
	// list can propagate to dependent views first.
	openDelay time.Duration

	mu        sync.Mutex
	openPage  string
	openBlock string
	tokens    map[string]string // newBlock token -> created block id
	sinks     map[string]CaretSink
	sessions  map[string]*Session
	active    map[string]struct{} // pages with editing activity
}

// NewBus creates an edit action bus over the given store.
func NewBus(store *pagestore.Store, validator Validator, broker *notify.Broker, logger *slog.Logger) *Bus {
	return &Bus{
		store:     store,
		validator: validator,
		broker:    broker,
		logger:    logger,
		openDelay: 50 * time.Millisecond,
		tokens:    make(map[string]string),
		sinks:     make(map[string]CaretSink),
		sessions:  make(map[string]*Session),
		active:    make(map[string]struct{}),
	}
}

// SetOpenDelay overrides the new-block open delay (tests).
func (b *Bus) SetOpenDelay(d time.Duration) { b.openDelay = d }

// OpenTarget returns the currently open edit target, if any.
func (b *Bus) OpenTarget() (pageID, blockID string, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.openPage, b.openBlock, b.openBlock != ""
}

// OpenBlock makes a block the active edit target. Opening a different block
// while one is open saves the block being left first (exit-on-switch save).
func (b *Bus) OpenBlock(ctx context.Context, pageID, blockID string) {
	b.mu.Lock()
	prevPage, prevBlock := b.openPage, b.openBlock
	b.openPage, b.openBlock = pageID, blockID
	b.active[pageID] = struct{}{}
	sess := b.sessionLocked(blockID)
	b.mu.Unlock()

	if prevBlock != "" && prevBlock != blockID {
		b.scheduleSave(ctx, prevPage, prevBlock)
	}
	sess.Edit()
}

// CloseBlock resets the edit target to empty.
func (b *Bus) CloseBlock() {
	b.mu.Lock()
	b.openPage, b.openBlock = "", ""
	b.mu.Unlock()
}

// NewBlock creates an empty block next to the target and, after the open
// delay, makes it the edit target. The new block inherits the target's
// indentation and derives its identity from the target's. Duplicate intents
// carrying the same token collapse into one creation.
func (b *Bus) NewBlock(ctx context.Context, pageID, targetBlockID string, mode InsertMode, token string) (string, error) {
	b.mu.Lock()
	if token != "" {
		if existing, ok := b.tokens[token]; ok {
			b.mu.Unlock()
			return existing, nil
		}
	}
	b.mu.Unlock()

	page := b.store.GetOrCreate(pageID).Snapshot()
	blocks := page.Blocks
	idx := outline.IndexOf(blocks, targetBlockID)
	if idx < 0 {
		return "", fmt.Errorf("editor: new block: target %s: %w", targetBlockID, apperr.ErrNotFound)
	}

	target := blocks[idx]
	created := outline.EmptyBlock(outline.NewBlockID(target.ID), target.Indentation)

	at := idx
	if mode == InsertAfter {
		at = idx + 1
	}
	next := make([]*outline.Block, 0, len(blocks)+1)
	next = append(next, blocks[:at]...)
	next = append(next, created)
	next = append(next, blocks[at:]...)

	b.mu.Lock()
	if token != "" {
		// Re-check under the lock: a concurrent duplicate may have won.
		if existing, ok := b.tokens[token]; ok {
			b.mu.Unlock()
			return existing, nil
		}
		b.tokens[token] = created.ID
	}
	b.active[pageID] = struct{}{}
	b.mu.Unlock()

	b.store.Commit(pageID, next)
	b.CloseBlock()
	b.scheduleSave(ctx, pageID, created.ID)

	time.AfterFunc(b.openDelay, func() {
		b.OpenBlock(ctx, pageID, created.ID)
	})
	return created.ID, nil
}

// DeleteBlock removes a block from its page.
func (b *Bus) DeleteBlock(ctx context.Context, pageID, blockID string) error {
	page := b.store.GetOrCreate(pageID).Snapshot()
	idx := outline.IndexOf(page.Blocks, blockID)
	if idx < 0 {
		return fmt.Errorf("editor: delete block: %s: %w", blockID, apperr.ErrNotFound)
	}
	next := append(page.Blocks[:idx:idx], page.Blocks[idx+1:]...)
	b.store.Commit(pageID, next)
	b.scheduleSave(ctx, pageID, blockID)
	return nil
}

// MergeWithPrevious folds a block into its predecessor, joining both text
// forms with a blank line. Merging the first block is a no-op.
func (b *Bus) MergeWithPrevious(ctx context.Context, pageID, blockID string) error {
	page := b.store.GetOrCreate(pageID).Snapshot()
	idx := outline.IndexOf(page.Blocks, blockID)
	if idx < 0 {
		return fmt.Errorf("editor: merge block: %s: %w", blockID, apperr.ErrNotFound)
	}
	if idx == 0 {
		return nil
	}

	prev := page.Blocks[idx-1].Clone()
	cur := page.Blocks[idx]
	prev.Content.OriginalText = prev.Content.OriginalText + "\n\n" + cur.Content.OriginalText
	prev.Content.PreparedMarkdown = prev.Content.PreparedMarkdown + "\n\n" + cur.Content.PreparedMarkdown

	next := make([]*outline.Block, 0, len(page.Blocks)-1)
	next = append(next, page.Blocks[:idx-1]...)
	next = append(next, prev)
	next = append(next, page.Blocks[idx+1:]...)

	b.store.Commit(pageID, next)
	b.scheduleSave(ctx, pageID, prev.ID)
	return nil
}

// ChangeIndentation shifts a block's depth. Increase is unconditional;
// decrease floors at 0. Descendants are not re-indented.
func (b *Bus) ChangeIndentation(ctx context.Context, pageID, blockID string, dir Direction) error {
	page := b.store.GetOrCreate(pageID).Snapshot()
	idx := outline.IndexOf(page.Blocks, blockID)
	if idx < 0 {
		return fmt.Errorf("editor: change indentation: %s: %w", blockID, apperr.ErrNotFound)
	}
	blk := page.Blocks[idx].Clone()
	switch dir {
	case Increase:
		blk.Indentation++
	case Decrease:
		if blk.Indentation > 0 {
			blk.Indentation--
		}
	}
	next := append([]*outline.Block{}, page.Blocks...)
	next[idx] = blk
	b.store.Commit(pageID, next)
	b.scheduleSave(ctx, pageID, blockID)
	return nil
}

// ToggleCheckbox flips a block's todo marker between open and done, leaving
// every other block untouched, and schedules exactly one save.
func (b *Bus) ToggleCheckbox(ctx context.Context, pageID, blockID string) error {
	page := b.store.GetOrCreate(pageID).Snapshot()
	idx := outline.IndexOf(page.Blocks, blockID)
	if idx < 0 {
		return fmt.Errorf("editor: toggle checkbox: %s: %w", blockID, apperr.ErrNotFound)
	}
	blk := page.Blocks[idx].Clone()
	toggled := outline.ToggleTodo(blk.Content.OriginalText)
	dto := b.validator.ValidateBlock(ctx, toggled, blk.Indentation)
	applyValidated(blk, dto)

	next := append([]*outline.Block{}, page.Blocks...)
	next[idx] = blk
	b.store.Commit(pageID, next)
	b.scheduleSave(ctx, pageID, blockID)
	return nil
}

// RegisterCaretSink attaches the view owning a block's live text cursor.
func (b *Bus) RegisterCaretSink(blockID string, sink CaretSink) {
	b.mu.Lock()
	b.sinks[blockID] = sink
	b.mu.Unlock()
}

// UnregisterCaretSink detaches a block's caret sink.
func (b *Bus) UnregisterCaretSink(blockID string) {
	b.mu.Lock()
	delete(b.sinks, blockID)
	b.mu.Unlock()
}

// InsertInlineText delivers text to the view owning the block's caret. With
// no registered sink the text is appended to the block's source instead.
func (b *Bus) InsertInlineText(ctx context.Context, pageID, blockID, text string) error {
	b.mu.Lock()
	sink := b.sinks[blockID]
	b.mu.Unlock()
	if sink != nil {
		sink.InsertAtCaret(text)
		return nil
	}

	page := b.store.GetOrCreate(pageID).Snapshot()
	idx := outline.IndexOf(page.Blocks, blockID)
	if idx < 0 {
		return fmt.Errorf("editor: insert text: %s: %w", blockID, apperr.ErrNotFound)
	}
	blk := page.Blocks[idx].Clone()
	raw := blk.Content.OriginalText + text
	dto := b.validator.ValidateBlock(ctx, raw, blk.Indentation)
	applyValidated(blk, dto)

	next := append([]*outline.Block{}, page.Blocks...)
	next[idx] = blk
	b.store.Commit(pageID, next)
	b.scheduleSave(ctx, pageID, blockID)
	return nil
}

// FocusOut transitions the block's session to Loading, validates the new raw
// text, and commits the validated content. The session returns to Presenting
// when its last-issued validation lands.
func (b *Bus) FocusOut(ctx context.Context, pageID, blockID, rawText string) {
	b.mu.Lock()
	sess := b.sessionLocked(blockID)
	b.mu.Unlock()

	gen := sess.BeginLoad()
	go func() {
		page := b.store.GetOrCreate(pageID).Snapshot()
		idx := outline.IndexOf(page.Blocks, blockID)
		if idx < 0 {
			sess.Fail(gen)
			return
		}
		blk := page.Blocks[idx].Clone()
		dto := b.validator.ValidateBlock(ctx, rawText, blk.Indentation)

		if !sess.TryFinish(gen) {
			return
		}
		applyValidated(blk, dto)
		next := append([]*outline.Block{}, page.Blocks...)
		next[idx] = blk
		b.store.Commit(pageID, next)
		b.scheduleSave(ctx, pageID, blockID)
	}()
}

// SessionState returns the editing state of a block's session.
func (b *Bus) SessionState(blockID string) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessionLocked(blockID).State()
}

// Run subscribes to change notifications and silently refreshes dynamic
// blocks: a block flagged hasDynamicContent re-validates whenever any other
// block on an active page changes. Blocks until ctx is cancelled.
func (b *Bus) Run(ctx context.Context) {
	ch := b.broker.Subscribe()
	defer b.broker.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-ch:
			if !ok {
				return
			}
			if c.Kind != "block.changed" {
				continue
			}
			b.refreshDynamic(ctx, c.Key)
		}
	}
}

// refreshDynamic re-validates dynamic blocks on active pages, skipping the
// block that triggered the change.
func (b *Bus) refreshDynamic(ctx context.Context, changedKey string) {
	b.mu.Lock()
	pages := make([]string, 0, len(b.active))
	for p := range b.active {
		pages = append(pages, p)
	}
	b.mu.Unlock()

	for _, pageID := range pages {
		page := b.store.GetOrCreate(pageID).Snapshot()
		changed := false
		next := append([]*outline.Block{}, page.Blocks...)
		for i, blk := range next {
			if !blk.HasDynamicContent || blk.ID == changedKey {
				continue
			}
			fresh := blk.Clone()
			dto := b.validator.ValidateBlock(ctx, fresh.Content.OriginalText, fresh.Indentation)
			applyValidated(fresh, dto)
			next[i] = fresh
			changed = true
		}
		if changed {
			// Render-only refresh: commit without scheduling a save.
			b.store.Commit(pageID, next)
			b.logger.Debug("editor: refreshed dynamic blocks", slog.String("page_id", pageID))
		}
	}
}

func (b *Bus) scheduleSave(ctx context.Context, pageID, blockID string) {
	done := b.store.Save(ctx, pageID, blockID)
	go func() {
		if err := <-done; err != nil {
			b.logger.Warn("editor: save failed",
				slog.String("page_id", pageID),
				slog.String("block_id", blockID),
				slog.String("error", err.Error()))
		}
	}()
}

func (b *Bus) sessionLocked(blockID string) *Session {
	sess, ok := b.sessions[blockID]
	if !ok {
		sess = NewSession()
		b.sessions[blockID] = sess
	}
	return sess
}

// applyValidated writes a validator response into a block. Both content forms
// and all derived fields move together.
func applyValidated(blk *outline.Block, dto outline.BlockDTO) {
	blk.Content = outline.BlockContent{
		OriginalText:     dto.Content.OriginalText,
		PreparedMarkdown: dto.Content.PreparedMarkdown,
	}
	blk.HasDynamicContent = dto.HasDynamicContent
	blk.ReferencedContent = nil
	for _, rc := range dto.ReferencedContent {
		blk.ReferencedContent = append(blk.ReferencedContent, outline.ReferencedBlockContent{
			Content: outline.BlockContent{
				OriginalText:     rc.Content.OriginalText,
				PreparedMarkdown: rc.Content.PreparedMarkdown,
			},
			Reference: outline.Reference{
				SourcePageID:   rc.Reference.FileID,
				SourcePageName: rc.Reference.FileName,
				BlockNumber:    rc.Reference.BlockNumber,
			},
		})
	}
}
