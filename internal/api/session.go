package api

import (
	"net/http"

	"github.com/varga/laguz/internal/assist"
	"github.com/varga/laguz/internal/editor"
	"github.com/varga/laguz/internal/pagestore"
)

// SessionHandler exposes the editing session: block lifecycle operations on
// the editor bus and the content-assist state machine.
type SessionHandler struct {
	store *pagestore.Store
	bus   *editor.Bus
	ctrl  *assist.Controller
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(store *pagestore.Store, bus *editor.Bus, ctrl *assist.Controller) *SessionHandler {
	return &SessionHandler{store: store, bus: bus, ctrl: ctrl}
}

// LoadPage handles POST /api/editor/load: loads the page into the shared
// cache and returns the addressable block list. Editing operations take the
// block ids returned here.
func (h *SessionHandler) LoadPage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PageID string `json:"pageId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := <-h.store.Load(r.Context(), req.PageID); err != nil {
		writeError(w, "load page", err)
		return
	}
	snap := h.store.GetOrCreate(req.PageID).Snapshot()
	blocks := make([]EditorBlockDTO, len(snap.Blocks))
	for i, b := range snap.Blocks {
		blocks[i] = EditorBlockDTO{
			BlockID:           b.ID,
			Indentation:       b.Indentation,
			OriginalText:      b.Content.OriginalText,
			PreparedMarkdown:  b.Content.PreparedMarkdown,
			HasDynamicContent: b.HasDynamicContent,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pageId": req.PageID,
		"blocks": blocks,
	})
}

// OpenBlock handles POST /api/editor/open. Switching to another block saves
// the one being left first.
func (h *SessionHandler) OpenBlock(w http.ResponseWriter, r *http.Request) {
	var req BlockRef
	if !decodeBody(w, r, &req) {
		return
	}
	h.bus.OpenBlock(r.Context(), req.PageID, req.BlockID)
	w.WriteHeader(http.StatusNoContent)
}

// CloseBlock handles POST /api/editor/close.
func (h *SessionHandler) CloseBlock(w http.ResponseWriter, _ *http.Request) {
	h.bus.CloseBlock()
	w.WriteHeader(http.StatusNoContent)
}

// FocusOut handles POST /api/editor/focus-out: the raw text of the editing
// session is validated and committed asynchronously.
func (h *SessionHandler) FocusOut(w http.ResponseWriter, r *http.Request) {
	var req FocusOutRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.bus.FocusOut(r.Context(), req.PageID, req.BlockID, req.Text)
	w.WriteHeader(http.StatusAccepted)
}

// NewBlock handles POST /api/editor/new-block.
func (h *SessionHandler) NewBlock(w http.ResponseWriter, r *http.Request) {
	var req NewBlockRequest
	if !decodeBody(w, r, &req) {
		return
	}
	mode := editor.InsertAfter
	if req.Position == "before" {
		mode = editor.InsertBefore
	}
	id, err := h.bus.NewBlock(r.Context(), req.PageID, req.BlockID, mode, req.Token)
	if err != nil {
		writeError(w, "new block", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"blockId": id})
}

// DeleteBlock handles POST /api/editor/delete-block.
func (h *SessionHandler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	var req BlockRef
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.bus.DeleteBlock(r.Context(), req.PageID, req.BlockID); err != nil {
		writeError(w, "delete block", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MergeBlock handles POST /api/editor/merge-block: joins a block into its
// predecessor. Merging the first block is a no-op.
func (h *SessionHandler) MergeBlock(w http.ResponseWriter, r *http.Request) {
	var req BlockRef
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.bus.MergeWithPrevious(r.Context(), req.PageID, req.BlockID); err != nil {
		writeError(w, "merge block", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Indent handles POST /api/editor/indent.
func (h *SessionHandler) Indent(w http.ResponseWriter, r *http.Request) {
	var req IndentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	dir := editor.Increase
	if req.Direction == "decrease" {
		dir = editor.Decrease
	}
	if err := h.bus.ChangeIndentation(r.Context(), req.PageID, req.BlockID, dir); err != nil {
		writeError(w, "indent block", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleTodo handles POST /api/editor/toggle-todo.
func (h *SessionHandler) ToggleTodo(w http.ResponseWriter, r *http.Request) {
	var req BlockRef
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.bus.ToggleCheckbox(r.Context(), req.PageID, req.BlockID); err != nil {
		writeError(w, "toggle todo", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SessionState handles POST /api/editor/state.
func (h *SessionHandler) SessionState(w http.ResponseWriter, r *http.Request) {
	var req BlockRef
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": h.bus.SessionState(req.BlockID).String()})
}

// AssistKey handles POST /api/assist/key.
func (h *SessionHandler) AssistKey(w http.ResponseWriter, r *http.Request) {
	var req KeyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	eff := h.ctrl.HandleKey(r.Context(), assist.KeyEvent{Key: req.Key, Ctrl: req.Ctrl, Shift: req.Shift})
	s := h.ctrl.State()
	writeJSON(w, http.StatusOK, AssistStateResponse{
		Effect: effectName(eff),
		Mode:   s.Mode.String(),
		Buffer: s.Buffer,
		Cursor: s.Cursor,
	})
}

// AssistMenu handles GET /api/assist/menu.
func (h *SessionHandler) AssistMenu(w http.ResponseWriter, r *http.Request) {
	sections, err := h.ctrl.Menu(r.Context())
	if err != nil {
		writeError(w, "assist menu", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sections": sections})
}

// AssistConfirm handles POST /api/assist/confirm.
func (h *SessionHandler) AssistConfirm(w http.ResponseWriter, r *http.Request) {
	cmd, err := h.ctrl.Confirm(r.Context())
	if err != nil {
		writeError(w, "assist confirm", err)
		return
	}
	writeJSON(w, http.StatusOK, ConfirmResponse{
		Kind:     commandName(cmd.Kind),
		Text:     cmd.Text,
		PageName: cmd.PageName,
		Name:     cmd.Name,
		StayOpen: cmd.StayOpen,
	})
}

func effectName(e assist.Effect) string {
	switch e {
	case assist.EffectConsumed:
		return "consumed"
	case assist.EffectConfirm:
		return "confirm"
	default:
		return "none"
	}
}

func commandName(k assist.CommandKind) string {
	switch k {
	case assist.CmdInsertText:
		return "insert-text"
	case assist.CmdNavigate:
		return "navigate"
	case assist.CmdNavigateJournal:
		return "navigate-journal"
	case assist.CmdDeleteBlock:
		return "delete-block"
	case assist.CmdDeletePage:
		return "delete-page"
	case assist.CmdNewBlockAfter:
		return "new-block-after"
	case assist.CmdOpenMediaSubmenu:
		return "open-media-submenu"
	case assist.CmdOpenTemplateSubmenu:
		return "open-template-submenu"
	case assist.CmdInsertTemplate:
		return "insert-template"
	default:
		return "none"
	}
}
