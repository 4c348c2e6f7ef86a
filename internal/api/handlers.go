package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/varga/laguz/internal/index"
	"github.com/varga/laguz/internal/notify"
	"github.com/varga/laguz/internal/outline"
	"github.com/varga/laguz/internal/pageservice"
	"github.com/varga/laguz/internal/pagestore"
	"github.com/varga/laguz/internal/render"
	"github.com/varga/laguz/internal/templates"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers for pages, journals, search, and meta.
type Handler struct {
	pages  *pageservice.Service
	store  *pagestore.Store
	tmpl   *templates.Manager
	broker *notify.Broker
}

// NewHandler creates a new Handler.
func NewHandler(pages *pageservice.Service, store *pagestore.Store, tmpl *templates.Manager, broker *notify.Broker) *Handler {
	return &Handler{pages: pages, store: store, tmpl: tmpl, broker: broker}
}

// urlName extracts a URL parameter, decoding percent escapes from OpenAPI
// clients (e.g. My%20Page).
func urlName(r *http.Request, param string) string {
	raw := chi.URLParam(r, param)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// GetPage handles GET /api/pages/{name}.
//
//	@Summary		Load a user page
//	@Tags			pages
//	@Produce		json
//	@Param			name	path		string	true	"Page name"
//	@Success		200		{object}	outline.PageDTO
//	@Security		BearerAuth
//	@Router			/pages/{name} [get]
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	name := urlName(r, "name")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("page name is required"))
		return
	}
	page, err := h.pages.LoadPage(r.Context(), outline.UserPageID(name))
	if err != nil {
		writeError(w, "get page", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// SavePage handles POST /api/pages/{name}.
//
//	@Summary		Replace the full block list of a user page
//	@Tags			pages
//	@Accept			json
//	@Produce		json
//	@Param			name	path		string			true	"Page name"
//	@Param			body	body		SavePageRequest	true	"Ordered blocks"
//	@Success		200		{object}	outline.PageDTO
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pages/{name} [post]
func (h *Handler) SavePage(w http.ResponseWriter, r *http.Request) {
	h.savePage(w, r, outline.UserPageID(urlName(r, "name")))
}

// DeletePage handles DELETE /api/pages/{name}.
func (h *Handler) DeletePage(w http.ResponseWriter, r *http.Request) {
	name := urlName(r, "name")
	if err := <-h.store.Delete(r.Context(), outline.UserPageID(name)); err != nil {
		writeError(w, "delete page", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AppendPage handles POST /api/append-page/{name}: blocks are appended after
// the existing content instead of replacing it.
func (h *Handler) AppendPage(w http.ResponseWriter, r *http.Request) {
	var req SavePageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	pageID := outline.UserPageID(urlName(r, "name"))
	page, err := h.pages.AppendBlocks(r.Context(), pageID, req.Blocks)
	if err != nil {
		writeError(w, "append page", err)
		return
	}
	h.afterPageWrite(r, pageID)
	writeJSON(w, http.StatusOK, page)
}

// GetJournal handles GET /api/journal/{date}.
func (h *Handler) GetJournal(w http.ResponseWriter, r *http.Request) {
	date, ok := journalDate(w, r)
	if !ok {
		return
	}
	page, err := h.pages.LoadPage(r.Context(), outline.JournalPageID(date))
	if err != nil {
		writeError(w, "get journal", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// SaveJournal handles POST /api/journal/{date}.
func (h *Handler) SaveJournal(w http.ResponseWriter, r *http.Request) {
	date, ok := journalDate(w, r)
	if !ok {
		return
	}
	h.savePage(w, r, outline.JournalPageID(date))
}

// journalDate validates the {date} parameter as yyyy_mm_dd.
func journalDate(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := urlName(r, "date")
	if _, err := time.Parse("2006_01_02", date); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("date must be yyyy_mm_dd"))
		return "", false
	}
	return date, true
}

func (h *Handler) savePage(w http.ResponseWriter, r *http.Request, pageID string) {
	var req SavePageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	page, err := h.pages.SavePage(r.Context(), pageID, req.Blocks)
	if err != nil {
		writeError(w, "save page", err)
		return
	}
	h.afterPageWrite(r, pageID)
	writeJSON(w, http.StatusOK, page)
}

// afterPageWrite converges cached views and notifies listeners after a write
// that bypassed the page store.
func (h *Handler) afterPageWrite(r *http.Request, pageID string) {
	_ = h.store.Refresh(r.Context(), pageID)
	h.broker.PublishPage("block.changed", pageID)
}

// GetBuiltinPage handles GET /api/builtin-pages/{name}.
func (h *Handler) GetBuiltinPage(w http.ResponseWriter, r *http.Request) {
	page, err := h.pages.BuiltinPage(r.Context(), urlName(r, "name"))
	if err != nil {
		writeError(w, "builtin page", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// SaveBlock handles POST /api/pagesbyid/{id}/block/{number}: an out-of-line
// edit to one block addressed by its 1-based running number.
//
//	@Summary		Replace one block of a page
//	@Tags			pages
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Percent-encoded page id"
//	@Param			number	path		int					true	"1-based block number"
//	@Param			body	body		SaveBlockRequest	true	"New markdown"
//	@Success		200		{object}	outline.BlockDTO
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pagesbyid/{id}/block/{number} [post]
func (h *Handler) SaveBlock(w http.ResponseWriter, r *http.Request) {
	pageID := urlName(r, "id")
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("block number must be an integer"))
		return
	}
	var req SaveBlockRequest
	if !decodeBody(w, r, &req) {
		return
	}
	block, err := h.pages.SaveBlock(r.Context(), pageID, number, req.Markdown)
	if err != nil {
		writeError(w, "save block", err)
		return
	}
	_ = h.store.Refresh(r.Context(), pageID)
	h.broker.PublishBlock("block.changed", pageID, number)
	writeJSON(w, http.StatusOK, block)
}

// Parse handles POST /api/parse: render-only validation of one block, with
// no persistence side effects.
func (h *Handler) Parse(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	block := h.pages.ValidateBlock(r.Context(), req.Markdown, req.Indentation)
	writeJSON(w, http.StatusOK, ParseResponse{
		Block: block,
		HTML:  render.HTML(block.Content.PreparedMarkdown),
	})
}

// RenamePage handles POST /api/rename-page.
func (h *Handler) RenamePage(w http.ResponseWriter, r *http.Request) {
	var req RenamePageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OldName == "" || req.NewName == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("oldName and newName are required"))
		return
	}
	if err := <-h.store.Rename(r.Context(), outline.UserPageID(req.OldName), req.NewName); err != nil {
		writeError(w, "rename page", err)
		return
	}
	page, err := h.pages.LoadPage(r.Context(), outline.UserPageID(req.NewName))
	if err != nil {
		writeError(w, "rename page", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Search handles POST /api/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.pages.Search(r.Context(), req.Query, 50)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{
		Pages:    findingDTOs(res.Pages),
		Journals: findingDTOs(res.Journals),
	})
}

func findingDTOs(findings []index.Finding) []FindingDTO {
	out := make([]FindingDTO, len(findings))
	for i, f := range findings {
		out[i] = FindingDTO{PageName: f.PageName, BlockNumber: f.BlockNumber, TextLine: f.TextLine}
	}
	return out
}

// MetaInfo handles GET /api/metainfo.
func (h *Handler) MetaInfo(w http.ResponseWriter, r *http.Request) {
	meta, err := h.pages.Meta(r.Context())
	if err != nil {
		writeError(w, "metainfo", err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// Backlinks handles GET /api/backlinks/{name}.
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	links, err := h.pages.Backlinks(r.Context(), urlName(r, "name"))
	if err != nil {
		writeError(w, "backlinks", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"backlinks": links})
}

// ListTemplates handles GET /api/templates.
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := h.tmpl.List(r.Context())
	if err != nil {
		writeError(w, "list templates", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": list})
}

// InsertTemplate handles POST /api/templates/insert.
func (h *Handler) InsertTemplate(w http.ResponseWriter, r *http.Request) {
	var req InsertTemplateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	page, err := h.tmpl.Insert(r.Context(), req.TemplateID, req.PageID, req.BlockNumber)
	if err != nil {
		writeError(w, "insert template", err)
		return
	}
	h.afterPageWrite(r, req.PageID)
	writeJSON(w, http.StatusOK, page)
}

// Favourites handles GET /api/favourites.
func (h *Handler) Favourites(w http.ResponseWriter, r *http.Request) {
	favs, err := h.pages.Favourites(r.Context())
	if err != nil {
		writeError(w, "favourites", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"favourites": favs})
}

// ToggleFavourite handles POST /api/favourites/{name}.
func (h *Handler) ToggleFavourite(w http.ResponseWriter, r *http.Request) {
	name := urlName(r, "name")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("page name is required"))
		return
	}
	fav, err := h.pages.ToggleFavourite(r.Context(), name)
	if err != nil {
		writeError(w, "toggle favourite", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"favourite": fav})
}
