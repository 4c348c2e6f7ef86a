package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/varga/laguz/internal/assist"
	"github.com/varga/laguz/internal/editor"
	"github.com/varga/laguz/internal/notify"
	"github.com/varga/laguz/internal/pageservice"
	"github.com/varga/laguz/internal/pagestore"
	"github.com/varga/laguz/internal/templates"
)

// Deps bundles the collaborators the router exposes over HTTP.
type Deps struct {
	Pages     *pageservice.Service
	Store     *pagestore.Store
	Bus       *editor.Bus
	Assist    *assist.Controller
	Templates *templates.Manager
	Broker    *notify.Broker
	GraphRoot string
}

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// The SSE change feed is mounted at GET /events inside the auth group.
func NewRouter(d Deps, authEnabled bool, token string) chi.Router {
	h := NewHandler(d.Pages, d.Store, d.Templates, d.Broker)
	sh := NewSessionHandler(d.Store, d.Bus, d.Assist)
	mh := NewMediaHandler(d.GraphRoot, d.Broker)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Pages.
	r.Get("/pages/{name}", h.GetPage)
	r.Post("/pages/{name}", h.SavePage)
	r.Delete("/pages/{name}", h.DeletePage)
	r.Post("/append-page/{name}", h.AppendPage)
	r.Post("/rename-page", h.RenamePage)

	// Journals.
	r.Get("/journal/{date}", h.GetJournal)
	r.Post("/journal/{date}", h.SaveJournal)

	// Builtin overview pages.
	r.Get("/builtin-pages/{name}", h.GetBuiltinPage)

	// Single-block save addressed by page id and 1-based number.
	r.Post("/pagesbyid/{id}/block/{number}", h.SaveBlock)

	// Render-only block validation.
	r.Post("/parse", h.Parse)

	// Search and graph metadata.
	r.Post("/search", h.Search)
	r.Get("/metainfo", h.MetaInfo)
	r.Get("/backlinks/{name}", h.Backlinks)

	// Templates.
	r.Get("/templates", h.ListTemplates)
	r.Post("/templates/insert", h.InsertTemplate)

	// Favourites.
	r.Get("/favourites", h.Favourites)
	r.Post("/favourites/{name}", h.ToggleFavourite)

	// Media upload (auth-protected; serving is mounted outside /api).
	r.Post("/media", mh.Upload)

	// Editing session.
	r.Post("/editor/load", sh.LoadPage)
	r.Post("/editor/open", sh.OpenBlock)
	r.Post("/editor/close", sh.CloseBlock)
	r.Post("/editor/focus-out", sh.FocusOut)
	r.Post("/editor/new-block", sh.NewBlock)
	r.Post("/editor/delete-block", sh.DeleteBlock)
	r.Post("/editor/merge-block", sh.MergeBlock)
	r.Post("/editor/indent", sh.Indent)
	r.Post("/editor/toggle-todo", sh.ToggleTodo)
	r.Post("/editor/state", sh.SessionState)

	// Content assist.
	r.Post("/assist/key", sh.AssistKey)
	r.Get("/assist/menu", sh.AssistMenu)
	r.Post("/assist/confirm", sh.AssistConfirm)

	// SSE change feed (protected by the same auth middleware).
	r.Get("/events", d.Broker.ServeHTTP)

	return r
}

// AssetsHandler returns the unauthenticated media file server mounted at
// /assets/{filename}.
func AssetsHandler(graphRoot string, broker *notify.Broker) http.HandlerFunc {
	return NewMediaHandler(graphRoot, broker).ServeFile
}
