// Package templates manages reusable block snippets stored as page files
// under the templates directory and splices them into pages.
package templates

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/varga/laguz/internal/apperr"
	"github.com/varga/laguz/internal/outline"
	"github.com/varga/laguz/internal/pageservice"
	"github.com/varga/laguz/internal/storage"
)

// Template identifies one template file.
type Template struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Manager lists templates and inserts them into pages.
type Manager struct {
	store storage.Provider
	pages *pageservice.Service
}

// NewManager creates a template manager.
func NewManager(store storage.Provider, pages *pageservice.Service) *Manager {
	return &Manager{store: store, pages: pages}
}

// List returns the available templates. The id is the file name without
// extension; the title is the id with underscores spelled as spaces.
func (m *Manager) List(_ context.Context) ([]Template, error) {
	names, err := m.store.ListNames(storage.TemplatesDir)
	if err != nil {
		return nil, err
	}
	out := make([]Template, 0, len(names))
	for _, n := range names {
		if !strings.HasSuffix(n, ".md") {
			continue
		}
		id := strings.TrimSuffix(n, ".md")
		out = append(out, Template{ID: id, Title: strings.ReplaceAll(id, "_", " ")})
	}
	return out, nil
}

// Blocks reads a template's block list.
func (m *Manager) Blocks(_ context.Context, templateID string) ([]outline.FlatBlockDTO, error) {
	data, err := m.store.Read(path.Join(storage.TemplatesDir, templateID+".md"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return storage.DecodePage(data), nil
}

// Insert splices the template's blocks into the page directly after the given
// 1-based block number (0 prepends) and returns the updated page. Inserted
// blocks keep their relative indentation, shifted to the anchor block's depth.
func (m *Manager) Insert(ctx context.Context, templateID, pageID string, blockNumber int) (outline.PageDTO, error) {
	tmpl, err := m.Blocks(ctx, templateID)
	if err != nil {
		return outline.PageDTO{}, err
	}

	page, err := m.pages.LoadPage(ctx, pageID)
	if err != nil {
		return outline.PageDTO{}, err
	}
	flat := make([]outline.FlatBlockDTO, 0, len(page.Blocks)+len(tmpl))
	for _, b := range page.Blocks {
		flat = append(flat, outline.FlatBlockDTO{Markdown: b.Content.OriginalText, Indentation: b.Indentation})
	}
	if blockNumber < 0 || blockNumber > len(flat) {
		return outline.PageDTO{}, fmt.Errorf("%w: insert after block %d of %d", apperr.ErrInvalidBlockState, blockNumber, len(flat))
	}

	depth := 0
	if blockNumber > 0 {
		depth = flat[blockNumber-1].Indentation
	}
	shifted := make([]outline.FlatBlockDTO, len(tmpl))
	for i, tb := range tmpl {
		shifted[i] = outline.FlatBlockDTO{Markdown: tb.Markdown, Indentation: tb.Indentation + depth}
	}

	merged := make([]outline.FlatBlockDTO, 0, len(flat)+len(shifted))
	merged = append(merged, flat[:blockNumber]...)
	merged = append(merged, shifted...)
	merged = append(merged, flat[blockNumber:]...)

	return m.pages.SavePage(ctx, pageID, merged)
}
