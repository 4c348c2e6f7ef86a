// Package pageservice coordinates storage, parsing, and index operations for
// outline pages. It is the persistence collaborator behind the page store and
// the HTTP API.
package pageservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/varga/laguz/internal/apperr"
	"github.com/varga/laguz/internal/index"
	"github.com/varga/laguz/internal/outline"
	"github.com/varga/laguz/internal/parser"
	"github.com/varga/laguz/internal/storage"
)

const favouritesFile = "favourites.yaml"

// MetaInfo is the domain information surfaced to editors: everything a
// content-assist menu can insert.
type MetaInfo struct {
	Tags      []string `json:"tags"`
	Media     []string `json:"media"`
	Templates []string `json:"templates"`
}

// Service coordinates storage and index operations on outline pages.
type Service struct {
	store storage.Provider
	db    *index.DB
}

// NewService creates a new page service.
func NewService(store storage.Provider, db *index.DB) *Service {
	return &Service{store: store, db: db}
}

// PagePath maps a page id to its graph-relative file path. Builtin pages have
// no file.
func PagePath(pageID string) (string, error) {
	name := outline.PageName(pageID)
	switch {
	case outline.IsUserPage(pageID):
		return path.Join(storage.PagesDir, name+".md"), nil
	case outline.IsJournalPage(pageID):
		return path.Join(storage.JournalsDir, name+".md"), nil
	default:
		return "", fmt.Errorf("%w: page id %q has no file", apperr.ErrValidation, pageID)
	}
}

// LoadPage reads and validates a page. A missing file yields a page with a
// single empty block so the editor has something to open.
func (s *Service) LoadPage(_ context.Context, pageID string) (outline.PageDTO, error) {
	rel, err := PagePath(pageID)
	if err != nil {
		return outline.PageDTO{}, err
	}
	data, err := s.store.Read(rel)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return outline.PageDTO{
				Blocks:      []outline.BlockDTO{s.buildBlockDTO("", 0)},
				IsFavourite: s.isFavourite(outline.PageName(pageID)),
			}, nil
		}
		return outline.PageDTO{}, err
	}

	flat := storage.DecodePage(data)
	blocks := make([]outline.BlockDTO, len(flat))
	for i, fb := range flat {
		blocks[i] = s.buildBlockDTO(fb.Markdown, fb.Indentation)
	}
	return outline.PageDTO{
		Blocks:      blocks,
		IsFavourite: s.isFavourite(outline.PageName(pageID)),
	}, nil
}

// SavePage persists the full block list, reindexes, and returns the validated
// page.
func (s *Service) SavePage(ctx context.Context, pageID string, blocks []outline.FlatBlockDTO) (outline.PageDTO, error) {
	rel, err := PagePath(pageID)
	if err != nil {
		return outline.PageDTO{}, err
	}
	data := storage.EncodePage(blocks)
	if err := s.store.Write(rel, data); err != nil {
		return outline.PageDTO{}, err
	}
	if err := index.IndexPageFile(s.db, rel, data); err != nil {
		return outline.PageDTO{}, err
	}
	return s.LoadPage(ctx, pageID)
}

// SaveBlock replaces the block at the given 1-based position, keeping its
// indentation, and returns the validated block.
func (s *Service) SaveBlock(_ context.Context, pageID string, blockNumber int, markdown string) (outline.BlockDTO, error) {
	rel, err := PagePath(pageID)
	if err != nil {
		return outline.BlockDTO{}, err
	}
	data, err := s.store.Read(rel)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return outline.BlockDTO{}, apperr.ErrNotFound
		}
		return outline.BlockDTO{}, err
	}
	flat := storage.DecodePage(data)
	if blockNumber < 1 || blockNumber > len(flat) {
		return outline.BlockDTO{}, fmt.Errorf("%w: block %d of %d", apperr.ErrInvalidBlockState, blockNumber, len(flat))
	}
	flat[blockNumber-1].Markdown = markdown

	updated := storage.EncodePage(flat)
	if err := s.store.Write(rel, updated); err != nil {
		return outline.BlockDTO{}, err
	}
	if err := index.IndexPageFile(s.db, rel, updated); err != nil {
		return outline.BlockDTO{}, err
	}
	return s.buildBlockDTO(markdown, flat[blockNumber-1].Indentation), nil
}

// AppendBlocks adds blocks at the end of a page, creating it if needed.
func (s *Service) AppendBlocks(ctx context.Context, pageID string, blocks []outline.FlatBlockDTO) (outline.PageDTO, error) {
	rel, err := PagePath(pageID)
	if err != nil {
		return outline.PageDTO{}, err
	}
	var flat []outline.FlatBlockDTO
	if data, readErr := s.store.Read(rel); readErr == nil {
		flat = storage.DecodePage(data)
	} else if !errors.Is(readErr, os.ErrNotExist) {
		return outline.PageDTO{}, readErr
	}
	flat = append(flat, blocks...)
	return s.SavePage(ctx, pageID, flat)
}

// RenamePage moves a user page file and rewrites wikilinks in every page that
// referenced the old name.
func (s *Service) RenamePage(_ context.Context, oldName, newName string) error {
	if newName == "" || strings.ContainsAny(newName, "/\\#") {
		return fmt.Errorf("%w: invalid page name %q", apperr.ErrValidation, newName)
	}
	oldRel := path.Join(storage.PagesDir, oldName+".md")
	newRel := path.Join(storage.PagesDir, newName+".md")
	if _, err := s.store.Read(newRel); err == nil {
		return apperr.ErrAlreadyExists
	}

	referrers, err := s.db.Backlinks(oldName)
	if err != nil {
		return err
	}

	if err := s.store.Move(oldRel, newRel); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	if err := s.db.DeletePage(outline.UserPageID(oldName), oldName); err != nil {
		return err
	}
	data, err := s.store.Read(newRel)
	if err != nil {
		return err
	}
	if err := index.IndexPageFile(s.db, newRel, data); err != nil {
		return err
	}

	// Rewrite [[oldName]] and [[oldName#n]] in referencing pages.
	for _, ref := range referrers {
		refRel := path.Join(storage.PagesDir, ref+".md")
		refData, readErr := s.store.Read(refRel)
		if readErr != nil {
			continue
		}
		rewritten := rewriteLinks(string(refData), oldName, newName)
		if rewritten == string(refData) {
			continue
		}
		if writeErr := s.store.Write(refRel, []byte(rewritten)); writeErr != nil {
			return writeErr
		}
		if idxErr := index.IndexPageFile(s.db, refRel, []byte(rewritten)); idxErr != nil {
			return idxErr
		}
	}

	if s.isFavourite(oldName) {
		if _, err := s.toggleFavouriteName(oldName); err != nil {
			return err
		}
		if _, err := s.toggleFavouriteName(newName); err != nil {
			return err
		}
	}
	return nil
}

// DeletePage removes a page from storage and index.
func (s *Service) DeletePage(_ context.Context, pageID string) error {
	rel, err := PagePath(pageID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(rel); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	return s.db.DeletePage(pageID, outline.PageName(pageID))
}

// ValidateBlock parses raw markdown into a display-ready block without
// persisting anything.
func (s *Service) ValidateBlock(_ context.Context, markdown string, indentation int) outline.BlockDTO {
	return s.buildBlockDTO(markdown, indentation)
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, term string, limit int) (index.SearchResult, error) {
	return s.db.Search(term, limit)
}

// Backlinks returns the names of user pages linking to the target.
func (s *Service) Backlinks(_ context.Context, target string) ([]string, error) {
	return s.db.Backlinks(target)
}

// Meta returns the domain information menus are built from: known tags,
// media file names, and template names.
func (s *Service) Meta(_ context.Context) (MetaInfo, error) {
	tags, err := s.db.Tags()
	if err != nil {
		return MetaInfo{}, err
	}
	media, err := s.store.ListNames(storage.MediaDir)
	if err != nil {
		return MetaInfo{}, err
	}
	templates, err := s.store.ListNames(storage.TemplatesDir)
	if err != nil {
		return MetaInfo{}, err
	}
	for i, t := range templates {
		templates[i] = strings.TrimSuffix(t, ".md")
	}
	return MetaInfo{
		Tags:      nonNilSlice(tags),
		Media:     nonNilSlice(media),
		Templates: nonNilSlice(templates),
	}, nil
}

// BuiltinPage generates a read-only overview page. Known names:
// "user-page-overview" and "media-overview".
func (s *Service) BuiltinPage(ctx context.Context, name string) (outline.PageDTO, error) {
	switch name {
	case "user-page-overview":
		tags, err := s.db.Tags()
		if err != nil {
			return outline.PageDTO{}, err
		}
		blocks := make([]outline.BlockDTO, 0, len(tags)+1)
		blocks = append(blocks, s.buildBlockDTO("# All pages", 0))
		for _, t := range tags {
			blocks = append(blocks, s.buildBlockDTO(fmt.Sprintf("[[%s]]", t), 1))
		}
		return outline.PageDTO{Blocks: blocks, Title: "All pages"}, nil

	case "media-overview":
		media, err := s.store.ListNames(storage.MediaDir)
		if err != nil {
			return outline.PageDTO{}, err
		}
		blocks := make([]outline.BlockDTO, 0, len(media)+1)
		blocks = append(blocks, s.buildBlockDTO("# Media", 0))
		for _, m := range media {
			blocks = append(blocks, s.buildBlockDTO(fmt.Sprintf("![%s](/assets/%s)", m, m), 1))
		}
		return outline.PageDTO{Blocks: blocks, Title: "Media"}, nil

	default:
		return outline.PageDTO{}, apperr.ErrNotFound
	}
}

// Favourites returns the favourite page names in stored order.
func (s *Service) Favourites(_ context.Context) ([]string, error) {
	return s.loadFavourites(), nil
}

// ToggleFavourite flips a page's favourite flag and reports the new state.
func (s *Service) ToggleFavourite(_ context.Context, name string) (bool, error) {
	return s.toggleFavouriteName(name)
}

// buildBlockDTO parses raw markdown and resolves any [[Page#n]] embeds into
// referenced block content.
func (s *Service) buildBlockDTO(markdown string, indentation int) outline.BlockDTO {
	res := parser.ParseBlock(markdown)
	dto := outline.BlockDTO{
		Content: outline.BlockContentDTO{
			OriginalText:     markdown,
			PreparedMarkdown: res.PreparedMarkdown,
		},
		Indentation:       indentation,
		HasDynamicContent: res.HasDynamicContent,
		ReferencedContent: []outline.ReferencedBlockContentDTO{},
	}
	for _, em := range res.Embeds {
		if rc, ok := s.resolveEmbed(em); ok {
			dto.ReferencedContent = append(dto.ReferencedContent, rc)
		}
	}
	return dto
}

// resolveEmbed reads the referenced page and extracts the 1-based block.
// Unresolvable embeds are dropped rather than failing the whole block.
func (s *Service) resolveEmbed(em parser.Embed) (outline.ReferencedBlockContentDTO, bool) {
	rel := path.Join(storage.PagesDir, em.PageName+".md")
	data, err := s.store.Read(rel)
	if err != nil {
		return outline.ReferencedBlockContentDTO{}, false
	}
	flat := storage.DecodePage(data)
	if em.BlockNumber < 1 || em.BlockNumber > len(flat) {
		return outline.ReferencedBlockContentDTO{}, false
	}
	raw := flat[em.BlockNumber-1].Markdown
	return outline.ReferencedBlockContentDTO{
		Content: outline.BlockContentDTO{
			OriginalText:     raw,
			PreparedMarkdown: outline.ChopTodo(raw),
		},
		Reference: outline.ReferenceDTO{
			FileID:      outline.UserPageID(em.PageName),
			FileName:    em.PageName,
			BlockNumber: em.BlockNumber,
		},
	}, true
}

// rewriteLinks replaces [[old]] and [[old#n]] and [[old|alias]] targets.
func rewriteLinks(content, oldName, newName string) string {
	content = strings.ReplaceAll(content, "[["+oldName+"]]", "[["+newName+"]]")
	content = strings.ReplaceAll(content, "[["+oldName+"#", "[["+newName+"#")
	content = strings.ReplaceAll(content, "[["+oldName+"|", "[["+newName+"|")
	return content
}

func (s *Service) loadFavourites() []string {
	data, err := s.store.Read(favouritesFile)
	if err != nil {
		return nil
	}
	var doc struct {
		Favourites []string `yaml:"favourites"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil
	}
	return doc.Favourites
}

func (s *Service) isFavourite(name string) bool {
	for _, f := range s.loadFavourites() {
		if f == name {
			return true
		}
	}
	return false
}

// toggleFavouriteName flips membership and reports the new state.
func (s *Service) toggleFavouriteName(name string) (bool, error) {
	favs := s.loadFavourites()
	kept := favs[:0]
	found := false
	for _, f := range favs {
		if f == name {
			found = true
			continue
		}
		kept = append(kept, f)
	}
	if !found {
		kept = append(kept, name)
	}
	sort.Strings(kept)

	doc := struct {
		Favourites []string `yaml:"favourites"`
	}{Favourites: kept}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("encode favourites: %w", err)
	}
	if err := s.store.Write(favouritesFile, data); err != nil {
		return false, fmt.Errorf("write favourites: %w", err)
	}
	return !found, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
