package index

import (
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/varga/laguz/internal/checksum"
	"github.com/varga/laguz/internal/outline"
	"github.com/varga/laguz/internal/parser"
	"github.com/varga/laguz/internal/storage"
)

// Sync walks the pages and journals directories and brings the index up to
// date: new/changed files are decoded and upserted, files removed from disk
// are dropped from the index.
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{})
	for _, dir := range []string{storage.PagesDir, storage.JournalsDir} {
		metas, err := store.List(dir)
		if err != nil {
			return err
		}
		for _, m := range metas {
			id, _, ok := PageForPath(m.Path)
			if !ok {
				continue
			}
			disk[id] = struct{}{}

			if checksums[id] == m.Checksum {
				continue
			}
			data, err := store.Read(m.Path)
			if err != nil {
				logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
				continue
			}
			if err := IndexPageFile(db, m.Path, data); err != nil {
				logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: indexed", slog.String("path", m.Path))
			}
		}
	}

	// Remove stale entries.
	for id := range checksums {
		if _, ok := disk[id]; !ok {
			name, _ := db.PageName(id)
			if err := db.DeletePage(id, name); err != nil {
				logger.Warn("sync: delete failed", slog.String("page_id", id), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("page_id", id))
			}
		}
	}

	return nil
}

// PageForPath maps a graph-relative file path to its page id and name.
// Only files under pages/ and journals/ with a .md suffix index.
func PageForPath(rel string) (id, name string, ok bool) {
	rel = filepath.ToSlash(rel)
	base := strings.TrimSuffix(filepath.Base(rel), ".md")
	switch {
	case !strings.HasSuffix(rel, ".md"):
		return "", "", false
	case strings.HasPrefix(rel, storage.PagesDir+"/"):
		return outline.UserPageID(base), base, true
	case strings.HasPrefix(rel, storage.JournalsDir+"/"):
		return outline.JournalPageID(base), base, true
	default:
		return "", "", false
	}
}

// IndexPageFile decodes a page file and upserts its blocks and links.
func IndexPageFile(db *DB, rel string, data []byte) error {
	id, name, ok := PageForPath(rel)
	if !ok {
		return nil
	}
	ns := NamespaceUser
	if outline.IsJournalPage(id) {
		ns = NamespaceJournal
	}

	flat := storage.DecodePage(data)
	texts := make([]string, len(flat))
	var links []string
	seen := make(map[string]struct{})
	for i, b := range flat {
		texts[i] = b.Markdown
		for _, l := range parser.ParseBlock(b.Markdown).Links {
			if _, dup := seen[l]; dup {
				continue
			}
			seen[l] = struct{}{}
			links = append(links, l)
		}
	}

	return db.UpsertPage(PageRow{
		ID:        id,
		Namespace: ns,
		Name:      name,
		Checksum:  checksum.Sum(data),
		UpdatedAt: time.Now(),
	}, texts, links)
}
