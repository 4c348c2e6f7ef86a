package index

import (
	"fmt"
	"time"
)

// PageRow represents a row in the pages table.
type PageRow struct {
	ID        string // namespaced page id
	Namespace string // NamespaceUser or NamespaceJournal
	Name      string
	Checksum  string
	UpdatedAt time.Time
}

// Finding is one search hit: a reference to a block plus the matched line.
type Finding struct {
	PageName    string
	BlockNumber int // 1-based
	TextLine    string
}

// SearchResult partitions hits into user-page and journal matches.
type SearchResult struct {
	Pages    []Finding
	Journals []Finding
}

// UpsertPage replaces a page row, its block lines, its FTS entries, and its
// outgoing links within one transaction.
func (db *DB) UpsertPage(p PageRow, blockTexts []string, links []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO pages (id, namespace, name, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			namespace  = excluded.namespace,
			name       = excluded.name,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, p.ID, p.Namespace, p.Name, p.Checksum, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert page: %w", err)
	}

	// Replace block lines: delete old then bulk insert in document order.
	if _, err := tx.Exec(`DELETE FROM blocks WHERE page_id = ?`, p.ID); err != nil {
		return fmt.Errorf("index: clear blocks: %w", err)
	}
	if len(blockTexts) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO blocks (page_id, block_number, text) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare block insert: %w", err)
		}
		defer stmt.Close()
		for i, text := range blockTexts {
			if _, err := stmt.Exec(p.ID, i+1, text); err != nil {
				return fmt.Errorf("index: insert block: %w", err)
			}
		}
	}

	if err := ftsReplace(tx, p, blockTexts); err != nil {
		return err
	}

	// Replace outgoing links.
	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, p.Name)
	if len(links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range links {
			if _, err := stmt.Exec(p.Name, target); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeletePage removes a page, its blocks, FTS entries, and outgoing links.
func (db *DB) DeletePage(id, name string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	_, _ = tx.Exec(`DELETE FROM blocks WHERE page_id = ?`, id)
	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, name)
	_, _ = tx.Exec(`DELETE FROM pages WHERE id = ?`, id)

	return tx.Commit()
}

// Tags returns all known user page names sorted by name. These are the
// targets content assist offers for [[reference]] insertion and navigation.
func (db *DB) Tags() ([]string, error) {
	rows, err := db.conn.Query(`SELECT name FROM pages WHERE namespace = ? ORDER BY name`, NamespaceUser)
	if err != nil {
		return nil, fmt.Errorf("index: tags: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Backlinks returns all page names whose blocks link to the given target.
func (db *DB) Backlinks(target string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT source FROM links WHERE target = ? ORDER BY source`, target)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AllChecksums returns the stored checksum per page id, used by sync.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT id, checksum FROM pages`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

// PageName returns the stored name for a page id, or empty when unknown.
func (db *DB) PageName(id string) (string, error) {
	var name string
	err := db.conn.QueryRow(`SELECT name FROM pages WHERE id = ?`, id).Scan(&name)
	if err != nil {
		return "", nil // unknown page is not an error for callers
	}
	return name, nil
}
