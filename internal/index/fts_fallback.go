//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not compiled in; search uses a LIKE fallback on the blocks table.
	return nil
}

func ftsReplace(_ *sql.Tx, _ PageRow, _ []string) error {
	// Block lines already live in the blocks table; nothing extra to do.
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) {}

// Search performs a LIKE-based search over block lines (fallback when FTS5 is
// not compiled in) and partitions hits into user-page and journal matches.
func (db *DB) Search(term string, limit int) (SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + term + "%"
	rows, err := db.conn.Query(`
		SELECT p.namespace,
		       p.name,
		       b.block_number,
		       substr(b.text, 1, 200)
		FROM blocks b
		JOIN pages p ON p.id = b.page_id
		WHERE b.text LIKE ?
		LIMIT ?
	`, like, limit)
	if err != nil {
		return SearchResult{}, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()
	return collectFindings(rows)
}
