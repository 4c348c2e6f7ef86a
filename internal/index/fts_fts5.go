//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS blocks_fts USING fts5(
			page_id UNINDEXED,
			namespace UNINDEXED,
			page_name UNINDEXED,
			block_number UNINDEXED,
			text,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsReplace(tx *sql.Tx, p PageRow, blockTexts []string) error {
	_, _ = tx.Exec(`DELETE FROM blocks_fts WHERE page_id = ?`, p.ID)
	if len(blockTexts) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT INTO blocks_fts (page_id, namespace, page_name, block_number, text) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare fts insert: %w", err)
	}
	defer stmt.Close()
	for i, text := range blockTexts {
		if _, err := stmt.Exec(p.ID, p.Namespace, p.Name, i+1, text); err != nil {
			return fmt.Errorf("index: insert fts: %w", err)
		}
	}
	return nil
}

func ftsDelete(tx *sql.Tx, pageID string) {
	_, _ = tx.Exec(`DELETE FROM blocks_fts WHERE page_id = ?`, pageID)
}

// Search performs an FTS5 search over block lines and partitions hits into
// user-page and journal matches.
func (db *DB) Search(term string, limit int) (SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT namespace,
		       page_name,
		       block_number,
		       snippet(blocks_fts, 4, '', '', '...', 24)
		FROM blocks_fts
		WHERE blocks_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, term, limit)
	if err != nil {
		return SearchResult{}, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()
	return collectFindings(rows)
}
