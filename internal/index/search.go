package index

import "database/sql"

// collectFindings scans (namespace, page_name, block_number, text) rows into
// a partitioned search result. Shared by the FTS5 and fallback search paths.
func collectFindings(rows *sql.Rows) (SearchResult, error) {
	var res SearchResult
	for rows.Next() {
		var ns string
		var f Finding
		if err := rows.Scan(&ns, &f.PageName, &f.BlockNumber, &f.TextLine); err != nil {
			return SearchResult{}, err
		}
		if ns == NamespaceJournal {
			res.Journals = append(res.Journals, f)
		} else {
			res.Pages = append(res.Pages, f)
		}
	}
	return res, rows.Err()
}
