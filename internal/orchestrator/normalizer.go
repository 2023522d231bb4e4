package orchestrator

import (
	"context"

	"github.com/querydesk/querydesk/internal/engine"
)

// collectResults fetches every result page for a succeeded execution and
// assembles one ResultSet. Column metadata from the first page is
// authoritative for the whole set; later pages only contribute rows. A
// fetch failure anywhere fails the whole normalization, never a partial set.
func (s *Service) collectResults(ctx context.Context, handle string, stats engine.Stats) (ResultSet, error) {
	var columns []engine.Column
	var rows [][]string

	pageToken := ""
	firstPage := true
	for {
		page, err := s.Engine.Results(ctx, handle, pageToken)
		if err != nil {
			if ctx.Err() != nil {
				return ResultSet{}, newFailure(KindCancelled, "query was cancelled while fetching results: %v", ctx.Err())
			}
			return ResultSet{}, newFailure(KindTransport, "fetch result page: %v", err)
		}
		if firstPage {
			columns = page.Columns
			firstPage = false
		}
		rows = append(rows, page.Rows...)
		if page.NextToken == "" {
			break
		}
		pageToken = page.NextToken
	}

	rows = StripDuplicateHeaderRow(columns, rows)

	return ResultSet{
		Columns:  columnsFromEngine(columns),
		Rows:     rows,
		RowCount: len(rows),
		Stats: Stats{
			ExecutionTimeMs: stats.ExecutionTimeMs,
			BytesScanned:    stats.BytesScanned,
		},
	}, nil
}

// StripDuplicateHeaderRow drops the first row when its values exactly match
// the column names positionally. Some engines repeat the header as the first
// data row when a query has no explicit column aliases; this removes at most
// that one row and leaves everything else untouched.
func StripDuplicateHeaderRow(columns []engine.Column, rows [][]string) [][]string {
	if len(columns) == 0 || len(rows) == 0 {
		return rows
	}
	first := rows[0]
	if len(first) != len(columns) {
		return rows
	}
	for i, value := range first {
		if value != columns[i].Name {
			return rows
		}
	}
	return rows[1:]
}
