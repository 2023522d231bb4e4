package duckdb

import (
	"bytes"
	"context"
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/querydesk/querydesk/internal/engine"
	"github.com/querydesk/querydesk/internal/storage"
)

const parquetContentType = "application/vnd.apache.parquet"

// writeResultArtifact serializes a completed result set as a parquet object.
// All values are written as optional strings, matching the wire shape of the
// paging API.
func writeResultArtifact(ctx context.Context, store storage.ObjectStore, key string, columns []engine.Column, rows [][]string) error {
	if len(columns) == 0 {
		return fmt.Errorf("result set has no columns")
	}

	group := parquet.Group{}
	for _, col := range columns {
		group[col.Name] = parquet.Optional(parquet.String())
	}
	schema := parquet.NewSchema("query_results", group)

	var buf bytes.Buffer
	writer := parquet.NewGenericWriter[map[string]any](&buf, schema)
	for _, row := range rows {
		record := make(map[string]any, len(columns))
		for i, col := range columns {
			if i < len(row) {
				record[col.Name] = row[i]
			}
		}
		if _, err := writer.Write([]map[string]any{record}); err != nil {
			return fmt.Errorf("write parquet row: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}

	if err := store.Put(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), storage.PutOptions{ContentType: parquetContentType}); err != nil {
		return fmt.Errorf("store artifact: %w", err)
	}
	return nil
}
