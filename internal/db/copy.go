package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultBatchSize is the number of rows sent per COPY when none is given.
const DefaultBatchSize = 10000

// Copier is anything that can run COPY: a pool or an open transaction.
type Copier interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// CopyRows bulk-inserts rows into table using the COPY protocol, in batches
// of batchSize rows (0 = DefaultBatchSize). It returns the rows copied before
// any failure.
func CopyRows(ctx context.Context, c Copier, table pgx.Identifier, columns []string, rows [][]any, batchSize int) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	var total int64
	for i := 0; i < len(rows); i += batchSize {
		end := min(i+batchSize, len(rows))
		n, err := c.CopyFrom(ctx, table, columns, pgx.CopyFromRows(rows[i:end]))
		if err != nil {
			return total, eris.Wrapf(err, "db: COPY INTO %s (rows %d-%d)", table.Sanitize(), i, end)
		}
		total += n
		zap.L().Debug("db: batch copied",
			zap.String("table", table.Sanitize()),
			zap.Int("batch_start", i),
			zap.Int64("rows", n),
		)
	}
	return total, nil
}
