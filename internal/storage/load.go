package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"sheetintake/internal/metrics"
	"sheetintake/internal/probe"
)

// DefaultBatchSize is the number of rows handed to InsertRows at a time.
const DefaultBatchSize = 500

// Logger is the minimal logging interface used by Load.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// LoadOptions tunes Load. The zero value is usable.
type LoadOptions struct {
	BatchSize int
	Logger    Logger
}

// LoadResult reports what Load did for one sheet.
type LoadResult struct {
	Table    string
	Inserted int64

	// Nulled counts non-empty cells that did not fit their column's declared
	// type and were stored as NULL.
	Nulled int
}

// Load creates the payload's table and inserts plan.DataRows into it.
// Every cell is coerced to its column's declared type; cells that do not
// coerce are stored as NULL. Rows with no non-empty cell are skipped.
//
// payload and plan must describe the same sheet (payload built from plan);
// column i of the payload reads column i of each data row.
func Load(ctx context.Context, repo Repository, payload probe.IngestPayload, plan *probe.SheetImportPlan, opts LoadOptions) (LoadResult, error) {
	logf := log.New(io.Discard, "", 0).Printf
	if opts.Logger != nil {
		logf = opts.Logger.Printf
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	spec := TableSpecFromPayload(payload)
	res := LoadResult{Table: spec.Name}
	if err := spec.Validate(); err != nil {
		return res, err
	}
	if plan == nil {
		return res, fmt.Errorf("storage: no plan for sheet %q", payload.SheetName)
	}
	if len(plan.Columns) != len(spec.Columns) {
		return res, fmt.Errorf("storage: sheet %q has %d columns, payload has %d",
			payload.SheetName, len(plan.Columns), len(spec.Columns))
	}

	start := time.Now()
	if err := repo.EnsureTable(ctx, spec); err != nil {
		return res, fmt.Errorf("ensure table %s: %w", spec.Name, err)
	}

	names := spec.ColumnNames()
	pending := make([][]any, 0, min(batch, len(plan.DataRows)))
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		n, err := repo.InsertRows(ctx, spec.Name, names, pending)
		res.Inserted += n
		metrics.IncCounter(metrics.RowsLoadedTotal, float64(n), metrics.Labels{"backend": repo.Kind()})
		pending = make([][]any, 0, batch)
		if err != nil {
			return fmt.Errorf("insert into %s: %w", spec.Name, err)
		}
		return nil
	}

	for _, row := range plan.DataRows {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		vals, nulled, ok := coerceRow(row, spec.Columns)
		if !ok {
			continue
		}
		res.Nulled += nulled
		pending = append(pending, vals)
		if len(pending) == batch {
			if err := flush(); err != nil {
				return res, err
			}
		}
	}
	if err := flush(); err != nil {
		return res, err
	}

	metrics.ObserveHistogram(metrics.InferenceDuration, time.Since(start).Seconds(), metrics.Labels{"stage": "load"})
	logf("storage: %s: loaded %d rows into %s (%d cells stored as NULL) in %s",
		repo.Kind(), res.Inserted, spec.Name, res.Nulled, time.Since(start).Truncate(time.Millisecond))
	return res, nil
}

// coerceRow converts row to column values. ok is false when the row has no
// content at all.
func coerceRow(row []probe.Cell, cols []ColumnSpec) (vals []any, nulled int, ok bool) {
	vals = make([]any, len(cols))
	for i, c := range cols {
		if i >= len(row) || row[i].IsEmpty() {
			continue
		}
		ok = true
		v, fits := probe.Coerce(row[i], c.Type)
		if !fits {
			nulled++
			continue
		}
		vals[i] = v
	}
	return vals, nulled, ok
}
