package formats

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gopkg.in/cheggaaa/pb.v2"
)

var errNoSchema = errors.New("spool has no rows to derive a header from")

// CSV writes the spooled rows as delimited text. The header is taken from the
// keys of the first row unless Schema is set; later rows missing a column leave
// the cell empty.
type CSV struct {
	Delimiter  rune
	Schema     []string
	Outfile    io.Writer
	ProgessBar *pb.ProgressBar
	Logger     *zap.Logger
}

func (c CSV) Run(ctx context.Context, spoolPath string) (int64, error) {
	schema := c.Schema
	if schema == nil {
		var err error
		if schema, err = ReadSchema(spoolPath); err != nil {
			return 0, err
		}
	}
	if len(schema) == 0 {
		return 0, errNoSchema
	}
	columns := make(map[string]struct{}, len(schema))
	for _, col := range schema {
		columns[col] = struct{}{}
	}

	w := csv.NewWriter(c.Outfile)
	if c.Delimiter != 0 {
		w.Comma = c.Delimiter
	}
	if err := w.Write(schema); err != nil {
		return 0, fmt.Errorf("write csv header: %w", err)
	}

	var written, truncated int64
	record := make([]string, len(schema))
	err := EachRow(spoolPath, func(row *Row) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i, col := range schema {
			v, _ := row.Get(col)
			record[i] = FormatValue(v)
		}
		if hasUnknownKey(row, columns) {
			truncated++
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
		written++
		if c.ProgessBar != nil {
			c.ProgessBar.Increment()
		}
		return nil
	})
	w.Flush()
	if err == nil {
		err = w.Error()
	}

	if truncated > 0 && c.Logger != nil {
		c.Logger.Warn("rows contained fields missing from the header, extra fields were dropped",
			zap.Int64("rows", truncated),
			zap.Strings("header", schema),
		)
	}
	return written, err
}

func hasUnknownKey(row *Row, columns map[string]struct{}) bool {
	for _, k := range row.Keys() {
		if _, ok := columns[k]; !ok {
			return true
		}
	}
	return false
}
