package formats

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"gopkg.in/cheggaaa/pb.v2"
)

// JSON writes every spooled row as one JSON object per line, keys in document order.
type JSON struct {
	Outfile    io.Writer
	ProgessBar *pb.ProgressBar
}

func (j JSON) Run(ctx context.Context, spoolPath string) (int64, error) {
	w := bufio.NewWriter(j.Outfile)

	var written int64
	err := EachRow(spoolPath, func(row *Row) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := row.MarshalJSON()
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, string(data)); err != nil {
			return fmt.Errorf("write json row: %w", err)
		}
		written++
		if j.ProgessBar != nil {
			j.ProgessBar.Increment()
		}
		return nil
	})
	if flushErr := w.Flush(); err == nil {
		err = flushErr
	}
	return written, err
}
