package formats

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// SpoolSuffix is appended to the output path to name the intermediate row file.
const SpoolSuffix = ".tmp"

// SpoolPath returns the intermediate file for an output path. Output to stdout
// ("-" or "") spools into the system temp directory instead.
func SpoolPath(outfile string) string {
	if outfile == "" || outfile == "-" {
		return ""
	}
	return outfile + SpoolSuffix
}

// Spool is the append-only, newline delimited row file written while scrolling
// and read back once by a Writer.
type Spool struct {
	path string
	file *os.File
	w    *bufio.Writer
	rows int64
}

// CreateSpool creates (or truncates) the spool file for outfile.
func CreateSpool(outfile string) (*Spool, error) {
	var (
		f   *os.File
		err error
	)
	if path := SpoolPath(outfile); path != "" {
		f, err = os.Create(path)
	} else {
		f, err = os.CreateTemp("", "esxport-*"+SpoolSuffix)
	}
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}
	return &Spool{
		path: f.Name(),
		file: f,
		w:    bufio.NewWriter(f),
	}, nil
}

func (s *Spool) Path() string {
	return s.path
}

// Rows returns the number of rows appended so far.
func (s *Spool) Rows() int64 {
	return s.rows
}

// Append writes rows and flushes them to the file.
func (s *Spool) Append(rows []*Row) error {
	for _, row := range rows {
		data, err := row.MarshalJSON()
		if err != nil {
			return err
		}
		if _, err := s.w.Write(data); err != nil {
			return fmt.Errorf("write spool: %w", err)
		}
		if err := s.w.WriteByte('\n'); err != nil {
			return fmt.Errorf("write spool: %w", err)
		}
		s.rows++
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flush spool: %w", err)
	}
	return nil
}

func (s *Spool) Close() error {
	if s.file == nil {
		return nil
	}
	flushErr := s.w.Flush()
	closeErr := s.file.Close()
	s.file = nil
	return errors.Join(flushErr, closeErr)
}

// Remove closes and deletes the spool file. A missing file is not an error.
func (s *Spool) Remove() error {
	closeErr := s.Close()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Join(closeErr, err)
	}
	return closeErr
}

// EachRow reads the spool file at path and calls fn for every row in order.
func EachRow(path string, fn func(*Row) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open spool: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for lineNo := 1; ; lineNo++ {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			row, perr := ParseRow(line)
			if perr != nil {
				return fmt.Errorf("spool line %d: %w", lineNo, perr)
			}
			if ferr := fn(row); ferr != nil {
				return ferr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read spool: %w", err)
		}
	}
}

var errStop = errors.New("stop")

// ReadSchema returns the keys of the first row in the spool file.
func ReadSchema(path string) ([]string, error) {
	var schema []string
	err := EachRow(path, func(row *Row) error {
		schema = append(schema, row.Keys()...)
		return errStop
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, err
	}
	return schema, nil
}
