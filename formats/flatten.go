package formats

import (
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/pteich/esxport/elastic"
)

// Flattener turns a hit into a single Row. Nested objects extend the key path with
// PathDelimiter. Array elements either share their parent path, with values landing
// on the same path joined by ValueDelimiter, or get a numeric path segment when
// IndexArrays is set.
type Flattener struct {
	PathDelimiter  string
	ValueDelimiter string
	IndexArrays    bool
	MetaFields     []string
}

// Row flattens the hit source and merges the requested metadata fields.
func (f Flattener) Row(hit elastic.Hit) *Row {
	row := NewRow()
	if len(hit.Source) > 0 {
		if src := gjson.ParseBytes(hit.Source); src.IsObject() {
			f.walk(row, "", src)
		}
	}

	for _, field := range f.MetaFields {
		v, _ := hit.Meta(field)
		row.Set(field, v)
	}
	return row
}

// Flatten is Row for a bare JSON document.
func (f Flattener) Flatten(doc []byte) *Row {
	return f.Row(elastic.Hit{Source: doc})
}

func (f Flattener) walk(row *Row, path string, v gjson.Result) {
	switch {
	case v.IsObject():
		v.ForEach(func(key, value gjson.Result) bool {
			f.walk(row, f.join(path, key.String()), value)
			return true
		})
	case v.IsArray():
		for i, item := range v.Array() {
			p := path
			if f.IndexArrays {
				p = f.join(path, strconv.Itoa(i))
			}
			f.walk(row, p, item)
		}
	default:
		row.Append(path, scalar(v), f.ValueDelimiter)
	}
}

func (f Flattener) join(path, key string) string {
	if path == "" {
		return key
	}
	sep := f.PathDelimiter
	if sep == "" {
		sep = "."
	}
	return path + sep + key
}
