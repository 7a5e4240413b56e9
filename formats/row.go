package formats

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
)

// Row is a flattened document: dotted paths mapped to scalar values, keeping the
// order in which keys were first set. Values are string, json.Number, bool or nil.
type Row struct {
	keys   []string
	values map[string]interface{}
}

func NewRow() *Row {
	return &Row{values: make(map[string]interface{})}
}

// Set stores v under key, replacing any previous value.
func (r *Row) Set(key string, v interface{}) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
}

// Append stores v under key. If key already holds a value both are joined with sep.
func (r *Row) Append(key string, v interface{}, sep string) {
	prev, ok := r.values[key]
	if !ok {
		r.Set(key, v)
		return
	}
	r.values[key] = FormatValue(prev) + sep + FormatValue(v)
}

func (r *Row) Get(key string) (interface{}, bool) {
	v, ok := r.values[key]
	return v, ok
}

func (r *Row) Keys() []string {
	return r.keys
}

func (r *Row) Len() int {
	return len(r.keys)
}

// MarshalJSON writes the row as a JSON object in key order.
func (r *Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

var errInvalidRow = errors.New("invalid row record")

// ParseRow decodes a line written by MarshalJSON, keeping the key order.
func ParseRow(line []byte) (*Row, error) {
	line = bytes.TrimSpace(line)
	if !gjson.ValidBytes(line) {
		return nil, errInvalidRow
	}
	res := gjson.ParseBytes(line)
	if !res.IsObject() {
		return nil, errInvalidRow
	}

	row := NewRow()
	res.ForEach(func(key, value gjson.Result) bool {
		row.Set(key.String(), scalar(value))
		return true
	})
	return row, nil
}

// scalar converts a gjson leaf into a row value. Nested JSON is kept as raw text.
func scalar(v gjson.Result) interface{} {
	switch v.Type {
	case gjson.String:
		return v.String()
	case gjson.Number:
		return json.Number(v.Raw)
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.Null:
		return nil
	default:
		return v.Raw
	}
}

// FormatValue renders a row value as cell text.
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}
