package formats

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pteich/esxport/elastic"
)

type cell struct {
	key   string
	value interface{}
}

func rowOf(cells ...cell) *Row {
	row := NewRow()
	for _, c := range cells {
		row.Set(c.key, c.value)
	}
	return row
}

func Test_flatten(t *testing.T) {
	tests := []struct {
		name      string
		flattener Flattener
		document  string
		want      *Row
	}{
		{
			"simple",
			Flattener{ValueDelimiter: ","},
			`{"string": "1", "int": 2, "float": 3.5, "bool": true, "null": null}`,
			rowOf(
				cell{"string", "1"},
				cell{"int", json.Number("2")},
				cell{"float", json.Number("3.5")},
				cell{"bool", true},
				cell{"null", nil},
			),
		},
		{
			"nested",
			Flattener{ValueDelimiter: ","},
			`{"string": "value1", "map": {"string": "value2", "map": {"int": 2}}}`,
			rowOf(
				cell{"string", "value1"},
				cell{"map.string", "value2"},
				cell{"map.map.int", json.Number("2")},
			),
		},
		{
			"array joined on same path",
			Flattener{ValueDelimiter: ";"},
			`{"a": {"b": 1, "c": [2, 3]}}`,
			rowOf(
				cell{"a.b", json.Number("1")},
				cell{"a.c", "2;3"},
			),
		},
		{
			"array with index segments",
			Flattener{ValueDelimiter: ";", IndexArrays: true},
			`{"a": {"c": [2, 3]}, "tags": [{"name": "x"}, {"name": "y"}]}`,
			rowOf(
				cell{"a.c.0", json.Number("2")},
				cell{"a.c.1", json.Number("3")},
				cell{"tags.0.name", "x"},
				cell{"tags.1.name", "y"},
			),
		},
		{
			"array of objects on same path",
			Flattener{ValueDelimiter: "|"},
			`{"tags": [{"name": "x"}, {"name": "y", "id": 7}]}`,
			rowOf(
				cell{"tags.name", "x|y"},
				cell{"tags.id", json.Number("7")},
			),
		},
		{
			"custom path delimiter",
			Flattener{PathDelimiter: "__", ValueDelimiter: ","},
			`{"user": {"name": "jo"}}`,
			rowOf(cell{"user__name", "jo"}),
		},
		{
			"empty containers",
			Flattener{ValueDelimiter: ","},
			`{"a": {}, "b": [], "c": 1}`,
			rowOf(cell{"c", json.Number("1")}),
		},
		{
			"non object source",
			Flattener{ValueDelimiter: ","},
			`[1, 2]`,
			NewRow(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.flattener.Flatten([]byte(tt.document))
			assert.Equal(t, tt.want.Keys(), got.Keys())
			for _, k := range tt.want.Keys() {
				want, _ := tt.want.Get(k)
				v, ok := got.Get(k)
				assert.True(t, ok, k)
				assert.Equal(t, want, v, k)
			}
		})
	}
}

func TestFlattenerMetaFields(t *testing.T) {
	score := 1.5
	f := Flattener{ValueDelimiter: ",", MetaFields: []string{elastic.MetaID, elastic.MetaScore, elastic.MetaIndex}}

	row := f.Row(elastic.Hit{
		ID:     "abc",
		Index:  "logs-1",
		Score:  &score,
		Source: json.RawMessage(`{"msg": "hi", "_id": "from-source"}`),
	})

	assert.Equal(t, []string{"msg", "_id", "_score", "_index"}, row.Keys())
	id, _ := row.Get("_id")
	assert.Equal(t, "abc", id)
	s, _ := row.Get("_score")
	assert.Equal(t, 1.5, s)

	noScore := f.Row(elastic.Hit{ID: "x", Index: "i", Source: json.RawMessage(`{}`)})
	s, ok := noScore.Get("_score")
	assert.True(t, ok)
	assert.Nil(t, s)
}

func TestRowRoundTrip(t *testing.T) {
	doc := `{"id":"a","n":12345678901234567890,"f":0.1,"ok":false,"none":null}`
	row := Flattener{ValueDelimiter: ","}.Flatten([]byte(doc))

	data, err := row.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, doc, string(data))
	assert.Equal(t, doc, string(data))

	parsed, err := ParseRow(data)
	require.NoError(t, err)
	assert.Equal(t, row.Keys(), parsed.Keys())
	n, _ := parsed.Get("n")
	assert.Equal(t, json.Number("12345678901234567890"), n)
}

func TestParseRowInvalid(t *testing.T) {
	_, err := ParseRow([]byte(`{"a":`))
	assert.Error(t, err)
	_, err = ParseRow([]byte(`[1]`))
	assert.Error(t, err)
}

func writeSpool(t *testing.T, outfile string, rows ...*Row) *Spool {
	t.Helper()
	spool, err := CreateSpool(outfile)
	require.NoError(t, err)
	require.NoError(t, spool.Append(rows))
	require.NoError(t, spool.Close())
	return spool
}

func TestCSVRun(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.csv")
	spool := writeSpool(t, out,
		rowOf(cell{"name", "a"}, cell{"count", json.Number("1")}, cell{"note", "x,y"}),
		rowOf(cell{"name", "b"}, cell{"note", "line1\nline2"}),
		rowOf(cell{"count", json.Number("3")}, cell{"name", "c"}, cell{"note", nil}),
	)
	assert.Equal(t, out+SpoolSuffix, spool.Path())
	assert.EqualValues(t, 3, spool.Rows())

	var sb strings.Builder
	written, err := CSV{Delimiter: ',', Outfile: &sb}.Run(context.Background(), spool.Path())
	require.NoError(t, err)
	assert.EqualValues(t, 3, written)
	assert.Equal(t, "name,count,note\na,1,\"x,y\"\nb,,\"line1\nline2\"\nc,3,\n", sb.String())
}

func TestCSVRunCustomDelimiterAndExtraKeys(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	out := filepath.Join(t.TempDir(), "out.csv")
	spool := writeSpool(t, out,
		rowOf(cell{"a", "1"}),
		rowOf(cell{"a", "2"}, cell{"b", "extra"}),
	)

	var sb strings.Builder
	written, err := CSV{Delimiter: ';', Outfile: &sb, Logger: zap.New(core)}.Run(context.Background(), spool.Path())
	require.NoError(t, err)
	assert.EqualValues(t, 2, written)
	assert.Equal(t, "a\n1\n2\n", sb.String())
	assert.Equal(t, 1, logs.Len())
}

func TestCSVRunWithSchema(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.csv")
	spool := writeSpool(t, out,
		rowOf(cell{"a", "1"}, cell{"b", "2"}),
		rowOf(cell{"b", "3"}),
	)

	var sb strings.Builder
	written, err := CSV{Schema: []string{"b", "a"}, Outfile: &sb}.Run(context.Background(), spool.Path())
	require.NoError(t, err)
	assert.EqualValues(t, 2, written)
	assert.Equal(t, "b,a\n2,1\n3,\n", sb.String())
}

func TestReadSchemaCorruptSpool(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.csv")
	spool := writeSpool(t, out, rowOf(cell{"a", "1"}))
	require.NoError(t, os.WriteFile(spool.Path(), []byte("not json\n"), 0o600))

	_, err := ReadSchema(spool.Path())
	assert.ErrorContains(t, err, "spool line 1")

	_, err = ReadSchema(filepath.Join(t.TempDir(), "missing.tmp"))
	assert.Error(t, err)
}

func TestJSONRun(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.json")
	spool := writeSpool(t, out,
		rowOf(cell{"b", "1"}, cell{"a", json.Number("2")}),
		rowOf(cell{"c", true}),
	)

	var sb strings.Builder
	written, err := JSON{Outfile: &sb}.Run(context.Background(), spool.Path())
	require.NoError(t, err)
	assert.EqualValues(t, 2, written)
	assert.Equal(t, "{\"b\":\"1\",\"a\":2}\n{\"c\":true}\n", sb.String())
}

func TestSpoolRemove(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.csv")
	spool, err := CreateSpool(out)
	require.NoError(t, err)
	require.NoError(t, spool.Append([]*Row{rowOf(cell{"a", "1"})}))

	require.NoError(t, spool.Remove())
	_, err = os.Stat(spool.Path())
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, spool.Remove())
}

func TestSpoolForStdout(t *testing.T) {
	spool, err := CreateSpool("-")
	require.NoError(t, err)
	defer spool.Remove()

	assert.True(t, strings.HasPrefix(spool.Path(), os.TempDir()))
	assert.True(t, strings.HasSuffix(spool.Path(), SpoolSuffix))
}

func TestReadSchemaEmptySpool(t *testing.T) {
	spool := writeSpool(t, filepath.Join(t.TempDir(), "out.csv"))
	schema, err := ReadSchema(spool.Path())
	require.NoError(t, err)
	assert.Empty(t, schema)

	_, err = CSV{Outfile: &strings.Builder{}}.Run(context.Background(), spool.Path())
	assert.Error(t, err)
}
