package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/pteich/esxport/elastic"
	"github.com/pteich/esxport/flags"
)

// AllFields requests every field of the source documents.
const AllFields = "_all"

const (
	DefaultPageSize       = 1000
	DefaultFlushThreshold = 1000
	DefaultScrollTTL      = 30 * time.Minute
)

// Request describes one export. Build it with NewRequest and treat it as read-only.
type Request struct {
	Query          map[string]interface{}
	Indices        []string
	Fields         []string
	Sort           []elastic.SortField
	PageSize       int
	ResultCap      int // 0 exports every match
	MetaFields     []string
	Delimiter      rune
	Outfile        string
	Format         string
	JoinArrays     bool // join array elements with Delimiter instead of indexed columns
	PathDelimiter  string
	ScrollTTL      time.Duration
	FlushThreshold int
}

// DefaultRequest returns the defaults NewRequest applies to unset values.
func DefaultRequest() Request {
	return Request{
		Query:          elastic.NewMatchAllQuery().Build(),
		Indices:        []string{elastic.AllIndices},
		Fields:         []string{AllFields},
		PageSize:       DefaultPageSize,
		Delimiter:      ',',
		Outfile:        "output.csv",
		Format:         flags.FormatCSV,
		PathDelimiter:  ".",
		ScrollTTL:      DefaultScrollTTL,
		FlushThreshold: DefaultFlushThreshold,
	}
}

// NewRequest fills unset values from DefaultRequest, copies all slices and
// validates the result.
func NewRequest(r Request) (Request, error) {
	def := DefaultRequest()
	if r.Query == nil {
		r.Query = def.Query
	}
	if len(r.Indices) == 0 {
		r.Indices = def.Indices
	}
	if len(r.Fields) == 0 {
		r.Fields = def.Fields
	}
	if r.PageSize == 0 {
		r.PageSize = def.PageSize
	}
	if r.Delimiter == 0 {
		r.Delimiter = def.Delimiter
	}
	if r.Outfile == "" {
		r.Outfile = def.Outfile
	}
	if r.Format == "" {
		r.Format = def.Format
	}
	if r.PathDelimiter == "" {
		r.PathDelimiter = def.PathDelimiter
	}
	if r.ScrollTTL == 0 {
		r.ScrollTTL = def.ScrollTTL
	}
	if r.FlushThreshold == 0 {
		r.FlushThreshold = def.FlushThreshold
	}

	r.Indices = append([]string(nil), r.Indices...)
	r.Fields = append([]string(nil), r.Fields...)
	r.Sort = append([]elastic.SortField(nil), r.Sort...)
	r.MetaFields = append([]string(nil), r.MetaFields...)

	if err := r.validate(); err != nil {
		return Request{}, err
	}
	return r, nil
}

func (r Request) validate() error {
	for _, idx := range r.Indices {
		if strings.TrimSpace(idx) == "" {
			return fmt.Errorf("empty index name in %q", r.Indices)
		}
	}
	if r.PageSize < 0 {
		return fmt.Errorf("page size must be positive, got %d", r.PageSize)
	}
	if r.ResultCap < 0 {
		return fmt.Errorf("result cap must not be negative, got %d", r.ResultCap)
	}
	if r.FlushThreshold < 0 {
		return fmt.Errorf("flush threshold must be positive, got %d", r.FlushThreshold)
	}
	if r.ScrollTTL < 0 {
		return fmt.Errorf("scroll ttl must be positive, got %s", r.ScrollTTL)
	}
	if r.Delimiter == '"' || r.Delimiter == '\r' || r.Delimiter == '\n' ||
		r.Delimiter == utf8.RuneError || !utf8.ValidRune(r.Delimiter) {
		return fmt.Errorf("invalid delimiter %q", r.Delimiter)
	}
	switch r.Format {
	case flags.FormatCSV, flags.FormatJSON:
	default:
		return fmt.Errorf("unsupported output format %q", r.Format)
	}
	for _, s := range r.Sort {
		if s.Field == "" {
			return fmt.Errorf("empty sort field")
		}
		switch s.Order {
		case "", "asc", "desc":
		default:
			return fmt.Errorf("invalid sort order %q for field %s", s.Order, s.Field)
		}
	}
	for _, m := range r.MetaFields {
		if !elastic.IsMetaField(m) {
			return &MetaFieldNotFoundError{Field: m, Allowed: elastic.MetaFields}
		}
	}
	return nil
}

// AllFields reports whether the wildcard field token was requested.
func (r Request) AllFields() bool {
	for _, f := range r.Fields {
		if f == AllFields {
			return true
		}
	}
	return false
}

// Cap returns the result cap, or -1 when unbounded.
func (r Request) Cap() int64 {
	if r.ResultCap <= 0 {
		return -1
	}
	return int64(r.ResultCap)
}

// RequestFromFlags builds the request for a parsed command line.
func RequestFromFlags(conf *flags.Flags) (Request, error) {
	query, err := buildQuery(conf)
	if err != nil {
		return Request{}, err
	}

	fields := conf.Fields
	if conf.Fieldlist != "" {
		fields = splitList(conf.Fieldlist)
	}

	sort, err := ParseSort(conf.Sort)
	if err != nil {
		return Request{}, err
	}

	delimiter, size := utf8.DecodeRuneInString(conf.Delimiter)
	if conf.Delimiter != "" && size != len(conf.Delimiter) {
		return Request{}, fmt.Errorf("delimiter must be a single character, got %q", conf.Delimiter)
	}

	var ttl time.Duration
	if conf.ScrollTTL != "" {
		ttl, err = time.ParseDuration(conf.ScrollTTL)
		if err != nil {
			return Request{}, fmt.Errorf("invalid scroll ttl: %w", err)
		}
	}

	return NewRequest(Request{
		Query:         query,
		Indices:       splitList(conf.Index),
		Fields:        fields,
		Sort:          sort,
		PageSize:      conf.ScrollSize,
		ResultCap:     conf.MaxResults,
		MetaFields:    splitList(conf.MetaFields),
		Delimiter:     delimiter,
		Outfile:       conf.Outfile,
		Format:        conf.OutFormat,
		JoinArrays:    conf.KibanaNested,
		PathDelimiter: conf.PathDelimiter,
		ScrollTTL:     ttl,
	})
}

func buildQuery(conf *flags.Flags) (map[string]interface{}, error) {
	esQuery := elastic.NewBoolQuery()

	var rangeQuery *elastic.RangeQuery
	if conf.StartDate != "" || conf.EndDate != "" {
		rangeQuery = elastic.NewRangeQuery(conf.Timefield)
		if conf.StartDate != "" {
			rangeQuery = rangeQuery.Gte(conf.StartDate)
		}
		if conf.EndDate != "" {
			rangeQuery = rangeQuery.Lte(conf.EndDate)
		}
		esQuery = esQuery.Filter(rangeQuery)
	}

	switch {
	case conf.QueryFile != "":
		raw, err := LoadQueryFile(conf.QueryFile)
		if err != nil {
			return nil, err
		}
		esQuery = esQuery.Must(elastic.NewRawQuery(raw))
	case conf.RAWQuery != "":
		raw, err := elastic.NewRawStringQuery(conf.RAWQuery)
		if err != nil {
			return nil, &InvalidQueryError{Err: err}
		}
		esQuery = esQuery.Must(raw)
	case conf.Query != "":
		esQuery = esQuery.Must(elastic.NewQueryStringQuery(conf.Query))
	default:
		esQuery = esQuery.Must(elastic.NewMatchAllQuery())
	}

	return esQuery.Build(), nil
}

// LoadQueryFile reads a query from a JSON or, by extension, YAML file.
func LoadQueryFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read query file: %w", err)
	}

	var query map[string]interface{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &query)
	default:
		err = json.Unmarshal(data, &query)
	}
	if err != nil {
		return nil, &InvalidQueryError{Err: fmt.Errorf("%s: %w", path, err)}
	}
	if len(query) == 0 {
		return nil, &InvalidQueryError{Err: fmt.Errorf("%s: empty query", path)}
	}
	return query, nil
}

// ParseSort parses "field:asc,other:desc". A field without order sorts ascending.
func ParseSort(s string) ([]elastic.SortField, error) {
	var sort []elastic.SortField
	for _, part := range splitList(s) {
		field, order, _ := strings.Cut(part, ":")
		order = strings.ToLower(strings.TrimSpace(order))
		switch order {
		case "", "asc", "desc":
		default:
			return nil, fmt.Errorf("invalid sort order %q for field %s", order, field)
		}
		sort = append(sort, elastic.SortField{Field: strings.TrimSpace(field), Order: order})
	}
	return sort, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
