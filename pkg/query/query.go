// Package query turns an untrusted query-string description into a docstore
// read: filter, then sort, then field selection, then pagination.
//
// The description is never interpreted as store syntax. Only the bracket
// forms field[gte], field[gt], field[lte] and field[lt] become comparisons;
// every other key, bracketed or not, is a literal field name compared for
// equality, and every value is a literal.
package query

import (
	"context"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/MinhajJamraiz/natours/pkg/docstore"
	"github.com/MinhajJamraiz/natours/pkg/pagination"
)

// Reserved directive keys. They never become filter conditions.
const (
	KeyPage   = "page"
	KeySort   = "sort"
	KeyLimit  = "limit"
	KeyFields = "fields"
)

var reserved = map[string]bool{KeyPage: true, KeySort: true, KeyLimit: true, KeyFields: true}

var bracketOp = regexp.MustCompile(`^([^\[\]]+)\[(gte|gt|lte|lt)\]$`)

var operators = map[string]docstore.Op{
	"gte": docstore.OpGte,
	"gt":  docstore.OpGt,
	"lte": docstore.OpLte,
	"lt":  docstore.OpLt,
}

// Kind is the declared type of a field, used to cast string values.
type Kind int

const (
	String Kind = iota
	Number
	Bool
	Time
)

// Config holds the builder defaults.
type Config struct {
	DefaultPage  int
	DefaultLimit int
	// MaxLimit caps requested page sizes. Zero means no cap.
	MaxLimit int
	// DefaultSort applies when the description has no usable sort.
	DefaultSort []docstore.SortKey
	// Fields declares field types. Values for undeclared fields stay strings.
	Fields map[string]Kind
	// Hidden fields, and anything nested under them, cannot be filtered,
	// sorted or selected.
	Hidden []string
}

// DefaultConfig returns page 1, 100 results and newest first.
func DefaultConfig() Config {
	return Config{
		DefaultPage:  1,
		DefaultLimit: 100,
		DefaultSort:  []docstore.SortKey{{Field: docstore.CreatedAtField, Desc: true}},
	}
}

// Builder applies query features. It is stateless and safe for concurrent
// use.
type Builder struct {
	cfg Config
}

// NewBuilder creates a builder. Zero page and limit defaults fall back to
// DefaultConfig.
func NewBuilder(cfg Config) *Builder {
	def := DefaultConfig()
	if cfg.DefaultPage <= 0 {
		cfg.DefaultPage = def.DefaultPage
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = def.DefaultLimit
	}
	if len(cfg.DefaultSort) == 0 {
		cfg.DefaultSort = def.DefaultSort
	}
	return &Builder{cfg: cfg}
}

// WithFields returns a builder sharing b's defaults with a different type
// declaration.
func (b *Builder) WithFields(fields map[string]Kind) *Builder {
	cfg := b.cfg
	cfg.Fields = fields
	return &Builder{cfg: cfg}
}

// Hiding returns a builder sharing b's defaults that ignores every
// directive naming one of fields.
func (b *Builder) Hiding(fields ...string) *Builder {
	cfg := b.cfg
	cfg.Hidden = append(append([]string(nil), b.cfg.Hidden...), fields...)
	return &Builder{cfg: cfg}
}

func (b *Builder) hidden(field string) bool {
	for _, h := range b.cfg.Hidden {
		if field == h || strings.HasPrefix(field, h+".") {
			return true
		}
	}
	return false
}

// Features is a parsed description.
type Features struct {
	Filter     docstore.Filter
	Sort       []docstore.SortKey
	Projection docstore.Projection
	Page       pagination.Params
}

// Parse reads every feature from desc. It never fails: malformed directives
// fall back to defaults.
func (b *Builder) Parse(desc url.Values) Features {
	return Features{
		Filter:     b.Filter(desc),
		Sort:       b.Sort(desc),
		Projection: b.Fields(desc),
		Page:       b.Paginate(desc),
	}
}

// Filter builds the conditions of desc, ordered by key.
func (b *Builder) Filter(desc url.Values) docstore.Filter {
	keys := make([]string, 0, len(desc))
	for k := range desc {
		if !reserved[k] && k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	f := make(docstore.Filter, 0, len(keys))
	for _, k := range keys {
		raw, ok := lastValue(desc, k)
		if !ok {
			continue
		}
		field, op := k, docstore.OpEq
		if m := bracketOp.FindStringSubmatch(k); m != nil {
			field, op = m[1], operators[m[2]]
		}
		if b.hidden(field) {
			continue
		}
		f = append(f, docstore.Condition{Field: field, Op: op, Value: b.cast(field, raw)})
	}
	return f
}

// Sort reads the comma-separated sort directive. A leading "-" sorts
// descending. The identifier is appended as a final ascending key so that
// pages are stable.
func (b *Builder) Sort(desc url.Values) []docstore.SortKey {
	raw, _ := lastValue(desc, KeySort)
	var keys []docstore.SortKey
	seen := make(map[string]bool)
	for _, tok := range splitList(raw) {
		k := docstore.SortKey{Field: tok}
		if strings.HasPrefix(tok, "-") {
			k = docstore.SortKey{Field: strings.TrimLeft(tok, "-"), Desc: true}
		}
		if k.Field == "" || seen[k.Field] || b.hidden(k.Field) {
			continue
		}
		seen[k.Field] = true
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		for _, k := range b.cfg.DefaultSort {
			if !seen[k.Field] {
				seen[k.Field] = true
				keys = append(keys, k)
			}
		}
	}
	if !seen[docstore.IDField] {
		keys = append(keys, docstore.SortKey{Field: docstore.IDField})
	}
	return keys
}

// Fields reads the comma-separated field selection. Without one, only the
// version counter is dropped. A list made only of "-field" entries excludes
// those fields instead.
func (b *Builder) Fields(desc url.Values) docstore.Projection {
	raw, _ := lastValue(desc, KeyFields)
	var include, exclude []string
	for _, tok := range splitList(raw) {
		if strings.HasPrefix(tok, "-") {
			if f := strings.TrimLeft(tok, "-"); f != "" {
				exclude = append(exclude, f)
			}
			continue
		}
		if !b.hidden(tok) {
			include = append(include, tok)
		}
	}
	if len(include) > 0 {
		return docstore.Projection{Include: include}
	}
	return docstore.Projection{Exclude: append([]string{docstore.VersionField}, exclude...)}
}

// Paginate reads page and limit.
func (b *Builder) Paginate(desc url.Values) pagination.Params {
	return pagination.Parse(desc, pagination.Defaults{
		Page:     b.cfg.DefaultPage,
		Limit:    b.cfg.DefaultLimit,
		MaxLimit: b.cfg.MaxLimit,
	})
}

// Apply decorates f with the features of desc, in filter, sort, fields,
// pagination order. f is not executed.
func (b *Builder) Apply(desc url.Values, f *docstore.Finder) *docstore.Finder {
	feat := b.Parse(desc)
	return f.Where(feat.Filter...).
		Sort(feat.Sort...).
		Select(feat.Projection).
		Skip(feat.Page.Skip).
		Limit(feat.Page.Limit)
}

// Result is an executed query.
type Result struct {
	Results int                 `json:"results"`
	Data    []docstore.Document `json:"data"`
}

// Run applies desc to f and executes it.
func (b *Builder) Run(ctx context.Context, desc url.Values, f *docstore.Finder) (Result, error) {
	docs, err := b.Apply(desc, f).All(ctx)
	if err != nil {
		return Result{}, err
	}
	if docs == nil {
		docs = []docstore.Document{}
	}
	return Result{Results: len(docs), Data: docs}, nil
}

func (b *Builder) cast(field, raw string) any {
	switch b.cfg.Fields[field] {
	case Number:
		if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil && !math.IsInf(v, 0) && !math.IsNaN(v) {
			return v
		}
	case Bool:
		if v, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil {
			return v
		}
	case Time:
		for _, layout := range []string{docstore.TimeLayout, time.RFC3339Nano, time.DateOnly} {
			if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
				return docstore.FormatTime(t)
			}
		}
	}
	return raw
}

func lastValue(desc url.Values, key string) (string, bool) {
	vs := desc[key]
	if len(vs) == 0 {
		return "", false
	}
	return vs[len(vs)-1], true
}

func splitList(raw string) []string {
	var out []string
	for _, tok := range strings.Split(raw, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}
