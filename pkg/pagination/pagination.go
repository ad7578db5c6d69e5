// Package pagination turns page/limit query parameters into an offset window.
package pagination

import (
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Defaults configures Parse.
type Defaults struct {
	Page  int
	Limit int
	// MaxLimit caps the page size. Zero means no cap.
	MaxLimit int
}

// DefaultDefaults returns page 1 with 100 results per page.
func DefaultDefaults() Defaults {
	return Defaults{Page: 1, Limit: 100}
}

// Params holds a resolved page window.
type Params struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Skip  int `json:"-"`
}

// Parse reads "page" and "limit" from q, using the last value of a repeated
// parameter. Missing, non-numeric or
// non-positive values fall back to d; a limit above d.MaxLimit is clamped.
// Skip is (page-1)*limit, saturating instead of overflowing.
func Parse(q url.Values, d Defaults) Params {
	if d.Page <= 0 {
		d.Page = 1
	}
	if d.Limit <= 0 {
		d.Limit = DefaultDefaults().Limit
	}

	p := Params{
		Page:  positiveOr(last(q, "page"), d.Page),
		Limit: positiveOr(last(q, "limit"), d.Limit),
	}
	if d.MaxLimit > 0 && p.Limit > d.MaxLimit {
		p.Limit = d.MaxLimit
	}

	if p.Page-1 > math.MaxInt/p.Limit {
		p.Skip = math.MaxInt
	} else {
		p.Skip = (p.Page - 1) * p.Limit
	}
	return p
}

// FromRequest parses the request's query string.
func FromRequest(r *http.Request, d Defaults) Params {
	return Parse(r.URL.Query(), d)
}

func positiveOr(raw string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func last(q url.Values, key string) string {
	vs := q[key]
	if len(vs) == 0 {
		return ""
	}
	return vs[len(vs)-1]
}
