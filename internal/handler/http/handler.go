// Package http exposes the natours API over chi.
//
// Bodies follow the {status, results, data: {data}} envelope of
// pkg/httputil. List endpoints accept the query-feature description of
// pkg/query in the URL, plus an expand parameter naming relations to
// populate.
package http

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MinhajJamraiz/natours/pkg/httputil"
	"github.com/MinhajJamraiz/natours/pkg/query"
)

// ExpandParam names the relations to populate, comma separated.
const ExpandParam = "expand"

// wrap nests v under "data".
func wrap(v any) map[string]any {
	return map[string]any{"data": v}
}

// description splits the request query into the builder's description
// and the requested expansions.
func description(r *http.Request) (url.Values, []string) {
	desc := r.URL.Query()
	raw := desc.Get(ExpandParam)
	desc.Del(ExpandParam)

	var expand []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			expand = append(expand, p)
		}
	}
	return desc, expand
}

// urlID reads and validates a path parameter.
func urlID(w http.ResponseWriter, r *http.Request, param string) (string, bool) {
	return httputil.ParseID(w, r, chi.URLParam(r, param))
}

func writeResult(w http.ResponseWriter, res query.Result) {
	httputil.WriteList(w, res.Results, wrap(res.Data))
}
