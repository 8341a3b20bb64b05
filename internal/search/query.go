// Package search owns the search-index collaborator: the typed query
// expression tree, its wire-format serializer, the OpenSearch client and the
// conversation-to-document projection.
package search

import "time"

// Node is a single query expression. Building queries as a tree of Nodes and
// rendering them separately keeps the compiler testable without a live index.
type Node interface {
	// Render produces the index's wire-format representation of the node.
	Render() map[string]any
}

// MatchAll matches every document.
type MatchAll struct{}

func (MatchAll) Render() map[string]any {
	return map[string]any{"match_all": map[string]any{}}
}

// MultiMatch matches query text against several fields at once. Fields may
// carry caret boosts (e.g. "messages.content^3").
type MultiMatch struct {
	Query  string
	Fields []string
}

func (m MultiMatch) Render() map[string]any {
	return map[string]any{
		"multi_match": map[string]any{
			"query":  m.Query,
			"fields": m.Fields,
		},
	}
}

// Match matches query text against one field, optionally with fuzziness and
// a boost.
type Match struct {
	Field     string
	Query     string
	Fuzziness string
	Boost     float64
}

func (m Match) Render() map[string]any {
	params := map[string]any{"query": m.Query}
	if m.Fuzziness != "" {
		params["fuzziness"] = m.Fuzziness
	}
	if m.Boost > 0 {
		params["boost"] = m.Boost
	}
	return map[string]any{"match": map[string]any{m.Field: params}}
}

// Terms filters documents whose field holds any of the given values.
type Terms struct {
	Field  string
	Values []string
}

func (t Terms) Render() map[string]any {
	return map[string]any{"terms": map[string]any{t.Field: t.Values}}
}

// Range bounds a date field. Nil bounds are omitted.
type Range struct {
	Field string
	GTE   *time.Time
	LTE   *time.Time
}

func (r Range) Render() map[string]any {
	bounds := map[string]any{}
	if r.GTE != nil {
		bounds["gte"] = r.GTE.UTC().Format(time.RFC3339)
	}
	if r.LTE != nil {
		bounds["lte"] = r.LTE.UTC().Format(time.RFC3339)
	}
	return map[string]any{"range": map[string]any{r.Field: bounds}}
}

// Nested wraps a query so it runs against the nested per-message records.
type Nested struct {
	Path  string
	Query Node
}

func (n Nested) Render() map[string]any {
	return map[string]any{
		"nested": map[string]any{
			"path":  n.Path,
			"query": n.Query.Render(),
		},
	}
}

// Bool combines must (scoring, required), should (scoring, optional) and
// filter (non-scoring, required) clauses.
type Bool struct {
	Must               []Node
	Should             []Node
	Filter             []Node
	MinimumShouldMatch int
}

func (b Bool) Render() map[string]any {
	body := map[string]any{}
	if len(b.Must) > 0 {
		body["must"] = renderAll(b.Must)
	}
	if len(b.Should) > 0 {
		body["should"] = renderAll(b.Should)
	}
	if len(b.Filter) > 0 {
		body["filter"] = renderAll(b.Filter)
	}
	if b.MinimumShouldMatch > 0 {
		body["minimum_should_match"] = b.MinimumShouldMatch
	}
	return map[string]any{"bool": body}
}

func renderAll(nodes []Node) []map[string]any {
	out := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Render())
	}
	return out
}

// Sort is one sort key of a request.
type Sort struct {
	Field string
	Desc  bool
}

// Request is a complete, renderable search request.
type Request struct {
	Query           Node
	Sort            []Sort
	Size            int
	From            int
	HighlightFields []string
}

// Body renders the request to the index's wire format.
func (r Request) Body() map[string]any {
	body := map[string]any{
		"query": r.Query.Render(),
		"size":  r.Size,
		"from":  r.From,
	}

	if len(r.Sort) > 0 {
		sorts := make([]map[string]any, 0, len(r.Sort))
		for _, s := range r.Sort {
			order := "asc"
			if s.Desc {
				order = "desc"
			}
			sorts = append(sorts, map[string]any{s.Field: map[string]any{"order": order}})
		}
		body["sort"] = sorts
	}

	if len(r.HighlightFields) > 0 {
		fields := map[string]any{}
		for _, f := range r.HighlightFields {
			fields[f] = map[string]any{}
		}
		body["highlight"] = map[string]any{"fields": fields}
	}

	return body
}
