package search

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"chatvault-backend/internal/models"
)

const (
	maxFuzzyTokens = 5
	fuzzyBoost     = 0.5

	defaultPageSize = 20
	maxPageSize     = 100
)

var (
	roleDirectiveRe  = regexp.MustCompile(`\brole:(system|user|assistant)\b`)
	modelDirectiveRe = regexp.MustCompile(`\bmodel:(?:"([^"]+)"|(\S+))`)
)

// Compile turns one free-text query plus filter state into a structured,
// ranked request. It never fails: malformed filter values degrade to their
// defaults so the caller always gets an executable request.
func Compile(req models.SearchRequest, now time.Time) Request {
	residual, dirRoles, dirModels := ExtractDirectives(req.Query)

	root := Bool{}

	if residual != "" {
		// Precision first: at least one exact-style match against the root
		// text fields or the nested message content, with message content
		// weighted to dominate ranking over the model field.
		root.Must = append(root.Must, Bool{
			Should: []Node{
				MultiMatch{Query: residual, Fields: []string{"model^2"}},
				Nested{Path: "messages", Query: MultiMatch{Query: residual, Fields: []string{"messages.content^3"}}},
			},
			MinimumShouldMatch: 1,
		})

		// Fuzzy recall rides along as lower-boosted optional clauses.
		for _, tok := range FuzzyTokens(residual) {
			root.Should = append(root.Should,
				Match{Field: "model", Query: tok, Fuzziness: "AUTO", Boost: fuzzyBoost},
				Nested{Path: "messages", Query: Match{Field: "messages.content", Query: tok, Fuzziness: "AUTO", Boost: fuzzyBoost}},
			)
		}
	} else {
		root.Must = append(root.Must, MatchAll{})
	}

	if roles := effectiveRoles(req.Roles, dirRoles); len(roles) > 0 {
		root.Filter = append(root.Filter, Nested{
			Path:  "messages",
			Query: Terms{Field: "messages.role", Values: roles},
		})
	}

	if len(dirModels) > 0 {
		root.Filter = append(root.Filter, Terms{Field: "model.keyword", Values: dirModels})
	}

	if gte, lte := timeBounds(req.TimeRange, now); gte != nil || lte != nil {
		root.Filter = append(root.Filter, Range{Field: "timestamp", GTE: gte, LTE: lte})
	}

	size := req.Size
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	from := req.From
	if from < 0 {
		from = 0
	}

	return Request{
		Query: root,
		// Recency overrides relevance score.
		Sort:            []Sort{{Field: "timestamp", Desc: true}},
		Size:            size,
		From:            from,
		HighlightFields: []string{"messages.content"},
	}
}

// ExtractDirectives scans the query for inline role: and model: directives,
// strips them and collapses whitespace. It returns the residual free text
// and the deduplicated directive values.
func ExtractDirectives(query string) (residual string, roles []string, modelNames []string) {
	for _, m := range roleDirectiveRe.FindAllStringSubmatch(query, -1) {
		roles = appendUnique(roles, m[1])
	}
	for _, m := range modelDirectiveRe.FindAllStringSubmatch(query, -1) {
		if m[1] != "" {
			modelNames = appendUnique(modelNames, m[1]) // quoted phrase
		} else {
			modelNames = appendUnique(modelNames, m[2])
		}
	}

	stripped := roleDirectiveRe.ReplaceAllString(query, " ")
	stripped = modelDirectiveRe.ReplaceAllString(stripped, " ")
	residual = strings.Join(strings.Fields(stripped), " ")
	return residual, roles, modelNames
}

// FuzzyTokens derives up to maxFuzzyTokens candidate tokens from residual
// free text: split on whitespace, strip leading +/- and quote marks, keep
// tokens of at least 3 characters, deduplicate in order.
func FuzzyTokens(residual string) []string {
	var tokens []string
	for _, raw := range strings.Fields(residual) {
		tok := strings.TrimLeft(raw, "+-")
		tok = strings.Trim(tok, `"'`)
		if utf8.RuneCountInString(tok) < 3 {
			continue
		}
		tokens = appendUnique(tokens, tok)
		if len(tokens) == maxFuzzyTokens {
			break
		}
	}
	return tokens
}

// effectiveRoles decides whether a role filter applies: either the UI chose
// a strict proper subset of the three roles, or inline directives named
// roles. Unknown role values from the UI are dropped rather than erroring.
func effectiveRoles(uiRoles, directiveRoles []string) []string {
	var selected []string
	for _, r := range uiRoles {
		r = strings.ToLower(strings.TrimSpace(r))
		if models.IsValidRole(r) {
			selected = appendUnique(selected, r)
		}
	}
	if len(selected) == 0 || len(selected) >= 3 {
		// All three (or none) selected means no UI restriction.
		selected = nil
	}

	for _, r := range directiveRoles {
		selected = appendUnique(selected, r)
	}
	return selected
}

// timeBounds translates a symbolic or explicit time range into timestamp
// bounds. A nil range, the "all" preset and unrecognized presets with no
// explicit bounds all mean unbounded.
func timeBounds(tr *models.TimeRange, now time.Time) (gte, lte *time.Time) {
	if tr == nil {
		return nil, nil
	}

	var start time.Time
	switch strings.ToLower(tr.Preset) {
	case "hour":
		start = now.Add(-time.Hour)
	case "day":
		start = now.AddDate(0, 0, -1)
	case "month":
		start = now.AddDate(0, -1, 0)
	case "year":
		start = now.AddDate(-1, 0, 0)
	case "all":
		return nil, nil
	default:
		return tr.Start, tr.End
	}
	return &start, nil
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
