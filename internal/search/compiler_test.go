package search

import (
	"testing"
	"time"

	"chatvault-backend/internal/models"

	"github.com/stretchr/testify/require"
)

func TestExtractDirectives(t *testing.T) {
	residual, roles, modelNames := ExtractDirectives(`role:user model:"gpt-4" weather`)

	require.Equal(t, "weather", residual)
	require.Equal(t, []string{"user"}, roles)
	require.Equal(t, []string{"gpt-4"}, modelNames)
}

func TestExtractDirectivesUnquotedModel(t *testing.T) {
	residual, roles, modelNames := ExtractDirectives("model:claude-3 error handling")

	require.Equal(t, "error handling", residual)
	require.Empty(t, roles)
	require.Equal(t, []string{"claude-3"}, modelNames)
}

func TestExtractDirectivesDeduplicates(t *testing.T) {
	_, roles, modelNames := ExtractDirectives("role:user role:user role:assistant model:gpt-4 model:gpt-4")

	require.Equal(t, []string{"user", "assistant"}, roles)
	require.Equal(t, []string{"gpt-4"}, modelNames)
}

func TestExtractDirectivesIgnoresUnknownRole(t *testing.T) {
	residual, roles, _ := ExtractDirectives("role:moderator hello")

	// Not a recognized directive, so it stays in the free text.
	require.Equal(t, "role:moderator hello", residual)
	require.Empty(t, roles)
}

func TestFuzzyTokens(t *testing.T) {
	tokens := FuzzyTokens(`+alpha -beta "gamma" ab alpha delta`)
	require.Equal(t, []string{"alpha", "beta", "gamma", "delta"}, tokens)
}

func TestFuzzyTokensCountCharactersNotBytes(t *testing.T) {
	// Multi-byte text: the minimum length is characters, so a two-character
	// CJK token is too short even though it spans six bytes.
	tokens := FuzzyTokens("你好 日本語 ok")
	require.Equal(t, []string{"日本語"}, tokens)
}

func TestFuzzyTokensCapped(t *testing.T) {
	tokens := FuzzyTokens("one1 two2 three four five six seven")
	require.Len(t, tokens, maxFuzzyTokens)
}

// findClause walks a rendered clause list for the first entry carrying key.
func findClause(t *testing.T, clauses any, key string) map[string]any {
	t.Helper()
	list, ok := clauses.([]map[string]any)
	require.True(t, ok, "expected clause list, got %T", clauses)
	for _, c := range list {
		if _, present := c[key]; present {
			return c
		}
	}
	t.Fatalf("no %q clause in %v", key, list)
	return nil
}

func rootBool(t *testing.T, req Request) map[string]any {
	t.Helper()
	body := req.Body()
	query, ok := body["query"].(map[string]any)
	require.True(t, ok)
	b, ok := query["bool"].(map[string]any)
	require.True(t, ok)
	return b
}

func TestCompileEmptyQueryMatchesAll(t *testing.T) {
	req := Compile(models.SearchRequest{}, time.Now())

	b := rootBool(t, req)
	findClause(t, b["must"], "match_all")
	require.Nil(t, b["should"])
	require.Nil(t, b["filter"])
	require.Equal(t, defaultPageSize, req.Size)
}

func TestCompileFreeTextShape(t *testing.T) {
	req := Compile(models.SearchRequest{Query: "weather"}, time.Now())

	b := rootBool(t, req)

	// Precision clause: a bool with should{multi_match, nested multi_match}
	// and minimum_should_match 1.
	precision := findClause(t, b["must"], "bool")
	inner := precision["bool"].(map[string]any)
	require.Equal(t, 1, inner["minimum_should_match"])
	findClause(t, inner["should"], "multi_match")
	nested := findClause(t, inner["should"], "nested")["nested"].(map[string]any)
	require.Equal(t, "messages", nested["path"])

	// One fuzzy token produces a root-level match + nested match pair.
	should, ok := b["should"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, should, 2)
	match := findClause(t, b["should"], "match")["match"].(map[string]any)
	params := match["model"].(map[string]any)
	require.Equal(t, "AUTO", params["fuzziness"])
	require.Equal(t, fuzzyBoost, params["boost"])
}

func TestCompileRoleSubsetFilter(t *testing.T) {
	req := Compile(models.SearchRequest{Roles: []string{"user", "assistant"}}, time.Now())

	b := rootBool(t, req)
	nested := findClause(t, b["filter"], "nested")["nested"].(map[string]any)
	terms := nested["query"].(map[string]any)["terms"].(map[string]any)
	require.Equal(t, []string{"user", "assistant"}, terms["messages.role"])
}

func TestCompileAllRolesMeansNoFilter(t *testing.T) {
	req := Compile(models.SearchRequest{Roles: []string{"system", "user", "assistant"}}, time.Now())
	require.Nil(t, rootBool(t, req)["filter"])
}

func TestCompileModelDirectiveFilter(t *testing.T) {
	req := Compile(models.SearchRequest{Query: `model:"gpt-4"`}, time.Now())

	b := rootBool(t, req)
	// With the directive stripped the residual is empty.
	findClause(t, b["must"], "match_all")
	terms := findClause(t, b["filter"], "terms")["terms"].(map[string]any)
	require.Equal(t, []string{"gpt-4"}, terms["model.keyword"])
}

func TestCompileTimePreset(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	req := Compile(models.SearchRequest{TimeRange: &models.TimeRange{Preset: "day"}}, now)

	b := rootBool(t, req)
	rng := findClause(t, b["filter"], "range")["range"].(map[string]any)
	bounds := rng["timestamp"].(map[string]any)
	require.Equal(t, "2026-08-30T12:00:00Z", bounds["gte"])
	require.Nil(t, bounds["lte"])
}

func TestCompileTimePresetAllUnbounded(t *testing.T) {
	req := Compile(models.SearchRequest{TimeRange: &models.TimeRange{Preset: "all"}}, time.Now())
	require.Nil(t, rootBool(t, req)["filter"])
}

func TestCompileExplicitTimeBounds(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	req := Compile(models.SearchRequest{TimeRange: &models.TimeRange{Start: &start, End: &end}}, time.Now())

	b := rootBool(t, req)
	bounds := findClause(t, b["filter"], "range")["range"].(map[string]any)["timestamp"].(map[string]any)
	require.Equal(t, "2026-01-01T00:00:00Z", bounds["gte"])
	require.Equal(t, "2026-02-01T00:00:00Z", bounds["lte"])
}

func TestCompilePaging(t *testing.T) {
	req := Compile(models.SearchRequest{Size: 500, From: -3}, time.Now())
	require.Equal(t, maxPageSize, req.Size)
	require.Equal(t, 0, req.From)

	req = Compile(models.SearchRequest{Size: 7, From: 14}, time.Now())
	require.Equal(t, 7, req.Size)
	require.Equal(t, 14, req.From)
}

func TestCompileSortsByRecency(t *testing.T) {
	req := Compile(models.SearchRequest{Query: "anything"}, time.Now())
	require.Equal(t, []Sort{{Field: "timestamp", Desc: true}}, req.Sort)

	body := req.Body()
	sorts := body["sort"].([]map[string]any)
	require.Equal(t, "desc", sorts[0]["timestamp"].(map[string]any)["order"])
}
