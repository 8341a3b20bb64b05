package search

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chatvault-backend/internal/models"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(ClientConfig{
		Addresses: []string{srv.URL},
		Index:     "conversations",
	})
	require.NoError(t, err)
	return c
}

func TestDeleteDocumentMissingIsSuccess(t *testing.T) {
	// The relay retries deletions, so a document that is already gone must
	// count as a successful delete every time.
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/conversations/_doc/c1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"result":"not_found"}`))
	})

	require.NoError(t, c.DeleteDocument(context.Background(), "c1"))
	require.NoError(t, c.DeleteDocument(context.Background(), "c1"))
}

func TestDeleteDocumentServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	require.Error(t, c.DeleteDocument(context.Background(), "c1"))
}

func TestUpsertDocument(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":"created"}`))
	})

	err := c.UpsertDocument(context.Background(), models.SearchDocument{ID: "c1", Model: "gpt-4"})
	require.NoError(t, err)
	require.Equal(t, "/conversations/_doc/c1", gotPath)
}

func TestSearchParsesResponse(t *testing.T) {
	var gotBody []byte
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/conversations/_search", r.URL.Path)
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"took": 5,
			"hits": {
				"total": {"value": 2},
				"hits": [
					{"_id": "c1", "_score": 1.2, "_source": {"id": "c1", "model": "gpt-4"}},
					{"_id": "c2", "_score": 0.8, "_source": {"id": "c2", "model": "claude-3"}}
				]
			}
		}`))
	})

	resp, err := c.Search(context.Background(), Compile(models.SearchRequest{Query: "weather"}, time.Now()))
	require.NoError(t, err)
	require.Contains(t, string(gotBody), `"query"`)
	require.Equal(t, int64(5), resp.Took)
	require.Equal(t, int64(2), resp.Hits.Total.Value)
	require.Len(t, resp.Hits.Hits, 2)
	require.Equal(t, "c1", resp.Hits.Hits[0].ID)
	require.Equal(t, "gpt-4", resp.Hits.Hits[0].Source.Model)
}

func TestSearchNormalizesMissingHits(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"took": 1, "hits": {"total": {"value": 0}}}`))
	})

	resp, err := c.Search(context.Background(), Compile(models.SearchRequest{}, time.Now()))
	require.NoError(t, err)
	require.NotNil(t, resp.Hits.Hits)
	require.Empty(t, resp.Hits.Hits)
}

func TestSearchErrorStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Search(context.Background(), Compile(models.SearchRequest{}, time.Now()))
	require.Error(t, err)
}
