package services

import (
	"context"
	"log"
	"time"

	"chatvault-backend/internal/models"
	"chatvault-backend/internal/search"
)

// SearchExecutor runs a compiled request against the search index.
type SearchExecutor interface {
	Search(ctx context.Context, req search.Request) (*models.SearchResponse, error)
}

// MediaResolver rewrites stored media references inside a document to
// short-lived signed URLs. Implemented by the object-storage collaborator.
type MediaResolver interface {
	ResolveDocument(ctx context.Context, doc *models.SearchDocument) error
}

// SearchService compiles free-text queries and executes them. It is
// stateless and safe for unbounded concurrent use.
type SearchService struct {
	index SearchExecutor
	media MediaResolver // Optional; nil disables media URL resolution
}

// NewSearchService creates a new SearchService. media may be nil.
func NewSearchService(index SearchExecutor, media MediaResolver) *SearchService {
	return &SearchService{index: index, media: media}
}

// Search runs one search. It always returns a well-formed response: on any
// execution failure the response is the degraded empty-result shape carrying
// the error message, and the error is returned so the handler can signal a
// failure status.
func (s *SearchService) Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error) {
	compiled := search.Compile(req, time.Now())

	resp, err := s.index.Search(ctx, compiled)
	if err != nil {
		log.Printf("ERROR [SearchService] Search: %v", err)
		return degradedResponse(err), err
	}

	if s.media != nil {
		for i := range resp.Hits.Hits {
			if mediaErr := s.media.ResolveDocument(ctx, &resp.Hits.Hits[i].Source); mediaErr != nil {
				// Media decoration is best-effort; the hit is still useful
				// without signed URLs.
				log.Printf("WARN [SearchService] Failed to resolve media for hit %s: %v", resp.Hits.Hits[i].ID, mediaErr)
			}
		}
	}

	return resp, nil
}

func degradedResponse(err error) *models.SearchResponse {
	return &models.SearchResponse{
		Hits: models.SearchHits{
			Hits:  []models.SearchHit{},
			Total: models.SearchTotal{Value: 0},
		},
		Took:  0,
		Error: err.Error(),
	}
}
