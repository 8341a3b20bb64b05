package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"chatvault-backend/internal/models"
	"chatvault-backend/internal/services"
	"chatvault-backend/internal/store"
	"chatvault-backend/pkg/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ConversationHandlers handles HTTP requests for the ingestion boundary and
// conversation reads.
type ConversationHandlers struct {
	conversationService *services.ConversationService
}

// NewConversationHandlers creates a new ConversationHandlers instance.
func NewConversationHandlers(conversationService *services.ConversationService) *ConversationHandlers {
	return &ConversationHandlers{conversationService: conversationService}
}

// HandleIngestExchange handles requests to log a completed chat exchange.
func (h *ConversationHandlers) HandleIngestExchange(w http.ResponseWriter, r *http.Request) {
	var req models.IngestExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.conversationService.IngestExchange(r.Context(), req)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to ingest exchange: "+err.Error())
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, resp)
}

// HandleGetConversation handles requests to fetch a conversation with its
// messages.
func (h *ConversationHandlers) HandleGetConversation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	conv, err := h.conversationService.GetConversation(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.RespondError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to get conversation: "+err.Error())
		return
	}

	httputil.RespondJSON(w, http.StatusOK, conv)
}

// HandleDeleteConversation handles requests to delete a conversation. The
// index removal happens asynchronously through the outbox relay.
func (h *ConversationHandlers) HandleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	if err := h.conversationService.DeleteConversation(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.RespondError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to delete conversation: "+err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
