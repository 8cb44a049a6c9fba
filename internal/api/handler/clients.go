package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/emailpilot/emailpilot/internal/api/middleware"
	"github.com/emailpilot/emailpilot/internal/api/response"
	"github.com/emailpilot/emailpilot/internal/store"
	"github.com/emailpilot/emailpilot/pkg/models"
)

// NewUpsertClientHandler returns the handler for POST /api/v1/clients.
// Registering a client enriches the retrieval stage; workflows for
// unregistered clients still run with a bare profile.
func NewUpsertClientHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "Missing user")
			return
		}

		var req struct {
			Name             string `json:"name"`
			Industry         string `json:"industry"`
			BrandVoice       string `json:"brand_voice"`
			KlaviyoAccountID string `json:"klaviyo_account_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		if req.Name == "" {
			response.Error(w, http.StatusBadRequest, "name is required")
			return
		}

		now := time.Now().UTC()
		client, err := s.UpsertClient(r.Context(), &models.Client{
			ID:               uuid.New(),
			UserID:           userID,
			Name:             req.Name,
			Industry:         req.Industry,
			BrandVoice:       req.BrandVoice,
			KlaviyoAccountID: req.KlaviyoAccountID,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "Failed to save client")
			return
		}

		response.JSON(w, client)
	}
}

// NewGetClientHandler returns the handler for GET /api/v1/clients/{name}.
func NewGetClientHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "Missing user")
			return
		}

		name := chi.URLParam(r, "name")
		client, err := s.GetClientByName(r.Context(), userID, name)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "Client not found")
				return
			}
			response.Error(w, http.StatusInternalServerError, "Failed to fetch client")
			return
		}

		response.JSON(w, client)
	}
}
