package handlers

import (
	"net/http"
	"strconv"

	"carecoins/internal/logging"
	"carecoins/internal/service"
	"carecoins/internal/validation"
)

// ActivityHandler handles activity logging
type ActivityHandler struct {
	activities *service.ActivityService
	log        *logging.Logger
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(activities *service.ActivityService, log *logging.Logger) *ActivityHandler {
	return &ActivityHandler{activities: activities, log: log}
}

// CreateActivity logs an activity for the caller's family
func (h *ActivityHandler) CreateActivity(w http.ResponseWriter, r *http.Request) {
	log := h.log.WithContext(r.Context())

	var req service.CreateActivityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithServiceError(w, log, "create activity: bad body", err)
		return
	}

	activity, err := h.activities.Create(r.Context(), GetPrincipalFromContext(r.Context()), req)
	if err != nil {
		respondWithServiceError(w, log, "create activity failed", err)
		return
	}

	respondWithJSON(w, http.StatusOK, ActivityCreatedResponse{Success: true, ActivityID: activity.ID})
}

// ListActivities returns the newest activities of the caller's family
func (h *ActivityHandler) ListActivities(w http.ResponseWriter, r *http.Request) {
	log := h.log.WithContext(r.Context())

	limit := service.MaxActivityLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondWithServiceError(w, log, "list activities: bad limit",
				validation.ValidationError{Field: "limit", Message: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	activities, err := h.activities.List(r.Context(), GetPrincipalFromContext(r.Context()), limit)
	if err != nil {
		respondWithServiceError(w, log, "list activities failed", err)
		return
	}

	respondWithJSON(w, http.StatusOK, newActivitiesResponse(activities))
}
