package handlers

import (
	"net/http"

	"carecoins/internal/logging"
	"carecoins/internal/service"
)

// FamilyHandler handles family provisioning, joining and lookup
type FamilyHandler struct {
	families *service.FamilyService
	log      *logging.Logger
}

// NewFamilyHandler creates a new family handler
func NewFamilyHandler(families *service.FamilyService, log *logging.Logger) *FamilyHandler {
	return &FamilyHandler{families: families, log: log}
}

// CreateFamily provisions a family, its actors and the caller's profile
func (h *FamilyHandler) CreateFamily(w http.ResponseWriter, r *http.Request) {
	log := h.log.WithContext(r.Context())

	var req service.ProvisionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithServiceError(w, log, "create family: bad body", err)
		return
	}

	result, err := h.families.Provision(r.Context(), GetPrincipalFromContext(r.Context()), req)
	if err != nil {
		respondWithServiceError(w, log, "create family failed", err)
		return
	}

	respondWithJSON(w, http.StatusOK, SuccessResponse{Success: true, FamilyID: result.Family.ID})
}

// JoinByPIN links the caller to a family when the PIN matches
func (h *FamilyHandler) JoinByPIN(w http.ResponseWriter, r *http.Request) {
	log := h.log.WithContext(r.Context())

	var req JoinPINRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithServiceError(w, log, "join family: bad body", err)
		return
	}

	family, err := h.families.JoinByPIN(r.Context(), GetPrincipalFromContext(r.Context()), req.FamilyID, req.PIN)
	if err != nil {
		respondWithServiceError(w, log, "join family failed", err)
		return
	}

	respondWithJSON(w, http.StatusOK, SuccessResponse{Success: true, FamilyID: family.ID})
}

// Search lists families by name
func (h *FamilyHandler) Search(w http.ResponseWriter, r *http.Request) {
	log := h.log.WithContext(r.Context())

	var req SearchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithServiceError(w, log, "search families: bad body", err)
		return
	}

	families, err := h.families.Search(r.Context(), GetPrincipalFromContext(r.Context()), req.Query)
	if err != nil {
		respondWithServiceError(w, log, "search families failed", err)
		return
	}

	respondWithJSON(w, http.StatusOK, newSearchResponse(families))
}

// Me returns the caller's profile
func (h *FamilyHandler) Me(w http.ResponseWriter, r *http.Request) {
	profile, err := h.families.Profile(r.Context(), GetPrincipalFromContext(r.Context()))
	if err != nil {
		respondWithServiceError(w, h.log.WithContext(r.Context()), "load profile failed", err)
		return
	}

	respondWithJSON(w, http.StatusOK, newProfileResponse(profile))
}
