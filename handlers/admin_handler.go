package handlers

import (
	"net/http"

	"github.com/iete-tsec/ascension-registration/models"
	"github.com/iete-tsec/ascension-registration/services"
)

type AdminHandler struct {
	moderationService services.ModerationService
}

func NewAdminHandler(ms services.ModerationService) *AdminHandler {
	return &AdminHandler{moderationService: ms}
}

// ListRegistrations returns every registration with captain contact
// details, payment status, and proof URL. Admin only.
func (h *AdminHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := h.moderationService.List(r.Context())
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	response := jsonResponse{
		"registrations": regs,
	}
	if err = writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AdminHandler) SetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "registrationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Status models.PaymentStatus `json:"status"`
	}
	if err = readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err = h.moderationService.SetPaymentStatus(r.Context(), id, input.Status); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"id":     id,
		"status": input.Status,
	}
	if err = writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AdminHandler) DeleteRegistration(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "registrationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err = h.moderationService.Delete(r.Context(), id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
