package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/iete-tsec/ascension-registration/ledger"
	"github.com/iete-tsec/ascension-registration/models"
	"github.com/iete-tsec/ascension-registration/services"
)

const maxProofSize = 10 << 20 // 10MB

type RegistrationHandler struct {
	registrationService services.RegistrationService
	ledger              *ledger.Ledger
	deadline            time.Time
}

func NewRegistrationHandler(rs services.RegistrationService, ldg *ledger.Ledger, deadline time.Time) *RegistrationHandler {
	return &RegistrationHandler{
		registrationService: rs,
		ledger:              ldg,
		deadline:            deadline,
	}
}

// Submit accepts a team registration. With a proof flow configured the
// request is multipart/form-data: a "payload" part carrying the JSON form
// values and a "screenshot" file part. Plain application/json works when
// no proof is required.
func (h *RegistrationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var input services.SubmitInput
	var proof *services.ProofUpload

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxProofSize); err != nil {
			badRequestResponse(w, r, fmt.Errorf("failed to parse multipart form: %w", err))
			return
		}

		payload := r.FormValue("payload")
		if payload == "" {
			badRequestResponse(w, r, errors.New("missing payload form field"))
			return
		}
		if err := json.Unmarshal([]byte(payload), &input); err != nil {
			badRequestResponse(w, r, fmt.Errorf("invalid payload JSON: %w", err))
			return
		}

		file, header, err := r.FormFile("screenshot")
		if err == nil {
			defer file.Close()
			proof = &services.ProofUpload{
				Filename:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Reader:      file,
			}
		} else if !errors.Is(err, http.ErrMissingFile) {
			badRequestResponse(w, r, fmt.Errorf("failed to read screenshot: %w", err))
			return
		}
	} else {
		if err := readJSON(w, r, &input); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}

	reg, err := h.registrationService.Submit(r.Context(), input, proof)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"registration": reg,
	}
	if err = writeJSON(w, http.StatusCreated, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListTeams serves the public roster: slot numbers and team names only.
func (h *RegistrationHandler) ListTeams(w http.ResponseWriter, r *http.Request) {
	snapshot := h.ledger.Snapshot()

	teams := make([]models.PublicView, 0, len(snapshot.Teams))
	for i, t := range snapshot.Teams {
		teams = append(teams, models.PublicView{Slot: i + 1, TeamName: t.TeamName})
	}

	response := jsonResponse{
		"teams":    teams,
		"count":    snapshot.Count,
		"capacity": snapshot.Capacity,
		"loading":  snapshot.Loading,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Status serves the landing page counters and the registration countdown.
func (h *RegistrationHandler) Status(w http.ResponseWriter, r *http.Request) {
	snapshot := h.ledger.Snapshot()

	closed := snapshot.Closed
	response := jsonResponse{
		"count":          snapshot.Count,
		"capacity":       snapshot.Capacity,
		"loading":        snapshot.Loading,
		"proof_required": h.registrationService.ProofRequired(),
	}

	if !h.deadline.IsZero() {
		secondsLeft := int64(time.Until(h.deadline).Seconds())
		if secondsLeft < 0 {
			secondsLeft = 0
			closed = true
		}
		response["deadline"] = h.deadline.Format(time.RFC3339)
		response["seconds_left"] = secondsLeft
	}
	response["closed"] = closed

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
