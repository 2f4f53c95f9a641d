package progression

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/skillpath/backend/internal/models"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func getUserID(r *http.Request) (int64, bool) {
	uid, ok := r.Context().Value("user_id").(int64)
	return uid, ok
}

// ── Session Submission ──────────────────────────────────

func (h *Handler) SubmitQuizSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	var req models.SubmitQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	resp, err := h.service.SubmitQuizSession(userID, req)
	if err != nil {
		writeServiceError(w, err, "Failed to submit quiz session")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) SubmitCourseSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	var req models.SubmitCourseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	resp, err := h.service.SubmitCourseSession(userID, req)
	if err != nil {
		writeServiceError(w, err, "Failed to submit course session")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CompleteCourse(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	courseID := mux.Vars(r)["courseID"]

	resp, err := h.service.CompleteCourse(userID, courseID)
	if err != nil {
		writeServiceError(w, err, "Failed to complete course")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// ── Reads ───────────────────────────────────────────────

func (h *Handler) GetProgression(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	resp, err := h.service.GetProgression(userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to get progression"})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	limit := intQueryParam(r.URL.Query(), "limit", 50)

	resp, err := h.service.GetLedger(userID, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to get ledger"})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// ── Helpers ─────────────────────────────────────────────

// writeServiceError maps the progression error taxonomy onto HTTP statuses.
// Persistence failures tell the client the submission did not count and is
// safe to retry.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: ve.Error()})
		return
	}

	var pe *PersistenceError
	if errors.As(err, &pe) {
		writeJSON(w, http.StatusServiceUnavailable, models.ErrorResponse{
			Error: "Submission was not recorded, please retry",
		})
		return
	}

	writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: fallback})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func intQueryParam(query url.Values, key string, defaultVal int) int {
	s := query.Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	return v
}
