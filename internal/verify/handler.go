package verify

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/skillpath/backend/internal/models"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetIntegrity handles GET /integrity?user_id=<id>|all. With no user_id it
// verifies the caller's own account.
func (h *Handler) GetIntegrity(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("user_id")

	if target == "all" {
		reports, err := h.service.VerifyAll()
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to verify integrity"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"reports": reports,
			"checked": len(reports),
		})
		return
	}

	var userID int64
	if target == "" {
		uid, ok := r.Context().Value("user_id").(int64)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
			return
		}
		userID = uid
	} else {
		parsed, err := strconv.ParseInt(target, 10, 64)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid user_id"})
			return
		}
		userID = parsed
	}

	report, err := h.service.VerifyUser(userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to verify integrity"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
