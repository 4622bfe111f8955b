package audit

import (
	"errors"
	"net/http"
	"time"

	"github.com/klokku/sharecal/internal/rest"
	"github.com/klokku/sharecal/pkg/user"
	log "github.com/sirupsen/logrus"
)

type EntryDTO struct {
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Status     int       `json:"status"`
	IpAddress  string    `json:"ipAddress,omitempty"`
	DurationMs int64     `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// ListCurrentUserEntries godoc
// @Summary Recent requests of the current user
// @Tags Audit
// @Produce json
// @Param per_page query int false "Number of entries, at most 100"
// @Success 200 {array} EntryDTO
// @Router /api/user/current/audit [get]
func (h *Handler) ListCurrentUserEntries(w http.ResponseWriter, r *http.Request) {
	userId, err := user.CurrentId(r.Context())
	if err != nil {
		if errors.Is(err, user.ErrNoUser) {
			rest.WriteError(w, http.StatusUnauthorized, "Not authenticated", err.Error())
			return
		}
		log.Errorf("failed to read current user: %v", err)
		rest.WriteError(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}

	entries, err := h.repo.ListForUser(r.Context(), userId, rest.PageFromRequest(r).PerPage)
	if err != nil {
		rest.WriteError(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}
	dtos := make([]EntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, EntryDTO{
			Method:     e.Method,
			Path:       e.Path,
			Status:     e.Status,
			IpAddress:  e.IpAddress,
			DurationMs: e.Duration.Milliseconds(),
			CreatedAt:  e.CreatedAt,
		})
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}
