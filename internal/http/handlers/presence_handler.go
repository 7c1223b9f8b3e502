// README: Live status query handler.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fieldops/internal/modules/presence"
	"fieldops/internal/types"
)

type PresenceHandler struct {
	presence *presence.Service
}

func NewPresenceHandler(svc *presence.Service) *PresenceHandler {
	return &PresenceHandler{presence: svc}
}

// LiveStatus answers "what is each worker doing right now" for a
// comma-separated ids query.
func (h *PresenceHandler) LiveStatus(c *gin.Context) {
	raw := c.Query("ids")
	if raw == "" {
		writeError(c, http.StatusBadRequest, "missing ids")
		return
	}
	var ids []types.ID
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, types.ID(part))
		}
	}
	statuses, err := h.presence.List(c.Request.Context(), ids)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"workers": statuses})
}
