// README: Device token registration handler.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fieldops/internal/notify"
	"fieldops/internal/types"
)

type DeviceHandler struct {
	tokens *notify.PgTokenStore
}

func NewDeviceHandler(tokens *notify.PgTokenStore) *DeviceHandler {
	return &DeviceHandler{tokens: tokens}
}

type registerDeviceReq struct {
	Token string `json:"token"`
}

// Register stores or refreshes a device token. The refreshed
// last_used_at doubles as the presence recency signal.
func (h *DeviceHandler) Register(c *gin.Context) {
	var req registerDeviceReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		writeError(c, http.StatusBadRequest, "missing token")
		return
	}
	workerID := types.ID(c.Param("id"))
	if err := h.tokens.RegisterDevice(c.Request.Context(), workerID, req.Token, time.Now()); err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"worker_id": workerID, "registered": true})
}
