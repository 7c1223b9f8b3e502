// README: Sweep trigger handlers for the reconciler and the escalation scheduler.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldops/internal/modules/escalate"
	"fieldops/internal/modules/reconcile"
	"fieldops/internal/types"
)

type SweepHandler struct {
	reconciler *reconcile.Service
	escalator  *escalate.Service
}

func NewSweepHandler(reconciler *reconcile.Service, escalator *escalate.Service) *SweepHandler {
	return &SweepHandler{reconciler: reconciler, escalator: escalator}
}

// Reconcile triggers one reconciliation pass. No body required; an
// optional order_id query targets a single order re-check.
func (h *SweepHandler) Reconcile(c *gin.Context) {
	var filter *types.ID
	if raw := c.Query("order_id"); raw != "" {
		id := types.ID(raw)
		filter = &id
	}
	sum, err := h.reconciler.Run(c.Request.Context(), filter)
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"success":                 true,
		"timestamp":               sum.Timestamp,
		"totalFixed":              sum.TotalFixed,
		"totalErrors":             sum.TotalErrors,
		"categories":              sum.Categories,
		"stalePointersCleared":    sum.StalePointersCleared,
		"duplicateAcceptsDemoted": sum.DuplicateAcceptsDemoted,
		"fixes":                   sum.Fixes,
		"errors":                  sum.Errors,
	})
}

// Escalate triggers one escalation pass. No body required.
func (h *SweepHandler) Escalate(c *gin.Context) {
	sum, err := h.escalator.Run(c.Request.Context())
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"success":           true,
		"skipped":           sum.Skipped,
		"pendingReminders":  sum.PendingReminders,
		"movementReminders": sum.MovementReminders,
		"results":           sum.Results,
	})
}
