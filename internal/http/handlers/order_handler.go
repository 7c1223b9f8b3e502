// README: Order client-action handlers (accept/reject, readiness answer, stage advance).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldops/internal/modules/order"
	"fieldops/internal/types"
)

type OrderHandler struct {
	order *order.Service
}

func NewOrderHandler(svc *order.Service) *OrderHandler {
	return &OrderHandler{order: svc}
}

func (h *OrderHandler) Accept(c *gin.Context) {
	err := h.order.Accept(c.Request.Context(), order.AcceptCommand{
		OrderID:      types.ID(c.Param("id")),
		SpecialistID: types.ID(c.Param("worker")),
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": c.Param("id"), "accepted": true})
}

func (h *OrderHandler) Reject(c *gin.Context) {
	err := h.order.Reject(c.Request.Context(), order.RejectCommand{
		OrderID:      types.ID(c.Param("id")),
		SpecialistID: types.ID(c.Param("worker")),
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": c.Param("id"), "accepted": false})
}

type readinessReq struct {
	SpecialistID string `json:"specialist_id"`
	Ready        *bool  `json:"ready"`
}

func (h *OrderHandler) AnswerReadiness(c *gin.Context) {
	var req readinessReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Ready == nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.order.AnswerReadiness(c.Request.Context(), order.ReadinessCommand{
		OrderID:      types.ID(c.Param("id")),
		SpecialistID: types.ID(req.SpecialistID),
		Ready:        *req.Ready,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": c.Param("id"), "ready": *req.Ready})
}

type stageReq struct {
	Stage          string `json:"stage"`
	WaitingMinutes int    `json:"waiting_minutes"`
}

func (h *OrderHandler) AdvanceStage(c *gin.Context) {
	var req stageReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Stage == "" {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.order.AdvanceStage(c.Request.Context(), order.StageCommand{
		OrderID:        types.ID(c.Param("id")),
		Stage:          order.TrackingStage(req.Stage),
		WaitingMinutes: req.WaitingMinutes,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": c.Param("id"), "stage": req.Stage})
}

func (h *OrderHandler) Get(c *gin.Context) {
	o, err := h.order.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"order_id":       o.ID,
		"status":         o.Status,
		"tracking_stage": o.TrackingStage,
		"readiness":      o.Readiness,
		"booking_date":   o.BookingDate,
		"booking_time":   o.BookingTime,
	})
}
