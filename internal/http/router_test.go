// README: Router tests covering sweep triggers, worker actions, and auth gating.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"fieldops/internal/config"
	"fieldops/internal/infra"
	"fieldops/internal/modules/escalate"
	"fieldops/internal/modules/order"
	"fieldops/internal/modules/presence"
	"fieldops/internal/modules/reconcile"
	"fieldops/internal/notify"
	"fieldops/internal/types"
)

// stubTokenVerifier is a test double for infra.TokenVerifier.
type stubTokenVerifier struct {
	token *infra.FirebaseToken
	err   error
}

func (s *stubTokenVerifier) VerifyIDToken(_ context.Context, _ string) (*infra.FirebaseToken, error) {
	return s.token, s.err
}

type nullDispatcher struct{}

func (nullDispatcher) Notify(_ context.Context, recipients []types.ID, _, _ string, _ map[string]string) ([]notify.Result, error) {
	out := make([]notify.Result, 0, len(recipients))
	for _, id := range recipients {
		out = append(out, notify.Result{RecipientID: id, Success: true})
	}
	return out, nil
}

type stubPresenceReader struct {
	snaps []presence.Snapshot
}

func (r *stubPresenceReader) Snapshots(_ context.Context, _ []types.ID) ([]presence.Snapshot, error) {
	return r.snaps, nil
}

func sweepConfig() config.SweepConfig {
	return config.SweepConfig{
		ReminderCooldownMinutes: 5,
		MaxReminders:            3,
		ReadinessPenaltyPct:     10,
		MovementPenaltyPct:      5,
	}
}

// buildTestRouter wires the real router over an in-memory store.
func buildTestRouter(store *order.MemStore, verifier infra.TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(RouterDeps{
		Order:     order.NewService(store),
		Reconcile: reconcile.NewService(store),
		Escalate:  escalate.NewService(store, nullDispatcher{}, nil, sweepConfig()),
		Presence: presence.NewService(&stubPresenceReader{snaps: []presence.Snapshot{
			{WorkerID: "w1", IsActive: true},
		}}, config.PresenceConfig{FreshnessMinutes: 30}),
		Verifier: verifier,
	})
}

func doRequest(r *gin.Engine, method, path string, body interface{}, authHeader string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r := buildTestRouter(order.NewMemStore(), nil)
	w := doRequest(r, http.MethodGet, "/health", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

// TestWorkerRoutes_Unauthenticated verifies that worker routes reject
// requests when a verifier is configured and the token is bad.
func TestWorkerRoutes_Unauthenticated(t *testing.T) {
	r := buildTestRouter(order.NewMemStore(), &stubTokenVerifier{err: errors.New("no token")})
	w := doRequest(r, http.MethodGet, "/api/orders/o1", nil, "Bearer badtoken")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

// TestAcceptFlow walks accept through the real service: the order is
// promoted and the readiness check opens.
func TestAcceptFlow(t *testing.T) {
	store := order.NewMemStore()
	store.PutOrder(&order.Order{ID: "o1", Status: order.StatusPending, BookingDate: "2026-03-20", BookingTime: "10:00"})
	store.PutAssignment(&order.Assignment{OrderID: "o1", SpecialistID: "w1"})
	r := buildTestRouter(store, nil)

	w := doRequest(r, http.MethodPost, "/api/orders/o1/assignments/w1/accept", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("accept: expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	w = doRequest(r, http.MethodGet, "/api/orders/o1", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", w.Code)
	}
	var got struct {
		Status    string `json:"status"`
		Readiness string `json:"readiness"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != "upcoming" {
		t.Errorf("status = %q, want upcoming", got.Status)
	}
	if got.Readiness != "pending" {
		t.Errorf("readiness = %q, want pending", got.Readiness)
	}
}

func TestGetUnknownOrder(t *testing.T) {
	r := buildTestRouter(order.NewMemStore(), nil)
	w := doRequest(r, http.MethodGet, "/api/orders/missing", nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestStageRejectsBadBody(t *testing.T) {
	store := order.NewMemStore()
	store.PutOrder(&order.Order{ID: "o1", Status: order.StatusInProgress, TrackingStage: order.StageMoving})
	r := buildTestRouter(store, nil)

	w := doRequest(r, http.MethodPost, "/api/orders/o1/stage", map[string]any{}, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// TestReconcileSweep triggers a pass over a payment/status desync and
// checks the summary payload.
func TestReconcileSweep(t *testing.T) {
	store := order.NewMemStore()
	store.PutOrder(&order.Order{ID: "o1", Status: order.StatusInProgress, TrackingStage: order.StagePaymentReceived})
	r := buildTestRouter(store, nil)

	w := doRequest(r, http.MethodPost, "/api/sweeps/reconcile", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var got struct {
		Success    bool           `json:"success"`
		TotalFixed int            `json:"totalFixed"`
		Categories map[string]int `json:"categories"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Success {
		t.Error("expected success")
	}
	if got.TotalFixed != 1 {
		t.Errorf("totalFixed = %d, want 1", got.TotalFixed)
	}
	if got.Categories["payment_status"] != 1 {
		t.Errorf("payment_status counter = %d, want 1", got.Categories["payment_status"])
	}
}

// TestEscalateSweep triggers a pass over one order awaiting its
// readiness answer.
func TestEscalateSweep(t *testing.T) {
	store := order.NewMemStore()
	store.PutOrder(&order.Order{
		ID:          "o1",
		Status:      order.StatusUpcoming,
		Readiness:   order.ReadinessPending,
		BookingDate: "2026-03-20",
		BookingTime: "10:00",
	})
	accepted := true
	store.PutAssignment(&order.Assignment{OrderID: "o1", SpecialistID: "w1", IsAccepted: &accepted})
	r := buildTestRouter(store, nil)

	w := doRequest(r, http.MethodPost, "/api/sweeps/escalate", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var got struct {
		Success          bool `json:"success"`
		Skipped          bool `json:"skipped"`
		PendingReminders int  `json:"pendingReminders"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Success || got.Skipped {
		t.Errorf("success = %v, skipped = %v", got.Success, got.Skipped)
	}
	if got.PendingReminders != 1 {
		t.Errorf("pendingReminders = %d, want 1", got.PendingReminders)
	}
}

func TestLiveStatusRequiresIDs(t *testing.T) {
	r := buildTestRouter(order.NewMemStore(), nil)
	w := doRequest(r, http.MethodGet, "/api/workers/live-status", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestLiveStatus(t *testing.T) {
	r := buildTestRouter(order.NewMemStore(), nil)
	w := doRequest(r, http.MethodGet, "/api/workers/live-status?ids=w1", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got struct {
		Workers []struct {
			WorkerID string `json:"workerId"`
			Status   string `json:"status"`
		} `json:"workers"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Workers) != 1 || got.Workers[0].Status != "not_logged_in" {
		t.Errorf("unexpected payload: %s", w.Body.String())
	}
}
