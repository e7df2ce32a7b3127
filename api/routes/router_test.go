package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gasflow/ops-console/internal/agents"
	"github.com/gasflow/ops-console/internal/coordinator"
	"github.com/gasflow/ops-console/internal/dashboard"
	"github.com/gasflow/ops-console/internal/dialogs"
	"github.com/gasflow/ops-console/internal/gateway"
	"github.com/gasflow/ops-console/internal/notices"
	"github.com/gasflow/ops-console/internal/orders"
	"github.com/gasflow/ops-console/pkg/auth"
	"github.com/gasflow/ops-console/pkg/config"
	"github.com/gasflow/ops-console/pkg/enums"
	pkgerrors "github.com/gasflow/ops-console/pkg/errors"
	"github.com/gasflow/ops-console/pkg/idempotency"
	"github.com/gasflow/ops-console/pkg/logger"
	"github.com/gasflow/ops-console/pkg/metrics"
	"github.com/gasflow/ops-console/pkg/pagination"
)

type memoryBackend struct {
	mu     sync.Mutex
	orders map[string]orders.Order
}

func (b *memoryBackend) ListOrders(ctx context.Context, q gateway.ListQuery) (*gateway.OrderList, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []orders.Order{}
	for _, o := range b.orders {
		if q.Filter.Admits(o) {
			out = append(out, o.Clone())
		}
	}
	return &gateway.OrderList{Orders: out, Pagination: pagination.Pagination{CurrentPage: 1, TotalPages: 1, TotalItems: len(out)}}, nil
}

func (b *memoryBackend) GetOrder(ctx context.Context, id string) (*orders.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Order not found")
	}
	return &o, nil
}

func (b *memoryBackend) SetStatus(ctx context.Context, id string, status enums.OrderStatus, notes string) (*orders.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o := b.orders[id]
	o.Status = status
	b.orders[id] = o
	return &o, nil
}

func (b *memoryBackend) AssignAgent(ctx context.Context, id, agentID string) (*orders.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o := b.orders[id]
	o.AssignedAgent = &orders.AgentRef{ID: agentID}
	b.orders[id] = o
	return &o, nil
}

func (b *memoryBackend) SetPaymentReceived(ctx context.Context, id string, received bool, notes string) (*orders.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o := b.orders[id]
	o.PaymentReceived = received
	b.orders[id] = o
	return &o, nil
}

func (b *memoryBackend) CountOrders(ctx context.Context, filter orders.Filter, tab enums.StatusTab) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, o := range b.orders {
		if filter.WithTab(tab).Admits(o) {
			n++
		}
	}
	return n, nil
}

type exporterStub struct{ filter orders.Filter }

func (e *exporterStub) ExportOrders(ctx context.Context, filter orders.Filter) ([]byte, error) {
	e.filter = filter
	return []byte("\"Order ID\"\n"), nil
}

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "console"}

type harness struct {
	handler  http.Handler
	backend  *memoryBackend
	exporter *exporterStub
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	backend := &memoryBackend{orders: map[string]orders.Order{
		"ord-1": {
			ID:           "ord-1",
			OrderNumber:  "GAS-2026-00000001",
			Status:       enums.OrderStatusPending,
			DeliveryMode: enums.DeliveryModeHomeDelivery,
			Agency:       &orders.AgencyRef{ID: "agency-1"},
			CreatedAt:    time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC),
		},
	}}

	board := notices.NewBoard(10, nil)
	coord := coordinator.New(backend,
		coordinator.WithNotifier(board),
		coordinator.WithDebounce(coordinator.DefaultWindow, coordinator.NewManualClock(time.Now())),
	)
	t.Cleanup(coord.Close)

	roster := agents.NewRoster(nil, nil)
	roster.Apply(agents.Patch{Full: &agents.Agent{ID: "A1", Name: "Otieno", Status: enums.AgentStatusOnline}})

	dash := dashboard.New(backend, dashboard.WithAgents(roster))
	t.Cleanup(dash.Close)

	exporter := &exporterStub{}
	reg := prometheus.NewRegistry()
	metrics.NewPushMetrics(reg).Inc("order:created", metrics.OutcomeApplied)

	cfg := &config.Config{App: config.AppConfig{Env: "test"}, JWT: testJWT}
	handler := NewRouter(cfg, logger.Nop(), Services{
		Orders:      coord,
		Dialogs:     dialogs.NewService(backend, coord, roster),
		Exporter:    exporter,
		Agents:      roster,
		Dashboard:   dash,
		Notices:     board,
		Idempotency: idempotency.NewMemoryStore(),
		Gatherer:    reg,
	})
	return &harness{handler: handler, backend: backend, exporter: exporter}
}

func token(t *testing.T, role enums.OperatorRole, agencyID string) string {
	t.Helper()
	tok, err := auth.MintOperatorToken(testJWT, time.Now(), time.Hour, auth.OperatorTokenPayload{
		OperatorID: "op-1",
		Role:       role,
		AgencyID:   agencyID,
	})
	require.NoError(t, err)
	return tok
}

func (h *harness) do(t *testing.T, method, path, tok, body, key string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	resp := httptest.NewRecorder()
	h.handler.ServeHTTP(resp, req)
	return resp
}

func decodeData(t *testing.T, resp *httptest.ResponseRecorder, dest any) {
	t.Helper()
	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dest))
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodGet, "/health/live", "", "", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "test", resp.Header().Get("X-Console-Env"))

	resp = h.do(t, http.MethodGet, "/health/ready", "", "", "")
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = h.do(t, http.MethodGet, "/metrics", "", "", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "push_events_total")
}

func TestOrdersRequireOperatorToken(t *testing.T) {
	h := newHarness(t)
	resp := h.do(t, http.MethodGet, "/api/v1/orders", "", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestListOrdersReturnsView(t *testing.T) {
	h := newHarness(t)
	resp := h.do(t, http.MethodGet, "/api/v1/orders?tab=pending", token(t, enums.OperatorRoleAdmin, ""), "", "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var view coordinator.View
	decodeData(t, resp, &view)
	require.Len(t, view.Orders, 1)
	assert.Equal(t, "ord-1", view.Orders[0].ID)
	assert.Equal(t, enums.StatusTabPending, view.Filter.Tab)
	assert.Equal(t, 1, view.StatusCounts[enums.StatusTabPending])
	assert.Equal(t, 0, view.StatusCounts[enums.StatusTabDelivered])

	resp = h.do(t, http.MethodGet, "/api/v1/orders?tab=shipped", token(t, enums.OperatorRoleAdmin, ""), "", "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCancelRequiresIdempotencyKeyAndReason(t *testing.T) {
	h := newHarness(t)
	tok := token(t, enums.OperatorRoleAdmin, "")

	resp := h.do(t, http.MethodPost, "/api/v1/orders/ord-1/cancel", tok, `{"reason":"Item out of stock"}`, "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = h.do(t, http.MethodPost, "/api/v1/orders/ord-1/cancel", tok, `{"reason":"Other","otherReason":" "}`, "k-0")
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = h.do(t, http.MethodPost, "/api/v1/orders/ord-1/cancel", tok, `{"reason":"Item out of stock"}`, "k-1")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var order orders.Order
	decodeData(t, resp, &order)
	assert.Equal(t, enums.OrderStatusCancelled, order.Status)

	// replay answers from the stored response
	resp = h.do(t, http.MethodPost, "/api/v1/orders/ord-1/cancel", tok, `{"reason":"Item out of stock"}`, "k-1")
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestAssignRunsSaga(t *testing.T) {
	h := newHarness(t)
	tok := token(t, enums.OperatorRoleAdmin, "")

	resp := h.do(t, http.MethodGet, "/api/v1/orders/ord-1/assign", tok, "", "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var dialog dialogs.AssignDialog
	decodeData(t, resp, &dialog)
	require.Len(t, dialog.Agents, 1)

	resp = h.do(t, http.MethodPost, "/api/v1/orders/ord-1/assign", tok, `{"agentId":"A1"}`, "assign-1")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var out struct {
		Outcome dialogs.AssignOutcome `json:"outcome"`
		Order   orders.Order          `json:"order"`
	}
	decodeData(t, resp, &out)
	assert.Equal(t, dialogs.StateAssigned, out.Outcome.State)
	assert.Equal(t, enums.OrderStatusAssigned, out.Order.Status)
	require.NotNil(t, out.Order.AssignedAgent)
	assert.Equal(t, "A1", out.Order.AssignedAgent.ID)
}

func TestIllegalTransitionIsStateConflict(t *testing.T) {
	h := newHarness(t)
	resp := h.do(t, http.MethodPost, "/api/v1/orders/ord-1/status", token(t, enums.OperatorRoleAdmin, ""), `{"status":"delivered"}`, "s-1")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Contains(t, resp.Body.String(), string(pkgerrors.CodeStateConflict))
}

func TestAgencyOperatorIsConfinedToOwnOrders(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodGet, "/api/v1/orders/ord-1", token(t, enums.OperatorRoleAgency, "agency-2"), "", "")
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = h.do(t, http.MethodGet, "/api/v1/orders/ord-1", token(t, enums.OperatorRoleAgency, "agency-1"), "", "")
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestExportUsesQueryFilter(t *testing.T) {
	h := newHarness(t)
	resp := h.do(t, http.MethodGet, "/api/v1/orders/export?tab=delivered&search=kim", token(t, enums.OperatorRoleAdmin, ""), "", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header().Get("Content-Type"))
	assert.Equal(t, enums.StatusTabDelivered, h.exporter.filter.Tab)
	assert.Equal(t, "kim", h.exporter.filter.Search)
}

func TestDashboardAgentsAndNotices(t *testing.T) {
	h := newHarness(t)
	tok := token(t, enums.OperatorRoleAdmin, "")

	resp := h.do(t, http.MethodGet, "/api/v1/agents/online", tok, "", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var online []agents.Agent
	decodeData(t, resp, &online)
	assert.Len(t, online, 1)

	resp = h.do(t, http.MethodGet, "/api/v1/dashboard", tok, "", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var summary dashboard.Summary
	decodeData(t, resp, &summary)
	assert.Equal(t, 1, summary.OnlineAgents)

	h.do(t, http.MethodPost, "/api/v1/orders/ord-1/status", tok, `{"status":"confirmed"}`, "c-1")
	resp = h.do(t, http.MethodGet, "/api/v1/notices", tok, "", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var recent []notices.Notice
	decodeData(t, resp, &recent)
	require.NotEmpty(t, recent)
	assert.Equal(t, notices.LevelSuccess, recent[0].Level)

	resp = h.do(t, http.MethodGet, "/api/v1/assignments/pending", tok, "", "")
	assert.Equal(t, http.StatusOK, resp.Code)
}
