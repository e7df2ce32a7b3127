package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gasflow/ops-console/internal/agents"
	"github.com/gasflow/ops-console/internal/orders"
	"github.com/gasflow/ops-console/pkg/enums"
	pkgerrors "github.com/gasflow/ops-console/pkg/errors"
	"github.com/gasflow/ops-console/pkg/pagination"
)

const (
	ordersPath = "/api/admin/orders"
	agentsPath = "/api/admin/agents"

	OpListOrders      = "list_orders"
	OpGetOrder        = "get_order"
	OpSetStatus       = "set_status"
	OpAssignAgent     = "assign_agent"
	OpPaymentReceived = "payment_received"
	OpCountOrders     = "count_orders"
	OpExportOrders    = "export_orders"
	OpListAgents      = "list_agents"
)

// ListQuery is one page request against the order list.
type ListQuery struct {
	Filter orders.Filter
	Page   int
	Limit  int
}

// Values encodes the query in the backend's vocabulary.
func (q ListQuery) Values() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(pagination.NormalizePage(q.Page)))
	limit := q.Limit
	if limit <= 0 {
		limit = pagination.DefaultLimit
	}
	v.Set("limit", strconv.Itoa(limit))
	if status, ok := q.Filter.EffectiveTab().BackendStatus(); ok {
		v.Set("status", status.String())
	}
	if q.Filter.Search != "" {
		v.Set("search", q.Filter.Search)
	}
	if !q.Filter.StartDate.IsZero() {
		v.Set("startDate", q.Filter.StartDate.Format(orders.DateLayout))
	}
	if !q.Filter.EndDate.IsZero() {
		v.Set("endDate", q.Filter.EndDate.Format(orders.DateLayout))
	}
	return v
}

// OrderList is one page of orders.
type OrderList struct {
	Orders     []orders.Order        `json:"orders"`
	Pagination pagination.Pagination `json:"pagination"`
}

func (c *Client) ListOrders(ctx context.Context, q ListQuery) (*OrderList, error) {
	resp, err := c.call(ctx, OpListOrders, request{method: http.MethodGet, path: ordersPath, query: q.Values()})
	if err != nil {
		return nil, err
	}
	list, err := decodeOrderList(resp.Body())
	if err != nil {
		return nil, err
	}
	for _, o := range list.Orders {
		if verr := o.CheckTimeline(); verr != nil {
			c.logg.Warn(c.logg.WithOrderID(ctx, o.ID), "order timeline inconsistent: "+verr.Error())
		}
	}
	return list, nil
}

func (c *Client) GetOrder(ctx context.Context, id string) (*orders.Order, error) {
	path, err := orderPath(id, "")
	if err != nil {
		return nil, err
	}
	resp, err := c.call(ctx, OpGetOrder, request{method: http.MethodGet, path: path})
	if err != nil {
		return nil, err
	}
	return decodeOrder(resp.Body())
}

type statusRequest struct {
	Status enums.OrderStatus `json:"status"`
	Notes  string            `json:"notes,omitempty"`
}

// SetStatus asks the backend to move the order to status.
func (c *Client) SetStatus(ctx context.Context, id string, status enums.OrderStatus, notes string) (*orders.Order, error) {
	path, err := orderPath(id, "status")
	if err != nil {
		return nil, err
	}
	resp, err := c.call(ctx, OpSetStatus, request{
		method: http.MethodPut,
		path:   path,
		body:   statusRequest{Status: status, Notes: notes},
	})
	if err != nil {
		return nil, err
	}
	return decodeOrder(resp.Body())
}

type assignRequest struct {
	AgentID string `json:"agentId"`
}

func (c *Client) AssignAgent(ctx context.Context, id, agentID string) (*orders.Order, error) {
	if strings.TrimSpace(agentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent is required")
	}
	path, err := orderPath(id, "assign")
	if err != nil {
		return nil, err
	}
	resp, err := c.call(ctx, OpAssignAgent, request{
		method: http.MethodPut,
		path:   path,
		body:   assignRequest{AgentID: agentID},
	})
	if err != nil {
		return nil, err
	}
	return decodeOrder(resp.Body())
}

type paymentRequest struct {
	PaymentReceived bool   `json:"paymentReceived"`
	Notes           string `json:"notes,omitempty"`
}

func (c *Client) SetPaymentReceived(ctx context.Context, id string, received bool, notes string) (*orders.Order, error) {
	path, err := orderPath(id, "payment-received")
	if err != nil {
		return nil, err
	}
	resp, err := c.call(ctx, OpPaymentReceived, request{
		method: http.MethodPut,
		path:   path,
		body:   paymentRequest{PaymentReceived: received, Notes: notes},
	})
	if err != nil {
		return nil, err
	}
	return decodeOrder(resp.Body())
}

// CountOrders returns the total number of orders the filter admits under tab.
func (c *Client) CountOrders(ctx context.Context, filter orders.Filter, tab enums.StatusTab) (int, error) {
	q := ListQuery{Filter: filter.WithTab(tab), Page: 1, Limit: 1}
	resp, err := c.call(ctx, OpCountOrders, request{method: http.MethodGet, path: ordersPath, query: q.Values()})
	if err != nil {
		return 0, err
	}
	list, err := decodeOrderList(resp.Body())
	if err != nil {
		return 0, err
	}
	return list.Pagination.TotalItems, nil
}

// ExportOrders pulls one export-sized page and renders it as CSV. A backend
// that answers with text/csv is passed through unchanged.
func (c *Client) ExportOrders(ctx context.Context, filter orders.Filter) ([]byte, error) {
	q := ListQuery{Filter: filter, Page: 1, Limit: c.exportLimit}
	values := q.Values()
	values.Set("export", "true")

	resp, err := c.call(ctx, OpExportOrders, request{method: http.MethodGet, path: ordersPath, query: values})
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(strings.ToLower(resp.Header().Get("Content-Type")), "text/csv") {
		return resp.Body(), nil
	}
	list, err := decodeOrderList(resp.Body())
	if err != nil {
		return nil, err
	}
	if list.Pagination.TotalItems > len(list.Orders) {
		ctx = c.logg.WithFields(ctx, map[string]any{
			"exported": len(list.Orders),
			"total":    list.Pagination.TotalItems,
		})
		c.logg.Warn(ctx, "export truncated at page size")
	}
	return c.csv.Render(list.Orders), nil
}

func (c *Client) ListAgents(ctx context.Context, q agents.Query) ([]agents.Agent, error) {
	values := url.Values{}
	if q.Status != "" {
		values.Set("status", q.Status.String())
	}
	resp, err := c.call(ctx, OpListAgents, request{method: http.MethodGet, path: agentsPath, query: values})
	if err != nil {
		return nil, err
	}
	return decodeAgents(resp.Body())
}

func orderPath(id, action string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	path := ordersPath + "/" + url.PathEscape(id)
	if action != "" {
		path += "/" + action
	}
	return path, nil
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// unwrap returns the `data` member when the body is enveloped.
func unwrap(body []byte) json.RawMessage {
	var env envelope
	if json.Unmarshal(body, &env) == nil && len(env.Data) > 0 && string(env.Data) != "null" {
		return env.Data
	}
	return body
}

func decodeOrderList(body []byte) (*OrderList, error) {
	var list OrderList
	if err := json.Unmarshal(unwrap(body), &list); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "malformed order list")
	}
	if list.Orders == nil {
		list.Orders = []orders.Order{}
	}
	return &list, nil
}

func decodeOrder(body []byte) (*orders.Order, error) {
	raw := unwrap(body)

	var wrapped struct {
		Order *orders.Order `json:"order"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "malformed order")
	}
	if wrapped.Order != nil {
		return wrapped.Order, nil
	}

	var o orders.Order
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "malformed order")
	}
	if o.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "order response carried no order")
	}
	return &o, nil
}

func decodeAgents(body []byte) ([]agents.Agent, error) {
	raw := unwrap(body)

	var list []agents.Agent
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Agents []agents.Agent `json:"agents"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "malformed agent list")
	}
	if wrapped.Agents == nil {
		wrapped.Agents = []agents.Agent{}
	}
	return wrapped.Agents, nil
}
