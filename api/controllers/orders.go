package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gasflow/ops-console/api/middleware"
	"github.com/gasflow/ops-console/api/responses"
	"github.com/gasflow/ops-console/api/validators"
	"github.com/gasflow/ops-console/internal/orders"
	"github.com/gasflow/ops-console/pkg/enums"
	pkgerrors "github.com/gasflow/ops-console/pkg/errors"
	"github.com/gasflow/ops-console/pkg/logger"
)

const maxNoteLen = 500

type statusRequest struct {
	Status string `json:"status" validate:"required,order_status"`
	Notes  string `json:"notes" validate:"max=500"`
}

type paymentRequest struct {
	Received *bool  `json:"received" validate:"required"`
	Notes    string `json:"notes" validate:"max=500"`
}

// ListOrders loads one page for the filter in the query string and returns
// the resulting view.
func ListOrders(view OrderView, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if view == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order view unavailable"))
			return
		}

		filter, err := filterFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParseQueryInt(r, "page", 1, 1, 100000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if _, err := view.LoadPage(r.Context(), filter, page); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := view.RefreshStatusCounts(r.Context()); err != nil && logg != nil {
			logg.Warn(r.Context(), "status counts refresh failed: "+err.Error())
		}
		responses.WriteSuccess(w, view.Snapshot())
	}
}

// CurrentView returns the working set without fetching.
func CurrentView(view OrderView, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if view == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order view unavailable"))
			return
		}
		responses.WriteSuccess(w, view.Snapshot())
	}
}

func GetOrder(view OrderView, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, ok := loadOrder(w, r, view, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// UpdateOrderStatus moves an order along the lifecycle.
func UpdateOrderStatus(view OrderView, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req statusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, ok := loadOrder(w, r, view, logg)
		if !ok {
			return
		}

		notes := validators.SanitizeString(req.Notes, maxNoteLen)
		if err := view.MutateStatus(r.Context(), order, enums.OrderStatus(req.Status), notes); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeFreshOrder(w, r, view, logg, order)
	}
}

// RecordPayment marks cash collected on a pickup order.
func RecordPayment(view OrderView, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req paymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, ok := loadOrder(w, r, view, logg)
		if !ok {
			return
		}

		notes := validators.SanitizeString(req.Notes, maxNoteLen)
		if err := view.SetPaymentReceived(r.Context(), order, *req.Received, notes); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeFreshOrder(w, r, view, logg, order)
	}
}

func filterFromQuery(r *http.Request) (orders.Filter, error) {
	q := r.URL.Query()
	return orders.NewFilter(q.Get("tab"), validators.QueryText(r, "search"), q.Get("startDate"), q.Get("endDate"))
}

// loadOrder resolves the order named in the path and checks the operator may
// act on it. It writes the error response itself.
func loadOrder(w http.ResponseWriter, r *http.Request, view OrderView, logg *logger.Logger) (orders.Order, bool) {
	if view == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order view unavailable"))
		return orders.Order{}, false
	}
	id := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if id == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id is required"))
		return orders.Order{}, false
	}

	ctx := r.Context()
	if logg != nil {
		ctx = logg.WithOrderID(ctx, id)
	}
	order, err := view.Resolve(ctx, id)
	if err != nil {
		responses.WriteError(ctx, logg, w, err)
		return orders.Order{}, false
	}
	if err := authorizeOrder(r, order); err != nil {
		responses.WriteError(ctx, logg, w, err)
		return orders.Order{}, false
	}
	return order, true
}

// authorizeOrder confines agency operators to their own agency's orders.
func authorizeOrder(r *http.Request, order orders.Order) error {
	if middleware.RoleFromContext(r.Context()) != string(enums.OperatorRoleAgency) {
		return nil
	}
	agencyID := middleware.AgencyIDFromContext(r.Context())
	if order.Agency == nil || order.Agency.ID != agencyID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another agency")
	}
	return nil
}

// writeFreshOrder answers a mutation with the order as it now stands. The
// mutation already succeeded, so a failed re-read falls back to the old copy.
func writeFreshOrder(w http.ResponseWriter, r *http.Request, view OrderView, logg *logger.Logger, before orders.Order) {
	after, err := view.Resolve(r.Context(), before.ID)
	if err != nil {
		if logg != nil {
			logg.Warn(logg.WithOrderID(r.Context(), before.ID), "re-reading order after mutation failed")
		}
		after = before
	}
	responses.WriteSuccess(w, after)
}
