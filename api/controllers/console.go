package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gasflow/ops-console/api/responses"
	"github.com/gasflow/ops-console/internal/agents"
	"github.com/gasflow/ops-console/internal/orders"
	pkgerrors "github.com/gasflow/ops-console/pkg/errors"
	"github.com/gasflow/ops-console/pkg/logger"
)

// ExportOrders downloads the orders matching the query filter as CSV. With no
// filter parameters the active view filter is used.
func ExportOrders(view OrderView, exporter Exporter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if exporter == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "export unavailable"))
			return
		}

		var filter orders.Filter
		if hasFilterParams(r) || view == nil {
			f, err := filterFromQuery(r)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			filter = f
		} else {
			filter = view.ActiveFilter()
		}

		body, err := exporter.ExportOrders(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCSV(w, fmt.Sprintf("orders-%s.csv", orders.FormatDate(time.Now())), body)
	}
}

func hasFilterParams(r *http.Request) bool {
	q := r.URL.Query()
	for _, key := range []string{"tab", "search", "startDate", "endDate"} {
		if q.Has(key) {
			return true
		}
	}
	return false
}

func OnlineAgentsList(dir OnlineAgents, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := []agents.Agent{}
		if dir != nil {
			list = dir.Online()
		}
		responses.WriteSuccess(w, list)
	}
}

func Dashboard(d DashboardReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dashboard unavailable"))
			return
		}
		responses.WriteSuccess(w, d.Summary())
	}
}

// RecentNotices returns the toast history, newest first.
func RecentNotices(board NoticeReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if board == nil {
			responses.WriteSuccess(w, []any{})
			return
		}
		responses.WriteSuccess(w, board.Recent())
	}
}
