package controllers

import (
	"net/http"

	"github.com/gasflow/ops-console/api/responses"
	"github.com/gasflow/ops-console/api/validators"
	"github.com/gasflow/ops-console/internal/dialogs"
	"github.com/gasflow/ops-console/internal/orders"
	pkgerrors "github.com/gasflow/ops-console/pkg/errors"
	"github.com/gasflow/ops-console/pkg/logger"
	"github.com/gasflow/ops-console/pkg/pagination"
)

type assignRequest struct {
	AgentID string `json:"agentId" validate:"required,max=64"`
}

type reasonRequest struct {
	Reason      string `json:"reason" validate:"required,max=200"`
	OtherReason string `json:"otherReason" validate:"max=500"`
}

func (r reasonRequest) form() dialogs.ReasonForm {
	return dialogs.ReasonForm{
		Selected: validators.SanitizeString(r.Reason, 200),
		Other:    validators.SanitizeString(r.OtherReason, maxNoteLen),
	}
}

type reviewRequest struct {
	Approve *bool  `json:"approve" validate:"required"`
	Note    string `json:"note" validate:"max=500"`
}

// assignResponse carries the saga outcome together with the order as it now
// stands.
type assignResponse struct {
	Outcome dialogs.AssignOutcome `json:"outcome"`
	Order   *orders.Order         `json:"order,omitempty"`
}

func AssignDialog(view OrderView, svc ActionDialogs, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, ok := loadOrder(w, r, view, logg)
		if !ok {
			return
		}
		dialog, err := svc.OpenAssign(order)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dialog)
	}
}

// AssignAgent runs the assign saga. A partially applied assignment answers
// with the typed error; the compensation record is listed under
// /assignments/pending.
func AssignAgent(view OrderView, svc ActionDialogs, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req assignRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, ok := loadOrder(w, r, view, logg)
		if !ok {
			return
		}

		outcome, err := svc.Assign(r.Context(), order, req.AgentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeAssignOutcome(w, r, view, logg, order.ID, outcome)
	}
}

func RetryAssignAdvance(view OrderView, svc ActionDialogs, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, ok := loadOrder(w, r, view, logg)
		if !ok {
			return
		}
		outcome, err := svc.RetryAdvance(r.Context(), order)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeAssignOutcome(w, r, view, logg, order.ID, outcome)
	}
}

func CancelDialog(view OrderView, svc ActionDialogs, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, ok := loadOrder(w, r, view, logg)
		if !ok {
			return
		}
		dialog, err := svc.OpenCancel(order)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dialog)
	}
}

func CancelOrder(view OrderView, svc ActionDialogs, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reasonRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, ok := loadOrder(w, r, view, logg)
		if !ok {
			return
		}
		if err := svc.Cancel(r.Context(), order, req.form()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeFreshOrder(w, r, view, logg, order)
	}
}

func ReturnDialog(view OrderView, svc ActionDialogs, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, ok := loadOrder(w, r, view, logg)
		if !ok {
			return
		}
		dialog, err := svc.OpenReturn(order)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dialog)
	}
}

func ReturnOrder(view OrderView, svc ActionDialogs, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reasonRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, ok := loadOrder(w, r, view, logg)
		if !ok {
			return
		}
		if err := svc.Return(r.Context(), order, req.form()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeFreshOrder(w, r, view, logg, order)
	}
}

func ReviewReturn(view OrderView, svc ActionDialogs, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reviewRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, ok := loadOrder(w, r, view, logg)
		if !ok {
			return
		}
		note := validators.SanitizeString(req.Note, maxNoteLen)
		if err := svc.ReviewReturn(r.Context(), order, *req.Approve, note); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeFreshOrder(w, r, view, logg, order)
	}
}

// PendingAdvances lists assignments whose status step still has to be retried.
func PendingAdvances(svc ActionDialogs, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dialogs unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.PendingAdvances(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func writeAssignOutcome(w http.ResponseWriter, r *http.Request, view OrderView, logg *logger.Logger, id string, outcome dialogs.AssignOutcome) {
	resp := assignResponse{Outcome: outcome}
	order, err := view.Resolve(r.Context(), id)
	if err == nil {
		resp.Order = &order
	} else if logg != nil {
		logg.Warn(logg.WithOrderID(r.Context(), id), "re-reading order after assignment failed")
	}
	responses.WriteSuccess(w, resp)
}
