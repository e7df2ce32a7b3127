package controllers

import (
	"net/http"

	"github.com/gasflow/ops-console/api/middleware"
	"github.com/gasflow/ops-console/api/responses"
)

// Ping echoes the authenticated operator.
func Ping() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{
			"status":      "ok",
			"operator_id": middleware.OperatorIDFromContext(r.Context()),
			"role":        middleware.RoleFromContext(r.Context()),
		}
		if agency := middleware.AgencyIDFromContext(r.Context()); agency != "" {
			payload["agency_id"] = agency
		}
		responses.WriteSuccess(w, payload)
	}
}
