package middleware

import (
	"net/http"
	"strings"

	"github.com/gasflow/ops-console/api/responses"
	pkgAuth "github.com/gasflow/ops-console/pkg/auth"
	"github.com/gasflow/ops-console/pkg/config"
	"github.com/gasflow/ops-console/pkg/enums"
	pkgerrors "github.com/gasflow/ops-console/pkg/errors"
	"github.com/gasflow/ops-console/pkg/logger"
)

// Auth validates an operator bearer token and seeds the request context with
// its claims.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseOperatorToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			if claims.Role == enums.OperatorRoleAgency && strings.TrimSpace(claims.AgencyID) == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "agency operator without agency"))
				return
			}

			ctx := WithOperator(r.Context(), claims.OperatorID, string(claims.Role), claims.AgencyID)

			if logg != nil {
				ctx = logg.WithOperator(ctx, claims.OperatorID, string(claims.Role), claims.AgencyID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
