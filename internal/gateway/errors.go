package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	pkgerrors "github.com/gasflow/ops-console/pkg/errors"
)

const fallbackMessage = "The order service could not complete the request"

// APIError is a non-2xx backend response.
type APIError struct {
	Operation string
	Status    int
	Code      string
	Message   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: backend returned %d: %s", e.Operation, e.Status, e.UpstreamMessage())
}

func (e *APIError) StatusCode() int {
	return e.Status
}

// UpstreamMessage is the server's message, or a generic fallback.
func (e *APIError) UpstreamMessage() string {
	if strings.TrimSpace(e.Message) != "" {
		return e.Message
	}
	return fallbackMessage
}

func (e *APIError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

func parseAPIError(op string, status int, body []byte) *APIError {
	apiErr := &APIError{Operation: op, Status: status}

	var payload struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Code    string          `json:"code"`
	}
	if len(body) == 0 || json.Unmarshal(body, &payload) != nil {
		return apiErr
	}
	apiErr.Message = payload.Message
	apiErr.Code = payload.Code

	// error is either a string or {code, message}.
	if len(payload.Error) > 0 {
		var text string
		if json.Unmarshal(payload.Error, &text) == nil {
			if apiErr.Message == "" {
				apiErr.Message = text
			} else if apiErr.Code == "" {
				apiErr.Code = text
			}
		} else {
			var nested struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			}
			if json.Unmarshal(payload.Error, &nested) == nil {
				if apiErr.Code == "" {
					apiErr.Code = nested.Code
				}
				if apiErr.Message == "" {
					apiErr.Message = nested.Message
				}
			}
		}
	}
	return apiErr
}

func classify(apiErr *APIError) error {
	switch apiErr.Status {
	case http.StatusUnauthorized:
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, apiErr, apiErr.UpstreamMessage())
	case http.StatusForbidden:
		return pkgerrors.Wrap(pkgerrors.CodeForbidden, apiErr, apiErr.UpstreamMessage())
	case http.StatusNotFound:
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, apiErr, apiErr.UpstreamMessage())
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, apiErr, apiErr.UpstreamMessage())
	}
}
