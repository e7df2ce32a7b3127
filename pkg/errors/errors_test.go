package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "order is busy"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeIdempotency, status: http.StatusConflict, publicMsg: "idempotency key conflict"},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "order service unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestConstructorsKeepCodeMessageAndCause(t *testing.T) {
	typed := Newf(CodeValidation, "unknown order status %q", "lost")
	if typed.Code() != CodeValidation || typed.Message() != `unknown order status "lost"` {
		t.Fatalf("unexpected error %s", typed)
	}
	if typed.Details() != nil {
		t.Fatalf("details should be nil by default")
	}
	if typed.WithDetails(map[string]any{"field": "status"}).Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("connection reset")
	wrapped := Wrap(CodeDependency, cause, "set status")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if got := wrapped.Error(); got != "DEPENDENCY_ERROR: set status: connection reset" {
		t.Fatalf("unexpected error string %q", got)
	}
	if got := Wrap(CodeNotFound, nil, "missing").Error(); got != "NOT_FOUND: missing" {
		t.Fatalf("nil cause should behave like New, got %q", got)
	}
}

func TestAsFindsWrappedTypedError(t *testing.T) {
	err := fmt.Errorf("assign: %w", New(CodeForbidden, "other agency"))
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if !IsCode(err, CodeForbidden) || IsCode(err, CodeConflict) {
		t.Fatalf("IsCode mismatch")
	}
	if As(nil) != nil || As(stdErrors.New("plain")) != nil {
		t.Fatalf("As should return nil without a typed error")
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"dependency", New(CodeDependency, "timeout"), true},
		{"state conflict", New(CodeStateConflict, "illegal"), false},
		{"busy", fmt.Errorf("row: %w", New(CodeConflict, "busy")), false},
		{"untyped", stdErrors.New("boom"), true},
	}
	for _, tc := range cases {
		if got := Retryable(tc.err); got != tc.want {
			t.Fatalf("%s: expected %v got %v", tc.name, tc.want, got)
		}
	}
}
