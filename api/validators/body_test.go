package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/gasflow/ops-console/pkg/errors"
)

type statusBody struct {
	Status string `json:"status" validate:"required,order_status"`
	Notes  string `json:"notes" validate:"max=500"`
}

func TestDecodeJSONBodyValidatesOrderStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"shipped"}`))
	var body statusBody
	err := DecodeJSONBody(req, &body)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	if !ok || details["status"] != "must be a known order status" {
		t.Fatalf("unexpected details %v", pkgerrors.As(err).Details())
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"confirmed","notes":"ok"}`))
	if err := DecodeJSONBody(req, &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body.Status != "confirmed" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"confirmed","extra":1}`))
	var body statusBody
	if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&limit=500", nil)
	page, err := ParseQueryInt(req, "page", 1, 1, 1000)
	if err != nil || page != 3 {
		t.Fatalf("unexpected page %d err %v", page, err)
	}
	if _, err := ParseQueryInt(req, "limit", 10, 1, 100); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected range error, got %v", err)
	}
	missing, err := ParseQueryInt(req, "absent", 10, 1, 100)
	if err != nil || missing != 10 {
		t.Fatalf("expected default, got %d %v", missing, err)
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  Customer\x00 moved\n away  ", 0); got != "Customer moved\n away" {
		t.Fatalf("unexpected sanitized text %q", got)
	}
	if got := SanitizeString("Mtungi wa gesi", 5); got != "Mtung" {
		t.Fatalf("expected truncation, got %q", got)
	}
	if got := SanitizeString("ñañaña", 3); got != "ñañ" {
		t.Fatalf("truncation must respect runes, got %q", got)
	}
}

func TestQueryText(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?search=%20%20ORD-12%20", nil)
	if got := QueryText(req, "search"); got != "ORD-12" {
		t.Fatalf("unexpected search %q", got)
	}
}

func TestDecodeJSONBodyRejectsEmptyAndTrailingData(t *testing.T) {
	var body statusBody
	err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("")), &body)
	if typed := pkgerrors.As(err); typed == nil || typed.Message() != "request body is required" {
		t.Fatalf("expected missing body error, got %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"confirmed"}{"status":"cancelled"}`))
	if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected trailing data to be rejected, got %v", err)
	}
}
