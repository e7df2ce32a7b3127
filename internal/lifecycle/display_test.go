package lifecycle

import (
	"testing"

	"github.com/gasflow/ops-console/pkg/enums"
)

func TestProjectionsAreTotal(t *testing.T) {
	for _, s := range enums.OrderStatuses() {
		if FormatStatus(s) == "" {
			t.Errorf("FormatStatus(%s) is empty", s)
		}
		if SentenceStatus(s) == "" {
			t.Errorf("SentenceStatus(%s) is empty", s)
		}
		switch StatusVariant(s) {
		case VariantNeutral, VariantPositive, VariantNegative:
		default:
			t.Errorf("StatusVariant(%s) outside the variant set", s)
		}
	}
}

func TestFormatStatusLabels(t *testing.T) {
	cases := map[enums.OrderStatus]string{
		enums.OrderStatusPending:        "Pending",
		enums.OrderStatusOutForDelivery: "Out for Delivery",
		enums.OrderStatusReturnApproved: "Return Approved",
		enums.OrderStatusReturnRejected: "Return Rejected",
	}
	for s, want := range cases {
		if got := FormatStatus(s); got != want {
			t.Errorf("FormatStatus(%s) = %q, want %q", s, got, want)
		}
	}
	if got := SentenceStatus(enums.OrderStatusOutForDelivery); got != "Out for delivery" {
		t.Errorf("SentenceStatus(out_for_delivery) = %q", got)
	}
	if got := FormatStatus("on_hold"); got != "On Hold" {
		t.Errorf("unknown statuses should be humanized, got %q", got)
	}
}

func TestStatusVariant(t *testing.T) {
	cases := map[enums.OrderStatus]Variant{
		enums.OrderStatusPending:        VariantNeutral,
		enums.OrderStatusAssigned:       VariantNeutral,
		enums.OrderStatusDelivered:      VariantPositive,
		enums.OrderStatusReturnApproved: VariantPositive,
		enums.OrderStatusCancelled:      VariantNegative,
		enums.OrderStatusReturnRejected: VariantNegative,
	}
	for s, want := range cases {
		if got := StatusVariant(s); got != want {
			t.Errorf("StatusVariant(%s) = %s, want %s", s, got, want)
		}
	}
}
