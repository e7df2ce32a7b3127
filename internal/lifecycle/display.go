package lifecycle

import (
	"strings"

	"github.com/gasflow/ops-console/pkg/enums"
)

// Variant is the presentation severity of a status.
type Variant string

const (
	VariantNeutral  Variant = "neutral"
	VariantPositive Variant = "positive"
	VariantNegative Variant = "negative"
)

var statusLabels = map[enums.OrderStatus]string{
	enums.OrderStatusPending:        "Pending",
	enums.OrderStatusConfirmed:      "Confirmed",
	enums.OrderStatusAssigned:       "Assigned",
	enums.OrderStatusOutForDelivery: "Out for Delivery",
	enums.OrderStatusDelivered:      "Delivered",
	enums.OrderStatusCancelled:      "Cancelled",
	enums.OrderStatusReturned:       "Returned",
	enums.OrderStatusReturnApproved: "Return Approved",
	enums.OrderStatusReturnRejected: "Return Rejected",
}

// FormatStatus returns the title-case label for a status. Values outside the
// closed set are humanized rather than rendered empty.
func FormatStatus(s enums.OrderStatus) string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return humanize(string(s))
}

// SentenceStatus returns the sentence-case label used in exports.
func SentenceStatus(s enums.OrderStatus) string {
	label := FormatStatus(s)
	if label == "" {
		return ""
	}
	return label[:1] + strings.ToLower(label[1:])
}

// StatusVariant maps a status to its presentation severity.
func StatusVariant(s enums.OrderStatus) Variant {
	switch s {
	case enums.OrderStatusDelivered, enums.OrderStatusReturnApproved:
		return VariantPositive
	case enums.OrderStatusCancelled, enums.OrderStatusReturned, enums.OrderStatusReturnRejected:
		return VariantNegative
	default:
		return VariantNeutral
	}
}

func humanize(raw string) string {
	words := strings.Fields(strings.NewReplacer("_", " ", "-", " ").Replace(raw))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
