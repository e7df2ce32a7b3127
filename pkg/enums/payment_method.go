package enums

import "strings"

// PaymentMethod captures how the customer pays. The backend may add methods
// without notice, so unknown values are carried through untouched.
type PaymentMethod string

const (
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentMethodMpesa          PaymentMethod = "mpesa"
	PaymentMethodCard           PaymentMethod = "card"
)

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// Label returns the human-facing name of the method.
func (p PaymentMethod) Label() string {
	switch p {
	case PaymentMethodCashOnDelivery:
		return "Cash on Delivery"
	case PaymentMethodMpesa:
		return "M-Pesa"
	case PaymentMethodCard:
		return "Card"
	case "":
		return ""
	default:
		words := strings.Fields(strings.ReplaceAll(string(p), "_", " "))
		for i, w := range words {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
		return strings.Join(words, " ")
	}
}
