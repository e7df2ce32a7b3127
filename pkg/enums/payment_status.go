package enums

// PaymentStatus is reported by the backend and shown as-is. The console never
// sets it; pickup payments are recorded through paymentReceived instead.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

func (p PaymentStatus) String() string {
	return string(p)
}
