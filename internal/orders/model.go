package orders

import (
	"strings"
	"time"

	"github.com/gasflow/ops-console/pkg/enums"
	"github.com/shopspring/decimal"
)

// ShortNumberLen is how many trailing characters of the order number the console shows.
const ShortNumberLen = 8

// Order is the console's working copy of a backend order.
type Order struct {
	ID          string `json:"id"`
	OrderNumber string `json:"orderNumber"`

	Status          enums.OrderStatus   `json:"status"`
	DeliveryMode    enums.DeliveryMode  `json:"deliveryMode"`
	PaymentMethod   enums.PaymentMethod `json:"paymentMethod,omitempty"`
	PaymentStatus   enums.PaymentStatus `json:"paymentStatus,omitempty"`
	PaymentReceived bool                `json:"paymentReceived"`

	CustomerName    string `json:"customerName,omitempty"`
	CustomerEmail   string `json:"customerEmail,omitempty"`
	CustomerPhone   string `json:"customerPhone,omitempty"`
	CustomerAddress string `json:"customerAddress,omitempty"`

	AssignedAgent *AgentRef  `json:"assignedAgent,omitempty"`
	Agency        *AgencyRef `json:"agency,omitempty"`

	Items          []Item          `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"taxAmount"`
	PlatformCharge decimal.Decimal `json:"platformCharge"`
	DeliveryCharge decimal.Decimal `json:"deliveryCharge"`
	CouponCode     string          `json:"couponCode,omitempty"`
	CouponDiscount decimal.Decimal `json:"couponDiscount"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`

	CreatedAt        time.Time  `json:"createdAt"`
	ConfirmedAt      *time.Time `json:"confirmedAt,omitempty"`
	AssignedAt       *time.Time `json:"assignedAt,omitempty"`
	OutForDeliveryAt *time.Time `json:"outForDeliveryAt,omitempty"`
	DeliveredAt      *time.Time `json:"deliveredAt,omitempty"`
	CancelledAt      *time.Time `json:"cancelledAt,omitempty"`
	CancelledBy      string     `json:"cancelledBy,omitempty"`
	CancelledByName  string     `json:"cancelledByName,omitempty"`
	ReturnedAt       *time.Time `json:"returnedAt,omitempty"`
	ReturnedBy       string     `json:"returnedBy,omitempty"`
	ReturnedByName   string     `json:"returnedByName,omitempty"`
	ReturnReason     string     `json:"returnReason,omitempty"`
	AdminNotes       string     `json:"adminNotes,omitempty"`
	AgentNotes       string     `json:"agentNotes,omitempty"`

	DeliveryProofImage string `json:"deliveryProofImage,omitempty"`
	DeliveryNote       string `json:"deliveryNote,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// AgentRef is the agent snapshot denormalized onto an order at assignment time.
type AgentRef struct {
	ID            string `json:"id"`
	Name          string `json:"name,omitempty"`
	Phone         string `json:"phone,omitempty"`
	VehicleNumber string `json:"vehicleNumber,omitempty"`
}

type AgencyRef struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Status string `json:"status,omitempty"`
}

type Item struct {
	ProductID    string          `json:"productId"`
	Name         string          `json:"name"`
	VariantLabel string          `json:"variantLabel,omitempty"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	Quantity     int             `json:"quantity"`
	Total        decimal.Decimal `json:"total"`
}

// ShortNumber returns the trailing characters of the order number shown in lists.
func (o Order) ShortNumber() string {
	n := strings.TrimSpace(o.OrderNumber)
	if len(n) <= ShortNumberLen {
		return n
	}
	return n[len(n)-ShortNumberLen:]
}

func (o Order) IsPickup() bool {
	return o.DeliveryMode.IsPickup()
}

func (o Order) HasAgent() bool {
	return o.AssignedAgent != nil && strings.TrimSpace(o.AssignedAgent.ID) != ""
}

// Clone returns a deep copy so callers may hand orders out of a locked view.
func (o Order) Clone() Order {
	out := o
	if o.AssignedAgent != nil {
		agent := *o.AssignedAgent
		out.AssignedAgent = &agent
	}
	if o.Agency != nil {
		agency := *o.Agency
		out.Agency = &agency
	}
	if o.Items != nil {
		out.Items = append([]Item(nil), o.Items...)
	}
	out.ConfirmedAt = cloneTime(o.ConfirmedAt)
	out.AssignedAt = cloneTime(o.AssignedAt)
	out.OutForDeliveryAt = cloneTime(o.OutForDeliveryAt)
	out.DeliveredAt = cloneTime(o.DeliveredAt)
	out.CancelledAt = cloneTime(o.CancelledAt)
	out.ReturnedAt = cloneTime(o.ReturnedAt)
	return out
}

// Equal reports whether two orders carry the same observable state.
func (o Order) Equal(other Order) bool {
	return o.fingerprint() == other.fingerprint()
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
