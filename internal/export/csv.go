package export

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/gasflow/ops-console/internal/lifecycle"
	"github.com/gasflow/ops-console/internal/orders"
)

// DefaultCurrency prefixes every amount unless configured otherwise.
const DefaultCurrency = "KSH"

// Columns is the literal header row of the orders export.
var Columns = []string{
	"Order ID",
	"Customer",
	"Items",
	"Agency",
	"Delivery Mode",
	"Payment Method",
	"Agent",
	"Amount",
	"Status",
	"Date",
}

// Writer renders orders as CSV with every field quoted.
type Writer struct {
	Currency string
}

func NewWriter(currency string) Writer {
	if strings.TrimSpace(currency) == "" {
		currency = DefaultCurrency
	}
	return Writer{Currency: currency}
}

// Render returns the header plus one row per order.
func (w Writer) Render(list []orders.Order) []byte {
	var buf bytes.Buffer
	writeRow(&buf, Columns)
	for _, o := range list {
		writeRow(&buf, w.Row(o))
	}
	return buf.Bytes()
}

// Row returns the unquoted field values for one order.
func (w Writer) Row(o orders.Order) []string {
	currency := w.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	orderID := o.OrderNumber
	if orderID == "" {
		orderID = o.ID
	}
	agency := ""
	if o.Agency != nil {
		agency = o.Agency.Name
	}
	agent := "Unassigned"
	if o.AssignedAgent != nil && o.AssignedAgent.Name != "" {
		agent = o.AssignedAgent.Name
	}
	date := ""
	if !o.CreatedAt.IsZero() {
		date = o.CreatedAt.Format(orders.DateLayout)
	}

	return []string{
		orderID,
		o.CustomerName,
		formatItems(o.Items),
		agency,
		o.DeliveryMode.Label(),
		o.PaymentMethod.Label(),
		agent,
		currency + o.TotalAmount.StringFixed(2),
		lifecycle.SentenceStatus(o.Status),
		date,
	}
}

func formatItems(items []orders.Item) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		var b strings.Builder
		b.WriteString(it.Name)
		if it.VariantLabel != "" {
			b.WriteString(" (")
			b.WriteString(it.VariantLabel)
			b.WriteString(")")
		}
		b.WriteString(" x")
		b.WriteString(strconv.Itoa(it.Quantity))
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "; ")
}

func writeRow(buf *bytes.Buffer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(Quote(f))
	}
	buf.WriteByte('\n')
}

// Quote wraps a field in double quotes and doubles any inner quotes.
func Quote(field string) string {
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}
