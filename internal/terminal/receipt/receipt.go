package receipt

import (
	"fmt"
	"io"
	"math/rand/v2"
	"text/template"
	"time"

	"pos-register/internal/terminal/cart"
)

const (
	MethodCash = "cash"
	MethodCard = "card"
)

// PaymentDetails records how a sale was settled. Tendered and Change
// are meaningful for cash only.
type PaymentDetails struct {
	Method   string
	Tendered float64
	Change   float64
}

// Line is one printed receipt row
type Line struct {
	Name      string
	SKU       string
	Quantity  int
	UnitPrice float64
	LineTotal float64
}

// Receipt is an immutable snapshot of a completed sale
type Receipt struct {
	ID            string
	CreatedAt     time.Time
	Lines         []Line
	Subtotal      float64
	Tax           float64
	Total         float64
	PaymentMethod string
	CashTendered  float64
	Change        float64
}

// NewID generates a receipt identifier of the form R-851204
func NewID() string {
	return fmt.Sprintf("R-%06d", rand.IntN(1000000))
}

// Build snapshots the checkout lines and payment into a Receipt. Tax is
// fixed at zero.
func Build(items []cart.Item, total float64, payment PaymentDetails) *Receipt {
	r := &Receipt{
		ID:            NewID(),
		CreatedAt:     time.Now(),
		Lines:         make([]Line, 0, len(items)),
		Subtotal:      total,
		Tax:           0,
		Total:         total,
		PaymentMethod: payment.Method,
	}
	for _, item := range items {
		r.Lines = append(r.Lines, Line{
			Name:      item.Name,
			SKU:       item.SKU,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
			LineTotal: item.Price * float64(item.Quantity),
		})
	}
	if payment.Method == MethodCash {
		r.CashTendered = payment.Tendered
		r.Change = payment.Change
	}
	return r
}

var receiptTemplate = template.Must(template.New("receipt").Parse(
	`{{.StoreName}}
{{.Receipt.CreatedAt.Format "2006-01-02 15:04:05"}}  {{.Receipt.ID}}
--------------------------------
{{range .Receipt.Lines}}{{printf "%-20s" .Name}} x{{.Quantity}}
  {{printf "%8.2f" .UnitPrice}} ea  {{printf "%8.2f" .LineTotal}}
{{end}}--------------------------------
Subtotal  {{printf "%8.2f" .Receipt.Subtotal}}
Tax       {{printf "%8.2f" .Receipt.Tax}}
TOTAL     {{printf "%8.2f" .Receipt.Total}}
Paid by {{.Receipt.PaymentMethod}}
{{if eq .Receipt.PaymentMethod "cash"}}Tendered  {{printf "%8.2f" .Receipt.CashTendered}}
Change    {{printf "%8.2f" .Receipt.Change}}
{{end}}`))

// Render writes the printable receipt. The store name forms the header.
func Render(w io.Writer, storeName string, r *Receipt) error {
	return receiptTemplate.Execute(w, struct {
		StoreName string
		Receipt   *Receipt
	}{StoreName: storeName, Receipt: r})
}
