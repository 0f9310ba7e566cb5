package invoice

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/matheusmosca/retail-pos/internal/cart"
)

// Invoice is an immutable sale record. GrandTotal always equals the sum of
// the item totals.
type Invoice struct {
	InvoiceID    int64           `json:"invoice_id" db:"invoice_id"`
	CustomerName string          `json:"customer_name" db:"customer_name"`
	GrandTotal   decimal.Decimal `json:"grand_total" db:"grand_total"`
	InvoiceDate  time.Time       `json:"invoice_date" db:"invoice_date"`
	Items        []Item          `json:"items,omitempty" db:"-"`
}

// Item is one invoice line. ProductName is filled on read from the product row.
type Item struct {
	ItemID       int64           `json:"item_id" db:"item_id"`
	InvoiceID    int64           `json:"invoice_id" db:"invoice_id"`
	ProductID    int64           `json:"product_id" db:"product_id"`
	ProductName  string          `json:"product_name,omitempty" db:"product_name"`
	QuantitySold decimal.Decimal `json:"quantity_sold" db:"quantity_sold"`
	UnitPrice    decimal.Decimal `json:"unit_price" db:"unit_price"`
	ItemTotal    decimal.Decimal `json:"item_total" db:"item_total"`
}

// NewInvoice builds an unsaved invoice from cart lines, recomputing each line
// total from quantity and unit price.
func NewInvoice(customerName string, lines []cart.Item) *Invoice {
	inv := &Invoice{
		CustomerName: customerName,
		GrandTotal:   decimal.Zero,
		InvoiceDate:  time.Now().UTC(),
		Items:        make([]Item, 0, len(lines)),
	}

	for _, line := range lines {
		item := Item{
			ProductID:    line.ProductID,
			ProductName:  line.ProductName,
			QuantitySold: line.QuantitySold,
			UnitPrice:    line.UnitPrice,
			ItemTotal:    line.QuantitySold.Mul(line.UnitPrice),
		}
		inv.GrandTotal = inv.GrandTotal.Add(item.ItemTotal)
		inv.Items = append(inv.Items, item)
	}
	return inv
}

// Filter narrows ListInvoices. Zero values are ignored. StartDate is
// inclusive and EndDate exclusive.
type Filter struct {
	StartDate    time.Time
	EndDate      time.Time
	CustomerName string
}
