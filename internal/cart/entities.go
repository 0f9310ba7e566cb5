package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a snapshot of a product taken when it was added to the cart.
// Price and name do not follow later catalog edits.
type Item struct {
	ProductID    int64           `json:"product_id"`
	ProductName  string          `json:"product_name"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	QuantitySold decimal.Decimal `json:"quantity_sold"`
	ItemTotal    decimal.Decimal `json:"item_total"`
}

// NewItem computes the line total for quantity units at unitPrice.
func NewItem(productID int64, productName string, unitPrice, quantity decimal.Decimal) Item {
	return Item{
		ProductID:    productID,
		ProductName:  productName,
		UnitPrice:    unitPrice,
		QuantitySold: quantity,
		ItemTotal:    quantity.Mul(unitPrice),
	}
}

// Cart is the ordered list of pending lines for one session. Methods never
// mutate the receiver; they return the next cart.
type Cart struct {
	SessionID string    `json:"session_id"`
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns an empty cart for sessionID.
func New(sessionID string) Cart {
	return Cart{
		SessionID: sessionID,
		Items:     []Item{},
		UpdatedAt: time.Now().UTC(),
	}
}

// WithItem appends item.
func (c Cart) WithItem(item Item) Cart {
	items := make([]Item, 0, len(c.Items)+1)
	items = append(items, c.Items...)
	items = append(items, item)

	c.Items = items
	c.UpdatedAt = time.Now().UTC()
	return c
}

// Remove drops the item at index. An out-of-range index leaves the cart as it is.
func (c Cart) Remove(index int) Cart {
	if index < 0 || index >= len(c.Items) {
		return c
	}

	items := make([]Item, 0, len(c.Items)-1)
	items = append(items, c.Items[:index]...)
	items = append(items, c.Items[index+1:]...)

	c.Items = items
	c.UpdatedAt = time.Now().UTC()
	return c
}

// Clear empties the cart, keeping its session.
func (c Cart) Clear() Cart {
	return New(c.SessionID)
}

// Total is the sum of the line totals.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.ItemTotal)
	}
	return total
}
