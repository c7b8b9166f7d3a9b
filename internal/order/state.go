package order

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Wordite/tablecrm-t/internal/tablecrm"
)

// NewState returns the form as it is at session start.
func NewState() State {
	return State{Items: []LineItem{}}
}

func (s State) SetTokenInput(v string) State {
	s.TokenInput = v
	return s
}

// ApplyToken commits the trimmed token input as the active token. An
// all-whitespace input clears the token.
func (s State) ApplyToken() State {
	s.Token = strings.TrimSpace(s.TokenInput)
	return s
}

func (s State) SetToken(v string) State {
	s.Token = v
	return s
}

func (s State) SetPhone(v string) State {
	s.Phone = v
	return s
}

func (s State) SetComment(v string) State {
	s.Comment = v
	return s
}

func (s State) SetProductSearch(v string) State {
	s.ProductSearch = v
	return s
}

// SetSelection assigns one of the reference ids; nil clears it. Unknown
// selections leave the state unchanged.
func (s State) SetSelection(sel Selection, id *int64) State {
	id = cloneID(id)
	switch sel {
	case SelectClient:
		s.ClientID = id
	case SelectPaybox:
		s.PayboxID = id
	case SelectOrganization:
		s.OrganizationID = id
	case SelectWarehouse:
		s.WarehouseID = id
	case SelectPriceType:
		s.PriceTypeID = id
	}
	return s
}

// Selected returns the id chosen for sel.
func (s State) Selected(sel Selection) *int64 {
	switch sel {
	case SelectClient:
		return cloneID(s.ClientID)
	case SelectPaybox:
		return cloneID(s.PayboxID)
	case SelectOrganization:
		return cloneID(s.OrganizationID)
	case SelectWarehouse:
		return cloneID(s.WarehouseID)
	case SelectPriceType:
		return cloneID(s.PriceTypeID)
	}
	return nil
}

func (s State) SetItems(items []LineItem) State {
	s.Items = cloneItems(items)
	return s
}

// AddProduct adds one unit of p. An existing row for the same product only
// has its quantity increased; otherwise a row is appended with the catalog
// price (0 when the product has none).
func (s State) AddProduct(p tablecrm.Product) State {
	items := cloneItems(s.Items)
	for i := range items {
		if items[i].Product.ID == p.ID {
			items[i].Quantity++
			s.Items = items
			return s
		}
	}

	price := 0.0
	if p.Price != nil {
		price = *p.Price
	}
	s.Items = append(items, LineItem{
		Product:  cloneProduct(p),
		Quantity: 1,
		Price:    price,
	})
	return s
}

// UpdateItem replaces one numeric field of the row for productID. Missing
// rows and unknown fields are a no-op.
func (s State) UpdateItem(productID int64, field ItemField, value float64) State {
	idx := s.indexOf(productID)
	if idx < 0 || !field.Valid() {
		return s
	}

	items := cloneItems(s.Items)
	switch field {
	case FieldQuantity:
		items[idx].Quantity = value
	case FieldPrice:
		items[idx].Price = value
	case FieldDiscount:
		items[idx].Discount = &value
	}
	s.Items = items
	return s
}

func (s State) RemoveItem(productID int64) State {
	idx := s.indexOf(productID)
	if idx < 0 {
		return s
	}
	items := cloneItems(s.Items)
	s.Items = append(items[:idx], items[idx+1:]...)
	return s
}

// Reset clears everything entered for the current order. The token and
// token input survive so the next order can start straight away.
func (s State) Reset() State {
	return State{
		TokenInput: s.TokenInput,
		Token:      s.Token,
		Items:      []LineItem{},
	}
}

// Item returns the row for productID.
func (s State) Item(productID int64) (LineItem, bool) {
	idx := s.indexOf(productID)
	if idx < 0 {
		return LineItem{}, false
	}
	return s.Items[idx], true
}

// LineTotal is quantity × price − discount.
func (it LineItem) LineTotal() float64 {
	return lineTotal(it).InexactFloat64()
}

func lineTotal(it LineItem) decimal.Decimal {
	return decimal.NewFromFloat(it.Quantity).
		Mul(decimal.NewFromFloat(it.Price)).
		Sub(decimal.NewFromFloat(it.DiscountValue()))
}

// Total sums the line totals. Discounts are not clamped, so a discount
// above the line subtotal lowers the total below the other lines.
func (s State) Total() float64 {
	sum := decimal.Zero
	for _, it := range s.Items {
		sum = sum.Add(lineTotal(it))
	}
	return sum.InexactFloat64()
}

// ReadyToSubmit mirrors the submit gate of the form: a token, every sale
// parameter and at least one item.
func (s State) ReadyToSubmit() bool {
	return s.Token != "" &&
		isSet(s.PayboxID) &&
		isSet(s.OrganizationID) &&
		isSet(s.WarehouseID) &&
		isSet(s.PriceTypeID) &&
		len(s.Items) > 0
}

func (s State) indexOf(productID int64) int {
	for i := range s.Items {
		if s.Items[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

func isSet(id *int64) bool {
	return id != nil && *id != 0
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cloneItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	for i, it := range items {
		it.Discount = cloneFloat(it.Discount)
		it.Product = cloneProduct(it.Product)
		out[i] = it
	}
	return out
}

func cloneProduct(p tablecrm.Product) tablecrm.Product {
	p.Price = cloneFloat(p.Price)
	p.Stock = cloneFloat(p.Stock)
	return p
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
