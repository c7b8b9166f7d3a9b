package order

import (
	"github.com/Wordite/tablecrm-t/internal/tablecrm"
)

// ItemField names an editable numeric field of a line item.
type ItemField string

const (
	FieldQuantity ItemField = "quantity"
	FieldPrice    ItemField = "price"
	FieldDiscount ItemField = "discount"
)

func (f ItemField) String() string {
	return string(f)
}

// Valid reports whether f is one of the editable fields.
func (f ItemField) Valid() bool {
	switch f {
	case FieldQuantity, FieldPrice, FieldDiscount:
		return true
	}
	return false
}

// Selection names one of the reference ids chosen for the sale.
type Selection string

const (
	SelectClient       Selection = "client"
	SelectPaybox       Selection = "paybox"
	SelectOrganization Selection = "organization"
	SelectWarehouse    Selection = "warehouse"
	SelectPriceType    Selection = "price_type"
)

func (s Selection) String() string {
	return string(s)
}

func (s Selection) Valid() bool {
	switch s {
	case SelectClient, SelectPaybox, SelectOrganization, SelectWarehouse, SelectPriceType:
		return true
	}
	return false
}

// LineItem is one product row of the order. Product is a snapshot taken
// when the row was added.
type LineItem struct {
	Product  tablecrm.Product `json:"product"`
	Quantity float64          `json:"quantity"`
	Price    float64          `json:"price"`
	Discount *float64         `json:"discount,omitempty"`
	Comment  string           `json:"comment,omitempty"`
}

// DiscountValue returns the discount, 0 when unset.
func (it LineItem) DiscountValue() float64 {
	if it.Discount == nil {
		return 0
	}
	return *it.Discount
}

// State is the whole order form. Values are immutable: every mutation
// returns a new State.
type State struct {
	TokenInput     string     `json:"token_input"`
	Token          string     `json:"token"`
	Phone          string     `json:"phone"`
	ClientID       *int64     `json:"client_id,omitempty"`
	PayboxID       *int64     `json:"paybox_id,omitempty"`
	OrganizationID *int64     `json:"organization_id,omitempty"`
	WarehouseID    *int64     `json:"warehouse_id,omitempty"`
	PriceTypeID    *int64     `json:"price_type_id,omitempty"`
	Comment        string     `json:"comment"`
	ProductSearch  string     `json:"product_search"`
	Items          []LineItem `json:"items"`
}
