package order

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Wordite/tablecrm-t/internal/tablecrm"
)

const (
	// SaleOperation is the operation label the API expects for orders.
	SaleOperation = "Заказ"

	committedPriority = 10
	draftPriority     = 0
)

// ErrIncompleteSale is returned when required sale fields are missing.
var ErrIncompleteSale = errors.New("not all required fields are filled in")

// IncompleteSaleError lists the missing fields.
type IncompleteSaleError struct {
	Missing []string
}

func (e *IncompleteSaleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrIncompleteSale.Error(), strings.Join(e.Missing, ", "))
}

func (e *IncompleteSaleError) Unwrap() error {
	return ErrIncompleteSale
}

// saleSettings is sent with every document: a one-off sale, nothing repeats.
var saleSettings = tablecrm.SaleSettings{
	RepeatabilityPeriod:  "minutes",
	RepeatabilityValue:   0,
	DateNextCreated:      0,
	TransferFromWeekends: true,
	SkipCurrentMonth:     true,
	RepeatabilityCount:   0,
	DefaultPaymentStatus: false,
	RepeatabilityTags:    false,
	RepeatabilityStatus:  true,
}

// Validate checks the fields a sale cannot be created without.
func Validate(s State) error {
	var missing []string
	if !isSet(s.PayboxID) {
		missing = append(missing, string(SelectPaybox))
	}
	if !isSet(s.OrganizationID) {
		missing = append(missing, string(SelectOrganization))
	}
	if !isSet(s.WarehouseID) {
		missing = append(missing, string(SelectWarehouse))
	}
	if len(s.Items) == 0 {
		missing = append(missing, "items")
	}
	if len(missing) > 0 {
		return &IncompleteSaleError{Missing: missing}
	}
	return nil
}

// Assemble builds the sale document for s. commit=false saves a draft,
// commit=true also conducts it with the order total as the paid amount.
func Assemble(s State, commit bool, now time.Time) (tablecrm.SaleDocument, error) {
	if err := Validate(s); err != nil {
		return tablecrm.SaleDocument{}, err
	}

	paid := 0.0
	priority := draftPriority
	goodStatus := tablecrm.GoodStatusDraft
	if commit {
		paid = s.Total()
		priority = committedPriority
		goodStatus = tablecrm.GoodStatusCompleted
	}

	goods := make([]tablecrm.SaleGood, 0, len(s.Items))
	for _, it := range s.Items {
		goods = append(goods, assembleGood(it, s.PriceTypeID, goodStatus))
	}

	doc := tablecrm.SaleDocument{
		Dated:              now.Unix(),
		Operation:          SaleOperation,
		Comment:            s.Comment,
		Client:             cloneID(s.ClientID),
		Contragent:         cloneID(s.ClientID),
		Organization:       *s.OrganizationID,
		Warehouse:          *s.WarehouseID,
		Paybox:             *s.PayboxID,
		TaxIncluded:        true,
		TaxActive:          true,
		Settings:           saleSettings,
		PaidRubles:         paid,
		PaidLt:             0,
		Status:             commit,
		Goods:              goods,
		Priority:           priority,
		IsMarketplaceOrder: false,
	}
	return doc, nil
}

func assembleGood(it LineItem, priceTypeID *int64, status string) tablecrm.SaleGood {
	discount := it.DiscountValue()
	good := tablecrm.SaleGood{
		PriceType: cloneID(priceTypeID),
		Price:     it.Price,
		Quantity:  it.Quantity,
		Tax:       0,
		Discount:  discount,
		SumDiscounted: decimal.NewFromFloat(discount).
			Mul(decimal.NewFromFloat(it.Quantity)).
			InexactFloat64(),
		Status:           status,
		Nomenclature:     strconv.FormatInt(it.Product.ID, 10),
		NomenclatureName: it.Product.Name,
		UnitName:         string(it.Product.Unit),
	}
	if n, ok := it.Product.Unit.Number(); ok {
		good.Unit = &n
	}
	return good
}
