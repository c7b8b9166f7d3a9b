package tablecrm

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
)

const (
	GoodStatusCompleted = "completed"
	GoodStatusDraft     = "draft"
)

// SaleGood is one goods row of a sale document.
type SaleGood struct {
	PriceType        *int64   `json:"price_type,omitempty"`
	Price            float64  `json:"price"`
	Quantity         float64  `json:"quantity"`
	Unit             *float64 `json:"unit,omitempty"`
	UnitName         string   `json:"unit_name,omitempty"`
	Tax              float64  `json:"tax"`
	Discount         float64  `json:"discount"`
	SumDiscounted    float64  `json:"sum_discounted"`
	Status           string   `json:"status"`
	Nomenclature     string   `json:"nomenclature"`
	NomenclatureName string   `json:"nomenclature_name,omitempty"`
}

// SaleSettings is the recurrence block of a sale document.
type SaleSettings struct {
	RepeatabilityPeriod  string `json:"repeatability_period"`
	RepeatabilityValue   int    `json:"repeatability_value"`
	DateNextCreated      int64  `json:"date_next_created"`
	TransferFromWeekends bool   `json:"transfer_from_weekends"`
	SkipCurrentMonth     bool   `json:"skip_current_month"`
	RepeatabilityCount   int    `json:"repeatability_count"`
	DefaultPaymentStatus bool   `json:"default_payment_status"`
	RepeatabilityTags    bool   `json:"repeatability_tags"`
	RepeatabilityStatus  bool   `json:"repeatability_status"`
}

// SaleDocument is the body of one docs_sales entry.
type SaleDocument struct {
	Dated              int64        `json:"dated"`
	Operation          string       `json:"operation"`
	Tags               string       `json:"tags"`
	Comment            string       `json:"comment,omitempty"`
	Client             *int64       `json:"client,omitempty"`
	Contragent         *int64       `json:"contragent,omitempty"`
	Organization       int64        `json:"organization"`
	Warehouse          int64        `json:"warehouse"`
	Paybox             int64        `json:"paybox"`
	TaxIncluded        bool         `json:"tax_included"`
	TaxActive          bool         `json:"tax_active"`
	Settings           SaleSettings `json:"settings"`
	PaidRubles         float64      `json:"paid_rubles"`
	PaidLt             float64      `json:"paid_lt"`
	Status             bool         `json:"status"`
	Goods              []SaleGood   `json:"goods"`
	Priority           int          `json:"priority"`
	IsMarketplaceOrder bool         `json:"is_marketplace_order"`
}

// SaleCreator sends sale documents.
type SaleCreator interface {
	CreateSale(ctx context.Context, token string, doc SaleDocument) (json.RawMessage, error)
}

var _ SaleCreator = (*Client)(nil)

// CreateSale posts doc as a batch of one and returns the raw response body.
func (c *Client) CreateSale(ctx context.Context, token string, doc SaleDocument) (json.RawMessage, error) {
	body, err := c.post(ctx, PathDocsSales, token, []SaleDocument{doc})
	if err != nil {
		return nil, err
	}
	log.Info().
		Int64("organization", doc.Organization).
		Int64("warehouse", doc.Warehouse).
		Bool("status", doc.Status).
		Int("goods", len(doc.Goods)).
		Msg("tablecrm: sale document created")
	if len(bytes.TrimSpace(body)) == 0 {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(body), nil
}
