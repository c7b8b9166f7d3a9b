package tablecrm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Contragent is a client record of the CRM.
type Contragent struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Phone   string   `json:"phone,omitempty"`
	Balance *float64 `json:"balance,omitempty"`
}

// Paybox is a cash account.
type Paybox struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency,omitempty"`
}

type Organization struct {
	ID        int64  `json:"id"`
	Type      string `json:"type,omitempty"`
	ShortName string `json:"short_name,omitempty"`
	FullName  string `json:"full_name,omitempty"`
	WorkName  string `json:"work_name,omitempty"`
	Prefix    string `json:"prefix,omitempty"`
	INN       string `json:"inn,omitempty"`
	KPP       string `json:"kpp,omitempty"`
}

// OrganizationName returns the name an organization is displayed under:
// work name, then short name, then full name, then a numbered placeholder.
func OrganizationName(org Organization) string {
	switch {
	case org.WorkName != "":
		return org.WorkName
	case org.ShortName != "":
		return org.ShortName
	case org.FullName != "":
		return org.FullName
	default:
		return fmt.Sprintf("Организация #%d", org.ID)
	}
}

type Warehouse struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

type PriceType struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency,omitempty"`
}

// Product is a nomenclature (catalog) item.
type Product struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Article string   `json:"article,omitempty"`
	Price   *float64 `json:"price,omitempty"`
	Unit    Unit     `json:"unit,omitempty"`
	Stock   *float64 `json:"stock,omitempty"`
}

// Unit is the unit label of a product. The API sends it either as a string
// or as a numeric unit id, so both decode into the label form.
type Unit string

func (u *Unit) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*u = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*u = Unit(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("tablecrm: unit must be a string or a number: %w", err)
	}
	*u = Unit(n.String())
	return nil
}

// Number parses the label as a finite number.
func (u Unit) Number() (float64, bool) {
	s := strings.TrimSpace(string(u))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
