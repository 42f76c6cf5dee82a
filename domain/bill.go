package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Bill is a committed sale. Rows are never updated after insert.
type Bill struct {
	ID              int64           `db:"id" json:"id"`
	BillNumber      string          `db:"bill_number" json:"bill_number"`
	CustomerName    string          `db:"customer_name" json:"customer_name"`
	CustomerPhone   string          `db:"customer_phone" json:"customer_phone"`
	CustomerAddress string          `db:"customer_address" json:"customer_address"`
	Items           LineItems       `db:"items" json:"items"`
	TotalAmount     decimal.Decimal `db:"total_amount" json:"total_amount"`
	Discount        decimal.Decimal `db:"discount" json:"discount"`
	TaxAmount       decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	FinalAmount     decimal.Decimal `db:"final_amount" json:"final_amount"`
	PaymentMethod   string          `db:"payment_method" json:"payment_method"`
	Notes           string          `db:"notes" json:"notes"`
	BillDate        string          `db:"bill_date" json:"bill_date"`
}

// LineItem snapshots the tile name and unit price at the moment of sale.
type LineItem struct {
	TileID    int64           `json:"tile_id"`
	TileName  string          `json:"tile_name"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// LineItems is stored as a single JSON column on the bills table.
type LineItems []LineItem

func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		l = LineItems{}
	}
	raw, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (l *LineItems) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = LineItems{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported line items type %T", src)
	}
	return json.Unmarshal(raw, l)
}
