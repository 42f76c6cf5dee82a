package domain

import "github.com/shopspring/decimal"

func init() {
	// Money goes over the wire as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

type Tile struct {
	ID          int64           `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Type        string          `db:"type" json:"type"`
	Size        string          `db:"size" json:"size"`
	Color       string          `db:"color" json:"color"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Quantity    int64           `db:"quantity" json:"quantity"`
	Supplier    *string         `db:"supplier" json:"supplier,omitempty"`
	Description *string         `db:"description" json:"description,omitempty"`
	CreatedAt   string          `db:"created_at" json:"created_at"`
	UpdatedAt   string          `db:"updated_at" json:"updated_at"`
}
