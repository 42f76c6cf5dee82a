// Package billing turns orders into committed bills and deducts the sold stock.
package billing

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"durgatraders/m/domain"
	"durgatraders/m/internal/catalog"
)

// DefaultPaymentMethod is recorded when an order names none.
const DefaultPaymentMethod = "Cash"

// OrderLine is one requested tile. Price is the unit price the customer was quoted.
type OrderLine struct {
	TileID   int64           `json:"tile_id"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// OrderRequest is a proposed sale.
type OrderRequest struct {
	CustomerName    string          `json:"customer_name"`
	CustomerPhone   string          `json:"customer_phone"`
	CustomerAddress string          `json:"customer_address"`
	Items           []OrderLine     `json:"items"`
	Discount        decimal.Decimal `json:"discount"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	PaymentMethod   string          `json:"payment_method"`
	Notes           string          `json:"notes"`
}

// Receipt identifies a committed bill.
type Receipt struct {
	BillID      int64           `json:"bill_id"`
	BillNumber  string          `json:"bill_number"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	FinalAmount decimal.Decimal `json:"final_amount"`
}

// Processor validates orders and commits them together with their stock deductions.
type Processor struct {
	db         *sqlx.DB
	catalog    *catalog.Store
	ledger     *Ledger
	numbers    *BillNumbers
	log        *zap.Logger
	now        func() time.Time
	checkPrice bool
}

type Option func(*Processor)

// WithCatalogPriceCheck rejects lines whose price differs from the catalog price.
// Without it the submitted price is recorded as is.
func WithCatalogPriceCheck() Option {
	return func(p *Processor) { p.checkPrice = true }
}

func WithLogger(log *zap.Logger) Option {
	return func(p *Processor) { p.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

func NewProcessor(db *sqlx.DB, tiles *catalog.Store, ledger *Ledger, numbers *BillNumbers, opts ...Option) *Processor {
	p := &Processor{
		db:      db,
		catalog: tiles,
		ledger:  ledger,
		numbers: numbers,
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PlaceOrder validates req against current stock and commits the bill and every stock
// deduction in one transaction. On any error nothing is persisted.
func (p *Processor) PlaceOrder(ctx context.Context, req OrderRequest) (Receipt, error) {
	if err := validateOrder(&req); err != nil {
		return Receipt{}, err
	}

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return Receipt{}, storage("begin order", err)
	}
	defer tx.Rollback()

	tiles := p.catalog.WithTx(tx)
	byID, err := tiles.GetMany(ctx, tileIDs(req.Items))
	if err != nil {
		return Receipt{}, storage("load tiles", err)
	}

	items, err := p.reserve(req.Items, byID)
	if err != nil {
		return Receipt{}, err
	}

	totals := ComputeTotals(items, req.Discount, req.TaxAmount)
	if totals.FinalAmount.IsNegative() {
		return Receipt{}, invalid("discount", "discount %s exceeds bill total %s", totals.Discount, totals.TotalAmount.Add(totals.TaxAmount))
	}

	bill := domain.Bill{
		BillNumber:      p.numbers.Next(),
		CustomerName:    req.CustomerName,
		CustomerPhone:   strings.TrimSpace(req.CustomerPhone),
		CustomerAddress: strings.TrimSpace(req.CustomerAddress),
		Items:           items,
		TotalAmount:     totals.TotalAmount,
		Discount:        totals.Discount,
		TaxAmount:       totals.TaxAmount,
		FinalAmount:     totals.FinalAmount,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
		BillDate:        formatBillDate(p.now()),
	}

	billID, err := p.ledger.WithTx(tx).Append(ctx, bill)
	if err != nil {
		return Receipt{}, storage("insert bill", err)
	}

	for _, item := range items {
		err := tiles.DecrementStock(ctx, item.TileID, item.Quantity)
		if errors.Is(err, catalog.ErrInsufficientStock) {
			// Another order drained the tile after our read.
			return Receipt{}, p.stockShortfall(ctx, tiles, item)
		}
		if err != nil {
			return Receipt{}, storage("decrement stock", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Receipt{}, storage("commit order", err)
	}

	p.log.Info("bill created",
		zap.Int64("bill_id", billID),
		zap.String("bill_number", bill.BillNumber),
		zap.Int("lines", len(items)),
		zap.String("final_amount", bill.FinalAmount.StringFixed(2)))

	return Receipt{
		BillID:      billID,
		BillNumber:  bill.BillNumber,
		TotalAmount: bill.TotalAmount,
		FinalAmount: bill.FinalAmount,
	}, nil
}

// reserve resolves each line against the loaded tiles and checks the summed quantity per tile.
func (p *Processor) reserve(lines []OrderLine, byID map[int64]domain.Tile) ([]domain.LineItem, error) {
	requested := make(map[int64]int64, len(lines))
	items := make([]domain.LineItem, 0, len(lines))
	for i, line := range lines {
		tile, ok := byID[line.TileID]
		if !ok {
			return nil, &NotFoundError{TileID: line.TileID}
		}
		requested[tile.ID] += line.Quantity
		if requested[tile.ID] > tile.Quantity {
			return nil, &InsufficientStockError{
				TileID:    tile.ID,
				TileName:  tile.Name,
				Available: tile.Quantity,
				Requested: requested[tile.ID],
			}
		}
		if p.checkPrice && !line.Price.Equal(tile.Price) {
			return nil, invalid(lineField(i, "price"), "price %s for %s does not match catalog price %s",
				line.Price.StringFixed(2), tile.Name, tile.Price.StringFixed(2))
		}
		items = append(items, domain.LineItem{
			TileID:    tile.ID,
			TileName:  tile.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.Price,
		})
	}
	return items, nil
}

func (p *Processor) stockShortfall(ctx context.Context, tiles *catalog.Store, item domain.LineItem) error {
	tile, err := tiles.Get(ctx, item.TileID)
	if errors.Is(err, catalog.ErrNotFound) {
		return &NotFoundError{TileID: item.TileID}
	}
	if err != nil {
		return storage("reload tile", err)
	}
	return &InsufficientStockError{
		TileID:    tile.ID,
		TileName:  tile.Name,
		Available: tile.Quantity,
		Requested: item.Quantity,
	}
}

// validateOrder checks the request shape and fills in defaults.
func validateOrder(req *OrderRequest) error {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	if req.CustomerName == "" {
		return invalid("customer_name", "customer name is required")
	}
	if len(req.Items) == 0 {
		return invalid("items", "at least one item is required")
	}
	for i, line := range req.Items {
		if line.TileID <= 0 {
			return invalid(lineField(i, "tile_id"), "tile id is required")
		}
		if line.Quantity <= 0 {
			return invalid(lineField(i, "quantity"), "quantity must be a positive integer")
		}
		if line.Price.IsNegative() {
			return invalid(lineField(i, "price"), "price must not be negative")
		}
		if !wholePaise(line.Price) {
			return invalid(lineField(i, "price"), "price %s has more than 2 decimal places", line.Price)
		}
	}
	if req.Discount.IsNegative() {
		return invalid("discount", "discount must not be negative")
	}
	if !wholePaise(req.Discount) {
		return invalid("discount", "discount %s has more than 2 decimal places", req.Discount)
	}
	if req.TaxAmount.IsNegative() {
		return invalid("tax_amount", "tax amount must not be negative")
	}
	if !wholePaise(req.TaxAmount) {
		return invalid("tax_amount", "tax amount %s has more than 2 decimal places", req.TaxAmount)
	}
	req.PaymentMethod = strings.TrimSpace(req.PaymentMethod)
	if req.PaymentMethod == "" {
		req.PaymentMethod = DefaultPaymentMethod
	}
	return nil
}

// wholePaise reports whether d needs no rounding to be stored as money.
func wholePaise(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

func lineField(i int, name string) string {
	return "items[" + strconv.Itoa(i) + "]." + name
}

func tileIDs(lines []OrderLine) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.TileID]; ok {
			continue
		}
		seen[line.TileID] = struct{}{}
		ids = append(ids, line.TileID)
	}
	return ids
}
