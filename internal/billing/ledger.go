package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"durgatraders/m/domain"
)

// ErrBillNotFound is returned when no bill has the requested id.
var ErrBillNotFound = errors.New("bill not found")

const billColumns = `id, bill_number, customer_name, customer_phone, customer_address, items,
        total_amount, discount, tax_amount, final_amount, payment_method, notes, bill_date`

// Ledger is the append-only store of committed bills.
type Ledger struct {
	q sqlx.ExtContext
}

func NewLedger(db *sqlx.DB) *Ledger {
	return &Ledger{q: db}
}

// WithTx returns a Ledger whose statements run inside tx.
func (l *Ledger) WithTx(tx *sqlx.Tx) *Ledger {
	return &Ledger{q: tx}
}

// Append writes bill as a single row and returns its id.
func (l *Ledger) Append(ctx context.Context, bill domain.Bill) (int64, error) {
	var id int64
	err := l.q.QueryRowxContext(ctx, l.q.Rebind(`INSERT INTO bills (bill_number, customer_name, customer_phone, customer_address,
                total_amount, discount, tax_amount, final_amount, payment_method, items, notes, bill_date)
                VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		bill.BillNumber, bill.CustomerName, bill.CustomerPhone, bill.CustomerAddress,
		bill.TotalAmount, bill.Discount, bill.TaxAmount, bill.FinalAmount, bill.PaymentMethod,
		bill.Items, bill.Notes, bill.BillDate).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert bill %s: %w", bill.BillNumber, err)
	}
	return id, nil
}

// List returns every bill, newest first.
func (l *Ledger) List(ctx context.Context) ([]domain.Bill, error) {
	bills := []domain.Bill{}
	if err := sqlx.SelectContext(ctx, l.q, &bills, `SELECT `+billColumns+` FROM bills ORDER BY bill_date DESC, id DESC`); err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	return bills, nil
}

func (l *Ledger) Get(ctx context.Context, id int64) (domain.Bill, error) {
	var bill domain.Bill
	err := sqlx.GetContext(ctx, l.q, &bill, l.q.Rebind(`SELECT `+billColumns+` FROM bills WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Bill{}, ErrBillNotFound
	}
	if err != nil {
		return domain.Bill{}, fmt.Errorf("get bill %d: %w", id, err)
	}
	return bill, nil
}

// SalesSummary aggregates bills over a period.
type SalesSummary struct {
	BillCount     int64           `json:"bill_count"`
	Revenue       decimal.Decimal `json:"revenue"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	TotalTax      decimal.Decimal `json:"total_tax"`
}

// Summary totals the bills dated in [from, to). A zero bound leaves that side open.
func (l *Ledger) Summary(ctx context.Context, from, to time.Time) (SalesSummary, error) {
	var (
		clauses []string
		args    []any
	)
	if !from.IsZero() {
		clauses = append(clauses, "bill_date >= ?")
		args = append(args, formatBillDate(from))
	}
	if !to.IsZero() {
		clauses = append(clauses, "bill_date < ?")
		args = append(args, formatBillDate(to))
	}

	query := `SELECT final_amount, discount, tax_amount FROM bills`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	var rows []struct {
		FinalAmount decimal.Decimal `db:"final_amount"`
		Discount    decimal.Decimal `db:"discount"`
		TaxAmount   decimal.Decimal `db:"tax_amount"`
	}
	if err := sqlx.SelectContext(ctx, l.q, &rows, l.q.Rebind(query), args...); err != nil {
		return SalesSummary{}, fmt.Errorf("summarize bills: %w", err)
	}

	summary := SalesSummary{Revenue: decimal.Zero, TotalDiscount: decimal.Zero, TotalTax: decimal.Zero}
	for _, row := range rows {
		summary.BillCount++
		summary.Revenue = summary.Revenue.Add(row.FinalAmount)
		summary.TotalDiscount = summary.TotalDiscount.Add(row.Discount)
		summary.TotalTax = summary.TotalTax.Add(row.TaxAmount)
	}
	summary.Revenue = summary.Revenue.Round(2)
	summary.TotalDiscount = summary.TotalDiscount.Round(2)
	summary.TotalTax = summary.TotalTax.Round(2)
	return summary, nil
}

// formatBillDate renders t so that bill dates sort lexically in time order.
func formatBillDate(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
