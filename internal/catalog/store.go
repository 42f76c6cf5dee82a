// Package catalog stores the tile products the shop sells.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"durgatraders/m/domain"
)

var (
	// ErrNotFound is returned when no tile has the requested id.
	ErrNotFound = errors.New("tile not found")
	// ErrInsufficientStock is returned by DecrementStock when the tile holds fewer units than requested.
	ErrInsufficientStock = errors.New("insufficient stock")
)

const tileColumns = `id, name, type, size, color, price, quantity, supplier, description, created_at, updated_at`

// TileInput carries the editable fields of a tile.
type TileInput struct {
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Size        string          `json:"size"`
	Color       string          `json:"color"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int64           `json:"quantity"`
	Supplier    string          `json:"supplier"`
	Description string          `json:"description"`
}

// Validate checks required fields. The message is safe to show to the user.
func (in TileInput) Validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"name", in.Name}, {"type", in.Type}, {"size", in.Size}, {"color", in.Color},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	if in.Price.IsNegative() {
		return errors.New("price must not be negative")
	}
	if in.Quantity < 0 {
		return errors.New("quantity must not be negative")
	}
	return nil
}

// Store reads and writes tiles through either a pool or a transaction.
type Store struct {
	q sqlx.ExtContext
}

// New constructs a Store backed by db.
func New(db *sqlx.DB) *Store {
	return &Store{q: db}
}

// WithTx returns a Store whose statements run inside tx.
func (s *Store) WithTx(tx *sqlx.Tx) *Store {
	return &Store{q: tx}
}

// List returns every tile, newest first.
func (s *Store) List(ctx context.Context) ([]domain.Tile, error) {
	tiles := []domain.Tile{}
	if err := sqlx.SelectContext(ctx, s.q, &tiles, `SELECT `+tileColumns+` FROM tiles ORDER BY created_at DESC, id DESC`); err != nil {
		return nil, fmt.Errorf("list tiles: %w", err)
	}
	return tiles, nil
}

// LowStock returns tiles whose quantity is at or below threshold, emptiest first.
func (s *Store) LowStock(ctx context.Context, threshold int64) ([]domain.Tile, error) {
	tiles := []domain.Tile{}
	query := s.q.Rebind(`SELECT ` + tileColumns + ` FROM tiles WHERE quantity <= ? ORDER BY quantity ASC, name ASC`)
	if err := sqlx.SelectContext(ctx, s.q, &tiles, query, threshold); err != nil {
		return nil, fmt.Errorf("list low stock tiles: %w", err)
	}
	return tiles, nil
}

func (s *Store) Get(ctx context.Context, id int64) (domain.Tile, error) {
	var tile domain.Tile
	err := sqlx.GetContext(ctx, s.q, &tile, s.q.Rebind(`SELECT `+tileColumns+` FROM tiles WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Tile{}, ErrNotFound
	}
	if err != nil {
		return domain.Tile{}, fmt.Errorf("get tile %d: %w", id, err)
	}
	return tile, nil
}

// GetMany loads the tiles with the given ids, keyed by id. Missing ids are simply absent.
func (s *Store) GetMany(ctx context.Context, ids []int64) (map[int64]domain.Tile, error) {
	found := make(map[int64]domain.Tile, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	query, args, err := sqlx.In(`SELECT `+tileColumns+` FROM tiles WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("prepare tile lookup: %w", err)
	}
	var tiles []domain.Tile
	if err := sqlx.SelectContext(ctx, s.q, &tiles, s.q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("load tiles: %w", err)
	}
	for _, tile := range tiles {
		found[tile.ID] = tile
	}
	return found, nil
}

// Create inserts a tile and returns its id.
func (s *Store) Create(ctx context.Context, in TileInput) (int64, error) {
	var id int64
	err := s.q.QueryRowxContext(ctx, s.q.Rebind(`INSERT INTO tiles (name, type, size, color, price, quantity, supplier, description)
                VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		strings.TrimSpace(in.Name), strings.TrimSpace(in.Type), strings.TrimSpace(in.Size), strings.TrimSpace(in.Color),
		in.Price.Round(2), in.Quantity, nullIfEmpty(in.Supplier), nullIfEmpty(in.Description)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create tile: %w", err)
	}
	return id, nil
}

// Update overwrites every editable field of tile id.
func (s *Store) Update(ctx context.Context, id int64, in TileInput) error {
	res, err := s.q.ExecContext(ctx, s.q.Rebind(`UPDATE tiles
                SET name = ?, type = ?, size = ?, color = ?, price = ?, quantity = ?, supplier = ?, description = ?, updated_at = CURRENT_TIMESTAMP
                WHERE id = ?`),
		strings.TrimSpace(in.Name), strings.TrimSpace(in.Type), strings.TrimSpace(in.Size), strings.TrimSpace(in.Color),
		in.Price.Round(2), in.Quantity, nullIfEmpty(in.Supplier), nullIfEmpty(in.Description), id)
	if err != nil {
		return fmt.Errorf("update tile %d: %w", id, err)
	}
	return expectOneRow(res, ErrNotFound)
}

// Delete removes tile id. Bills keep their own snapshot of the tile, so nothing else is touched.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, s.q.Rebind(`DELETE FROM tiles WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete tile %d: %w", id, err)
	}
	return expectOneRow(res, ErrNotFound)
}

// DecrementStock removes qty units from tile id only if at least qty are on hand.
// The check and the write are one statement, so concurrent callers cannot overdraw.
func (s *Store) DecrementStock(ctx context.Context, id, qty int64) error {
	res, err := s.q.ExecContext(ctx, s.q.Rebind(`UPDATE tiles SET quantity = quantity - ?, updated_at = CURRENT_TIMESTAMP
                WHERE id = ? AND quantity >= ?`), qty, id, qty)
	if err != nil {
		return fmt.Errorf("decrement stock of tile %d: %w", id, err)
	}
	return expectOneRow(res, ErrInsufficientStock)
}

func expectOneRow(res sql.Result, none error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return none
	}
	return nil
}

func nullIfEmpty(val string) *string {
	trimmed := strings.TrimSpace(val)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
