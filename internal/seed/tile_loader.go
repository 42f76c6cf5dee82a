package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"durgatraders/m/internal/catalog"
)

// LoadTiles fills an empty catalog from the CSV at csvPath and returns the rows inserted.
// Columns: name, type, size, color, price, quantity, supplier, description.
// A catalog that already holds tiles is left untouched.
func LoadTiles(db *sqlx.DB, csvPath string, log *zap.Logger) (int, error) {
	var existing int
	if err := db.Get(&existing, `SELECT COUNT(*) FROM tiles`); err != nil {
		return 0, fmt.Errorf("count tiles: %w", err)
	}
	if existing > 0 {
		log.Debug("catalog already seeded", zap.Int("tiles", existing))
		return 0, nil
	}

	file, err := os.Open(csvPath)
	if errors.Is(err, os.ErrNotExist) {
		log.Info("no tile seed file", zap.String("path", csvPath))
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("open tile seed %s: %w", csvPath, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	// Skip header
	if _, err := reader.Read(); err != nil {
		return 0, fmt.Errorf("read tile seed header: %w", err)
	}

	tx, err := db.Beginx()
	if err != nil {
		return 0, fmt.Errorf("start tile seed: %w", err)
	}
	defer tx.Rollback()

	tiles := catalog.New(db).WithTx(tx)
	ctx := context.Background()

	rows := 0
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warn("unable to read tile row", zap.Int("line", line), zap.Error(err))
			continue
		}
		in, err := parseTile(record)
		if err != nil {
			log.Warn("skipping tile row", zap.Int("line", line), zap.Error(err))
			continue
		}
		if _, err := tiles.Create(ctx, in); err != nil {
			return 0, fmt.Errorf("seed line %d: %w", line, err)
		}
		rows++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tile seed: %w", err)
	}
	log.Info("seeded tile catalog", zap.Int("rows", rows), zap.String("path", csvPath))
	return rows, nil
}

func parseTile(record []string) (catalog.TileInput, error) {
	if len(record) < 6 {
		return catalog.TileInput{}, fmt.Errorf("expected at least 6 columns, got %d", len(record))
	}
	field := func(i int) string {
		if i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}
	price, err := decimal.NewFromString(field(4))
	if err != nil {
		return catalog.TileInput{}, fmt.Errorf("price %q: %w", field(4), err)
	}
	qty, err := strconv.ParseInt(field(5), 10, 64)
	if err != nil {
		return catalog.TileInput{}, fmt.Errorf("quantity %q: %w", field(5), err)
	}
	in := catalog.TileInput{
		Name:        field(0),
		Type:        field(1),
		Size:        field(2),
		Color:       field(3),
		Price:       price,
		Quantity:    qty,
		Supplier:    field(6),
		Description: field(7),
	}
	return in, in.Validate()
}
