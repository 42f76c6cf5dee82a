package migrations

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"durgatraders/m/internal/database"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS tiles (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            type TEXT NOT NULL,
            size TEXT NOT NULL,
            color TEXT NOT NULL,
            price REAL NOT NULL CHECK (price >= 0),
            quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
            supplier TEXT,
            description TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
	`CREATE TABLE IF NOT EXISTS bills (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            bill_number TEXT NOT NULL UNIQUE,
            customer_name TEXT NOT NULL,
            customer_phone TEXT NOT NULL DEFAULT '',
            customer_address TEXT NOT NULL DEFAULT '',
            total_amount REAL NOT NULL,
            discount REAL NOT NULL DEFAULT 0,
            tax_amount REAL NOT NULL DEFAULT 0,
            final_amount REAL NOT NULL,
            payment_method TEXT NOT NULL DEFAULT 'Cash',
            items TEXT NOT NULL,
            notes TEXT NOT NULL DEFAULT '',
            bill_date TEXT NOT NULL
        );`,
	`CREATE INDEX IF NOT EXISTS idx_bills_bill_date ON bills(bill_date);`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS tiles (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			size TEXT NOT NULL,
			color TEXT NOT NULL,
			price NUMERIC(10,2) NOT NULL CHECK (price >= 0),
			quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
			supplier TEXT,
			description TEXT,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		);`,
	`CREATE TABLE IF NOT EXISTS bills (
			id SERIAL PRIMARY KEY,
			bill_number TEXT NOT NULL UNIQUE,
			customer_name TEXT NOT NULL,
			customer_phone TEXT NOT NULL DEFAULT '',
			customer_address TEXT NOT NULL DEFAULT '',
			total_amount NUMERIC(12,2) NOT NULL,
			discount NUMERIC(12,2) NOT NULL DEFAULT 0,
			tax_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
			final_amount NUMERIC(12,2) NOT NULL,
			payment_method TEXT NOT NULL DEFAULT 'Cash',
			items JSONB NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			bill_date TEXT NOT NULL
		);`,
	`CREATE INDEX IF NOT EXISTS idx_bills_bill_date ON bills(bill_date);`,
}

// Run creates the tiles and bills tables for the connected dialect.
func Run(db *sqlx.DB) error {
	schema := sqliteSchema
	if database.IsPostgres(db) {
		schema = postgresSchema
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
