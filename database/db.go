package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

func InitDB(logger *zap.Logger) (*sql.DB, error) {
	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "postgres")
	password := getEnv("DB_PASSWORD", "postgres")
	dbname := getEnv("DB_NAME", "bookingdb")

	psqlInfo := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := bootstrapSchema(db); err != nil {
		return nil, fmt.Errorf("failed to bootstrap schema: %w", err)
	}

	logger.Info("Database connection established")
	return db, nil
}

func bootstrapSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS services (
			id SERIAL PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			price NUMERIC(12,2) NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			available BOOLEAN NOT NULL DEFAULT TRUE,
			stock INTEGER,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS service_options (
			id SERIAL PRIMARY KEY,
			service_id INTEGER NOT NULL REFERENCES services(id),
			title VARCHAR(255) NOT NULL,
			price NUMERIC(12,2) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS carts (
			id SERIAL PRIMARY KEY,
			user_id INTEGER NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS cart_items (
			id SERIAL PRIMARY KEY,
			cart_id INTEGER NOT NULL REFERENCES carts(id),
			service_id INTEGER NOT NULL REFERENCES services(id),
			option_id INTEGER REFERENCES service_options(id),
			quantity INTEGER NOT NULL CHECK (quantity >= 1),
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		// One row per (cart, service, option); NULL options collapse to 0 so
		// the uniqueness holds for option-less services too.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_cart_items_line
			ON cart_items (cart_id, service_id, COALESCE(option_id, 0))`,
		`CREATE TABLE IF NOT EXISTS coupons (
			id SERIAL PRIMARY KEY,
			code VARCHAR(64) NOT NULL,
			discount_type VARCHAR(16) NOT NULL,
			discount_value NUMERIC(12,2) NOT NULL,
			min_order_amount NUMERIC(12,2),
			max_discount NUMERIC(12,2),
			max_uses INTEGER,
			used_count INTEGER NOT NULL DEFAULT 0,
			valid_from TIMESTAMP NOT NULL,
			valid_until TIMESTAMP NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_coupons_code ON coupons (LOWER(code))`,
		`CREATE TABLE IF NOT EXISTS orders (
			id SERIAL PRIMARY KEY,
			order_number VARCHAR(64) NOT NULL UNIQUE,
			user_id INTEGER NOT NULL,
			total_amount NUMERIC(12,2) NOT NULL,
			discount_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
			coupon_id INTEGER REFERENCES coupons(id),
			coupon_code VARCHAR(64) NOT NULL DEFAULT '',
			status VARCHAR(32) NOT NULL,
			payment_status VARCHAR(32) NOT NULL,
			payment_method VARCHAR(32) NOT NULL DEFAULT '',
			paytabs_tran_ref VARCHAR(64) NOT NULL DEFAULT '',
			paymob_order_id VARCHAR(64) NOT NULL DEFAULT '',
			paymob_payment_key TEXT NOT NULL DEFAULT '',
			stripe_intent_id VARCHAR(64) NOT NULL DEFAULT '',
			bank_receipt_ref VARCHAR(255) NOT NULL DEFAULT '',
			bank_transfer_status VARCHAR(32) NOT NULL DEFAULT '',
			approved_by INTEGER,
			approved_at TIMESTAMP,
			notes TEXT NOT NULL DEFAULT '',
			scheduled_date TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_paytabs ON orders (paytabs_tran_ref) WHERE paytabs_tran_ref <> ''`,
		`CREATE INDEX IF NOT EXISTS idx_orders_paymob ON orders (paymob_order_id) WHERE paymob_order_id <> ''`,
		`CREATE INDEX IF NOT EXISTS idx_orders_stripe ON orders (stripe_intent_id) WHERE stripe_intent_id <> ''`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id SERIAL PRIMARY KEY,
			order_id INTEGER NOT NULL REFERENCES orders(id),
			service_id INTEGER NOT NULL,
			option_id INTEGER,
			quantity INTEGER NOT NULL,
			unit_price NUMERIC(12,2) NOT NULL,
			total_price NUMERIC(12,2) NOT NULL,
			notes TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id SERIAL PRIMARY KEY,
			order_id INTEGER NOT NULL REFERENCES orders(id),
			amount NUMERIC(12,2) NOT NULL,
			currency VARCHAR(8) NOT NULL,
			gateway VARCHAR(32) NOT NULL,
			transaction_id VARCHAR(128) NOT NULL DEFAULT '',
			status VARCHAR(32) NOT NULL,
			checkout_ref TEXT NOT NULL DEFAULT '',
			raw_payload JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_order_gateway ON payments (order_id, gateway)`,
		`CREATE TABLE IF NOT EXISTS order_tracking (
			id SERIAL PRIMARY KEY,
			order_id INTEGER NOT NULL REFERENCES orders(id),
			status VARCHAR(32) NOT NULL,
			title VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			admin_id INTEGER,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		// Replayed webhook deliveries are detected by event id before any
		// state-machine work happens.
		`CREATE TABLE IF NOT EXISTS webhook_events (
			event_id VARCHAR(128) NOT NULL,
			gateway VARCHAR(32) NOT NULL,
			processed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (event_id, gateway)
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// IsConflict reports whether err is a concurrency failure worth retrying:
// a unique violation from two writers racing the same absent row, a
// serialization failure, or a deadlock the server broke by aborting us.
func IsConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case "23505", "40001", "40P01":
		return true
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
