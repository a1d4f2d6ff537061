package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// schema is written once with dialect tokens and rendered per driver.
//
//	{{ID}}    auto-increment primary key
//	{{REF}}   column type referencing an {{ID}}
//	{{TS}}    timestamp column type
//	{{NOW}}   current timestamp default
//	{{BOOL}}  boolean column type
//	{{VIEW}}  view creation prefix
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id {{ID}},
		username VARCHAR(255) NOT NULL UNIQUE,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL DEFAULT '',
		role VARCHAR(32) NOT NULL DEFAULT 'user',
		balance DECIMAL(15,2) NOT NULL DEFAULT 0,
		created_at {{TS}} NOT NULL DEFAULT {{NOW}}
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		category_id {{ID}},
		name VARCHAR(255) NOT NULL UNIQUE,
		description TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS items (
		item_id {{ID}},
		owner_id {{REF}} NOT NULL,
		title VARCHAR(255) NOT NULL,
		description TEXT,
		year_created INT NOT NULL DEFAULT 0,
		is_verified {{BOOL}} NOT NULL DEFAULT FALSE,
		created_at {{TS}} NOT NULL DEFAULT {{NOW}},
		FOREIGN KEY (owner_id) REFERENCES users(user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS item_categories (
		item_id {{REF}} NOT NULL,
		category_id {{REF}} NOT NULL,
		PRIMARY KEY (item_id, category_id),
		FOREIGN KEY (item_id) REFERENCES items(item_id),
		FOREIGN KEY (category_id) REFERENCES categories(category_id)
	)`,
	`CREATE TABLE IF NOT EXISTS auctions (
		auction_id {{ID}},
		item_id {{REF}} NOT NULL,
		start_time {{TS}} NOT NULL,
		end_time {{TS}} NOT NULL,
		start_price DECIMAL(12,2) NOT NULL,
		current_price DECIMAL(12,2) NOT NULL DEFAULT 0,
		status VARCHAR(16) NOT NULL DEFAULT 'planned',
		FOREIGN KEY (item_id) REFERENCES items(item_id)
	)`,
	`CREATE TABLE IF NOT EXISTS bids (
		bid_id {{ID}},
		auction_id {{REF}} NOT NULL,
		user_id {{REF}} NOT NULL,
		amount DECIMAL(12,2) NOT NULL,
		bid_time {{TS}} NOT NULL DEFAULT {{NOW}},
		FOREIGN KEY (auction_id) REFERENCES auctions(auction_id),
		FOREIGN KEY (user_id) REFERENCES users(user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS escrow_accounts (
		escrow_id {{ID}},
		auction_id {{REF}} NOT NULL,
		buyer_id {{REF}} NOT NULL,
		amount DECIMAL(12,2) NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'held',
		updated_at {{TS}} NOT NULL DEFAULT {{NOW}},
		FOREIGN KEY (auction_id) REFERENCES auctions(auction_id),
		FOREIGN KEY (buyer_id) REFERENCES users(user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS auto_bids (
		auto_bid_id {{ID}},
		user_id {{REF}} NOT NULL,
		auction_id {{REF}} NOT NULL,
		max_limit DECIMAL(12,2) NOT NULL,
		created_at {{TS}} NOT NULL DEFAULT {{NOW}},
		UNIQUE (user_id, auction_id),
		FOREIGN KEY (user_id) REFERENCES users(user_id),
		FOREIGN KEY (auction_id) REFERENCES auctions(auction_id)
	)`,
	`CREATE TABLE IF NOT EXISTS system_logs (
		log_id {{ID}},
		level VARCHAR(16) NOT NULL,
		source VARCHAR(64) NOT NULL,
		message TEXT NOT NULL,
		created_at {{TS}} NOT NULL DEFAULT {{NOW}}
	)`,
	`{{VIEW}} v_active_lots_details AS
		SELECT a.auction_id, i.item_id, i.title AS item_title, u.username AS owner_username,
		       a.start_price, a.current_price, a.end_time, COUNT(b.bid_id) AS bid_count
		FROM auctions a
		JOIN items i ON i.item_id = a.item_id
		JOIN users u ON u.user_id = i.owner_id
		LEFT JOIN bids b ON b.auction_id = a.auction_id
		WHERE a.status = 'active'
		GROUP BY a.auction_id, i.item_id, i.title, u.username, a.start_price, a.current_price, a.end_time`,
	`{{VIEW}} v_category_sales AS
		SELECT c.category_id, c.name AS category, COUNT(e.escrow_id) AS lots_sold,
		       COALESCE(SUM(e.amount), 0) AS total_amount
		FROM categories c
		LEFT JOIN item_categories ic ON ic.category_id = c.category_id
		LEFT JOIN auctions a ON a.item_id = ic.item_id
		LEFT JOIN escrow_accounts e ON e.auction_id = a.auction_id
		GROUP BY c.category_id, c.name`,
	`{{VIEW}} v_top_bidders AS
		SELECT u.user_id, u.username, COUNT(b.bid_id) AS bid_count, MAX(b.amount) AS max_bid
		FROM users u
		JOIN bids b ON b.user_id = u.user_id
		GROUP BY u.user_id, u.username
		ORDER BY bid_count DESC, u.user_id ASC
		LIMIT 10`,
}

// indexes are applied after the tables.  MySQL lacks CREATE INDEX IF NOT
// EXISTS, so it relies on the indexes InnoDB builds for foreign keys.
var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_bids_auction_amount ON bids (auction_id, amount)`,
	`CREATE INDEX IF NOT EXISTS idx_auctions_item ON auctions (item_id)`,
	`CREATE INDEX IF NOT EXISTS idx_auctions_status ON auctions (status)`,
}

var dialects = map[string]*strings.Replacer{
	DriverMySQL: strings.NewReplacer(
		"{{ID}}", "BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY",
		"{{REF}}", "BIGINT UNSIGNED",
		"{{TS}}", "DATETIME(6)",
		"{{NOW}}", "CURRENT_TIMESTAMP(6)",
		"{{BOOL}}", "TINYINT(1)",
		"{{VIEW}}", "CREATE OR REPLACE VIEW",
	),
	DriverPostgres: strings.NewReplacer(
		"{{ID}}", "BIGSERIAL PRIMARY KEY",
		"{{REF}}", "BIGINT",
		"{{TS}}", "TIMESTAMP(6)",
		"{{NOW}}", "CURRENT_TIMESTAMP",
		"{{BOOL}}", "BOOLEAN",
		"{{VIEW}}", "CREATE OR REPLACE VIEW",
	),
	DriverSQLite: strings.NewReplacer(
		"{{ID}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{{REF}}", "INTEGER",
		"{{TS}}", "DATETIME",
		"{{NOW}}", "CURRENT_TIMESTAMP",
		"{{BOOL}}", "BOOLEAN",
		"{{VIEW}}", "CREATE VIEW IF NOT EXISTS",
	),
}

// Statements renders the schema for the given driver.
func Statements(driver string) ([]string, error) {
	r, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("no schema for driver %q", driver)
	}
	out := make([]string, 0, len(schema)+len(indexes))
	for _, s := range schema {
		out = append(out, r.Replace(s))
	}
	if driver != DriverMySQL {
		out = append(out, indexes...)
	}
	return out, nil
}

// Migrate creates missing tables, views and indexes.  Every statement is
// idempotent, so Migrate runs on each start.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	stmts, err := Statements(db.DriverName())
	if err != nil {
		return err
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("%s: %w", firstLine(s), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
