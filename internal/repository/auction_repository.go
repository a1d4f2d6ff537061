// Package repository contains data access logic for auctions.  An auction
// row carries the live price of the lot; all price and status changes go
// through guarded UPDATE statements so that the check and the write happen
// in one statement under the row lock.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/bidmaster/internal/database"
	"github.com/iliyamo/bidmaster/internal/model"
)

const auctionColumns = `auction_id, item_id, start_time, end_time, start_price, current_price, status`

// AuctionRepo manages persistence for auctions.
type AuctionRepo struct {
	db *sqlx.DB
}

// NewAuctionRepo constructs an AuctionRepo with the given DB handle.
func NewAuctionRepo(db *sqlx.DB) *AuctionRepo {
	return &AuctionRepo{db: db}
}

// DB exposes the underlying handle so callers can begin transactions
// spanning several repositories.
func (r *AuctionRepo) DB() *sqlx.DB {
	return r.db
}

// CreateTx inserts a new auction inside tx and populates its ID.
func (r *AuctionRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, a *model.Auction) error {
	const q = `INSERT INTO auctions (item_id, start_time, end_time, start_price, current_price, status) VALUES (?, ?, ?, ?, ?, ?)`
	id, err := database.InsertID(ctx, tx, q, "auction_id",
		a.ItemID, a.StartTime, a.EndTime, a.StartPrice, a.CurrentPrice, a.Status)
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

// GetByID retrieves an auction by its ID.  It returns ErrNotFound if there
// is no matching row.
func (r *AuctionRepo) GetByID(ctx context.Context, id uint64) (*model.Auction, error) {
	return getAuction(ctx, r.db, id)
}

// GetByIDTx is GetByID within tx.
func (r *AuctionRepo) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id uint64) (*model.Auction, error) {
	return getAuction(ctx, tx, id)
}

func getAuction(ctx context.Context, q sqlx.ExtContext, id uint64) (*model.Auction, error) {
	var a model.Auction
	err := sqlx.GetContext(ctx, q, &a, q.Rebind(`SELECT `+auctionColumns+` FROM auctions WHERE auction_id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// List returns auctions ordered by ID with offset pagination.
func (r *AuctionRepo) List(ctx context.Context, skip, limit int) ([]model.Auction, error) {
	auctions := make([]model.Auction, 0)
	err := r.db.SelectContext(ctx, &auctions,
		r.db.Rebind(`SELECT `+auctionColumns+` FROM auctions ORDER BY auction_id LIMIT ? OFFSET ?`), limit, skip)
	return auctions, err
}

// ListActive returns every auction in status active.  The expiry sweeper
// filters the result by end_time in Go so that time comparison does not
// depend on how each driver stores timestamps.
func (r *AuctionRepo) ListActive(ctx context.Context) ([]model.Auction, error) {
	auctions := make([]model.Auction, 0)
	err := r.db.SelectContext(ctx, &auctions,
		r.db.Rebind(`SELECT `+auctionColumns+` FROM auctions WHERE status = ? ORDER BY end_time`), model.AuctionActive)
	return auctions, err
}

// HasOpenAuctionForItemTx reports whether the item is attached to any
// auction that is not cancelled.
func (r *AuctionRepo) HasOpenAuctionForItemTx(ctx context.Context, tx *sqlx.Tx, itemID uint64) (bool, error) {
	var n int
	err := tx.GetContext(ctx, &n,
		tx.Rebind(`SELECT COUNT(*) FROM auctions WHERE item_id = ? AND status <> ?`), itemID, model.AuctionCancelled)
	return n > 0, err
}

// RaisePriceTx sets current_price to amount only while the auction is
// active and its price is still below amount.  It returns ErrConflict when
// the guard rejects the update, which means a concurrent bid raised the
// price first or the auction left the active state.
func (r *AuctionRepo) RaisePriceTx(ctx context.Context, tx *sqlx.Tx, auctionID uint64, amount decimal.Decimal) error {
	res, err := tx.ExecContext(ctx,
		tx.Rebind(`UPDATE auctions SET current_price = ? WHERE auction_id = ? AND status = ? AND current_price < ?`),
		amount, auctionID, model.AuctionActive, amount)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// FinishTx moves the auction to finished and stamps end_time unless it is
// already finished.  ErrConflict means another transaction finished it.
func (r *AuctionRepo) FinishTx(ctx context.Context, tx *sqlx.Tx, auctionID uint64, endTime time.Time) error {
	res, err := tx.ExecContext(ctx,
		tx.Rebind(`UPDATE auctions SET status = ?, end_time = ? WHERE auction_id = ? AND status <> ?`),
		model.AuctionFinished, endTime, auctionID, model.AuctionFinished)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// DeleteTx removes an auction together with its escrow rows and bids.
// Children are deleted first so foreign keys hold on every driver.
func (r *AuctionRepo) DeleteTx(ctx context.Context, tx *sqlx.Tx, auctionID uint64) error {
	for _, q := range []string{
		`DELETE FROM escrow_accounts WHERE auction_id = ?`,
		`DELETE FROM auto_bids WHERE auction_id = ?`,
		`DELETE FROM bids WHERE auction_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, tx.Rebind(q), auctionID); err != nil {
			return err
		}
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM auctions WHERE auction_id = ?`), auctionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}
