package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/bidmaster/internal/database"
	"github.com/iliyamo/bidmaster/internal/model"
)

const bidColumns = `bid_id, auction_id, user_id, amount, bid_time`

// BidRepo stores accepted bids.  Rows are append-only; the only delete
// path is the cascade performed by AuctionRepo.DeleteTx.
type BidRepo struct {
	db *sqlx.DB
}

// NewBidRepo returns a new BidRepo bound to the given database.
func NewBidRepo(db *sqlx.DB) *BidRepo { return &BidRepo{db: db} }

// CreateTx inserts a bid within the caller's transaction and populates the
// generated ID.  The caller must commit or roll back.
func (r *BidRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, b *model.Bid) error {
	const q = `INSERT INTO bids (auction_id, user_id, amount, bid_time) VALUES (?, ?, ?, ?)`
	id, err := database.InsertID(ctx, tx, q, "bid_id", b.AuctionID, b.UserID, b.Amount, b.BidTime)
	if err != nil {
		return err
	}
	b.ID = id
	return nil
}

// WinningBidTx returns the highest bid of an auction.  Equal amounts are
// resolved in favour of the earliest bid_time, then the lowest bid_id, so
// the result is deterministic.  It returns nil and no error when the
// auction has no bids.
func (r *BidRepo) WinningBidTx(ctx context.Context, tx *sqlx.Tx, auctionID uint64) (*model.Bid, error) {
	var b model.Bid
	err := tx.GetContext(ctx, &b, tx.Rebind(`SELECT `+bidColumns+` FROM bids
		WHERE auction_id = ?
		ORDER BY amount DESC, bid_time ASC, bid_id ASC
		LIMIT 1`), auctionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

// ListByAuction returns the bids of an auction in acceptance order.
func (r *BidRepo) ListByAuction(ctx context.Context, auctionID uint64) ([]model.Bid, error) {
	bids := make([]model.Bid, 0)
	err := r.db.SelectContext(ctx, &bids,
		r.db.Rebind(`SELECT `+bidColumns+` FROM bids WHERE auction_id = ? ORDER BY bid_time, bid_id`), auctionID)
	return bids, err
}
