package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/bidmaster/internal/database"
	"github.com/iliyamo/bidmaster/internal/model"
)

// EscrowRepo provides data access to the escrow_accounts table.  Rows are
// created only by the settlement transaction of a finished auction.
type EscrowRepo struct {
	db *sqlx.DB
}

// NewEscrowRepo returns a new EscrowRepo bound to the provided database.
func NewEscrowRepo(db *sqlx.DB) *EscrowRepo { return &EscrowRepo{db: db} }

// CreateTx inserts an escrow row within tx and populates its ID.
func (r *EscrowRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, e *model.EscrowAccount) error {
	const q = `INSERT INTO escrow_accounts (auction_id, buyer_id, amount, status, updated_at) VALUES (?, ?, ?, ?, ?)`
	id, err := database.InsertID(ctx, tx, q, "escrow_id", e.AuctionID, e.BuyerID, e.Amount, e.Status, e.UpdatedAt)
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// GetByAuction returns the escrow row opened for an auction, or
// ErrNotFound when the auction finished without a winner (or has not
// finished yet).
func (r *EscrowRepo) GetByAuction(ctx context.Context, auctionID uint64) (*model.EscrowAccount, error) {
	var e model.EscrowAccount
	err := r.db.GetContext(ctx, &e, r.db.Rebind(`SELECT escrow_id, auction_id, buyer_id, amount, status, updated_at
		FROM escrow_accounts WHERE auction_id = ? ORDER BY escrow_id LIMIT 1`), auctionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// CountByAuction returns how many escrow rows exist for an auction.
func (r *EscrowRepo) CountByAuction(ctx context.Context, auctionID uint64) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM escrow_accounts WHERE auction_id = ?`), auctionID)
	return n, err
}
