// Package service implements the auction lifecycle: creating auctions,
// accepting bids, closing auctions and settling their escrow.  Every
// operation runs in a single database transaction; the only concurrency
// control is what that transaction and its guarded UPDATE statements give.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/bidmaster/internal/model"
	"github.com/iliyamo/bidmaster/internal/queue"
	"github.com/iliyamo/bidmaster/internal/repository"
	"github.com/iliyamo/bidmaster/internal/utils"
)

//go:generate mockgen -destination=mock_events.go -package=service . EventPublisher

// EventPublisher announces finished auctions to other systems.
type EventPublisher interface {
	PublishAuctionClosed(ctx context.Context, ev queue.AuctionClosedEvent) error
}

// BidResult is returned for an accepted bid.
type BidResult struct {
	Status   string          `json:"status"`
	NewPrice decimal.Decimal `json:"new_price"`
}

// CloseResult is returned by CloseAuction.  WinnerID is nil when the
// auction had no bids.
type CloseResult struct {
	Message  string  `json:"message"`
	WinnerID *uint64 `json:"winner_id"`
}

// AuctionService owns the auction workflow.
type AuctionService struct {
	db       *sqlx.DB
	auctions *repository.AuctionRepo
	bids     *repository.BidRepo
	escrow   *repository.EscrowRepo
	items    *repository.ItemRepo
	users    *repository.UserRepo
	clock    Clock
	events   EventPublisher

	// raisePrice is the guarded price update of an accepted bid.
	raisePrice func(ctx context.Context, tx *sqlx.Tx, auctionID uint64, amount decimal.Decimal) error
}

// workflowTx is used for every transaction the service opens.  Each
// statement must read the latest committed rows: after FinishTx locks the
// auction, WinningBidTx has to see every bid committed before that lock,
// which a REPEATABLE READ snapshot taken at the first SELECT would hide.
// SQLite serializes writers and ignores the level.
var workflowTx = &sql.TxOptions{Isolation: sql.LevelReadCommitted}

// NewAuctionService wires the repositories over db.  events may be nil, in
// which case no events are published.
func NewAuctionService(db *sqlx.DB, clock Clock, events EventPublisher) *AuctionService {
	if clock == nil {
		clock = SystemClock{}
	}
	s := &AuctionService{
		db:       db,
		auctions: repository.NewAuctionRepo(db),
		bids:     repository.NewBidRepo(db),
		escrow:   repository.NewEscrowRepo(db),
		items:    repository.NewItemRepo(db),
		users:    repository.NewUserRepo(db),
		clock:    clock,
		events:   events,
	}
	s.raisePrice = s.auctions.RaisePriceTx
	return s
}

func (s *AuctionService) begin(ctx context.Context) (*sqlx.Tx, error) {
	return s.db.BeginTxx(ctx, workflowTx)
}

// now is the clock reading as stored: UTC with microsecond precision, the
// finest resolution every supported database keeps.
func (s *AuctionService) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Microsecond)
}

// CreateAuction opens an active auction for an item starting now and
// ending durationMinutes later.
func (s *AuctionService) CreateAuction(ctx context.Context, itemID uint64, startPrice decimal.Decimal, durationMinutes int) (*model.Auction, error) {
	if !startPrice.IsPositive() {
		return nil, fail(ErrValidation, "start_price must be greater than 0")
	}
	if durationMinutes <= 0 {
		return nil, fail(ErrValidation, "duration_minutes must be greater than 0")
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return nil, internal("begin create auction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := s.items.GetByIDTx(ctx, tx, itemID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fail(ErrNotFound, "item not found")
		}
		return nil, internal("load item", err)
	}
	busy, err := s.auctions.HasOpenAuctionForItemTx(ctx, tx, itemID)
	if err != nil {
		return nil, internal("check item auctions", err)
	}
	if busy {
		return nil, fail(ErrConflict, "item is already on auction")
	}

	now := s.now()
	a := &model.Auction{
		ItemID:       itemID,
		StartTime:    now,
		EndTime:      now.Add(time.Duration(durationMinutes) * time.Minute),
		StartPrice:   startPrice,
		CurrentPrice: startPrice,
		Status:       model.AuctionActive,
	}
	if err := s.auctions.CreateTx(ctx, tx, a); err != nil {
		return nil, internal("insert auction", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, internal("commit create auction", err)
	}
	committed = true
	return a, nil
}

// GetAuction returns one auction.  It does not apply lazy expiry.
func (s *AuctionService) GetAuction(ctx context.Context, id uint64) (*model.Auction, error) {
	a, err := s.auctions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fail(ErrNotFound, "auction not found")
		}
		return nil, internal("load auction", err)
	}
	return a, nil
}

// ListAuctions pages through auctions by id.
func (s *AuctionService) ListAuctions(ctx context.Context, skip, limit int) ([]model.Auction, error) {
	list, err := s.auctions.List(ctx, skip, limit)
	if err != nil {
		return nil, internal("list auctions", err)
	}
	return list, nil
}

// PlaceBid validates and records a bid.  The checks run in a fixed order
// and the first failing one decides the error: auction exists, auction is
// active, auction has not expired, amount beats the current price, user
// exists, user balance covers the amount.  An expired auction is settled
// in the same call before the error is returned.
func (s *AuctionService) PlaceBid(ctx context.Context, auctionID, userID uint64, amount decimal.Decimal) (*BidResult, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, internal("begin bid", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	a, err := s.auctions.GetByIDTx(ctx, tx, auctionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fail(ErrNotFound, "auction not found")
		}
		return nil, internal("load auction", err)
	}
	if a.Status != model.AuctionActive {
		return nil, fail(ErrInvalidState, "auction is not active")
	}

	now := s.now()
	if a.Expired(now) {
		st, err := s.settleTx(ctx, tx, a, a.EndTime)
		if err != nil {
			return nil, internal("settle expired auction", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, internal("commit expiry", err)
		}
		committed = true
		s.publishClosed(ctx, st, queue.ReasonExpired)
		return nil, fail(ErrInvalidState, "auction finished")
	}

	if !amount.GreaterThan(a.CurrentPrice) {
		return nil, tooLow(a.CurrentPrice)
	}

	u, err := s.users.GetByIDTx(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fail(ErrNotFound, "user not found")
		}
		return nil, internal("load user", err)
	}
	if u.Balance.LessThan(amount) {
		return nil, fail(ErrInsufficientFunds, "balance %s is below bid %s", u.Balance.StringFixed(2), amount.StringFixed(2))
	}

	if err := s.raisePrice(ctx, tx, auctionID, amount); err != nil {
		if !errors.Is(err, repository.ErrConflict) {
			return nil, internal("raise price", err)
		}
		// A concurrent bid or close got there first.  Classify against
		// the committed state, read outside the aborted transaction.
		_ = tx.Rollback()
		committed = true
		return nil, s.classifyLostBid(ctx, auctionID)
	}

	b := &model.Bid{AuctionID: auctionID, UserID: userID, Amount: amount, BidTime: now}
	if err := s.bids.CreateTx(ctx, tx, b); err != nil {
		return nil, internal("insert bid", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, internal("commit bid", err)
	}
	committed = true

	utils.Info("bid accepted", map[string]any{
		"auction_id": auctionID,
		"user_id":    userID,
		"amount":     amount.String(),
		"bid_id":     b.ID,
	})
	return &BidResult{Status: "success", NewPrice: amount}, nil
}

func (s *AuctionService) classifyLostBid(ctx context.Context, auctionID uint64) error {
	a, err := s.auctions.GetByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(ErrNotFound, "auction not found")
		}
		return internal("reload auction", err)
	}
	if a.Status != model.AuctionActive {
		return fail(ErrInvalidState, "auction is not active")
	}
	return tooLow(a.CurrentPrice)
}

func tooLow(price decimal.Decimal) error {
	return fail(ErrInvalidAmount, "bid must be higher than %s", price.StringFixed(2))
}

// CloseAuction finishes an auction now and opens escrow for the highest
// bidder.  Closing a finished auction is rejected; the call is not
// idempotent.
func (s *AuctionService) CloseAuction(ctx context.Context, auctionID uint64) (*CloseResult, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, internal("begin close", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	a, err := s.auctions.GetByIDTx(ctx, tx, auctionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fail(ErrNotFound, "auction not found")
		}
		return nil, internal("load auction", err)
	}
	if a.Status == model.AuctionFinished {
		return nil, fail(ErrInvalidState, "auction already finished")
	}

	st, err := s.settleTx(ctx, tx, a, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fail(ErrInvalidState, "auction already finished")
		}
		return nil, internal("settle auction", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, internal("commit close", err)
	}
	committed = true

	s.publishClosed(ctx, st, queue.ReasonManual)

	res := &CloseResult{Message: "Auction closed"}
	if st.winner != nil {
		id := st.winner.UserID
		res.WinnerID = &id
		res.Message = "Auction closed and funds escrowed"
	}
	return res, nil
}

// settlement is the outcome of settleTx.
type settlement struct {
	auction *model.Auction
	winner  *model.Bid
	escrow  *model.EscrowAccount
}

// settleTx finishes a inside tx with the given end time and opens a held
// escrow row for the winning bid, if any.  The status change runs first so
// the row lock is held before the winner is chosen; a bid racing the close
// either committed earlier and is seen here, or fails its guarded update.
func (s *AuctionService) settleTx(ctx context.Context, tx *sqlx.Tx, a *model.Auction, endTime time.Time) (*settlement, error) {
	endTime = endTime.UTC()
	if err := s.auctions.FinishTx(ctx, tx, a.ID, endTime); err != nil {
		return nil, err
	}
	a.Status = model.AuctionFinished
	a.EndTime = endTime

	st := &settlement{auction: a}
	winner, err := s.bids.WinningBidTx(ctx, tx, a.ID)
	if err != nil {
		return nil, err
	}
	if winner == nil {
		return st, nil
	}
	st.winner = winner
	st.escrow = &model.EscrowAccount{
		AuctionID: a.ID,
		BuyerID:   winner.UserID,
		Amount:    winner.Amount,
		Status:    model.EscrowHeld,
		UpdatedAt: s.now(),
	}
	if err := s.escrow.CreateTx(ctx, tx, st.escrow); err != nil {
		return nil, err
	}
	return st, nil
}

// ExpireDue settles every active auction whose end time has passed and
// returns how many it finished.  Auctions finished concurrently by another
// caller are skipped.
func (s *AuctionService) ExpireDue(ctx context.Context) (int, error) {
	active, err := s.auctions.ListActive(ctx)
	if err != nil {
		return 0, internal("list active auctions", err)
	}
	now := s.now()
	n := 0
	for i := range active {
		if !active[i].Expired(now) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
		done, err := s.expireOne(ctx, active[i].ID, now)
		if err != nil {
			return n, err
		}
		if done {
			n++
		}
	}
	return n, nil
}

func (s *AuctionService) expireOne(ctx context.Context, auctionID uint64, now time.Time) (bool, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return false, internal("begin expiry", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	a, err := s.auctions.GetByIDTx(ctx, tx, auctionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, internal("load auction", err)
	}
	if a.Status != model.AuctionActive || !a.Expired(now) {
		return false, nil
	}
	st, err := s.settleTx(ctx, tx, a, a.EndTime)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return false, nil
		}
		return false, internal("settle expired auction", err)
	}
	if err := tx.Commit(); err != nil {
		return false, internal("commit expiry", err)
	}
	committed = true
	s.publishClosed(ctx, st, queue.ReasonExpired)
	return true, nil
}

// DeleteAuction removes an auction with its bids and escrow rows.
func (s *AuctionService) DeleteAuction(ctx context.Context, auctionID uint64) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return internal("begin delete", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := s.auctions.DeleteTx(ctx, tx, auctionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(ErrNotFound, "auction not found")
		}
		return internal("delete auction", err)
	}
	if err := tx.Commit(); err != nil {
		return internal("commit delete", err)
	}
	committed = true
	return nil
}

// ListBids returns the bids of an existing auction in acceptance order.
func (s *AuctionService) ListBids(ctx context.Context, auctionID uint64) ([]model.Bid, error) {
	if _, err := s.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}
	bids, err := s.bids.ListByAuction(ctx, auctionID)
	if err != nil {
		return nil, internal("list bids", err)
	}
	return bids, nil
}

// GetEscrow returns the escrow row of a finished auction.
func (s *AuctionService) GetEscrow(ctx context.Context, auctionID uint64) (*model.EscrowAccount, error) {
	if _, err := s.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}
	e, err := s.escrow.GetByAuction(ctx, auctionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fail(ErrNotFound, "no escrow for auction")
		}
		return nil, internal("load escrow", err)
	}
	return e, nil
}

// publishClosed sends the auction.closed event.  Failures are logged only:
// the settlement is already committed.
func (s *AuctionService) publishClosed(ctx context.Context, st *settlement, reason string) {
	if s.events == nil || st == nil {
		return
	}
	ev := queue.AuctionClosedEvent{
		AuctionID: st.auction.ID,
		ItemID:    st.auction.ItemID,
		Reason:    reason,
		ClosedAt:  st.auction.EndTime.Format(time.RFC3339Nano),
	}
	if st.winner != nil {
		winner := st.winner.UserID
		ev.WinnerID = &winner
		ev.Amount = st.winner.Amount.StringFixed(2)
	}
	if st.escrow != nil {
		escrowID := st.escrow.ID
		ev.EscrowID = &escrowID
	}
	if err := s.events.PublishAuctionClosed(ctx, ev); err != nil {
		utils.Error("publish auction.closed failed", map[string]any{
			"auction_id": ev.AuctionID,
			"error":      err.Error(),
		})
	}
}

func internal(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}
