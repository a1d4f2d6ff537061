package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bidmaster/internal/database"
	"github.com/iliyamo/bidmaster/internal/model"
	"github.com/iliyamo/bidmaster/internal/queue"
	"github.com/iliyamo/bidmaster/internal/repository"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestService(t *testing.T, events EventPublisher) (*AuctionService, *sqlx.DB, *fakeClock) {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewAuctionService(db, clock, events), db, clock
}

func seedUser(t *testing.T, db *sqlx.DB, name, balance string) uint64 {
	t.Helper()
	u := &model.User{Username: name, Email: name + "@example.com", Balance: dec(balance)}
	require.NoError(t, repository.NewUserRepo(db).Create(context.Background(), u, "secret", 4))
	return u.ID
}

func seedItem(t *testing.T, db *sqlx.DB, owner uint64, title string) uint64 {
	t.Helper()
	it := &model.Item{OwnerID: owner, Title: title, YearCreated: 1921}
	require.NoError(t, repository.NewItemRepo(db).Create(context.Background(), it))
	return it.ID
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func TestAuctionFlow_BidThenClose(t *testing.T) {
	svc, db, clock := newTestService(t, nil)
	ctx := context.Background()

	owner := seedUser(t, db, "owner", "0")
	alice := seedUser(t, db, "alice", "1000")
	bob := seedUser(t, db, "bob", "1000")
	item := seedItem(t, db, owner, "Still life")

	a, err := svc.CreateAuction(ctx, item, dec("100"), 60)
	require.NoError(t, err)
	require.NotZero(t, a.ID)
	assert.Equal(t, model.AuctionActive, a.Status)
	requireDecimal(t, "100", a.CurrentPrice)
	assert.True(t, a.EndTime.Equal(clock.now.Add(time.Hour)))

	res, err := svc.PlaceBid(ctx, a.ID, alice, dec("150"))
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	requireDecimal(t, "150", res.NewPrice)

	_, err = svc.PlaceBid(ctx, a.ID, bob, dec("120"))
	require.ErrorIs(t, err, ErrInvalidAmount)
	assert.Contains(t, err.Error(), "150")

	got, err := svc.GetAuction(ctx, a.ID)
	require.NoError(t, err)
	requireDecimal(t, "150", got.CurrentPrice)

	closed, err := svc.CloseAuction(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, closed.WinnerID)
	assert.Equal(t, alice, *closed.WinnerID)
	assert.Equal(t, "Auction closed and funds escrowed", closed.Message)

	e, err := svc.GetEscrow(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, alice, e.BuyerID)
	assert.Equal(t, model.EscrowHeld, e.Status)
	requireDecimal(t, "150", e.Amount)

	got, err = svc.GetAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AuctionFinished, got.Status)
}

func TestCloseAuction_HighestAcceptedBidWins(t *testing.T) {
	svc, db, _ := newTestService(t, nil)
	ctx := context.Background()

	owner := seedUser(t, db, "owner", "0")
	alice := seedUser(t, db, "alice", "1000")
	bob := seedUser(t, db, "bob", "1000")
	carol := seedUser(t, db, "carol", "1000")
	a, err := svc.CreateAuction(ctx, seedItem(t, db, owner, "Vase"), dec("50"), 60)
	require.NoError(t, err)

	_, err = svc.PlaceBid(ctx, a.ID, alice, dec("100"))
	require.NoError(t, err)
	_, err = svc.PlaceBid(ctx, a.ID, bob, dec("250"))
	require.NoError(t, err)
	_, err = svc.PlaceBid(ctx, a.ID, carol, dec("180"))
	require.ErrorIs(t, err, ErrInvalidAmount)

	bids, err := svc.ListBids(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, bids, 2)
	assert.Equal(t, alice, bids[0].UserID)
	assert.Equal(t, bob, bids[1].UserID)

	res, err := svc.CloseAuction(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, res.WinnerID)
	assert.Equal(t, bob, *res.WinnerID)

	e, err := svc.GetEscrow(ctx, a.ID)
	require.NoError(t, err)
	requireDecimal(t, "250", e.Amount)
}

func TestPlaceBid_Checks(t *testing.T) {
	svc, db, _ := newTestService(t, nil)
	ctx := context.Background()

	owner := seedUser(t, db, "owner", "0")
	rich := seedUser(t, db, "rich", "500")
	poor := seedUser(t, db, "poor", "120")

	active, err := svc.CreateAuction(ctx, seedItem(t, db, owner, "Clock"), dec("100"), 60)
	require.NoError(t, err)
	finished, err := svc.CreateAuction(ctx, seedItem(t, db, owner, "Lamp"), dec("100"), 60)
	require.NoError(t, err)
	_, err = svc.CloseAuction(ctx, finished.ID)
	require.NoError(t, err)

	tests := []struct {
		name      string
		auctionID uint64
		userID    uint64
		amount    string
		wantErr   error
		wantMsg   string
	}{
		{
			name:      "unknown_auction",
			auctionID: 9999,
			userID:    9999,
			amount:    "1",
			wantErr:   ErrNotFound,
			wantMsg:   "auction not found",
		},
		{
			name:      "finished_auction_before_amount_and_user",
			auctionID: finished.ID,
			userID:    9999,
			amount:    "1",
			wantErr:   ErrInvalidState,
			wantMsg:   "auction is not active",
		},
		{
			name:      "amount_checked_before_user",
			auctionID: active.ID,
			userID:    9999,
			amount:    "50",
			wantErr:   ErrInvalidAmount,
			wantMsg:   "bid must be higher than 100.00",
		},
		{
			name:      "amount_equal_to_price",
			auctionID: active.ID,
			userID:    rich,
			amount:    "100",
			wantErr:   ErrInvalidAmount,
		},
		{
			name:      "unknown_user",
			auctionID: active.ID,
			userID:    9999,
			amount:    "150",
			wantErr:   ErrNotFound,
			wantMsg:   "user not found",
		},
		{
			name:      "balance_too_low",
			auctionID: active.ID,
			userID:    poor,
			amount:    "150",
			wantErr:   ErrInsufficientFunds,
			wantMsg:   "balance 120.00 is below bid 150.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.PlaceBid(ctx, tt.auctionID, tt.userID, dec(tt.amount))
			require.Nil(t, res)
			require.ErrorIs(t, err, tt.wantErr)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, err.Error())
			}
		})
	}

	got, err := svc.GetAuction(ctx, active.ID)
	require.NoError(t, err)
	requireDecimal(t, "100", got.CurrentPrice)
	bids, err := svc.ListBids(ctx, active.ID)
	require.NoError(t, err)
	assert.Empty(t, bids)
}

func TestPlaceBid_BalanceEqualToAmount(t *testing.T) {
	svc, db, _ := newTestService(t, nil)
	ctx := context.Background()

	owner := seedUser(t, db, "owner", "0")
	exact := seedUser(t, db, "exact", "150.50")
	a, err := svc.CreateAuction(ctx, seedItem(t, db, owner, "Rug"), dec("100"), 60)
	require.NoError(t, err)

	res, err := svc.PlaceBid(ctx, a.ID, exact, dec("150.50"))
	require.NoError(t, err)
	requireDecimal(t, "150.50", res.NewPrice)

	// Balances are checked, never debited.
	u, err := repository.NewUserRepo(db).GetByID(ctx, exact)
	require.NoError(t, err)
	requireDecimal(t, "150.50", u.Balance)
}

func TestCloseAuction_SecondCloseRejected(t *testing.T) {
	svc, db, _ := newTestService(t, nil)
	ctx := context.Background()

	owner := seedUser(t, db, "owner", "0")
	alice := seedUser(t, db, "alice", "1000")
	a, err := svc.CreateAuction(ctx, seedItem(t, db, owner, "Bowl"), dec("10"), 60)
	require.NoError(t, err)
	_, err = svc.PlaceBid(ctx, a.ID, alice, dec("20"))
	require.NoError(t, err)

	_, err = svc.CloseAuction(ctx, a.ID)
	require.NoError(t, err)
	_, err = svc.CloseAuction(ctx, a.ID)
	require.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, "auction already finished", err.Error())

	n, err := repository.NewEscrowRepo(db).CountByAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = svc.PlaceBid(ctx, a.ID, alice, dec("30"))
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestCloseAuction_WithoutBids(t *testing.T) {
	svc, db, _ := newTestService(t, nil)
	ctx := context.Background()

	owner := seedUser(t, db, "owner", "0")
	a, err := svc.CreateAuction(ctx, seedItem(t, db, owner, "Chair"), dec("10"), 60)
	require.NoError(t, err)

	res, err := svc.CloseAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, res.WinnerID)
	assert.Equal(t, "Auction closed", res.Message)

	_, err = svc.GetEscrow(ctx, a.ID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.CloseAuction(ctx, 9999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPlaceBid_ExpiredAuctionIsSettled(t *testing.T) {
	svc, db, clock := newTestService(t, nil)
	ctx := context.Background()

	owner := seedUser(t, db, "owner", "0")
	alice := seedUser(t, db, "alice", "1000")
	bob := seedUser(t, db, "bob", "1000")
	a, err := svc.CreateAuction(ctx, seedItem(t, db, owner, "Mirror"), dec("100"), 10)
	require.NoError(t, err)
	_, err = svc.PlaceBid(ctx, a.ID, alice, dec("150"))
	require.NoError(t, err)

	clock.Advance(11 * time.Minute)
	_, err = svc.PlaceBid(ctx, a.ID, bob, dec("200"))
	require.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, "auction finished", err.Error())

	got, err := svc.GetAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AuctionFinished, got.Status)
	assert.True(t, got.EndTime.Equal(a.EndTime), "expiry keeps the scheduled end time")
	requireDecimal(t, "150", got.CurrentPrice)

	e, err := svc.GetEscrow(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, alice, e.BuyerID)
	requireDecimal(t, "150", e.Amount)

	bids, err := svc.ListBids(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, bids, 1)
}

func TestPlaceBid_AtEndTimeIsStillAccepted(t *testing.T) {
	svc, db, clock := newTestService(t, nil)
	ctx := context.Background()

	owner := seedUser(t, db, "owner", "0")
	alice := seedUser(t, db, "alice", "1000")
	a, err := svc.CreateAuction(ctx, seedItem(t, db, owner, "Desk"), dec("100"), 10)
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	_, err = svc.PlaceBid(ctx, a.ID, alice, dec("101"))
	require.NoError(t, err)
}

func TestExpireDue(t *testing.T) {
	svc, db, clock := newTestService(t, nil)
	ctx := context.Background()

	owner := seedUser(t, db, "owner", "0")
	alice := seedUser(t, db, "alice", "1000")
	short, err := svc.CreateAuction(ctx, seedItem(t, db, owner, "Print"), dec("10"), 5)
	require.NoError(t, err)
	long, err := svc.CreateAuction(ctx, seedItem(t, db, owner, "Frame"), dec("10"), 60)
	require.NoError(t, err)
	_, err = svc.PlaceBid(ctx, short.ID, alice, dec("25"))
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	n, err := svc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := svc.GetAuction(ctx, short.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AuctionFinished, got.Status)
	e, err := svc.GetEscrow(ctx, short.ID)
	require.NoError(t, err)
	assert.Equal(t, alice, e.BuyerID)

	got, err = svc.GetAuction(ctx, long.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AuctionActive, got.Status)

	n, err = svc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCloseAuction_PublishesEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	events := NewMockEventPublisher(ctrl)
	svc, db, _ := newTestService(t, events)
	ctx := context.Background()

	owner := seedUser(t, db, "owner", "0")
	alice := seedUser(t, db, "alice", "1000")
	item := seedItem(t, db, owner, "Tapestry")
	a, err := svc.CreateAuction(ctx, item, dec("100"), 60)
	require.NoError(t, err)
	_, err = svc.PlaceBid(ctx, a.ID, alice, dec("150"))
	require.NoError(t, err)

	var got queue.AuctionClosedEvent
	events.EXPECT().
		PublishAuctionClosed(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, ev queue.AuctionClosedEvent) error {
			got = ev
			return nil
		})

	_, err = svc.CloseAuction(ctx, a.ID)
	require.NoError(t, err)

	assert.Equal(t, a.ID, got.AuctionID)
	assert.Equal(t, item, got.ItemID)
	require.NotNil(t, got.WinnerID)
	assert.Equal(t, alice, *got.WinnerID)
	assert.Equal(t, "150.00", got.Amount)
	assert.NotNil(t, got.EscrowID)
	assert.Equal(t, queue.ReasonManual, got.Reason)
	assert.NotEmpty(t, got.ClosedAt)
}

func TestCloseAuction_PublishFailureIsIgnored(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	events := NewMockEventPublisher(ctrl)
	svc, db, _ := newTestService(t, events)
	ctx := context.Background()

	owner := seedUser(t, db, "owner", "0")
	a, err := svc.CreateAuction(ctx, seedItem(t, db, owner, "Urn"), dec("100"), 60)
	require.NoError(t, err)

	events.EXPECT().PublishAuctionClosed(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	res, err := svc.CloseAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Auction closed", res.Message)

	got, err := svc.GetAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AuctionFinished, got.Status)
}

func TestPlaceBid_ExpiryPublishesExpiredReason(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	events := NewMockEventPublisher(ctrl)
	svc, db, clock := newTestService(t, events)
	ctx := context.Background()

	owner := seedUser(t, db, "owner", "0")
	alice := seedUser(t, db, "alice", "1000")
	a, err := svc.CreateAuction(ctx, seedItem(t, db, owner, "Globe"), dec("100"), 1)
	require.NoError(t, err)

	var got queue.AuctionClosedEvent
	events.EXPECT().
		PublishAuctionClosed(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, ev queue.AuctionClosedEvent) error {
			got = ev
			return nil
		})

	clock.Advance(2 * time.Minute)
	_, err = svc.PlaceBid(ctx, a.ID, alice, dec("150"))
	require.ErrorIs(t, err, ErrInvalidState)

	assert.Equal(t, queue.ReasonExpired, got.Reason)
	assert.Nil(t, got.WinnerID)
	assert.Nil(t, got.EscrowID)
	assert.Empty(t, got.Amount)
}

func TestCreateAuction_Errors(t *testing.T) {
	svc, db, _ := newTestService(t, nil)
	ctx := context.Background()

	owner := seedUser(t, db, "owner", "0")
	item := seedItem(t, db, owner, "Sculpture")

	tests := []struct {
		name     string
		itemID   uint64
		price    string
		duration int
		wantErr  error
	}{
		{name: "unknown_item", itemID: 9999, price: "10", duration: 60, wantErr: ErrNotFound},
		{name: "zero_price", itemID: item, price: "0", duration: 60, wantErr: ErrValidation},
		{name: "negative_price", itemID: item, price: "-5", duration: 60, wantErr: ErrValidation},
		{name: "zero_duration", itemID: item, price: "10", duration: 0, wantErr: ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateAuction(ctx, tt.itemID, dec(tt.price), tt.duration)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := svc.CreateAuction(ctx, item, dec("10"), 60)
	require.NoError(t, err)
	_, err = svc.CreateAuction(ctx, item, dec("10"), 60)
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "item is already on auction", err.Error())
}

func TestDeleteAuction_RemovesBidsAndEscrow(t *testing.T) {
	svc, db, _ := newTestService(t, nil)
	ctx := context.Background()

	owner := seedUser(t, db, "owner", "0")
	alice := seedUser(t, db, "alice", "1000")
	item := seedItem(t, db, owner, "Painting")
	a, err := svc.CreateAuction(ctx, item, dec("100"), 60)
	require.NoError(t, err)
	_, err = svc.PlaceBid(ctx, a.ID, alice, dec("120"))
	require.NoError(t, err)
	_, err = svc.CloseAuction(ctx, a.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAuction(ctx, a.ID))

	_, err = svc.GetAuction(ctx, a.ID)
	require.ErrorIs(t, err, ErrNotFound)
	bids, err := repository.NewBidRepo(db).ListByAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, bids)
	n, err := repository.NewEscrowRepo(db).CountByAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.ErrorIs(t, svc.DeleteAuction(ctx, a.ID), ErrNotFound)

	// The item is free to be auctioned again.
	_, err = svc.CreateAuction(ctx, item, dec("100"), 60)
	require.NoError(t, err)
}

func TestListBidsAndEscrow_UnknownAuction(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.ListBids(ctx, 42)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = svc.GetEscrow(ctx, 42)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "auction not found", err.Error())
}

func TestListAuctions_Pagination(t *testing.T) {
	svc, db, _ := newTestService(t, nil)
	ctx := context.Background()

	owner := seedUser(t, db, "owner", "0")
	ids := make([]uint64, 0, 3)
	for _, title := range []string{"One", "Two", "Three"} {
		a, err := svc.CreateAuction(ctx, seedItem(t, db, owner, title), dec("1"), 60)
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}

	page, err := svc.ListAuctions(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[1], page[0].ID)
	assert.Equal(t, ids[2], page[1].ID)

	page, err = svc.ListAuctions(ctx, 0, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[0], page[0].ID)
}

func TestInternalErrorsWrapCause(t *testing.T) {
	cause := errors.New("disk full")
	err := internal("insert bid", cause)
	assert.ErrorIs(t, err, ErrInternal)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrNotFound)
}
