package service

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bidmaster/internal/database"
	"github.com/iliyamo/bidmaster/internal/model"
	"github.com/iliyamo/bidmaster/internal/repository"
)

const recordingDriver = "sqlite-recording"

// isolationRecorder wraps the sqlite driver and remembers the isolation
// level of every transaction started through it.
type isolationRecorder struct {
	mu     sync.Mutex
	levels []sql.IsolationLevel
}

var recorder = &isolationRecorder{}

func init() { sql.Register(recordingDriver, recorder) }

func (r *isolationRecorder) Open(name string) (driver.Conn, error) {
	base, err := sql.Open(database.DriverSQLite, "")
	if err != nil {
		return nil, err
	}
	defer base.Close()
	conn, err := base.Driver().Open(name)
	if err != nil {
		return nil, err
	}
	return recordingConn{Conn: conn, rec: r}, nil
}

func (r *isolationRecorder) take() []sql.IsolationLevel {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.levels
	r.levels = nil
	return out
}

type recordingConn struct {
	driver.Conn
	rec *isolationRecorder
}

func (c recordingConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	c.rec.mu.Lock()
	c.rec.levels = append(c.rec.levels, sql.IsolationLevel(opts.Isolation))
	c.rec.mu.Unlock()
	return c.Conn.(driver.ConnBeginTx).BeginTx(ctx, opts)
}

func TestWorkflowTransactionsReadCommitted(t *testing.T) {
	raw, err := sql.Open(recordingDriver, ":memory:?_pragma=foreign_keys(1)&_time_format=sqlite")
	require.NoError(t, err)
	db := sqlx.NewDb(raw, database.DriverSQLite)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()
	require.NoError(t, database.Migrate(ctx, db))

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewAuctionService(db, clock, nil)
	owner := seedUser(t, db, "owner", "0")
	alice := seedUser(t, db, "alice", "1000")
	vase := seedItem(t, db, owner, "Vase")
	lamp := seedItem(t, db, owner, "Lamp")
	recorder.take()

	closed, err := svc.CreateAuction(ctx, vase, dec("100"), 5)
	require.NoError(t, err)
	_, err = svc.PlaceBid(ctx, closed.ID, alice, dec("150"))
	require.NoError(t, err)
	_, err = svc.CloseAuction(ctx, closed.ID)
	require.NoError(t, err)

	_, err = svc.CreateAuction(ctx, lamp, dec("10"), 5)
	require.NoError(t, err)
	clock.Advance(10 * time.Minute)
	n, err := svc.ExpireDue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, svc.DeleteAuction(ctx, closed.ID))

	levels := recorder.take()
	require.Len(t, levels, 6)
	for _, l := range levels {
		assert.Equal(t, sql.LevelReadCommitted, l)
	}
}

func TestCloseAuction_FailedSettlementLeavesAuctionActive(t *testing.T) {
	svc, db, _ := newTestService(t, nil)
	ctx := context.Background()

	owner := seedUser(t, db, "owner", "0")
	alice := seedUser(t, db, "alice", "1000")
	a, err := svc.CreateAuction(ctx, seedItem(t, db, owner, "Clock"), dec("100"), 60)
	require.NoError(t, err)
	_, err = svc.PlaceBid(ctx, a.ID, alice, dec("150"))
	require.NoError(t, err)

	// The escrow insert is the last step of the close.
	_, err = db.Exec(`DROP TABLE escrow_accounts`)
	require.NoError(t, err)

	res, err := svc.CloseAuction(ctx, a.ID)
	require.ErrorIs(t, err, ErrInternal)
	assert.Nil(t, res)

	got, err := svc.GetAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AuctionActive, got.Status)
	assert.True(t, got.EndTime.Equal(a.EndTime))
	requireDecimal(t, "150", got.CurrentPrice)

	_, err = svc.PlaceBid(ctx, a.ID, alice, dec("175"))
	require.NoError(t, err)
}

func TestPlaceBid_LosesGuardedUpdate(t *testing.T) {
	tests := []struct {
		name    string
		commit  string
		args    []any
		wantErr error
		wantMsg string
	}{
		{
			name:    "higher bid committed first",
			commit:  `UPDATE auctions SET current_price = ? WHERE auction_id = ?`,
			args:    []any{dec("300")},
			wantErr: ErrInvalidAmount,
			wantMsg: "bid must be higher than 300.00",
		},
		{
			name:    "close committed first",
			commit:  `UPDATE auctions SET status = ? WHERE auction_id = ?`,
			args:    []any{model.AuctionFinished},
			wantErr: ErrInvalidState,
			wantMsg: "auction is not active",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, db, _ := newTestService(t, nil)
			ctx := context.Background()

			owner := seedUser(t, db, "owner", "0")
			alice := seedUser(t, db, "alice", "1000")
			a, err := svc.CreateAuction(ctx, seedItem(t, db, owner, "Globe"), dec("100"), 60)
			require.NoError(t, err)

			svc.raisePrice = func(ctx context.Context, tx *sqlx.Tx, auctionID uint64, _ decimal.Decimal) error {
				_, err := tx.ExecContext(ctx, tx.Rebind(tt.commit), append(tt.args, auctionID)...)
				require.NoError(t, err)
				require.NoError(t, tx.Commit())
				return repository.ErrConflict
			}

			res, err := svc.PlaceBid(ctx, a.ID, alice, dec("200"))
			require.ErrorIs(t, err, tt.wantErr)
			assert.EqualError(t, err, tt.wantMsg)
			assert.Nil(t, res)

			bids, err := svc.ListBids(ctx, a.ID)
			require.NoError(t, err)
			assert.Empty(t, bids)
		})
	}
}
