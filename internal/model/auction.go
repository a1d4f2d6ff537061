package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// AuctionStatus is the lifecycle state stored in auctions.status.
type AuctionStatus string

const (
    AuctionPlanned   AuctionStatus = "planned"
    AuctionActive    AuctionStatus = "active"
    AuctionFinished  AuctionStatus = "finished"
    AuctionCancelled AuctionStatus = "cancelled"
)

// Auction is a time-boxed sale of one item.  CurrentPrice starts at
// StartPrice and only grows while the auction is active; it always equals
// the highest accepted bid once at least one bid exists.
type Auction struct {
    ID           uint64          `db:"auction_id" json:"auction_id"`
    ItemID       uint64          `db:"item_id" json:"item_id"`
    StartTime    time.Time       `db:"start_time" json:"start_time"`
    EndTime      time.Time       `db:"end_time" json:"end_time"`
    StartPrice   decimal.Decimal `db:"start_price" json:"start_price"`
    CurrentPrice decimal.Decimal `db:"current_price" json:"current_price"`
    Status       AuctionStatus   `db:"status" json:"status"`
}

// Expired reports whether now is past the scheduled end.
func (a *Auction) Expired(now time.Time) bool {
    return now.After(a.EndTime)
}
