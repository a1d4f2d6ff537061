package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// Bid records a user's accepted offer on an auction.  Bids are immutable;
// only rows that passed every bidding check are ever written.
//
// Fields:
//  ID        – primary key identifier.
//  AuctionID – auction the bid belongs to.
//  UserID    – bidder.
//  Amount    – offered price, strictly above the price it replaced.
//  BidTime   – acceptance time.
type Bid struct {
    ID        uint64          `db:"bid_id" json:"bid_id"`
    AuctionID uint64          `db:"auction_id" json:"auction_id"`
    UserID    uint64          `db:"user_id" json:"user_id"`
    Amount    decimal.Decimal `db:"amount" json:"amount"`
    BidTime   time.Time       `db:"bid_time" json:"bid_time"`
}
