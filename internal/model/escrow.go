package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// EscrowStatus is the settlement state of held funds.
type EscrowStatus string

const (
    EscrowHeld     EscrowStatus = "held"
    EscrowReleased EscrowStatus = "released"
    EscrowRefunded EscrowStatus = "refunded"
)

// EscrowAccount holds the winning amount of a finished auction until the
// sale is settled.  Exactly one row is created when an auction with at
// least one bid is finished.
//
// Fields:
//  ID        – primary key identifier.
//  AuctionID – finished auction.
//  BuyerID   – winning bidder.
//  Amount    – winning bid amount.
//  Status    – held, released or refunded.
//  UpdatedAt – last status change.
type EscrowAccount struct {
    ID        uint64          `db:"escrow_id" json:"escrow_id"`
    AuctionID uint64          `db:"auction_id" json:"auction_id"`
    BuyerID   uint64          `db:"buyer_id" json:"buyer_id"`
    Amount    decimal.Decimal `db:"amount" json:"amount"`
    Status    EscrowStatus    `db:"status" json:"status"`
    UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// SystemLog is an operational error record persisted for later inspection,
// currently written by the CSV importer.
type SystemLog struct {
    ID        uint64    `db:"log_id" json:"log_id"`
    Level     string    `db:"level" json:"level"`
    Source    string    `db:"source" json:"source"`
    Message   string    `db:"message" json:"message"`
    CreatedAt time.Time `db:"created_at" json:"created_at"`
}
