// Package queue defines message payloads exchanged over the message broker.
package queue

// AuctionClosedQueue is the durable queue carrying AuctionClosedEvent.
const AuctionClosedQueue = "auction.closed"

// Close reasons carried in AuctionClosedEvent.Reason.
const (
    ReasonManual  = "manual"
    ReasonExpired = "expired"
)

// AuctionClosedEvent is published after an auction has been finished and
// its settlement committed.  WinnerID and Amount are empty when the
// auction closed without bids; EscrowID is set when an escrow row was
// opened for the winner.
type AuctionClosedEvent struct {
    AuctionID uint64  `json:"auction_id"`
    ItemID    uint64  `json:"item_id"`
    WinnerID  *uint64 `json:"winner_id"`
    Amount    string  `json:"amount,omitempty"`
    EscrowID  *uint64 `json:"escrow_id,omitempty"`
    Reason    string  `json:"reason"`
    ClosedAt  string  `json:"closed_at"`
}
