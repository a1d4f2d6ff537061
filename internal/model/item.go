package model

import "time"

// Item is an object offered for sale.  It is owned by exactly one user and
// may be attached to at most one non-cancelled auction at a time; that rule
// lives in the auction workflow, not in the table.
type Item struct {
    ID          uint64    `db:"item_id" json:"item_id"`
    OwnerID     uint64    `db:"owner_id" json:"owner_id"`
    Title       string    `db:"title" json:"title"`
    Description *string   `db:"description" json:"description"`
    YearCreated int       `db:"year_created" json:"year_created"`
    IsVerified  bool      `db:"is_verified" json:"is_verified"`
    CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
