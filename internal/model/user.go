package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// User represents a row of the `users` table.  Balance is consulted by the
// bidding workflow for affordability checks only; it is never reserved or
// debited when a bid is accepted.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Username     – unique login name.
//  Email        – unique email address.
//  PasswordHash – bcrypt hash, never serialized.
//  Role         – "user" or "expert".
//  Balance      – spendable funds, non-negative by convention.
//  CreatedAt    – timestamp of creation.
type User struct {
    ID           uint64          `db:"user_id" json:"user_id"`
    Username     string          `db:"username" json:"username"`
    Email        string          `db:"email" json:"email"`
    PasswordHash string          `db:"password_hash" json:"-"`
    Role         string          `db:"role" json:"role"`
    Balance      decimal.Decimal `db:"balance" json:"balance"`
    CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// Category groups items for reporting.
type Category struct {
    ID          uint64  `db:"category_id" json:"category_id"`
    Name        string  `db:"name" json:"name"`
    Description *string `db:"description" json:"description"`
}
