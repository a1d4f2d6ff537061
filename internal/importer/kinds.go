package importer

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/bidmaster/internal/model"
	"github.com/iliyamo/bidmaster/internal/utils"
)

// ErrUnknownKind is returned for an import kind with no table mapping.
var ErrUnknownKind = errors.New("unknown import kind")

// Kind describes how one CSV file maps onto a table.
type Kind struct {
	Name      string
	Table     string
	DependsOn []string // kinds whose rows this kind references
	Columns   []string // insert columns, in the order build returns values
	UniqueBy  string   // rows whose value in this column already exists are skipped
	build     func(r *record, env rowEnv) []any
}

type rowEnv struct {
	now  time.Time
	cost int
}

var kinds = map[string]Kind{
	"users": {
		Table:    "users",
		Columns:  []string{"username", "email", "password_hash", "role", "balance"},
		UniqueBy: "username",
		build: func(r *record, env rowEnv) []any {
			// Either column may carry a plain password or an existing
			// bcrypt hash; only plain values are hashed.
			col := "password_hash"
			if r.has("password") {
				col = "password"
			}
			hash := r.textOr(col, "")
			if hash != "" && !utils.IsBcryptHash(hash) {
				h, err := utils.HashPassword(hash, env.cost)
				if err != nil {
					r.fail(col, "%v", err)
				}
				hash = h
			}
			return []any{
				r.text("username"),
				strings.ToLower(r.text("email")),
				hash,
				r.textOr("role", "user"),
				r.moneyOr("balance", decimal.Zero),
			}
		},
	},
	"categories": {
		Table:    "categories",
		Columns:  []string{"name", "description"},
		UniqueBy: "name",
		build: func(r *record, _ rowEnv) []any {
			return []any{r.text("name"), r.optText("description")}
		},
	},
	"items": {
		Table:     "items",
		DependsOn: []string{"users"},
		Columns:   []string{"owner_id", "title", "description", "year_created", "is_verified"},
		build: func(r *record, _ rowEnv) []any {
			return []any{
				r.id("owner_id"),
				r.text("title"),
				r.optText("description"),
				r.intOr("year_created", 0),
				r.flagOr("is_verified", false),
			}
		},
	},
	"item_categories": {
		Table:     "item_categories",
		DependsOn: []string{"items", "categories"},
		Columns:   []string{"item_id", "category_id"},
		build: func(r *record, _ rowEnv) []any {
			return []any{r.id("item_id"), r.id("category_id")}
		},
	},
	"auctions": {
		Table:     "auctions",
		DependsOn: []string{"items"},
		Columns:   []string{"item_id", "start_time", "end_time", "start_price", "current_price", "status"},
		build: func(r *record, env rowEnv) []any {
			start := r.timeOr("start_time", env.now)
			end := r.timeOr("end_time", start.Add(time.Hour))
			if end.Before(start) {
				r.fail("end_time", "ends before start_time")
			}
			startPrice := r.money("start_price")
			current := r.moneyOr("current_price", startPrice)
			if current.LessThan(startPrice) {
				r.fail("current_price", "below start_price")
			}
			return []any{
				r.id("item_id"), start, end, startPrice, current,
				r.enumOr("status", string(model.AuctionPlanned),
					string(model.AuctionPlanned), string(model.AuctionActive),
					string(model.AuctionFinished), string(model.AuctionCancelled)),
			}
		},
	},
	"bids": {
		Table:     "bids",
		DependsOn: []string{"auctions", "users"},
		Columns:   []string{"auction_id", "user_id", "amount", "bid_time"},
		build: func(r *record, env rowEnv) []any {
			return []any{r.id("auction_id"), r.id("user_id"), r.money("amount"), r.timeOr("bid_time", env.now)}
		},
	},
	"auto_bids": {
		Table:     "auto_bids",
		DependsOn: []string{"auctions", "users"},
		Columns:   []string{"user_id", "auction_id", "max_limit", "created_at"},
		build: func(r *record, env rowEnv) []any {
			return []any{r.id("user_id"), r.id("auction_id"), r.money("max_limit"), r.timeOr("created_at", env.now)}
		},
	},
	"escrow_accounts": {
		Table:     "escrow_accounts",
		DependsOn: []string{"auctions", "users"},
		Columns:   []string{"auction_id", "buyer_id", "amount", "status", "updated_at"},
		build: func(r *record, env rowEnv) []any {
			return []any{
				r.id("auction_id"), r.id("buyer_id"), r.money("amount"),
				r.enumOr("status", string(model.EscrowHeld),
					string(model.EscrowHeld), string(model.EscrowReleased), string(model.EscrowRefunded)),
				r.timeOr("updated_at", env.now),
			}
		},
	},
}

func init() {
	for name, k := range kinds {
		k.Name = name
		kinds[name] = k
	}
}

// Lookup returns the Kind registered under name.
func Lookup(name string) (Kind, bool) {
	k, ok := kinds[name]
	return k, ok
}

// Kinds lists every importable kind by name.
func Kinds() []string {
	names := make([]string, 0, len(kinds))
	for name := range kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
