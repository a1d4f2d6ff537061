package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/bidmaster/internal/database"
	"github.com/iliyamo/bidmaster/internal/model"
)

const itemColumns = `item_id, owner_id, title, description, year_created, is_verified, created_at`

// ItemRepo handles CRUD for items.
type ItemRepo struct {
	db *sqlx.DB
}

func NewItemRepo(db *sqlx.DB) *ItemRepo { return &ItemRepo{db: db} }

// ItemPatch carries the fields of a partial update.  Nil fields are left
// untouched.
type ItemPatch struct {
	OwnerID     *uint64
	Title       *string
	Description *string
	YearCreated *int
}

// Empty reports whether the patch changes nothing.
func (p ItemPatch) Empty() bool {
	return p.OwnerID == nil && p.Title == nil && p.Description == nil && p.YearCreated == nil
}

// Create inserts it and reloads it so server defaults (is_verified,
// created_at) are populated.
func (r *ItemRepo) Create(ctx context.Context, it *model.Item) error {
	id, err := database.InsertID(ctx, r.db,
		`INSERT INTO items (owner_id, title, description, year_created, is_verified) VALUES (?, ?, ?, ?, ?)`,
		"item_id", it.OwnerID, it.Title, it.Description, it.YearCreated, it.IsVerified)
	if err != nil {
		return err
	}
	saved, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	*it = *saved
	return nil
}

// GetByID returns ErrNotFound when no item has the given id.
func (r *ItemRepo) GetByID(ctx context.Context, id uint64) (*model.Item, error) {
	return getItem(ctx, r.db, id)
}

// GetByIDTx is GetByID within tx.
func (r *ItemRepo) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id uint64) (*model.Item, error) {
	return getItem(ctx, tx, id)
}

func getItem(ctx context.Context, q sqlx.ExtContext, id uint64) (*model.Item, error) {
	var it model.Item
	err := sqlx.GetContext(ctx, q, &it, q.Rebind(`SELECT `+itemColumns+` FROM items WHERE item_id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &it, nil
}

// List pages through items ordered by id.
func (r *ItemRepo) List(ctx context.Context, skip, limit int) ([]model.Item, error) {
	items := make([]model.Item, 0)
	err := r.db.SelectContext(ctx, &items,
		r.db.Rebind(`SELECT `+itemColumns+` FROM items ORDER BY item_id LIMIT ? OFFSET ?`), limit, skip)
	return items, err
}

// Update applies the non-nil fields of p and returns the stored item.
func (r *ItemRepo) Update(ctx context.Context, id uint64, p ItemPatch) (*model.Item, error) {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	if p.OwnerID != nil {
		sets = append(sets, "owner_id = ?")
		args = append(args, *p.OwnerID)
	}
	if p.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *p.Title)
	}
	if p.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *p.Description)
	}
	if p.YearCreated != nil {
		sets = append(sets, "year_created = ?")
		args = append(args, *p.YearCreated)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	args = append(args, id)
	// RowsAffected is not used to detect a missing row: MySQL reports 0
	// when the values did not change.  The read below returns ErrNotFound.
	if _, err := r.db.ExecContext(ctx,
		r.db.Rebind(`UPDATE items SET `+strings.Join(sets, ", ")+` WHERE item_id = ?`), args...); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// Delete removes an item and its category links.  It returns ErrNotFound
// for an unknown id and ErrConflict while any auction references the item.
func (r *ItemRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := getItem(ctx, tx, id); err != nil {
		return err
	}
	var auctions int
	if err := tx.GetContext(ctx, &auctions, tx.Rebind(`SELECT COUNT(*) FROM auctions WHERE item_id = ?`), id); err != nil {
		return err
	}
	if auctions > 0 {
		return ErrConflict
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM item_categories WHERE item_id = ?`), id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM items WHERE item_id = ?`), id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
