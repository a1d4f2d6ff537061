package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/bidmaster/internal/database"
	"github.com/iliyamo/bidmaster/internal/model"
)

// SystemLogRepo persists operational error records.
type SystemLogRepo struct{ db *sqlx.DB }

func NewSystemLogRepo(db *sqlx.DB) *SystemLogRepo { return &SystemLogRepo{db: db} }

// Create writes l outside of any caller transaction, so the record
// survives the rollback of the work that failed.
func (r *SystemLogRepo) Create(ctx context.Context, l *model.SystemLog) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	id, err := database.InsertID(ctx, r.db,
		`INSERT INTO system_logs (level, source, message, created_at) VALUES (?, ?, ?, ?)`,
		"log_id", l.Level, l.Source, l.Message, l.CreatedAt)
	if err != nil {
		return err
	}
	l.ID = id
	return nil
}

// ListBySource returns the records of one source, newest first.
func (r *SystemLogRepo) ListBySource(ctx context.Context, source string) ([]model.SystemLog, error) {
	logs := make([]model.SystemLog, 0)
	err := r.db.SelectContext(ctx, &logs, r.db.Rebind(`SELECT log_id, level, source, message, created_at
		FROM system_logs WHERE source = ? ORDER BY log_id DESC`), source)
	return logs, err
}
