package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Report names a read-only reporting view.
type Report string

const (
	ReportActiveLots    Report = "v_active_lots_details"
	ReportCategorySales Report = "v_category_sales"
	ReportTopBidders    Report = "v_top_bidders"
)

// ReportRepo reads the reporting views as generic rows.
type ReportRepo struct{ db *sqlx.DB }

func NewReportRepo(db *sqlx.DB) *ReportRepo { return &ReportRepo{db: db} }

// Rows returns every row of the view as a column -> value map.  Drivers
// that return text columns as []byte (MySQL, and MySQL/PostgreSQL
// DECIMAL) are converted to string so rows encode as JSON text.
func (r *ReportRepo) Rows(ctx context.Context, report Report) ([]map[string]any, error) {
	switch report {
	case ReportActiveLots, ReportCategorySales, ReportTopBidders:
	default:
		return nil, fmt.Errorf("unknown report %q", report)
	}
	rows, err := r.db.QueryxContext(ctx, "SELECT * FROM "+string(report))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]map[string]any, 0)
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, err
		}
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
