// Package importer bulk-loads CSV files into the database.  One file is
// imported in one transaction: a bad row rolls back the whole file and the
// failure is recorded in system_logs.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/iliyamo/bidmaster/internal/model"
	"github.com/iliyamo/bidmaster/internal/repository"
	"github.com/iliyamo/bidmaster/internal/utils"
)

// Importer loads CSV files of the kinds registered in this package.
type Importer struct {
	db   *sqlx.DB
	logs *repository.SystemLogRepo
	cost int
	now  func() time.Time
}

// New returns an Importer writing to db.  bcryptCost is used for users
// rows that carry a plain password column.
func New(db *sqlx.DB, bcryptCost int) *Importer {
	return &Importer{
		db:   db,
		logs: repository.NewSystemLogRepo(db),
		cost: bcryptCost,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Source is the system_logs source recorded for failures of kind.
func Source(kind string) string { return "import_" + kind }

// Import reads a CSV with a header row from src and inserts its rows into
// the table of kind.  It returns the number of inserted rows; rows skipped
// as duplicates are not counted.  A UTF-8 byte order mark is accepted.
func (im *Importer) Import(ctx context.Context, kind string, src io.Reader) (int, error) {
	k, ok := Lookup(kind)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	n, err := im.load(ctx, k, src)
	if err != nil {
		// load has rolled back by now, so the log row is not lost with it.
		im.logFailure(ctx, kind, err)
		return 0, fmt.Errorf("import %s: %w", kind, err)
	}
	utils.Info("import finished", map[string]any{"kind": kind, "imported_count": n})
	return n, nil
}

func (im *Importer) load(ctx context.Context, k Kind, src io.Reader) (int, error) {
	r := csv.NewReader(transform.NewReader(src, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, errors.New("empty file: header row required")
		}
		return 0, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	tx, err := im.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	insert := tx.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		k.Table, strings.Join(k.Columns, ", "), placeholders(len(k.Columns))))
	var exists string
	if k.UniqueBy != "" {
		exists = tx.Rebind(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?", k.Table, k.UniqueBy))
	}

	env := rowEnv{now: im.now().Truncate(time.Microsecond), cost: im.cost}
	count := 0
	for line := 2; ; line++ {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
		if blank(fields) {
			continue
		}
		rec := &record{line: line, values: make(map[string]string, len(header))}
		for i, h := range header {
			rec.values[h] = fields[i]
		}

		if exists != "" {
			var n int
			if err := tx.GetContext(ctx, &n, exists, rec.raw(k.UniqueBy)); err != nil {
				return 0, fmt.Errorf("line %d: %w", line, err)
			}
			if n > 0 {
				continue
			}
		}

		args := k.build(rec, env)
		if rec.err != nil {
			return 0, rec.err
		}
		if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
			return 0, fmt.Errorf("line %d: %w", line, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return count, nil
}

func (im *Importer) logFailure(ctx context.Context, kind string, cause error) {
	entry := &model.SystemLog{Level: "ERROR", Source: Source(kind), Message: cause.Error(), CreatedAt: im.now()}
	if err := im.logs.Create(ctx, entry); err != nil {
		utils.Error("write system log failed", map[string]any{"source": entry.Source, "error": err.Error()})
	}
	utils.Error("import failed", map[string]any{"kind": kind, "error": cause.Error()})
}

// Result is the outcome of one file of ImportDir.
type Result struct {
	Kind  string
	File  string
	Count int
}

// ImportDir imports every <kind>.csv found in dir, parents before the
// kinds that reference them.  It stops at the first failing file; files
// imported before it stay committed.
func (im *Importer) ImportDir(ctx context.Context, dir string) ([]Result, error) {
	present := make([]string, 0, len(kinds))
	for _, name := range Kinds() {
		if _, err := os.Stat(filepath.Join(dir, name+".csv")); err == nil {
			present = append(present, name)
		}
	}
	order, err := Order(present)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(order))
	for _, name := range order {
		path := filepath.Join(dir, name+".csv")
		n, err := im.importFile(ctx, name, path)
		if err != nil {
			return results, err
		}
		results = append(results, Result{Kind: name, File: path, Count: n})
	}
	return results, nil
}

func (im *Importer) importFile(ctx context.Context, kind, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return im.Import(ctx, kind, f)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func blank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
