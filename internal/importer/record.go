package importer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// timeLayouts are tried in order when parsing timestamp cells.  Values
// without a zone are taken as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// record is one CSV row addressed by header name.  Conversion helpers
// remember the first failure in err so a row builder can read every
// column and check once.
type record struct {
	line   int
	values map[string]string
	err    error
}

func (r *record) fail(col, format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf("line %d: column %s: %s", r.line, col, fmt.Sprintf(format, args...))
	}
}

func (r *record) has(col string) bool {
	return strings.TrimSpace(r.values[col]) != ""
}

func (r *record) raw(col string) string {
	return strings.TrimSpace(r.values[col])
}

func (r *record) text(col string) string {
	v := r.raw(col)
	if v == "" {
		r.fail(col, "value required")
	}
	return v
}

// optText returns nil for an empty cell.
func (r *record) optText(col string) *string {
	if !r.has(col) {
		return nil
	}
	v := r.raw(col)
	return &v
}

func (r *record) textOr(col, def string) string {
	if !r.has(col) {
		return def
	}
	return r.raw(col)
}

func (r *record) id(col string) uint64 {
	v := r.text(col)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil || n == 0 {
		r.fail(col, "invalid id %q", v)
	}
	return n
}

func (r *record) intOr(col string, def int) int {
	if !r.has(col) {
		return def
	}
	n, err := strconv.Atoi(r.raw(col))
	if err != nil {
		r.fail(col, "invalid integer %q", r.raw(col))
	}
	return n
}

func (r *record) money(col string) decimal.Decimal {
	v := r.text(col)
	if v == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		r.fail(col, "invalid amount %q", v)
		return decimal.Zero
	}
	if d.IsNegative() {
		r.fail(col, "negative amount %s", v)
	}
	return d.Round(2)
}

func (r *record) moneyOr(col string, def decimal.Decimal) decimal.Decimal {
	if !r.has(col) {
		return def
	}
	return r.money(col)
}

func (r *record) flagOr(col string, def bool) bool {
	if !r.has(col) {
		return def
	}
	b, err := strconv.ParseBool(r.raw(col))
	if err != nil {
		r.fail(col, "invalid boolean %q", r.raw(col))
	}
	return b
}

func (r *record) timeOr(col string, def time.Time) time.Time {
	if !r.has(col) {
		return def
	}
	v := r.raw(col)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t.UTC().Truncate(time.Microsecond)
		}
	}
	r.fail(col, "invalid timestamp %q", v)
	return def
}

// enumOr returns the cell when it is one of allowed, def when empty.
func (r *record) enumOr(col, def string, allowed ...string) string {
	v := r.textOr(col, def)
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	r.fail(col, "%q is not one of %s", v, strings.Join(allowed, ", "))
	return v
}
