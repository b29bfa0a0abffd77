package audit

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"

	"lead-intake/pkg/logger"
	"lead-intake/pkg/utils"
)

// Retention maintains the monthly api_logs partitions and ages out old records.
//
// Records older than the window are deleted row by row first so the
// link-clearing trigger on api_logs runs for each of them; partitions that
// are empty and entirely before the cutoff are then dropped.
type Retention struct {
	db     *sql.DB
	window time.Duration
}

func NewRetention(db *sql.DB, window time.Duration) *Retention {
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	return &Retention{db: db, window: window}
}

type PruneResult struct {
	Cutoff  time.Time
	Deleted int64
	Dropped []string
}

var partitionPattern = regexp.MustCompile(`^api_logs_y(\d{4})m(\d{2})$`)

// PartitionName is the monthly partition holding t.
func PartitionName(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("api_logs_y%04dm%02d", t.Year(), int(t.Month()))
}

// monthBounds returns [start of t's month, start of next month).
func monthBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

func parsePartitionMonth(name string) (time.Time, bool) {
	m := partitionPattern.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), true
}

// expiredPartitions returns the monthly partitions whose upper bound is at or
// before cutoff, oldest first. Other tables (the default partition) are kept.
func expiredPartitions(names []string, cutoff time.Time) []string {
	var out []string
	for _, n := range names {
		start, ok := parsePartitionMonth(n)
		if !ok {
			continue
		}
		_, end := monthBounds(start)
		if !end.After(cutoff) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// EnsurePartitions creates the partitions for now's month and the next one.
func (r *Retention) EnsurePartitions(ctx context.Context, now time.Time) ([]string, error) {
	var created []string
	for _, at := range []time.Time{now, now.UTC().AddDate(0, 1, 0)} {
		start, end := monthBounds(at)
		name := PartitionName(start)
		// name and bounds are derived from time values only.
		q := fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s PARTITION OF api_logs FOR VALUES FROM ('%s') TO ('%s')`,
			name, start.Format(time.RFC3339), end.Format(time.RFC3339),
		)
		if _, err := r.db.ExecContext(ctx, q); err != nil {
			return created, fmt.Errorf("create partition %s: %w", name, err)
		}
		created = append(created, name)
	}
	return created, nil
}

// Prune deletes records older than the retention window and drops expired
// monthly partitions, in one transaction.
func (r *Retention) Prune(ctx context.Context, now time.Time) (PruneResult, error) {
	log := logger.From(ctx)
	res := PruneResult{Cutoff: now.UTC().Add(-r.window)}

	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		out, err := tx.ExecContext(ctx, `DELETE FROM api_logs WHERE created_at < $1`, res.Cutoff)
		if err != nil {
			return fmt.Errorf("delete expired records: %w", err)
		}
		if res.Deleted, err = out.RowsAffected(); err != nil {
			return err
		}

		names, err := listPartitions(ctx, tx)
		if err != nil {
			return err
		}
		for _, name := range expiredPartitions(names, res.Cutoff) {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, name)); err != nil {
				return fmt.Errorf("drop partition %s: %w", name, err)
			}
			res.Dropped = append(res.Dropped, name)
		}
		return nil
	})
	if err != nil {
		return PruneResult{Cutoff: res.Cutoff}, err
	}

	log.Info("audit retention applied", "cutoff", res.Cutoff, "deleted", res.Deleted, "dropped", res.Dropped)
	return res, nil
}

func listPartitions(ctx context.Context, tx *sql.Tx) ([]string, error) {
	const q = `
SELECT c.relname
FROM pg_inherits i
JOIN pg_class c ON c.oid = i.inhrelid
WHERE i.inhparent = 'api_logs'::regclass
`
	rows, err := tx.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}
