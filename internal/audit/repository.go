package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository is the persistence contract for audit records.
//
// It is append-only: records are removed only by retention (see Retention).
type Repository interface {
	Append(ctx context.Context, r Record) (int64, error)
	Get(ctx context.Context, id int64) (Record, bool, error)
	Stats(ctx context.Context, since time.Time, slowThreshold float64) (Stats, error)
	ListFailed(ctx context.Context, since time.Time, limit int) ([]Record, error)
	ListSlow(ctx context.Context, since time.Time, threshold float64, limit int) ([]Record, error)
}

// PostgresRepo stores records in the partitioned api_logs table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const recordColumns = `id, method, endpoint, request_data, response_data, status_code,
       ip_address, user_agent, created_at, processing_time`

func (r *PostgresRepo) Append(ctx context.Context, rec Record) (int64, error) {
	req, err := json.Marshal(rec.Request)
	if err != nil {
		return 0, fmt.Errorf("encode request_data: %w", err)
	}
	resp, err := json.Marshal(rec.Response)
	if err != nil {
		return 0, fmt.Errorf("encode response_data: %w", err)
	}

	const q = `
INSERT INTO api_logs (
  method, endpoint, request_data, response_data, status_code, ip_address, user_agent, created_at, processing_time
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9
)
RETURNING id
`
	var id int64
	if err := r.db.QueryRowContext(ctx, q,
		rec.Method,
		rec.Endpoint,
		req,
		resp,
		rec.StatusCode,
		nullString(rec.IPAddress),
		nullString(rec.UserAgent),
		rec.CreatedAt,
		rec.ProcessingTime,
	).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *PostgresRepo) Get(ctx context.Context, id int64) (Record, bool, error) {
	q := `SELECT ` + recordColumns + ` FROM api_logs WHERE id = $1`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	return rec, true, nil
}

func (r *PostgresRepo) Stats(ctx context.Context, since time.Time, slowThreshold float64) (Stats, error) {
	const q = `
SELECT count(*),
       COALESCE(avg(processing_time), 0),
       count(*) FILTER (WHERE status_code >= 400),
       count(*) FILTER (WHERE processing_time > $2)
FROM api_logs
WHERE created_at >= $1
`
	out := Stats{Since: since, SlowThreshold: slowThreshold}
	if err := r.db.QueryRowContext(ctx, q, since, slowThreshold).Scan(
		&out.TotalRequests,
		&out.AvgProcessingTime,
		&out.ErrorCount,
		&out.SlowCount,
	); err != nil {
		return Stats{}, err
	}
	return out, nil
}

func (r *PostgresRepo) ListFailed(ctx context.Context, since time.Time, limit int) ([]Record, error) {
	q := `SELECT ` + recordColumns + `
FROM api_logs
WHERE created_at >= $1 AND status_code >= 400
ORDER BY created_at DESC, id DESC
LIMIT $2`
	return r.list(ctx, q, since, limit)
}

func (r *PostgresRepo) ListSlow(ctx context.Context, since time.Time, threshold float64, limit int) ([]Record, error) {
	q := `SELECT ` + recordColumns + `
FROM api_logs
WHERE created_at >= $1 AND processing_time > $2
ORDER BY processing_time DESC, id DESC
LIMIT $3`
	return r.list(ctx, q, since, threshold, limit)
}

func (r *PostgresRepo) list(ctx context.Context, q string, args ...any) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec       Record
		req, resp []byte
		ip, ua    sql.NullString
	)
	if err := row.Scan(
		&rec.ID,
		&rec.Method,
		&rec.Endpoint,
		&req,
		&resp,
		&rec.StatusCode,
		&ip,
		&ua,
		&rec.CreatedAt,
		&rec.ProcessingTime,
	); err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal(req, &rec.Request); err != nil {
		return Record{}, fmt.Errorf("decode request_data: %w", err)
	}
	if err := json.Unmarshal(resp, &rec.Response); err != nil {
		return Record{}, fmt.Errorf("decode response_data: %w", err)
	}
	rec.IPAddress = ip.String
	rec.UserAgent = ua.String
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
