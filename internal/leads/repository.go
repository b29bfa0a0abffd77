package leads

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"lead-intake/pkg/utils"
)

// Repository is the persistence contract for leads.
//
// Email uniqueness is enforced by the store; a write that violates it must
// surface as ErrEmailTaken so concurrent duplicate submissions are caught even
// when both pass the service-level pre-check.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (Lead, bool, error)
	FindByID(ctx context.Context, id int64) (Lead, bool, error)
	List(ctx context.Context, p ListParams) (items []Lead, total int, err error)

	// LinkRequest records the audit request that produced the lead.
	// It is bookkeeping: UpdatedAt is left untouched.
	LinkRequest(ctx context.Context, leadID, requestID int64) error

	// WithTx runs fn in one transaction: commit on nil, roll back otherwise.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the write surface available inside a transaction.
type Tx interface {
	Insert(ctx context.Context, l Lead) (Lead, error)
}

const emailConstraint = "leads_email_key"

var sortColumns = map[SortField]string{
	SortByCreatedAt: "created_at",
	SortByFirstName: "first_name",
	SortByLastName:  "last_name",
	SortByEmail:     "email",
}

// PostgresRepo stores leads in the leads table (see migrations/0001_leads.sql).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const leadColumns = `id, first_name, last_name, email, phone, date_of_birth, additional_data,
       created_at, updated_at, created_by_request_id, last_modified_by_request_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (Lead, error) {
	var (
		l          Lead
		dob        sql.NullTime
		extra      []byte
		createdBy  sql.NullInt64
		modifiedBy sql.NullInt64
	)
	if err := row.Scan(
		&l.ID,
		&l.FirstName,
		&l.LastName,
		&l.Email,
		&l.Phone,
		&dob,
		&extra,
		&l.CreatedAt,
		&l.UpdatedAt,
		&createdBy,
		&modifiedBy,
	); err != nil {
		return Lead{}, err
	}
	if dob.Valid {
		l.DateOfBirth = Date{Time: dob.Time.UTC()}
	}
	l.AdditionalData = map[string]any{}
	if len(extra) > 0 {
		if err := json.Unmarshal(extra, &l.AdditionalData); err != nil {
			return Lead{}, fmt.Errorf("decode additional_data: %w", err)
		}
	}
	l.CreatedAt = l.CreatedAt.UTC()
	l.UpdatedAt = l.UpdatedAt.UTC()
	if createdBy.Valid {
		v := createdBy.Int64
		l.CreatedByRequestID = &v
	}
	if modifiedBy.Valid {
		v := modifiedBy.Int64
		l.LastModifiedByRequestID = &v
	}
	return l, nil
}

func (r *PostgresRepo) FindByEmail(ctx context.Context, email string) (Lead, bool, error) {
	q := `SELECT ` + leadColumns + ` FROM leads WHERE email = $1`
	return r.findOne(ctx, q, email)
}

func (r *PostgresRepo) FindByID(ctx context.Context, id int64) (Lead, bool, error) {
	q := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	return r.findOne(ctx, q, id)
}

func (r *PostgresRepo) findOne(ctx context.Context, q string, arg any) (Lead, bool, error) {
	l, err := scanLead(r.db.QueryRowContext(ctx, q, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Lead{}, false, nil
		}
		return Lead{}, false, err
	}
	return l, true, nil
}

// List reads one page and the total count from a single snapshot.
func (r *PostgresRepo) List(ctx context.Context, p ListParams) ([]Lead, int, error) {
	col, ok := sortColumns[p.SortBy]
	if !ok {
		return nil, 0, fmt.Errorf("leads: unsupported sort field %q", p.SortBy)
	}
	dir := "ASC"
	if p.Desc {
		dir = "DESC"
	}
	// col and dir come from fixed allow-lists, never from input.
	q := fmt.Sprintf(`SELECT %s FROM leads ORDER BY %s %s, id %s LIMIT $1 OFFSET $2`, leadColumns, col, dir, dir)

	var (
		items []Lead
		total int
	)
	opts := &sql.TxOptions{ReadOnly: true, Isolation: sql.LevelRepeatableRead}
	err := utils.WithTx(ctx, r.db, opts, func(ctx context.Context, tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM leads`).Scan(&total); err != nil {
			return err
		}
		rows, err := tx.QueryContext(ctx, q, p.Limit, p.Offset)
		if err != nil {
			return err
		}
		defer rows.Close()

		items = make([]Lead, 0, p.Limit)
		for rows.Next() {
			l, err := scanLead(rows)
			if err != nil {
				return err
			}
			items = append(items, l)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *PostgresRepo) LinkRequest(ctx context.Context, leadID, requestID int64) error {
	// Audit bookkeeping, not a lead mutation: updated_at stays as is.
	const q = `
UPDATE leads
SET created_by_request_id = COALESCE(created_by_request_id, $2),
    last_modified_by_request_id = $2
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q, leadID, requestID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, postgresTx{tx: tx})
	})
}

type postgresTx struct {
	tx *sql.Tx
}

func (t postgresTx) Insert(ctx context.Context, l Lead) (Lead, error) {
	extra, err := json.Marshal(nonNilData(l.AdditionalData))
	if err != nil {
		return Lead{}, fmt.Errorf("encode additional_data: %w", err)
	}

	const q = `
INSERT INTO leads (
  first_name, last_name, email, phone, date_of_birth, additional_data, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
)
RETURNING id
`
	if err := t.tx.QueryRowContext(ctx, q,
		l.FirstName,
		l.LastName,
		l.Email,
		l.Phone,
		l.DateOfBirth.Time,
		extra,
		l.CreatedAt,
		l.UpdatedAt,
	).Scan(&l.ID); err != nil {
		if utils.IsUniqueViolation(err, emailConstraint) {
			return Lead{}, fmt.Errorf("%w: %w", ErrEmailTaken, err)
		}
		return Lead{}, err
	}
	return l, nil
}

func nonNilData(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
