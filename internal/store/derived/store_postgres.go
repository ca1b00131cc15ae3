package derived

import (
	"context"
	"database/sql"
	"database/sql/driver"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"hmdamart/internal/geography"
	"hmdamart/internal/income"
	"hmdamart/internal/incremental/ports"
	"hmdamart/internal/loan/models"
	"hmdamart/pkg/platform/sentinel"
	txcontext "hmdamart/pkg/platform/tx"
)

//go:embed schema.sql
var schemaSQL string

const (
	loansTable      = "hmda_classified_loans"
	partitionsTable = "hmda_partitions"
	partitionsPKey  = "hmda_partitions_pkey"
)

var copyColumns = []string{
	"loan_id", "activity_year", "lei", "state_code", "county_code", "census_tract", "msa_md",
	"loan_purpose", "loan_type", "action_taken", "loan_amount", "property_value",
	"is_hispanic", "is_black", "is_asian", "is_white", "is_native_american",
	"is_pacific_islander", "is_multi_racial", "has_demographic_data",
	"borrower_income_tier", "is_lmi_borrower", "tract_income_tier", "is_lmi_tract",
	"is_majority_minority_tract", "tract_minority_pct", "run_id", "materialized_at",
}

// PostgresStore persists derived rows in a table list-partitioned by
// activity year, with a ledger of committed years next to it.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgres constructs a PostgreSQL-backed derived store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// EnsureSchema creates the derived tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure derived schema: %w", classify(err))
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) MaxYear(ctx context.Context) (int, bool, error) {
	var year sql.NullInt64
	err := s.execer(ctx).QueryRowContext(ctx, `SELECT MAX(activity_year) FROM `+partitionsTable).Scan(&year)
	if err != nil {
		return 0, false, fmt.Errorf("read max year: %w", classify(err))
	}
	if !year.Valid {
		return 0, false, nil
	}
	return int(year.Int64), true, nil
}

func (s *PostgresStore) Partition(ctx context.Context, year int) (ports.PartitionInfo, bool, error) {
	info := ports.PartitionInfo{Year: year}
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT run_id, records FROM `+partitionsTable+` WHERE activity_year = $1`, year,
	).Scan(&info.RunID, &info.Records)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.PartitionInfo{}, false, nil
	}
	if err != nil {
		return ports.PartitionInfo{}, false, fmt.Errorf("read partition %d: %w", year, classify(err))
	}
	return info, true, nil
}

// Partitions lists the ledger, ascending by year.
func (s *PostgresStore) Partitions(ctx context.Context) ([]ports.PartitionInfo, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT activity_year, run_id, records FROM `+partitionsTable+` ORDER BY activity_year`)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", classify(err))
	}
	defer rows.Close()

	var out []ports.PartitionInfo
	for rows.Next() {
		var p ports.PartitionInfo
		if err := rows.Scan(&p.Year, &p.RunID, &p.Records); err != nil {
			return nil, fmt.Errorf("scan partition: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list partitions: %w", classify(err))
	}
	return out, nil
}

// AppendPartition writes one year in a single transaction. The ledger row is
// claimed first so a second writer for the same year blocks on it and then
// fails with sentinel.ErrConflict. Rows are bulk loaded with COPY.
func (s *PostgresStore) AppendPartition(ctx context.Context, year int, mode ports.AppendMode, fill func(emit ports.Emit) error) (int, error) {
	written := 0
	err := txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		tx, _ := txcontext.From(ctx)

		if err := s.claim(ctx, tx, year, mode); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, pq.CopyIn(loansTable, copyColumns...))
		if err != nil {
			return fmt.Errorf("prepare copy: %w", classify(err))
		}
		defer stmt.Close()

		var runID uuid.UUID
		err = fill(func(batch []models.ClassifiedLoanRecord) error {
			for _, r := range batch {
				if r.Year != year {
					return fmt.Errorf("record %s has year %d, partition is %d: %w", r.ID, r.Year, year, sentinel.ErrInvalidState)
				}
				if _, err := stmt.ExecContext(ctx, copyValues(r)...); err != nil {
					return fmt.Errorf("copy record %s: %w", r.ID, classify(err))
				}
				runID = r.RunID
				written++
			}
			return nil
		})
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx); err != nil {
			return fmt.Errorf("flush copy: %w", classify(err))
		}

		if written == 0 {
			_, err = tx.ExecContext(ctx, `DELETE FROM `+partitionsTable+` WHERE activity_year = $1`, year)
		} else {
			_, err = tx.ExecContext(ctx,
				`UPDATE `+partitionsTable+` SET run_id = $2, records = $3 WHERE activity_year = $1`,
				year, runID, written)
		}
		if err != nil {
			return fmt.Errorf("update partition ledger: %w", classify(err))
		}
		return nil
	})
	if err != nil {
		return 0, classify(err)
	}
	return written, nil
}

// claim takes the ledger row for year and prepares the year's table
// partition. ReplaceYear only locks an existing row and deletes its loans;
// it never creates a year.
func (s *PostgresStore) claim(ctx context.Context, tx *sql.Tx, year int, mode ports.AppendMode) error {
	placeholder := uuid.Nil
	switch mode {
	case ports.AppendNew:
		_, err := tx.ExecContext(ctx,
			`INSERT INTO `+partitionsTable+` (activity_year, run_id, mode, records, materialized_at)
			 VALUES ($1, $2, $3, 0, $4)`,
			year, placeholder, mode.String(), s.now())
		if err != nil {
			return fmt.Errorf("claim partition %d: %w", year, classify(err))
		}
	case ports.ReplaceYear:
		res, err := tx.ExecContext(ctx,
			`UPDATE `+partitionsTable+` SET mode = $2, records = 0, materialized_at = $3
			 WHERE activity_year = $1`,
			year, mode.String(), s.now())
		if err != nil {
			return fmt.Errorf("claim partition %d: %w", year, classify(err))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("claim partition %d: %w", year, classify(err))
		}
		if n != 1 {
			return fmt.Errorf("partition %d not materialized: %w", year, sentinel.ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+loansTable+` WHERE activity_year = $1`, year); err != nil {
			return fmt.Errorf("delete partition %d: %w", year, classify(err))
		}
	default:
		return fmt.Errorf("unknown append mode %d: %w", mode, sentinel.ErrInvalidState)
	}

	// year is an int, so formatting it into the identifier is safe.
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s_%d PARTITION OF %s FOR VALUES IN (%d)`,
		loansTable, year, loansTable, year)
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create partition %d: %w", year, classify(err))
	}
	return nil
}

// Count returns the total number of derived rows.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.execer(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM `+loansTable).Scan(&n); err != nil {
		return 0, fmt.Errorf("count derived rows: %w", classify(err))
	}
	return n, nil
}

// Records returns one year's rows ordered by loan id.
func (s *PostgresStore) Records(ctx context.Context, year int) ([]models.ClassifiedLoanRecord, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT loan_id, activity_year, lei, state_code, county_code, census_tract, msa_md,
		       loan_purpose, loan_type, action_taken, loan_amount, property_value,
		       is_hispanic, is_black, is_asian, is_white, is_native_american,
		       is_pacific_islander, is_multi_racial, has_demographic_data,
		       borrower_income_tier, is_lmi_borrower, tract_income_tier, is_lmi_tract,
		       is_majority_minority_tract, tract_minority_pct, run_id, materialized_at
		FROM `+loansTable+`
		WHERE activity_year = $1
		ORDER BY loan_id`, year)
	if err != nil {
		return nil, fmt.Errorf("read partition %d: %w", year, classify(err))
	}
	defer rows.Close()

	var out []models.ClassifiedLoanRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read partition %d: %w", year, classify(err))
	}
	return out, nil
}

// TractMinority returns one entry per distinct tract of the region and year
// with a known minority percentage.
func (s *PostgresStore) TractMinority(ctx context.Context, msa string, year int) ([]geography.TractPct, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT DISTINCT ON (census_tract) census_tract, tract_minority_pct
		FROM `+loansTable+`
		WHERE activity_year = $1 AND msa_md = $2
		  AND census_tract <> '' AND tract_minority_pct IS NOT NULL
		ORDER BY census_tract`, year, msa)
	if err != nil {
		return nil, fmt.Errorf("read tract minority: %w", classify(err))
	}
	defer rows.Close()

	var out []geography.TractPct
	for rows.Next() {
		var t geography.TractPct
		if err := rows.Scan(&t.Tract, &t.Pct); err != nil {
			return nil, fmt.Errorf("scan tract minority: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read tract minority: %w", classify(err))
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (models.ClassifiedLoanRecord, error) {
	var (
		r              models.ClassifiedLoanRecord
		propertyValue  sql.NullFloat64
		minorityPct    sql.NullFloat64
		borrowerTier   string
		tractTier      string
		materializedAt time.Time
	)
	err := row.Scan(
		&r.ID, &r.Year, &r.LEI, &r.StateCode, &r.CountyCode, &r.CensusTract, &r.MSAMD,
		&r.LoanPurpose, &r.LoanType, &r.ActionTaken, &r.LoanAmount, &propertyValue,
		&r.IsHispanic, &r.IsBlack, &r.IsAsian, &r.IsWhite, &r.IsNativeAmerican,
		&r.IsPacificIslander, &r.IsMultiRacial, &r.HasDemographicData,
		&borrowerTier, &r.IsLMIBorrower, &tractTier, &r.IsLMITract,
		&r.IsMajorityMinorityTract, &minorityPct, &r.RunID, &materializedAt,
	)
	if err != nil {
		return models.ClassifiedLoanRecord{}, fmt.Errorf("scan derived row: %w", err)
	}
	r.PropertyValue = nullFloat(propertyValue)
	r.TractMinorityPct = nullFloat(minorityPct)
	r.BorrowerIncomeTier = income.ParseTier(borrowerTier)
	r.TractIncomeTier = income.ParseTier(tractTier)
	r.MaterializedAt = materializedAt.UTC()
	return r, nil
}

func copyValues(r models.ClassifiedLoanRecord) []any {
	return []any{
		r.ID, r.Year, r.LEI, r.StateCode, r.CountyCode, r.CensusTract, r.MSAMD,
		r.LoanPurpose, r.LoanType, r.ActionTaken, r.LoanAmount, r.PropertyValue,
		r.IsHispanic, r.IsBlack, r.IsAsian, r.IsWhite, r.IsNativeAmerican,
		r.IsPacificIslander, r.IsMultiRacial, r.HasDemographicData,
		r.BorrowerIncomeTier.String(), r.IsLMIBorrower, r.TractIncomeTier.String(), r.IsLMITract,
		r.IsMajorityMinorityTract, r.TractMinorityPct, r.RunID, r.MaterializedAt,
	}
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// classify maps driver errors onto sentinel errors. Errors that already carry
// a sentinel or a context error pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	for _, s := range []error{sentinel.ErrConflict, sentinel.ErrUnavailable, sentinel.ErrInvalidState, sentinel.ErrNotFound} {
		if errors.Is(err, s) {
			return err
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505" && pqErr.Constraint == partitionsPKey:
			return fmt.Errorf("partition already materialized: %w", errors.Join(sentinel.ErrConflict, err))
		case pqErr.Code == "23505":
			return fmt.Errorf("duplicate derived row: %w", errors.Join(sentinel.ErrInvalidState, err))
		case isTransientClass(pqErr.Code):
			return fmt.Errorf("postgres unavailable: %w", errors.Join(sentinel.ErrUnavailable, err))
		}
		return err
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.As(err, &netErr) {
		return fmt.Errorf("postgres unavailable: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return err
}

// isTransientClass reports SQLSTATEs after which a fresh attempt can succeed:
// connection exceptions, serialization failures and deadlocks, insufficient
// resources, and operator intervention such as admin shutdown.
func isTransientClass(code pq.ErrorCode) bool {
	switch code.Class() {
	case "08", "40", "53", "57":
		return true
	}
	return false
}
