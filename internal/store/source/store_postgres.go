package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"hmdamart/internal/loan/models"
	"hmdamart/pkg/platform/sentinel"
)

// DefaultTable is the loan/application register table read by the feed.
const DefaultTable = "hmda_lar"

// PostgresFeed reads raw LAR rows from PostgreSQL. It only issues SELECTs.
type PostgresFeed struct {
	pool  *pgxpool.Pool
	table string
}

type PostgresOption func(*PostgresFeed)

// WithTable reads from a different table, optionally schema-qualified.
func WithTable(name string) PostgresOption {
	return func(f *PostgresFeed) {
		if name != "" {
			f.table = name
		}
	}
}

func NewPostgres(pool *pgxpool.Pool, opts ...PostgresOption) *PostgresFeed {
	f := &PostgresFeed{pool: pool, table: DefaultTable}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *PostgresFeed) ident() string {
	return pgx.Identifier(strings.Split(f.table, ".")).Sanitize()
}

func (f *PostgresFeed) Years(ctx context.Context, after int) ([]int, error) {
	rows, err := f.pool.Query(ctx,
		`SELECT DISTINCT activity_year FROM `+f.ident()+` WHERE activity_year > $1 ORDER BY activity_year`, after)
	if err != nil {
		return nil, fmt.Errorf("list source years: %w", classify(err))
	}
	years, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, fmt.Errorf("list source years: %w", classify(err))
	}
	return years, nil
}

// Scan streams one year ordered by loan id and hands rows to fn in batches.
func (f *PostgresFeed) Scan(ctx context.Context, year int, batchSize int, fn func([]models.RawLoanRecord) error) error {
	if batchSize <= 0 {
		batchSize = 1
	}
	rows, err := f.pool.Query(ctx, `SELECT `+strings.Join(scanColumns, ", ")+`
		FROM `+f.ident()+`
		WHERE activity_year = $1
		ORDER BY loan_id`, year)
	if err != nil {
		return fmt.Errorf("scan source year %d: %w", year, classify(err))
	}
	defer rows.Close()

	batch := make([]models.RawLoanRecord, 0, batchSize)
	for rows.Next() {
		r, err := scanRaw(rows)
		if err != nil {
			return fmt.Errorf("scan source year %d: %w", year, err)
		}
		batch = append(batch, r)
		if len(batch) == batchSize {
			if err := fn(batch); err != nil {
				return err
			}
			batch = make([]models.RawLoanRecord, 0, batchSize)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("scan source year %d: %w", year, classify(err))
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}

var scanColumns = []string{
	"loan_id", "activity_year", "lei",
	"COALESCE(state_code, '')", "COALESCE(county_code, '')", "COALESCE(census_tract, '')",
	"COALESCE(derived_msa_md, '')", "COALESCE(loan_purpose, '')", "COALESCE(loan_type, '')",
	"COALESCE(action_taken, '')", "loan_amount::float8", "property_value::float8", "income::float8",
	"ffiec_msa_md_median_family_income::float8", "tract_minority_population_percent::float8",
	"tract_to_msa_income_percentage::float8",
	applicantColumns("applicant_ethnicity"), applicantColumns("applicant_race"),
	applicantColumns("co_applicant_ethnicity"), applicantColumns("co_applicant_race"),
}

// applicantColumns selects the five numbered code columns of one group as a
// text array.
func applicantColumns(prefix string) string {
	cols := make([]string, models.ApplicantFields)
	for i := range cols {
		cols[i] = fmt.Sprintf("COALESCE(%s_%d, '')", prefix, i+1)
	}
	return "ARRAY[" + strings.Join(cols, ", ") + "]"
}

func scanRaw(row pgx.Row) (models.RawLoanRecord, error) {
	var (
		r                        models.RawLoanRecord
		eth, race, coEth, coRace []string
	)
	err := row.Scan(
		&r.ID, &r.Year, &r.LEI,
		&r.StateCode, &r.CountyCode, &r.CensusTract,
		&r.MSAMD, &r.LoanPurpose, &r.LoanType,
		&r.ActionTaken, &r.LoanAmount, &r.PropertyValue, &r.Income,
		&r.AreaMedianIncome, &r.TractMinorityPct,
		&r.TractToAreaIncomePct,
		&eth, &race, &coEth, &coRace,
	)
	if err != nil {
		return models.RawLoanRecord{}, err
	}
	copy(r.Applicant.Ethnicity[:], eth)
	copy(r.Applicant.Race[:], race)
	copy(r.CoApplicant.Ethnicity[:], coEth)
	copy(r.CoApplicant.Race[:], coRace)
	return r, nil
}

// classify marks connection-level failures as sentinel.ErrUnavailable.
func classify(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if len(pgErr.Code) == 5 {
			switch pgErr.Code[:2] {
			case "08", "53", "57":
				return errors.Join(sentinel.ErrUnavailable, err)
			}
		}
		return err
	}
	var netErr net.Error
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) || errors.As(err, &netErr) {
		return errors.Join(sentinel.ErrUnavailable, err)
	}
	return err
}
