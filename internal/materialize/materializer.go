// Package materialize combines demographic, income and tract classification
// with pass-through loan attributes into one derived record per loan.
package materialize

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"hmdamart/internal/demographic"
	"hmdamart/internal/geography"
	"hmdamart/internal/income"
	"hmdamart/internal/loan/models"
)

// incomeUnit converts LAR income (thousands of dollars) to the dollar scale
// of the area median family income.
const incomeUnit = 1000

const (
	defaultWorkers   = 4
	defaultChunkSize = 512
)

// Stamp identifies the run that produced a batch of derived records.
type Stamp struct {
	RunID uuid.UUID
	At    time.Time
}

// Materialize derives the classified record for one raw record. It is pure
// and safe to call concurrently.
func Materialize(r models.RawLoanRecord, stamp Stamp) models.ClassifiedLoanRecord {
	demo := demographic.ClassifyRecord(r)
	borrower := income.Classify(borrowerIncome(r.Income), r.AreaMedianIncome)
	tract := income.ClassifyPercent(r.TractToAreaIncomePct)

	return models.ClassifiedLoanRecord{
		ID:            r.ID,
		Year:          r.Year,
		LEI:           r.LEI,
		StateCode:     r.StateCode,
		CountyCode:    r.CountyCode,
		CensusTract:   r.CensusTract,
		MSAMD:         r.MSAMD,
		LoanPurpose:   r.LoanPurpose,
		LoanType:      r.LoanType,
		ActionTaken:   r.ActionTaken,
		LoanAmount:    r.LoanAmount,
		PropertyValue: r.PropertyValue,

		IsHispanic:         demo.IsHispanic(),
		IsBlack:            demo.IsBlack(),
		IsAsian:            demo.IsAsian(),
		IsWhite:            demo.IsWhite(),
		IsNativeAmerican:   demo.IsNativeAmerican(),
		IsPacificIslander:  demo.IsPacificIslander(),
		IsMultiRacial:      demo.IsMultiRacial(),
		HasDemographicData: demo.HasDemographicData(),

		BorrowerIncomeTier: borrower.Tier,
		IsLMIBorrower:      borrower.LMI(),
		TractIncomeTier:    tract.Tier,
		IsLMITract:         tract.LMI(),

		IsMajorityMinorityTract: geography.IsMajorityMinority(r.TractMinorityPct),
		TractMinorityPct:        r.TractMinorityPct,

		RunID:          stamp.RunID,
		MaterializedAt: stamp.At,
	}
}

func borrowerIncome(thousands *float64) *float64 {
	if thousands == nil {
		return nil
	}
	v := *thousands * incomeUnit
	return &v
}

// Materializer classifies batches using a bounded worker pool.
type Materializer struct {
	workers   int
	chunkSize int
}

type Option func(*Materializer)

// WithWorkers bounds the number of goroutines classifying one batch.
func WithWorkers(n int) Option {
	return func(m *Materializer) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithChunkSize sets how many records each worker task classifies.
func WithChunkSize(n int) Option {
	return func(m *Materializer) {
		if n > 0 {
			m.chunkSize = n
		}
	}
}

func New(opts ...Option) *Materializer {
	m := &Materializer{workers: defaultWorkers, chunkSize: defaultChunkSize}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Batch materializes records in parallel. Output order matches input order.
// Records are independent, so the only error is ctx cancellation.
func (m *Materializer) Batch(ctx context.Context, records []models.RawLoanRecord, stamp Stamp) ([]models.ClassifiedLoanRecord, error) {
	out := make([]models.ClassifiedLoanRecord, len(records))
	if len(records) == 0 {
		return out, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	for start := 0; start < len(records); start += m.chunkSize {
		end := min(start+m.chunkSize, len(records))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				out[i] = Materialize(records[i], stamp)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
