package incremental

//go:generate mockgen -source=ports/ports.go -destination=mocks/mocks.go -package=mocks SourceFeed,DerivedStore,Locker,Publisher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"hmdamart/internal/demographic"
	"hmdamart/internal/incremental/metrics"
	"hmdamart/internal/incremental/mocks"
	"hmdamart/internal/incremental/ports"
	"hmdamart/internal/loan/models"
	"hmdamart/internal/store/derived"
	"hmdamart/internal/store/source"
	"hmdamart/pkg/platform/sentinel"
)

// =============================================================================
// Incremental Controller Test Suite
// =============================================================================
// The controller owns the watermark protocol: which years are written, in
// what order, and what happens when a year cannot be committed. The suite runs
// it against the in-memory feed and store, with fault-injecting wrappers and
// mocks for the failure paths.

type ControllerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	feed    *source.InMemoryFeed
	store   *faultyStore
	metrics *metrics.Metrics
	now     time.Time
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.feed = source.NewInMemoryFeed()
	s.store = newFaultyStore()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *ControllerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ControllerSuite) newController(opts ...Option) *Controller {
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithClock(func() time.Time { return s.now }),
		WithBatchSize(7),
		WithRetryPolicy(RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}),
	}
	c, err := New(s.feed, s.store, append(base, opts...)...)
	s.Require().NoError(err)
	return c
}

func (s *ControllerSuite) count() int {
	n, err := s.store.Count(context.Background())
	s.Require().NoError(err)
	return n
}

func (s *ControllerSuite) TestNew() {
	s.Run("nil source feed returns error", func() {
		_, err := New(nil, s.store)
		s.Require().Error(err)
		s.Contains(err.Error(), "source feed is required")
	})

	s.Run("nil derived store returns error", func() {
		_, err := New(s.feed, nil)
		s.Require().Error(err)
		s.Contains(err.Error(), "derived store is required")
	})

	s.Run("defaults start idle with no result", func() {
		c, err := New(s.feed, s.store)
		s.Require().NoError(err)
		s.Equal(StateIdle, c.State())
		s.Nil(c.LastResult())
	})
}

func (s *ControllerSuite) TestRunMaterializesYearsAfterFloor() {
	s.feed.Add(loans(2016, 3)...)
	s.feed.Add(loans(2017, 4)...)
	s.feed.Add(loans(2019, 9)...)
	s.feed.Add(loans(2018, 20)...)

	res, err := s.newController().Run(context.Background())
	s.Require().NoError(err)

	s.Equal(2017, res.Watermark)
	s.Equal([]int{2018, 2019}, res.Years())
	s.Equal(29, res.Records())
	s.Empty(res.FailedYears)
	s.Equal(29, s.count())

	rows, err := s.store.Records(context.Background(), 2018)
	s.Require().NoError(err)
	s.Len(rows, 20)
	for _, r := range rows {
		s.Equal(res.RunID, r.RunID)
		s.Equal(s.now, r.MaterializedAt)
	}

	maxYear, ok, err := s.store.MaxYear(context.Background())
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(2019, maxYear)
	s.Equal(float64(2017), testutil.ToFloat64(s.metrics.Watermark))
	s.Equal(float64(29), testutil.ToFloat64(s.metrics.RecordsWritten))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Runs.WithLabelValues("success")))
}

func (s *ControllerSuite) TestRunTwiceIsNoop() {
	s.feed.Add(loans(2018, 5)...)
	c := s.newController()

	_, err := c.Run(context.Background())
	s.Require().NoError(err)
	before := s.count()

	res, err := c.Run(context.Background())
	s.Require().NoError(err)
	s.Empty(res.Partitions)
	s.Equal(2018, res.Watermark)
	s.Equal(before, s.count())
	s.Equal(1, s.store.appendCalls(2018))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Runs.WithLabelValues("noop")))
}

func (s *ControllerSuite) TestRunPicksUpOnlyNewYears() {
	s.feed.Add(loans(2018, 5)...)
	c := s.newController()
	_, err := c.Run(context.Background())
	s.Require().NoError(err)

	s.feed.Add(loans(2020, 6)...)
	s.feed.Add(loans(2019, 2)...)
	res, err := c.Run(context.Background())
	s.Require().NoError(err)

	s.Equal(2018, res.Watermark)
	s.Equal([]int{2019, 2020}, res.Years())
	s.Equal(1, s.store.appendCalls(2018))
	s.Equal(13, s.count())
}

func (s *ControllerSuite) TestRunRespectsConfiguredFloor() {
	s.feed.Add(loans(2018, 1)...)
	s.feed.Add(loans(2019, 1)...)
	s.feed.Add(loans(2020, 1)...)

	res, err := s.newController(WithFloor(2019)).Run(context.Background())
	s.Require().NoError(err)
	s.Equal(2019, res.Watermark)
	s.Equal([]int{2020}, res.Years())
}

func (s *ControllerSuite) TestRunIgnoresLooseSourceYears() {
	feed := mocks.NewMockSourceFeed(s.ctrl)
	feed.EXPECT().Years(gomock.Any(), 2017).Return([]int{2017, 2015}, nil)

	c, err := New(feed, s.store)
	s.Require().NoError(err)
	res, err := c.Run(context.Background())
	s.Require().NoError(err)
	s.Empty(res.Partitions)
}

func (s *ControllerSuite) TestRunStopsAtFirstFailedYear() {
	s.feed.Add(loans(2018, 3)...)
	s.feed.Add(loans(2019, 3)...)
	s.feed.Add(loans(2020, 3)...)
	s.store.failBefore(2019, fmt.Errorf("schema mismatch: %w", sentinel.ErrInvalidState))
	c := s.newController()

	res, err := c.Run(context.Background())
	s.Require().Error(err)

	var runErr *RunError
	s.Require().ErrorAs(err, &runErr)
	s.Equal([]int{2019, 2020}, runErr.FailedYears)
	s.Equal(res.RunID, runErr.RunID)
	s.ErrorIs(err, sentinel.ErrInvalidState)
	s.Equal([]int{2018}, res.Years())
	s.Equal(1, s.store.appendCalls(2019), "structural failures are not retried")
	s.Equal(0, s.store.appendCalls(2020))
	s.Equal(3, s.count())
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Runs.WithLabelValues("failed")))

	// The next run resumes from the last committed year.
	res, err = c.Run(context.Background())
	s.Require().NoError(err)
	s.Equal(2018, res.Watermark)
	s.Equal([]int{2019, 2020}, res.Years())
	s.Equal(9, s.count())
}

func (s *ControllerSuite) TestRunRetriesTransientFailure() {
	s.feed.Add(loans(2018, 4)...)
	s.store.failBefore(2018, fmt.Errorf("connection reset: %w", sentinel.ErrUnavailable))

	res, err := s.newController().Run(context.Background())
	s.Require().NoError(err)
	s.Require().Len(res.Partitions, 1)
	s.Equal(2, res.Partitions[0].Attempts)
	s.Equal(4, res.Partitions[0].Records)
	s.Equal(4, s.count())
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.AppendRetries))
}

func (s *ControllerSuite) TestRunResolvesAmbiguousCommit() {
	s.feed.Add(loans(2018, 4)...)
	s.store.failAfterCommit(2018, fmt.Errorf("commit response lost: %w", sentinel.ErrUnavailable))

	res, err := s.newController().Run(context.Background())
	s.Require().NoError(err)
	s.Require().Len(res.Partitions, 1)
	s.Equal(2, res.Partitions[0].Attempts)
	s.Equal(4, res.Partitions[0].Records)
	s.Equal(1, s.store.appendCalls(2018), "committed partition is not appended twice")
	s.Equal(4, s.count())

	summary := res.Partitions[0].Summary
	s.Equal(4, summary.Records)
	total := 0
	for _, n := range summary.Groups() {
		total += n
	}
	s.Equal(summary.Records, total, "group counts come from the committed attempt")
}

func (s *ControllerSuite) TestRunGivesUpAfterRetryBudget() {
	s.feed.Add(loans(2018, 4)...)
	unavailable := fmt.Errorf("database down: %w", sentinel.ErrUnavailable)
	s.store.failBefore(2018, unavailable, unavailable, unavailable, unavailable)

	res, err := s.newController().Run(context.Background())
	s.Require().Error(err)
	s.ErrorIs(err, sentinel.ErrUnavailable)
	s.Equal([]int{2018}, res.FailedYears)
	s.Equal(3, s.store.appendCalls(2018))
	s.Equal(0, s.count())
}

func (s *ControllerSuite) TestRunDoesNotRetryConflict() {
	store := mocks.NewMockDerivedStore(s.ctrl)
	s.feed.Add(loans(2018, 2)...)

	store.EXPECT().MaxYear(gomock.Any()).Return(0, false, nil)
	store.EXPECT().AppendPartition(gomock.Any(), 2018, ports.AppendNew, gomock.Any()).
		Return(0, fmt.Errorf("partition 2018 already materialized: %w", sentinel.ErrConflict)).
		Times(1)

	c, err := New(s.feed, store, WithRetryPolicy(RetryPolicy{MaxAttempts: 5, InitialInterval: time.Millisecond}))
	s.Require().NoError(err)
	_, err = c.Run(context.Background())
	s.Require().Error(err)
	s.ErrorIs(err, sentinel.ErrConflict)
	s.NotErrorIs(err, ErrRunInProgress)
}

func (s *ControllerSuite) TestRunWatermarkReadFailure() {
	store := mocks.NewMockDerivedStore(s.ctrl)
	store.EXPECT().MaxYear(gomock.Any()).Return(0, false, sentinel.ErrUnavailable)

	c, err := New(s.feed, store)
	s.Require().NoError(err)
	_, err = c.Run(context.Background())
	s.Require().Error(err)
	s.ErrorIs(err, sentinel.ErrUnavailable)
	s.Contains(err.Error(), "read watermark")
}

func (s *ControllerSuite) TestRunCancelledContext() {
	s.feed.Add(loans(2018, 30)...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.newController().Run(ctx)
	s.Require().Error(err)
	s.ErrorIs(err, context.Canceled)
	s.Equal(0, s.count())
}

func (s *ControllerSuite) TestRematerializeReplacesYear() {
	s.feed.Add(loans(2018, 3)...)
	s.feed.Add(loans(2019, 3)...)
	c := s.newController()
	first, err := c.Run(context.Background())
	s.Require().NoError(err)

	s.feed.Add(loans(2018, 5)...)
	res, err := c.Rematerialize(context.Background(), 2018)
	s.Require().NoError(err)
	s.NotEqual(first.RunID, res.RunID)
	s.Equal([]int{2018}, res.Years())

	rows, err := s.store.Records(context.Background(), 2018)
	s.Require().NoError(err)
	s.Len(rows, 8)
	for _, r := range rows {
		s.Equal(res.RunID, r.RunID)
	}
	s.Equal(11, s.count())
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Partitions.WithLabelValues("replace", "committed")))
}

func (s *ControllerSuite) TestRematerializeUnknownYear() {
	s.feed.Add(loans(2018, 3)...)

	res, err := s.newController().Rematerialize(context.Background(), 2030)
	s.Require().Error(err)
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.Equal([]int{2030}, res.FailedYears)
	s.Equal(0, s.count())
}

func (s *ControllerSuite) TestRematerializeDoesNotSkipAheadOfWatermark() {
	s.feed.Add(loans(2018, 3)...)
	c := s.newController()
	_, err := c.Run(context.Background())
	s.Require().NoError(err)

	s.feed.Add(loans(2019, 2)...)
	s.feed.Add(loans(2020, 4)...)
	res, err := c.Rematerialize(context.Background(), 2020)
	s.Require().Error(err)
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.Equal([]int{2020}, res.FailedYears)
	s.Zero(s.store.appendCalls(2020))

	res, err = c.Run(context.Background())
	s.Require().NoError(err)
	s.Equal(2018, res.Watermark)
	s.Equal([]int{2019, 2020}, res.Years())
	s.Equal(9, s.count())
}

func (s *ControllerSuite) TestConcurrentRunIsRejected() {
	s.feed.Add(loans(2018, 3)...)
	feed := &blockingFeed{InMemoryFeed: s.feed, started: make(chan struct{}), release: make(chan struct{})}
	c, err := New(feed, s.store, WithMetrics(s.metrics))
	s.Require().NoError(err)

	done := make(chan error, 1)
	go func() {
		_, err := c.Run(context.Background())
		done <- err
	}()
	<-feed.started
	s.Equal(StateMaterializing, c.State())

	res, err := c.Run(context.Background())
	s.Nil(res)
	s.ErrorIs(err, ErrRunInProgress)
	s.ErrorIs(err, sentinel.ErrConflict)

	_, err = c.Rematerialize(context.Background(), 2018)
	s.ErrorIs(err, ErrRunInProgress)

	close(feed.release)
	s.Require().NoError(<-done)
	s.Equal(StateIdle, c.State())
	s.Equal(3, s.count())
	s.Equal(float64(2), testutil.ToFloat64(s.metrics.RunInProgressTotal))
}

func (s *ControllerSuite) TestDistributedLock() {
	s.Run("held elsewhere rejects the run", func() {
		locker := mocks.NewMockLocker(s.ctrl)
		locker.EXPECT().Acquire(gomock.Any(), LockKey).Return(nil, fmt.Errorf("lock held: %w", sentinel.ErrConflict))

		_, err := s.newController(WithLocker(locker)).Run(context.Background())
		s.ErrorIs(err, ErrRunInProgress)
	})

	s.Run("lock backend failure is not a conflict", func() {
		locker := mocks.NewMockLocker(s.ctrl)
		locker.EXPECT().Acquire(gomock.Any(), LockKey).Return(nil, sentinel.ErrUnavailable)

		_, err := s.newController(WithLocker(locker)).Run(context.Background())
		s.ErrorIs(err, sentinel.ErrUnavailable)
		s.NotErrorIs(err, ErrRunInProgress)
	})

	s.Run("lock is released after the run", func() {
		s.feed.Add(loans(2018, 2)...)
		released := false
		locker := mocks.NewMockLocker(s.ctrl)
		locker.EXPECT().Acquire(gomock.Any(), LockKey).Return(func(context.Context) error {
			released = true
			return nil
		}, nil)

		_, err := s.newController(WithLocker(locker)).Run(context.Background())
		s.Require().NoError(err)
		s.True(released)
	})
}

func (s *ControllerSuite) TestPublishesCommittedPartitions() {
	s.feed.Add(loans(2018, 4)...)
	s.feed.Add(loans(2019, 2)...)
	publisher := mocks.NewMockPublisher(s.ctrl)

	var events []ports.PartitionEvent
	publisher.EXPECT().PublishPartition(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e ports.PartitionEvent) error {
			events = append(events, e)
			return nil
		}).Times(2)

	res, err := s.newController(WithPublisher(publisher)).Run(context.Background())
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(2018, events[0].Year)
	s.Equal(4, events[0].Records)
	s.Equal(4, events[0].Summary.Records)
	s.Equal(ports.AppendNew, events[0].Mode)
	s.Equal(res.RunID, events[1].RunID)
	s.Equal(2019, events[1].Year)
}

func (s *ControllerSuite) TestPublishFailureDoesNotFailRun() {
	s.feed.Add(loans(2018, 4)...)
	s.feed.Add(loans(2019, 2)...)
	publisher := mocks.NewMockPublisher(s.ctrl)
	publisher.EXPECT().PublishPartition(gomock.Any(), gomock.Any()).Return(errors.New("broker unreachable")).Times(2)

	res, err := s.newController(WithPublisher(publisher)).Run(context.Background())
	s.Require().NoError(err)
	s.Equal([]int{2018, 2019}, res.Years())
	s.Equal(float64(2), testutil.ToFloat64(s.metrics.PublishFailures))
}

func (s *ControllerSuite) TestLastResult() {
	s.feed.Add(loans(2018, 1)...)
	c := s.newController()
	res, err := c.Run(context.Background())
	s.Require().NoError(err)
	s.Same(res, c.LastResult())
}

var loanSeq atomic.Int64

// loans builds n raw rows for a year, cycling through a spread of applicant
// codes and incomes.
func loans(year, n int) []models.RawLoanRecord {
	ethnicity := []string{
		demographic.EthnicityNotHispanic,
		demographic.EthnicityHispanic,
		demographic.EthnicityNotProvided,
	}
	race := []string{
		demographic.RaceWhite,
		demographic.RaceBlack,
		demographic.RaceKorean,
		demographic.RaceNativeAmerican,
		demographic.RaceNotProvided,
	}
	out := make([]models.RawLoanRecord, n)
	for i := range out {
		inc := float64(30 + (i*17)%150)
		ami := 90000.0
		tractPct := float64(40 + (i*13)%120)
		minority := float64((i * 23) % 100)
		r := models.RawLoanRecord{
			ID:                   fmt.Sprintf("%d-%06d", year, loanSeq.Add(1)),
			Year:                 year,
			LEI:                  "5493001KJTIIGC8Y1R12",
			StateCode:            "IL",
			CountyCode:           "17031",
			CensusTract:          fmt.Sprintf("170310%05d", i%11),
			MSAMD:                "16984",
			LoanPurpose:          "1",
			LoanType:             "1",
			ActionTaken:          "1",
			LoanAmount:           250000,
			Income:               &inc,
			AreaMedianIncome:     &ami,
			TractToAreaIncomePct: &tractPct,
			TractMinorityPct:     &minority,
		}
		r.Applicant.Ethnicity[0] = ethnicity[i%len(ethnicity)]
		r.Applicant.Race[0] = race[i%len(race)]
		out[i] = r
	}
	return out
}

// faultyStore injects failures around the in-memory derived store.
type faultyStore struct {
	*derived.InMemoryStore

	mu     sync.Mutex
	calls  map[int]int
	before map[int][]error
	after  map[int]error
}

func newFaultyStore() *faultyStore {
	return &faultyStore{
		InMemoryStore: derived.NewInMemoryStore(),
		calls:         make(map[int]int),
		before:        make(map[int][]error),
		after:         make(map[int]error),
	}
}

// failBefore makes the next len(errs) appends of year fail without writing.
func (s *faultyStore) failBefore(year int, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.before[year] = append(s.before[year], errs...)
}

// failAfterCommit makes the next append of year commit and then report err.
func (s *faultyStore) failAfterCommit(year int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.after[year] = err
}

func (s *faultyStore) appendCalls(year int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[year]
}

func (s *faultyStore) AppendPartition(ctx context.Context, year int, mode ports.AppendMode, fill func(ports.Emit) error) (int, error) {
	s.mu.Lock()
	s.calls[year]++
	if errs := s.before[year]; len(errs) > 0 {
		s.before[year] = errs[1:]
		s.mu.Unlock()
		return 0, errs[0]
	}
	afterErr := s.after[year]
	delete(s.after, year)
	s.mu.Unlock()

	n, err := s.InMemoryStore.AppendPartition(ctx, year, mode, fill)
	if err == nil && afterErr != nil {
		return 0, afterErr
	}
	return n, err
}

// blockingFeed holds the first scan until release is closed.
type blockingFeed struct {
	*source.InMemoryFeed
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (f *blockingFeed) Scan(ctx context.Context, year int, batchSize int, fn func([]models.RawLoanRecord) error) error {
	f.once.Do(func() { close(f.started) })
	<-f.release
	return f.InMemoryFeed.Scan(ctx, year, batchSize, fn)
}
