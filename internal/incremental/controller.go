package incremental

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"hmdamart/internal/incremental/metrics"
	"hmdamart/internal/incremental/ports"
	"hmdamart/internal/loan/models"
	"hmdamart/internal/materialize"
	"hmdamart/pkg/platform/sentinel"
)

// LockKey is the distributed lock key guarding the derived store.
const LockKey = "hmdamart:materialize"

const (
	defaultFloor     = 2017
	defaultBatchSize = 5000
)

// Controller keeps the derived store in step with the source feed, one
// reporting year at a time. At most one run is active per controller, and a
// Locker extends that across processes.
type Controller struct {
	source       ports.SourceFeed
	derived      ports.DerivedStore
	materializer *materialize.Materializer
	locker       ports.Locker
	publisher    ports.Publisher
	logger       *slog.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
	retry        RetryPolicy
	now          func() time.Time
	newID        func() uuid.UUID

	floor     int
	batchSize int

	mu    sync.Mutex
	state atomic.Int32
	last  atomic.Pointer[RunResult]
}

type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

func WithLocker(l ports.Locker) Option {
	return func(c *Controller) {
		c.locker = l
	}
}

func WithPublisher(p ports.Publisher) Option {
	return func(c *Controller) {
		c.publisher = p
	}
}

func WithMaterializer(m *materialize.Materializer) Option {
	return func(c *Controller) {
		if m != nil {
			c.materializer = m
		}
	}
}

// WithFloor sets the watermark used when the derived store is empty. Years
// strictly after the floor are materialized.
func WithFloor(year int) Option {
	return func(c *Controller) {
		c.floor = year
	}
}

func WithBatchSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Controller) {
		c.retry = p
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// New constructs a Controller. Source and derived store are required.
func New(source ports.SourceFeed, derived ports.DerivedStore, opts ...Option) (*Controller, error) {
	if source == nil {
		return nil, errors.New("source feed is required")
	}
	if derived == nil {
		return nil, errors.New("derived store is required")
	}
	c := &Controller{
		source:       source,
		derived:      derived,
		materializer: materialize.New(),
		logger:       slog.New(slog.DiscardHandler),
		tracer:       otel.Tracer("hmdamart/incremental"),
		retry:        DefaultRetryPolicy(),
		now:          time.Now,
		newID:        uuid.New,
		floor:        defaultFloor,
		batchSize:    defaultBatchSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c, nil
}

// State reports whether a run is in progress.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// LastResult returns the result of the most recent finished run, or nil.
func (c *Controller) LastResult() *RunResult {
	return c.last.Load()
}

// Run materializes every source year newer than the derived store's
// watermark. With no new years it is a no-op. Years are processed in
// ascending order and the run stops at the first year that cannot be
// committed, so the watermark never moves past a missing year.
func (c *Controller) Run(ctx context.Context) (*RunResult, error) {
	return c.exclusive(ctx, "incremental.run", func(ctx context.Context, res *RunResult) error {
		watermark, err := c.watermark(ctx)
		if err != nil {
			return err
		}
		res.Watermark = watermark
		c.metrics.SetWatermark(watermark)

		years, err := c.source.Years(ctx, watermark)
		if err != nil {
			return fmt.Errorf("list source years: %w", err)
		}
		years = normalizeYears(years, watermark)
		if len(years) == 0 {
			c.logger.InfoContext(ctx, "derived store up to date", "run_id", res.RunID, "watermark", watermark)
			return nil
		}

		c.logger.InfoContext(ctx, "materializing new years",
			"run_id", res.RunID,
			"watermark", watermark,
			"years", years,
		)
		for i, year := range years {
			part, err := c.materializeYear(ctx, res.RunID, year, ports.AppendNew)
			if err != nil {
				res.FailedYears = slices.Clone(years[i:])
				return err
			}
			res.Partitions = append(res.Partitions, part)
		}
		return nil
	})
}

// Rematerialize deletes one already materialized year from the derived store
// and materializes it again from the source feed in a single transaction. A
// year the derived store does not hold fails with sentinel.ErrNotFound, so the
// watermark only ever moves through Run. Run never rematerializes on its own;
// it exists for out-of-band corrections.
func (c *Controller) Rematerialize(ctx context.Context, year int) (*RunResult, error) {
	return c.exclusive(ctx, "incremental.rematerialize", func(ctx context.Context, res *RunResult) error {
		if _, ok, err := c.derived.Partition(ctx, year); err != nil {
			res.FailedYears = []int{year}
			return fmt.Errorf("check partition %d: %w", year, err)
		} else if !ok {
			res.FailedYears = []int{year}
			return fmt.Errorf("year %d was never materialized: %w", year, sentinel.ErrNotFound)
		}

		years, err := c.source.Years(ctx, year-1)
		if err != nil {
			return fmt.Errorf("list source years: %w", err)
		}
		if !slices.Contains(years, year) {
			res.FailedYears = []int{year}
			return fmt.Errorf("source has no rows for %d: %w", year, sentinel.ErrNotFound)
		}

		part, err := c.materializeYear(ctx, res.RunID, year, ports.ReplaceYear)
		if err != nil {
			res.FailedYears = []int{year}
			return err
		}
		res.Partitions = append(res.Partitions, part)
		return nil
	})
}

// exclusive runs fn as one logical transaction against the derived store:
// the watermark read and every append happen under the controller lock and,
// when configured, the distributed lock.
func (c *Controller) exclusive(ctx context.Context, name string, fn func(context.Context, *RunResult) error) (*RunResult, error) {
	if !c.mu.TryLock() {
		c.metrics.IncrementRejected()
		return nil, ErrRunInProgress
	}
	defer c.mu.Unlock()

	if c.locker != nil {
		release, err := c.locker.Acquire(ctx, LockKey)
		if err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				c.metrics.IncrementRejected()
				return nil, ErrRunInProgress
			}
			return nil, fmt.Errorf("acquire run lock: %w", err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				c.logger.WarnContext(ctx, "failed to release run lock", "error", err)
			}
		}()
	}

	c.state.Store(int32(StateMaterializing))
	defer c.state.Store(int32(StateIdle))

	res := &RunResult{RunID: c.newID(), StartedAt: c.now()}
	ctx, span := c.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("run_id", res.RunID.String())))
	defer span.End()

	err := fn(ctx, res)
	res.FinishedAt = c.now()
	c.last.Store(res)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.metrics.IncrementRun("failed")
		c.logger.ErrorContext(ctx, "materialization run failed",
			"run_id", res.RunID,
			"failed_years", res.FailedYears,
			"error", err,
		)
		return res, &RunError{RunID: res.RunID, FailedYears: res.FailedYears, Err: err}
	}

	if len(res.Partitions) == 0 {
		c.metrics.IncrementRun("noop")
	} else {
		c.metrics.IncrementRun("success")
	}
	c.logger.InfoContext(ctx, "materialization run finished",
		"run_id", res.RunID,
		"partitions", len(res.Partitions),
		"records", res.Records(),
		"duration", res.FinishedAt.Sub(res.StartedAt),
	)
	return res, nil
}

func (c *Controller) watermark(ctx context.Context) (int, error) {
	year, ok, err := c.derived.MaxYear(ctx)
	if err != nil {
		return 0, fmt.Errorf("read watermark: %w", err)
	}
	if !ok || year < c.floor {
		return c.floor, nil
	}
	return year, nil
}

// materializeYear writes one year with retries. Every failed attempt is
// rolled back by the store, so a retry starts from an absent partition. When
// an attempt fails after the store may already have committed, the partition
// is looked up before trying again.
func (c *Controller) materializeYear(ctx context.Context, runID uuid.UUID, year int, mode ports.AppendMode) (PartitionResult, error) {
	ctx, span := c.tracer.Start(ctx, "incremental.partition", trace.WithAttributes(
		attribute.Int("year", year),
		attribute.String("mode", mode.String()),
	))
	defer span.End()

	start := c.now()
	stamp := materialize.Stamp{RunID: runID, At: start}
	part := PartitionResult{Year: year}

	// Summary of the latest attempt. When that attempt committed but still
	// reported an error, the retry reuses it.
	var attempted materialize.Summary
	err := c.retry.Do(ctx, func(attempt int) error {
		part.Attempts = attempt
		if attempt > 1 {
			c.metrics.IncrementRetries()
			if done, err := c.committedBy(ctx, runID, year); err != nil {
				return err
			} else if done != nil {
				part.Records = done.Records
				part.Summary = attempted
				return nil
			}
		}

		var summary materialize.Summary
		written, err := c.derived.AppendPartition(ctx, year, mode, func(emit ports.Emit) error {
			return c.source.Scan(ctx, year, c.batchSize, func(batch []models.RawLoanRecord) error {
				out, err := c.materializer.Batch(ctx, batch, stamp)
				if err != nil {
					return err
				}
				summary.Merge(materialize.Summarize(out))
				return emit(out)
			})
		})
		attempted = summary
		if err != nil {
			if IsTransient(err) {
				c.logger.WarnContext(ctx, "partition attempt failed, retrying",
					"year", year,
					"attempt", attempt,
					"error", err,
				)
			}
			return err
		}
		part.Records = written
		part.Summary = summary
		return nil
	})

	c.metrics.ObservePartition(c.now().Sub(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.metrics.IncrementPartition(mode.String(), "failed")
		return part, fmt.Errorf("materialize %d: %w", year, err)
	}

	c.metrics.IncrementPartition(mode.String(), "committed")
	c.metrics.AddRecords(part.Records)
	c.metrics.AddGroups(part.Summary.Groups())
	span.SetAttributes(attribute.Int("records", part.Records))
	c.logger.InfoContext(ctx, "partition committed",
		"run_id", runID,
		"year", year,
		"mode", mode.String(),
		"records", part.Records,
		"attempts", part.Attempts,
		"hispanic", part.Summary.Hispanic,
		"multi_racial", part.Summary.MultiRacial,
		"no_demographic_data", part.Summary.NoDemographic,
		"lmi_borrowers", part.Summary.LMIBorrowers,
		"mmct", part.Summary.MajorityMinority,
	)

	c.publish(ctx, ports.PartitionEvent{
		RunID:       runID,
		Year:        year,
		Mode:        mode,
		Records:     part.Records,
		Summary:     part.Summary,
		CompletedAt: c.now(),
	})
	return part, nil
}

// committedBy returns the partition if an earlier attempt of this run
// already committed it.
func (c *Controller) committedBy(ctx context.Context, runID uuid.UUID, year int) (*ports.PartitionInfo, error) {
	info, ok, err := c.derived.Partition(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("check partition %d: %w", year, err)
	}
	if ok && info.RunID == runID {
		return &info, nil
	}
	return nil, nil
}

// publish is best-effort: the partition is already committed, and consumers
// can always fall back to reading the derived store.
func (c *Controller) publish(ctx context.Context, event ports.PartitionEvent) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.PublishPartition(ctx, event); err != nil {
		c.metrics.IncrementPublishFailures()
		c.logger.WarnContext(ctx, "failed to publish partition event",
			"run_id", event.RunID,
			"year", event.Year,
			"error", err,
		)
	}
}

// normalizeYears keeps years after the watermark, sorted and unique, in case
// a source returns them loosely.
func normalizeYears(years []int, watermark int) []int {
	out := make([]int, 0, len(years))
	for _, y := range years {
		if y > watermark {
			out = append(out, y)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
