// Package scheduler runs periodic ccbilling maintenance jobs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/theirongolddev/household/internal/config"
	"github.com/theirongolddev/household/internal/model"
	"github.com/theirongolddev/household/internal/store"
)

// Job names.
const (
	JobRefreshAutoAssociations = "refresh_auto_associations"
	JobRenormalizeMerchants    = "renormalize_merchants"
	JobPruneOrderCache         = "prune_order_cache"
)

const defaultJobTimeout = 2 * time.Minute

// ErrUnknownJob is returned by RunNow for names that are not registered.
var ErrUnknownJob = errors.New("unknown job")

// Store is the persistence the jobs operate on.
type Store interface {
	ListOpenCycles(ctx context.Context) ([]model.BillingCycle, error)
	RefreshAutoAssociations(ctx context.Context, cycleID int64) (int, error)
	RenormalizeMerchants(ctx context.Context, batchSize int) (store.RenormalizeResult, error)
	PruneOrders(ctx context.Context, cutoff time.Time) (int, error)
}

// Options configures a Scheduler.
type Options struct {
	Config config.SchedulerConfig
	// OrderMaxAge is how long cached orders are kept.
	OrderMaxAge time.Duration
	Logger      logrus.FieldLogger
	Now         func() time.Time
}

// Job is one registered task.
type Job struct {
	Name string
	Spec string
	id   cron.EntryID
	run  func(ctx context.Context, log logrus.FieldLogger) error
}

// Scheduler owns the cron runner and its jobs.
type Scheduler struct {
	cron    *cron.Cron
	store   Store
	log     logrus.FieldLogger
	timeout time.Duration
	maxAge  time.Duration
	now     func() time.Time
	jobs    []Job
}

// New registers the maintenance jobs. It fails on an unknown timezone or
// an invalid cron spec.
func New(st Store, opts Options) (*Scheduler, error) {
	loc, err := opts.Config.Location()
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	log = log.WithField("component", "scheduler")
	if opts.Now == nil {
		opts.Now = time.Now
	}
	timeout := opts.Config.JobTimeout()
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	if opts.OrderMaxAge <= 0 {
		opts.OrderMaxAge = store.DefaultOrderMaxAge
	}

	cronLog := cron.PrintfLogger(log)
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		store:   st,
		log:     log,
		timeout: timeout,
		maxAge:  opts.OrderMaxAge,
		now:     opts.Now,
	}

	jobs := []Job{
		{Name: JobRefreshAutoAssociations, Spec: opts.Config.RefreshSpec, run: s.refreshAutoAssociations},
		{Name: JobRenormalizeMerchants, Spec: opts.Config.RenormalizeSpec, run: s.renormalizeMerchants},
		{Name: JobPruneOrderCache, Spec: opts.Config.PruneSpec, run: s.pruneOrderCache},
	}
	for _, j := range jobs {
		if j.Spec == "" {
			continue
		}
		id, err := s.cron.AddFunc(j.Spec, func() { _ = s.execute(context.Background(), j) })
		if err != nil {
			return nil, fmt.Errorf("scheduling %s (%q): %w", j.Name, j.Spec, err)
		}
		j.id = id
		s.jobs = append(s.jobs, j)
	}
	return s, nil
}

// Jobs lists the registered jobs.
func (s *Scheduler) Jobs() []Job {
	out := make([]Job, len(s.jobs))
	copy(out, s.jobs)
	return out
}

// Next returns the next run time of each registered job, by name. Times
// are zero until Start.
func (s *Scheduler) Next() map[string]time.Time {
	out := make(map[string]time.Time, len(s.jobs))
	for _, j := range s.jobs {
		out[j.Name] = s.cron.Entry(j.id).Next
	}
	return out
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.WithField("jobs", len(s.jobs)).Info("scheduler started")
}

// Stop halts the schedule and waits for running jobs, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for jobs: %w", ctx.Err())
	}
}

// RunNow runs a registered job immediately and synchronously.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	for _, j := range s.jobs {
		if j.Name == name {
			return s.execute(ctx, j)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownJob, name)
}

func (s *Scheduler) execute(ctx context.Context, j Job) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	log := s.log.WithField("job", j.Name)
	start := s.now()
	err := j.run(ctx, log)
	log = log.WithField("duration", s.now().Sub(start).String())
	if err != nil {
		log.WithError(err).Error("job failed")
		return err
	}
	log.Info("job finished")
	return nil
}

func (s *Scheduler) refreshAutoAssociations(ctx context.Context, log logrus.FieldLogger) error {
	cycles, err := s.store.ListOpenCycles(ctx)
	if err != nil {
		return fmt.Errorf("listing open cycles: %w", err)
	}
	total := 0
	var errs []error
	for _, c := range cycles {
		n, err := s.store.RefreshAutoAssociations(ctx, c.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("cycle %d: %w", c.ID, err))
			continue
		}
		if n > 0 {
			log.WithFields(logrus.Fields{"cycle_id": c.ID, "updated": n}).Debug("cycle refreshed")
		}
		total += n
	}
	log.WithFields(logrus.Fields{"cycles": len(cycles), "updated": total}).Info("auto-associations refreshed")
	return errors.Join(errs...)
}

func (s *Scheduler) renormalizeMerchants(ctx context.Context, log logrus.FieldLogger) error {
	res, err := s.store.RenormalizeMerchants(ctx, 0)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"payments_updated":         res.Payments,
		"budget_merchants_updated": res.BudgetMerchants,
	}).Info("merchants renormalized")
	return nil
}

func (s *Scheduler) pruneOrderCache(ctx context.Context, log logrus.FieldLogger) error {
	n, err := s.store.PruneOrders(ctx, s.now().Add(-s.maxAge))
	if err != nil {
		return err
	}
	log.WithField("pruned", n).Info("order cache pruned")
	return nil
}
