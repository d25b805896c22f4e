// Package scheduler admits submissions into a bounded queue and fans them
// out to a fixed pool of judging workers.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"

	"github.com/arbiter-oj/arbiter/api"
	"github.com/arbiter-oj/arbiter/internal/pipeline"
	"github.com/arbiter-oj/arbiter/internal/report"
	"github.com/arbiter-oj/arbiter/internal/store"
)

var (
	ErrOverloaded = errors.New("scheduler queue is full")
	ErrDuplicate  = errors.New("submission is already queued or running")
	ErrUserLimit  = errors.New("user has too many submissions in flight")
	ErrClosed     = errors.New("scheduler is shutting down")
)

type Config struct {
	// Workers is the number of submissions judged concurrently.
	Workers int
	// QueueDepth bounds each of the two admission queues.
	QueueDepth int
	// PerUserLimit caps one user's queued plus running submissions;
	// 0 disables the ceiling.
	PerUserLimit int
	Logger       *slog.Logger
}

// ReporterFunc builds the per-submission progress reporter.
type ReporterFunc func(subm api.Submission) report.Reporter

// Ticket tracks one admitted submission until its terminal result.
type Ticket struct {
	SubmissionID string

	done   chan struct{}
	result *api.SubmissionResult
	cancel context.CancelFunc
}

// Wait blocks until the submission reaches a terminal result or ctx fires.
func (t *Ticket) Wait(ctx context.Context) (*api.SubmissionResult, error) {
	select {
	case <-t.done:
		return t.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel asks the pipeline to stop this submission. A submission still in
// the queue finishes as cancelled without running anything.
func (t *Ticket) Cancel() {
	t.cancel()
}

type job struct {
	subm   api.Submission
	ticket *Ticket
	ctx    context.Context
}

type Scheduler struct {
	cfg      Config
	pipe     *pipeline.Pipeline
	results  store.Store
	reporter ReporterFunc
	log      *slog.Logger

	normal chan job
	prio   chan job
	quit   chan struct{}
	closed atomic.Bool

	inflight mapset.Set[string]
	perUser  *xsync.MapOf[string, int]
	tickets  *xsync.MapOf[string, *Ticket]

	runCtx    context.Context
	runCancel context.CancelFunc
	group     *errgroup.Group
}

func New(cfg Config, pipe *pipeline.Pipeline, results store.Store, reporter ReporterFunc) *Scheduler {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueDepth < 1 {
		cfg.QueueDepth = 64
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	runCtx, runCancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cfg:       cfg,
		pipe:      pipe,
		results:   results,
		reporter:  reporter,
		log:       log,
		normal:    make(chan job, cfg.QueueDepth),
		prio:      make(chan job, cfg.QueueDepth),
		quit:      make(chan struct{}),
		inflight:  mapset.NewSet[string](),
		perUser:   xsync.NewMapOf[string, int](),
		tickets:   xsync.NewMapOf[string, *Ticket](),
		runCtx:    runCtx,
		runCancel: runCancel,
	}
	s.group = &errgroup.Group{}
	for i := 0; i < cfg.Workers; i++ {
		s.group.Go(s.work)
	}
	return s
}

// Submit admits a submission. Admission is decided synchronously: the
// caller immediately learns whether the submission was queued or refused.
func (s *Scheduler) Submit(subm api.Submission) (*Ticket, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if !s.inflight.Add(subm.ID) {
		return nil, ErrDuplicate
	}
	if !s.reserveUserSlot(subm.UserID) {
		s.inflight.Remove(subm.ID)
		return nil, ErrUserLimit
	}

	jobCtx, cancel := context.WithCancel(s.runCtx)
	ticket := &Ticket{
		SubmissionID: subm.ID,
		done:         make(chan struct{}),
		cancel:       cancel,
	}
	j := job{subm: subm, ticket: ticket, ctx: jobCtx}

	// Stored before the enqueue: a worker may finish the job, and delete
	// the ticket, before Submit returns.
	s.tickets.Store(subm.ID, ticket)

	queue := s.normal
	if subm.Priority {
		queue = s.prio
	}
	select {
	case queue <- j:
		return ticket, nil
	default:
		s.tickets.Delete(subm.ID)
		s.releaseSlot(subm.ID, subm.UserID)
		cancel()
		return nil, ErrOverloaded
	}
}

// Lookup returns the ticket of a queued or running submission.
func (s *Scheduler) Lookup(submID string) (*Ticket, bool) {
	return s.tickets.Load(submID)
}

// InFlight reports how many submissions are queued or running.
func (s *Scheduler) InFlight() int {
	return s.inflight.Cardinality()
}

// Close stops admitting and drains the queues. Submissions still running
// when ctx fires are cancelled rather than abandoned mid-judging.
func (s *Scheduler) Close(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.quit)

	waited := make(chan error, 1)
	go func() { waited <- s.group.Wait() }()

	select {
	case err := <-waited:
		s.runCancel()
		return err
	case <-ctx.Done():
		s.runCancel()
		return <-waited
	}
}

func (s *Scheduler) work() error {
	for {
		// Prefer the priority queue without starving shutdown.
		select {
		case j := <-s.prio:
			s.run(j)
			continue
		default:
		}
		select {
		case j := <-s.prio:
			s.run(j)
		case j := <-s.normal:
			s.run(j)
		case <-s.quit:
			return s.drain()
		}
	}
}

func (s *Scheduler) drain() error {
	for {
		select {
		case j := <-s.prio:
			s.run(j)
		case j := <-s.normal:
			s.run(j)
		default:
			return nil
		}
	}
}

func (s *Scheduler) run(j job) {
	defer s.releaseSlot(j.subm.ID, j.subm.UserID)
	defer s.tickets.Delete(j.subm.ID)

	res := s.pipe.Run(j.ctx, j.subm, s.reporter(j.subm))

	if err := s.results.Save(j.ctx, res); err != nil {
		// The verdict already exists and is still delivered to the
		// waiter; only the durable record is missing.
		s.log.Error("failed to persist result",
			"subm", j.subm.ID, "verdict", res.Verdict, "error", err)
	}

	j.ticket.result = res
	close(j.ticket.done)
}

func (s *Scheduler) reserveUserSlot(userID string) bool {
	if s.cfg.PerUserLimit <= 0 || userID == "" {
		return true
	}
	ok := true
	s.perUser.Compute(userID, func(n int, _ bool) (int, bool) {
		if n >= s.cfg.PerUserLimit {
			ok = false
			return n, n == 0
		}
		return n + 1, false
	})
	return ok
}

func (s *Scheduler) releaseSlot(submID, userID string) {
	s.inflight.Remove(submID)
	if s.cfg.PerUserLimit <= 0 || userID == "" {
		return
	}
	s.perUser.Compute(userID, func(n int, loaded bool) (int, bool) {
		if !loaded || n <= 1 {
			return 0, true
		}
		return n - 1, false
	})
}
