// Package payment implements the bounded payment status polling loop.
//
// This file implements the Supervisor, which owns every PollJob: it spawns
// one polling goroutine per job, enforces the attempt budget, classifies
// fetch errors as transient or fatal, and on resolution pushes the status to
// the user's live connections before persisting it to the remote backend.
//
// One job may be active per (user, transaction) pair; duplicates are
// rejected while the first is still Pending. A slow provider call on one job
// never delays other jobs - each runs on its own goroutine and timer.
package payment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"github.com/rs/zerolog/log"

	"github.com/damam/go-relay-backend/internal/domain"
	"github.com/damam/go-relay-backend/internal/presence"
)

// EventPaymentStatus is the outbound event name for resolution notices.
const EventPaymentStatus = "payment_status"

// StatusClient performs one status query against a provider.
type StatusClient interface {
	FetchStatus(ctx context.Context, req PollRequest) (string, error)
}

// ConnLookup is the slice of the presence registry the supervisor needs:
// resolving a user's live handles at notification time. *presence.Registry
// satisfies it.
type ConnLookup interface {
	Lookup(userID string) []presence.Conn
}

// StatusSaver persists a terminal status to the remote backend. Invoked
// once per resolved job (with bounded retries); never on timeout or failure.
type StatusSaver interface {
	SaveStatus(ctx context.Context, userID, status string) error
}

// RecordStore writes the local audit row for a terminal status, including
// whether the remote save succeeded (the reconciliation flag).
type RecordStore interface {
	RecordStatus(ctx context.Context, rec *domain.PaymentStatusRecord) error
}

// Tuning overrides the poll cadence for one provider. Zero fields fall
// back to the supervisor-wide defaults. MTN MoMo settles within seconds
// and is normally polled tighter than Orange Money.
type Tuning struct {
	Interval    time.Duration
	MaxAttempts int
}

// Supervisor owns all poll jobs. Construct via NewSupervisor.
type Supervisor struct {
	registry ConnLookup
	saver    StatusSaver
	records  RecordStore // may be nil
	clients  map[Provider]StatusClient

	interval        time.Duration
	maxAttempts     int
	tuning          map[Provider]Tuning
	notifyOnTimeout bool
	saveRetries     int

	clock   Clock
	baseCtx context.Context

	mu     sync.Mutex
	active map[string]*Job
	wg     sync.WaitGroup
}

// NewSupervisor constructs a Supervisor bound to ctx: cancelling ctx stops
// all polling goroutines. Jobs deliberately do not inherit per-request or
// per-connection contexts - a user disconnecting must not cancel an
// in-flight poll.
func NewSupervisor(
	ctx context.Context,
	registry ConnLookup,
	saver StatusSaver,
	records RecordStore,
	clients map[Provider]StatusClient,
	interval time.Duration,
	maxAttempts int,
	notifyOnTimeout bool,
	saveRetries int,
) *Supervisor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if maxAttempts < 1 {
		maxAttempts = 12
	}
	return &Supervisor{
		registry:        registry,
		saver:           saver,
		records:         records,
		clients:         clients,
		interval:        interval,
		maxAttempts:     maxAttempts,
		tuning:          make(map[Provider]Tuning),
		notifyOnTimeout: notifyOnTimeout,
		saveRetries:     saveRetries,
		clock:           realClock{},
		baseCtx:         ctx,
		active:          make(map[string]*Job),
	}
}

// SetTuning installs a per-provider cadence override. Call during wiring,
// before the first Start; jobs pick up the cadence when they begin.
func (s *Supervisor) SetTuning(p Provider, t Tuning) {
	s.mu.Lock()
	s.tuning[p] = t
	s.mu.Unlock()
}

// cadence resolves the interval and attempt budget for one provider.
func (s *Supervisor) cadence(p Provider) (time.Duration, int) {
	interval, budget := s.interval, s.maxAttempts
	s.mu.Lock()
	t, ok := s.tuning[p]
	s.mu.Unlock()
	if ok {
		if t.Interval > 0 {
			interval = t.Interval
		}
		if t.MaxAttempts > 0 {
			budget = t.MaxAttempts
		}
	}
	return interval, budget
}

// Start creates a PollJob for req and begins polling on its own goroutine.
// It returns ErrUnsupportedProvider when no client is configured for the
// provider and ErrJobActive when a Pending job already exists for the same
// (user, transaction) pair.
func (s *Supervisor) Start(req PollRequest) (*Job, error) {
	client, ok := s.clients[req.Provider]
	if !ok {
		return nil, ErrUnsupportedProvider
	}

	key := req.UserID + "|" + req.TransactionRef

	s.mu.Lock()
	if _, busy := s.active[key]; busy {
		s.mu.Unlock()
		return nil, ErrJobActive
	}
	job := &Job{
		UserID:         req.UserID,
		Provider:       req.Provider,
		TransactionRef: req.TransactionRef,
		state:          StatePending,
		done:           make(chan struct{}),
	}
	s.active[key] = job
	s.mu.Unlock()

	interval, budget := s.cadence(req.Provider)

	activeJobs.Inc()
	s.wg.Add(1)
	go s.run(job, req, client, key, interval, budget)

	log.Info().
		Str("user_id", req.UserID).
		Str("provider", string(req.Provider)).
		Dur("interval", interval).
		Int("max_attempts", budget).
		Msg("payment poll started")
	return job, nil
}

// ActiveCount reports how many jobs are currently Pending.
func (s *Supervisor) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Wait blocks until every polling goroutine has exited. Intended for
// graceful shutdown after the base context is cancelled.
func (s *Supervisor) Wait() { s.wg.Wait() }

// run is the polling loop for one job. It is the only writer of the job's
// state after creation.
func (s *Supervisor) run(job *Job, req PollRequest, client StatusClient, key string, interval time.Duration, maxAttempts int) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.active, key)
		s.mu.Unlock()
		activeJobs.Dec()
		close(job.done)
	}()

	for {
		select {
		case <-s.baseCtx.Done():
			job.setState(StateFailed)
			pollJobs.WithLabelValues("canceled").Inc()
			return
		case <-s.clock.After(interval):
		}

		job.mu.Lock()
		job.attempts++
		attempts := job.attempts
		job.mu.Unlock()

		status, err := client.FetchStatus(s.baseCtx, req)
		switch {
		case err != nil && IsTransient(err):
			// Wasted tick; the job stays Pending and retries on cadence.
			log.Debug().
				Str("user_id", req.UserID).
				Int("attempt", attempts).
				Err(err).
				Msg("transient provider response, will retry")

		case err != nil:
			// Hard transport error: fail fast instead of burning the
			// remaining attempt budget against a broken channel.
			job.setState(StateFailed)
			pollJobs.WithLabelValues("failed").Inc()
			log.Error().
				Str("user_id", req.UserID).
				Str("provider", string(req.Provider)).
				Int("attempt", attempts).
				Err(err).
				Msg("payment poll failed")
			return

		case status == StatusPending:
			// Still waiting; nothing to do this tick.

		default:
			// Any non-pending status is terminal, success or not.
			job.mu.Lock()
			job.state = StateResolved
			job.status = status
			job.mu.Unlock()

			sent := s.notify(req.UserID, status)
			s.persist(req, status)
			pollJobs.WithLabelValues("resolved").Inc()
			log.Info().
				Str("user_id", req.UserID).
				Str("status", status).
				Int("notified", sent).
				Int("attempts", attempts).
				Msg("payment poll resolved")
			return
		}

		if attempts >= maxAttempts {
			job.setState(StateTimedOut)
			if s.notifyOnTimeout {
				s.notify(req.UserID, StatusTimedOut)
			}
			pollJobs.WithLabelValues("timed_out").Inc()
			log.Warn().
				Str("user_id", req.UserID).
				Str("provider", string(req.Provider)).
				Int("attempts", attempts).
				Msg("payment poll timed out")
			return
		}
	}
}

// notify pushes a StatusNotice to every live handle of userID and returns
// how many sends succeeded. A user with no live connections simply misses
// the notification; there is no queuing or redelivery.
func (s *Supervisor) notify(userID, status string) int {
	conns := s.registry.Lookup(userID)
	if len(conns) == 0 {
		log.Debug().Str("user_id", userID).Msg("user offline, payment notification dropped")
		return 0
	}
	notice := StatusNotice{Status: status, Timestamp: s.clock.Now().UTC()}
	sent := 0
	for _, c := range conns {
		if err := c.Send(EventPaymentStatus, notice); err == nil {
			sent++
		}
	}
	return sent
}

// persist records the terminal status remotely (with bounded backoff
// retries) and locally. A remote failure leaves the local row with
// Persisted=false for later reconciliation; it never re-triggers the
// user notification.
func (s *Supervisor) persist(req PollRequest, status string) {
	saveErr := s.saver.SaveStatus(s.baseCtx, req.UserID, status)
	if saveErr != nil && s.saveRetries > 0 {
		b := &backoff.Backoff{Min: 500 * time.Millisecond, Max: 5 * time.Second, Factor: 2, Jitter: true}
	retry:
		for attempt := 1; attempt <= s.saveRetries; attempt++ {
			select {
			case <-s.baseCtx.Done():
				break retry
			case <-s.clock.After(b.Duration()):
			}
			if saveErr = s.saver.SaveStatus(s.baseCtx, req.UserID, status); saveErr == nil {
				break
			}
		}
	}
	if saveErr != nil {
		log.Error().
			Str("user_id", req.UserID).
			Str("status", status).
			Err(saveErr).
			Msg("save-status failed after retries; row left for reconciliation")
	}

	if s.records == nil {
		return
	}
	rec := &domain.PaymentStatusRecord{
		ID:            uuid.NewString(),
		UserID:        req.UserID,
		TransactionID: req.TransactionRef,
		Provider:      string(req.Provider),
		Status:        status,
		Persisted:     saveErr == nil,
		CreatedAt:     s.clock.Now().UTC(),
	}
	if err := s.records.RecordStatus(s.baseCtx, rec); err != nil {
		log.Error().Str("user_id", req.UserID).Err(err).Msg("local payment record write failed")
	}
}

// setState transitions the job under its lock.
func (j *Job) setState(st State) {
	j.mu.Lock()
	j.state = st
	j.mu.Unlock()
}
