// Package payment implements the bounded polling loop that watches an
// external payment provider for a status change and notifies the owning
// user's live connections when a result arrives.
//
// A PollJob is a small state machine:
//
//	Pending -> Resolved  (provider returned a non-pending status)
//	Pending -> TimedOut  (attempt budget exhausted)
//	Pending -> Failed    (unrecoverable transport error)
//
// Terminal states stop all further polling. The Supervisor exclusively owns
// each job for its lifetime; nothing else mutates it.
package payment

import (
	"errors"
	"sync"
	"time"
)

// Provider identifies a supported payment provider.
type Provider string

// Supported providers. The values match the payment_method strings the
// remote backend returns for a user's pending payment.
const (
	ProviderMoMo   Provider = "MOMO" // MTN Mobile Money
	ProviderOrange Provider = "OM"   // Orange Money
)

// StatusPending is the provider-side sentinel for "not finished yet". Any
// other parsed status is terminal, whether it signals success or failure.
const StatusPending = "PENDING"

// StatusTimedOut is the synthetic status pushed to the user when a job times
// out and the supervisor is configured to notify on timeout.
const StatusTimedOut = "TIMEOUT"

// State is the lifecycle phase of a PollJob.
type State string

// Job lifecycle states. Pending is the only non-terminal state.
const (
	StatePending  State = "pending"
	StateResolved State = "resolved"
	StateTimedOut State = "timed_out"
	StateFailed   State = "failed"
)

// PollRequest carries everything a poll needs. The caller (the payment-check
// endpoint) has already resolved provider credentials for the target user;
// the supervisor performs no authentication of its own.
type PollRequest struct {
	UserID         string
	Provider       Provider
	AccessToken    string // provider bearer credential
	TransactionRef string // provider-side reference being watched
}

// Job is one active or finished poll. Fields under mu are written only by
// the supervisor's polling goroutine.
type Job struct {
	UserID         string
	Provider       Provider
	TransactionRef string

	mu       sync.Mutex
	state    State
	attempts int
	status   string // terminal provider status, set on Resolved

	done chan struct{} // closed when the job reaches a terminal state
}

// State returns the job's current lifecycle state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Attempts returns how many provider queries the job has made.
func (j *Job) Attempts() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.attempts
}

// Status returns the terminal provider status, empty unless Resolved.
func (j *Job) Status() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Done returns a channel closed when the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} { return j.done }

// StatusNotice is the payload pushed to each of the user's live handles when
// a job resolves (or times out, in notifying mode).
type StatusNotice struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Supervisor-level errors.
var (
	// ErrJobActive indicates a Pending job already exists for the same
	// (user, transaction) pair; duplicates are rejected, not superseded.
	ErrJobActive = errors.New("a poll job is already active for this transaction")

	// ErrUnsupportedProvider indicates no status client is configured for
	// the requested provider.
	ErrUnsupportedProvider = errors.New("unsupported payment provider")
)

// Transient fetch errors: the tick is wasted but the job stays Pending.
var (
	// ErrEmptyResponse indicates the provider returned an empty body.
	ErrEmptyResponse = errors.New("empty response from provider")

	// ErrMalformedResponse indicates the body could not be parsed into a
	// status. A single parse failure is never fatal.
	ErrMalformedResponse = errors.New("malformed response from provider")
)

// IsTransient reports whether a fetch error should be retried on the next
// tick rather than failing the job.
func IsTransient(err error) bool {
	return errors.Is(err, ErrEmptyResponse) || errors.Is(err, ErrMalformedResponse)
}
