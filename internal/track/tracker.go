package track

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/AllenNeuralDynamics/cosync/internal/codeocean"
)

// StatusSource is the minimal status lookup the tracker needs. It is
// satisfied by *codeocean.Client.
type StatusSource interface {
	GetComputation(ctx context.Context, computationID string) (*codeocean.Computation, error)
}

// Probe queries one computation's state and result availability. Lookup
// failures are captured here: the computation is reported as unknown with
// no results, and the cause is logged, so one unreachable job never aborts
// a batch poll.
type Probe struct {
	src StatusSource
	log zerolog.Logger
}

// NewProbe creates a probe over src.
func NewProbe(src StatusSource, log zerolog.Logger) *Probe {
	return &Probe{src: src, log: log}
}

// Probe returns the computation's state and whether results are available.
func (p *Probe) Probe(ctx context.Context, computationID string) (codeocean.State, bool) {
	comp, err := p.src.GetComputation(ctx, computationID)
	if err != nil {
		p.log.Warn().Str("computation_id", computationID).Err(err).
			Msg("status lookup failed, treating as unknown")
		return codeocean.StateUnknown, false
	}
	return comp.State, comp.HasResults
}

// Job is one tracked computation.
type Job struct {
	ID          string
	Key         string
	SubmittedAt time.Time
	State       codeocean.State
	HasResults  bool
	LastError   string

	settled bool
}

// Settled reports whether the job has reached its final recorded state.
func (j *Job) Settled() bool {
	return j.settled
}

// Transition is emitted when a poll observes a state change.
type Transition struct {
	Key  string
	From codeocean.State
	To   codeocean.State
}

// Options configures a Tracker.
type Options struct {
	// OnTransition is called for every observed state change, from the
	// polling goroutine.
	OnTransition func(Transition)

	// Logger for per-poll diagnostics.
	Logger zerolog.Logger
}

// Tracker owns a batch of jobs and polls them until all are terminal.
type Tracker struct {
	jobs  []*Job
	probe *Probe
	opts  Options
}

// New creates a tracker over jobs. A job with no computation ID failed at
// submission: it settles as failed immediately and is never probed.
func New(probe *Probe, jobs []*Job, opts Options) *Tracker {
	for _, j := range jobs {
		if j.State == "" {
			j.State = codeocean.StatePending
		}
		if j.ID == "" {
			j.State = codeocean.StateFailed
			j.settled = true
			if j.LastError == "" {
				j.LastError = "submission failed: no computation id"
			}
		}
	}
	return &Tracker{jobs: jobs, probe: probe, opts: opts}
}

// Jobs returns the tracked job set.
func (t *Tracker) Jobs() []*Job {
	return t.jobs
}

// PollOnce probes every unsettled job once, records new states, and emits a
// transition event per state change. It reports whether all jobs are now
// terminal.
func (t *Tracker) PollOnce(ctx context.Context) bool {
	allSettled := true
	for _, j := range t.jobs {
		if j.settled {
			continue
		}

		state, hasResults := t.probe.Probe(ctx, j.ID)
		j.HasResults = hasResults

		if state != j.State {
			old := j.State
			j.State = state
			if t.opts.OnTransition != nil {
				t.opts.OnTransition(Transition{Key: j.Key, From: old, To: state})
			}
		}

		// Terminal is sticky for the recorded state: settle on first
		// observation and stop probing this job.
		if state.Terminal() {
			j.settled = true
			continue
		}

		allSettled = false
	}
	return allSettled
}

// Run polls until every job is terminal, sleeping interval between passes.
// It returns early only when ctx is cancelled.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) error {
	for {
		if t.PollOnce(ctx) {
			return nil
		}

		t.opts.Logger.Debug().Dur("interval", interval).
			Msg("jobs still running, waiting for next poll")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// StateCounts returns how many jobs currently record each state.
func (t *Tracker) StateCounts() map[codeocean.State]int {
	counts := make(map[codeocean.State]int)
	for _, j := range t.jobs {
		counts[j.State]++
	}
	return counts
}
