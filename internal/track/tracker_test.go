package track

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/AllenNeuralDynamics/cosync/internal/codeocean"
)

// fakeSource replays a scripted sequence of responses per computation ID.
type fakeSource struct {
	responses map[string][]fakeResponse
	calls     map[string]int
}

type fakeResponse struct {
	state      codeocean.State
	hasResults bool
	err        error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		responses: make(map[string][]fakeResponse),
		calls:     make(map[string]int),
	}
}

func (f *fakeSource) add(id string, state codeocean.State, hasResults bool, err error) {
	f.responses[id] = append(f.responses[id], fakeResponse{state, hasResults, err})
}

func (f *fakeSource) GetComputation(ctx context.Context, id string) (*codeocean.Computation, error) {
	seq := f.responses[id]
	i := f.calls[id]
	f.calls[id]++
	if i >= len(seq) {
		i = len(seq) - 1 // repeat last response
	}
	r := seq[i]
	if r.err != nil {
		return nil, r.err
	}
	return &codeocean.Computation{ID: id, State: r.state, HasResults: r.hasResults}, nil
}

func TestRunningThenCompleted(t *testing.T) {
	src := newFakeSource()
	src.add("abc", codeocean.StateRunning, false, nil)
	src.add("abc", codeocean.StateCompleted, true, nil)

	var transitions []Transition
	tr := New(NewProbe(src, zerolog.Nop()), []*Job{{ID: "abc", Key: "abc"}}, Options{
		OnTransition: func(tn Transition) { transitions = append(transitions, tn) },
		Logger:       zerolog.Nop(),
	})

	ctx := context.Background()

	if tr.PollOnce(ctx) {
		t.Fatal("expected batch not terminal after first poll")
	}
	if !tr.PollOnce(ctx) {
		t.Fatal("expected batch terminal after second poll")
	}

	job := tr.Jobs()[0]
	if job.State != codeocean.StateCompleted {
		t.Errorf("expected completed, got %s", job.State)
	}
	if !job.HasResults {
		t.Error("expected HasResults true")
	}

	// pending->running, running->completed
	if len(transitions) != 2 {
		t.Fatalf("expected 2 transitions, got %d: %v", len(transitions), transitions)
	}
	if transitions[1].From != codeocean.StateRunning || transitions[1].To != codeocean.StateCompleted {
		t.Errorf("unexpected final transition %v", transitions[1])
	}
	if src.calls["abc"] != 2 {
		t.Errorf("expected 2 probes, got %d", src.calls["abc"])
	}
}

func TestNoIDImmediatelyFailed(t *testing.T) {
	src := newFakeSource()

	tr := New(NewProbe(src, zerolog.Nop()), []*Job{{Key: "broken"}}, Options{Logger: zerolog.Nop()})

	if !tr.PollOnce(context.Background()) {
		t.Fatal("expected batch terminal immediately")
	}

	job := tr.Jobs()[0]
	if job.State != codeocean.StateFailed {
		t.Errorf("expected failed, got %s", job.State)
	}
	if !job.Settled() {
		t.Error("expected job settled")
	}
	if job.LastError == "" {
		t.Error("expected a recorded submission error")
	}
	if len(src.calls) != 0 {
		t.Errorf("job without id must never be probed, got calls: %v", src.calls)
	}
}

func TestProbeErrorIsTransient(t *testing.T) {
	src := newFakeSource()
	src.add("abc", "", false, errors.New("connection refused"))
	src.add("abc", codeocean.StateCompleted, true, nil)

	tr := New(NewProbe(src, zerolog.Nop()), []*Job{{ID: "abc", Key: "abc"}}, Options{Logger: zerolog.Nop()})

	ctx := context.Background()
	if tr.PollOnce(ctx) {
		t.Fatal("unknown must not count as terminal")
	}
	if tr.Jobs()[0].State != codeocean.StateUnknown {
		t.Errorf("expected unknown after failed probe, got %s", tr.Jobs()[0].State)
	}
	if !tr.PollOnce(ctx) {
		t.Fatal("expected terminal after recovery")
	}
}

func TestSettledJobNotReprobed(t *testing.T) {
	src := newFakeSource()
	src.add("abc", codeocean.StateCompleted, true, nil)
	// A flaky backend would now report running again; the recorded state
	// is frozen once terminal, so this response must never be fetched.
	src.add("abc", codeocean.StateRunning, false, nil)
	src.add("xyz", codeocean.StateRunning, false, nil)
	src.add("xyz", codeocean.StateCompleted, true, nil)

	tr := New(NewProbe(src, zerolog.Nop()), []*Job{
		{ID: "abc", Key: "abc"},
		{ID: "xyz", Key: "xyz"},
	}, Options{Logger: zerolog.Nop()})

	ctx := context.Background()
	tr.PollOnce(ctx)
	tr.PollOnce(ctx)

	if src.calls["abc"] != 1 {
		t.Errorf("settled job probed %d times, want 1", src.calls["abc"])
	}
	if tr.Jobs()[0].State != codeocean.StateCompleted {
		t.Errorf("settled state changed to %s", tr.Jobs()[0].State)
	}
}

func TestRunUntilAllTerminal(t *testing.T) {
	src := newFakeSource()
	src.add("a", codeocean.StateRunning, false, nil)
	src.add("a", codeocean.StateCompleted, true, nil)
	src.add("b", codeocean.StateRunning, false, nil)
	src.add("b", codeocean.StateRunning, false, nil)
	src.add("b", codeocean.StateFailed, false, nil)

	tr := New(NewProbe(src, zerolog.Nop()), []*Job{
		{ID: "a", Key: "a"},
		{ID: "b", Key: "b"},
	}, Options{Logger: zerolog.Nop()})

	if err := tr.Run(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, j := range tr.Jobs() {
		if !j.State.Terminal() {
			t.Errorf("job %s not terminal: %s", j.Key, j.State)
		}
	}

	counts := tr.StateCounts()
	if counts[codeocean.StateCompleted] != 1 || counts[codeocean.StateFailed] != 1 {
		t.Errorf("unexpected state counts: %v", counts)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	src := newFakeSource()
	src.add("a", codeocean.StateRunning, false, nil)

	tr := New(NewProbe(src, zerolog.Nop()), []*Job{{ID: "a", Key: "a"}}, Options{Logger: zerolog.Nop()})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := tr.Run(ctx, time.Hour)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
