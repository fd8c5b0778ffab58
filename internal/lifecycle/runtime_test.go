package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, s)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

type fakeComponent struct {
	name    string
	log     *journal
	failOn  string
	err     error
	running bool
	stopped int
}

func (c *fakeComponent) Start(context.Context) error {
	c.log.add("+" + c.name)
	if c.failOn == "start" {
		return c.err
	}
	c.running = true
	return nil
}

func (c *fakeComponent) Stop(context.Context) error {
	c.log.add("-" + c.name)
	c.stopped++
	c.running = false
	if c.failOn == "stop" {
		return c.err
	}
	return nil
}

func wardenRuntime(log *journal, components ...*fakeComponent) *Runtime {
	r := NewRuntime()
	for _, c := range components {
		c.log = log
		r.Register(c.name, c)
	}
	return r
}

func TestRuntimeStopsInReverseOrder(t *testing.T) {
	t.Parallel()

	log := &journal{}
	scheduler := &fakeComponent{name: "scheduler"}
	words := &fakeComponent{name: "words"}
	metrics := &fakeComponent{name: "metrics"}
	r := wardenRuntime(log, scheduler, words, metrics)

	require.NoError(t, r.Start(context.Background()))
	require.True(t, scheduler.running && words.running && metrics.running)
	require.NoError(t, r.Stop(context.Background()))

	require.Equal(t, []string{"+scheduler", "+words", "+metrics", "-metrics", "-words", "-scheduler"}, log.list())
}

func TestRuntimeUnwindsOnStartFailure(t *testing.T) {
	t.Parallel()

	log := &journal{}
	bindErr := errors.New("address already in use")
	scheduler := &fakeComponent{name: "scheduler"}
	metrics := &fakeComponent{name: "metrics", failOn: "start", err: bindErr}
	words := &fakeComponent{name: "words"}
	r := wardenRuntime(log, scheduler, metrics, words)

	err := r.Start(context.Background())
	require.ErrorIs(t, err, bindErr)
	require.ErrorContains(t, err, "start metrics")

	require.Equal(t, 1, scheduler.stopped)
	require.False(t, scheduler.running)
	require.Zero(t, metrics.stopped)
	require.Zero(t, words.stopped)
	require.Equal(t, []string{"+scheduler", "+metrics", "-scheduler"}, log.list())
}

func TestRuntimeStopReportsEveryFailure(t *testing.T) {
	t.Parallel()

	log := &journal{}
	flushErr := errors.New("flush audit")
	closeErr := errors.New("close redis")
	r := wardenRuntime(log,
		&fakeComponent{name: "audit", failOn: "stop", err: flushErr},
		&fakeComponent{name: "pending", failOn: "stop", err: closeErr},
	)
	r.Register("disabled", nil)

	err := r.Stop(context.Background())
	require.ErrorIs(t, err, flushErr)
	require.ErrorIs(t, err, closeErr)
	require.Equal(t, []string{"-pending", "-audit"}, log.list())
}
