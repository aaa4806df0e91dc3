package crawl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/autorag/harvester/internal/progress"
)

// pollStep is one scripted FetchStatus result.
type pollStep struct {
	snap Snapshot
	err  error
}

// scriptedClient replays a fixed sequence of status results, repeating the
// last step once the script runs out.
type scriptedClient struct {
	steps []pollStep
	calls int
}

func (c *scriptedClient) Submit(context.Context, string, Params) (string, error) {
	return "job-1", nil
}

func (c *scriptedClient) FetchStatus(context.Context, string) (Snapshot, error) {
	i := c.calls
	if i >= len(c.steps) {
		i = len(c.steps) - 1
	}
	c.calls++
	return c.steps[i].snap, c.steps[i].err
}

// fakeClock records sleeps instead of waiting.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

type captureEmitter struct {
	events []progress.Event
}

func (e *captureEmitter) Emit(evt progress.Event) { e.events = append(e.events, evt) }

func TestPollerAwaitCompletes(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{steps: []pollStep{
		{snap: Snapshot{Status: StatusScraping, Completed: 0, Total: 2}},
		{snap: Snapshot{Status: StatusScraping, Completed: 1, Total: 2}},
		{snap: Snapshot{Status: StatusCompleted, Completed: 2, Total: 2, Pages: []PageRecord{
			{RawHTML: "<html>a</html>", SourceURL: "https://example.com/a"},
			{RawHTML: "<html>b</html>", SourceURL: "https://example.com/b"},
		}}},
	}}
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	emitter := &captureEmitter{}
	poller := NewPoller(client, clock, emitter, PollerConfig{Interval: 10 * time.Second, RunID: "run-1"}, zap.NewNop())

	out, err := poller.Await(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, 3, out.Iterations)
	require.Equal(t, StatusCompleted, out.Snapshot.Status)
	require.Len(t, out.Snapshot.Pages, 2)

	// Two waits separate three fetches, each at the fixed interval.
	require.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second}, clock.sleeps)

	require.Len(t, emitter.events, 3)
	for _, evt := range emitter.events {
		require.Equal(t, "run-1", evt.RunID)
		require.Equal(t, "job-1", evt.JobID)
		require.Equal(t, progress.StagePoll, evt.Stage)
		require.False(t, evt.TS.IsZero())
	}
	require.Equal(t, string(StatusCompleted), emitter.events[2].Status)
	require.Equal(t, 2, emitter.events[2].Completed)
}

func TestPollerAwaitJobFailed(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{steps: []pollStep{
		{snap: Snapshot{Status: StatusFailed, Completed: 1, Total: 4}},
	}}
	clock := &fakeClock{now: time.Now()}
	poller := NewPoller(client, clock, nil, PollerConfig{Interval: time.Second}, zap.NewNop())

	out, err := poller.Await(context.Background(), "job-9")
	require.ErrorIs(t, err, ErrJobFailed)
	require.Equal(t, 1, out.Iterations)
	require.Empty(t, clock.sleeps)
	require.Equal(t, StatusFailed, out.Snapshot.Status)
}

func TestPollerAwaitFetchErrorHalts(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	client := &scriptedClient{steps: []pollStep{{err: boom}}}
	clock := &fakeClock{now: time.Now()}
	poller := NewPoller(client, clock, nil, PollerConfig{Interval: time.Second}, zap.NewNop())

	out, err := poller.Await(context.Background(), "job-2")
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrJobFailed)
	require.Equal(t, 1, out.Iterations)
	require.Empty(t, clock.sleeps)
}

func TestPollerAwaitUnknownStatusContinues(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{steps: []pollStep{
		{snap: Snapshot{Status: Status("paused")}},
		{snap: Snapshot{Status: StatusCompleted}},
	}}
	clock := &fakeClock{now: time.Now()}
	poller := NewPoller(client, clock, nil, PollerConfig{Interval: time.Second}, zap.NewNop())

	out, err := poller.Await(context.Background(), "job-3")
	require.NoError(t, err)
	require.Equal(t, 2, out.Iterations)
	require.Len(t, clock.sleeps, 1)
}

func TestPollerAwaitBudgetExceeded(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{steps: []pollStep{
		{snap: Snapshot{Status: StatusScraping, Completed: 1, Total: 5}},
	}}
	clock := &fakeClock{now: time.Now()}
	poller := NewPoller(client, clock, nil, PollerConfig{Interval: time.Second, MaxPolls: 3}, zap.NewNop())

	out, err := poller.Await(context.Background(), "job-4")
	require.ErrorIs(t, err, ErrPollBudgetExceeded)
	require.Equal(t, 3, out.Iterations)
	require.Equal(t, 3, client.calls)
	require.Equal(t, StatusScraping, out.Snapshot.Status)
}

func TestPollerAwaitCanceled(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{steps: []pollStep{
		{snap: Snapshot{Status: StatusScraping}},
	}}
	clock := &fakeClock{now: time.Now()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	poller := NewPoller(client, clock, nil, PollerConfig{Interval: time.Second}, zap.NewNop())

	out, err := poller.Await(ctx, "job-5")
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, out.Iterations)
	require.Empty(t, clock.sleeps)
}

func TestNewPollerDefaultInterval(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{steps: []pollStep{
		{snap: Snapshot{Status: StatusPending}},
		{snap: Snapshot{Status: StatusCompleted}},
	}}
	clock := &fakeClock{now: time.Now()}
	poller := NewPoller(client, clock, nil, PollerConfig{}, zap.NewNop())

	_, err := poller.Await(context.Background(), "job-6")
	require.NoError(t, err)
	require.Equal(t, []time.Duration{10 * time.Second}, clock.sleeps)
}

func TestStatusTerminal(t *testing.T) {
	t.Parallel()

	require.True(t, StatusCompleted.Terminal())
	require.True(t, StatusFailed.Terminal())
	require.False(t, StatusPending.Terminal())
	require.False(t, StatusScraping.Terminal())
	require.False(t, Status("paused").Terminal())

	require.True(t, StatusScraping.Known())
	require.False(t, Status("paused").Known())
}
