package worker_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huffmsa/nuts"
	"github.com/huffmsa/nuts/job"
	"github.com/huffmsa/nuts/middleware"
	"github.com/huffmsa/nuts/queue"
	"github.com/huffmsa/nuts/store/memory"
	"github.com/huffmsa/nuts/worker"
)

type addOneIn struct {
	Base int `json:"base"`
}

func newRegistry(t *testing.T, defs ...*job.Definition) *job.Registry {
	t.Helper()
	r := job.NewRegistry()
	r.MustRegister(job.NewTypedDefinition("AddOne", func(_ context.Context, in addOneIn) (any, error) {
		return in.Base + 1, nil
	}))
	r.MustRegister(defs...)
	return r
}

func claimOne(t *testing.T, q *queue.Manager, inst job.Instance) *queue.Claim {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, q.EnqueuePending(ctx, inst))
	c, err := q.Claim(ctx, "wkr_test")
	require.NoError(t, err)
	require.NotNil(t, c)
	return c
}

func TestExecute_AddOne(t *testing.T) {
	q := queue.NewManager(memory.New())
	exec := worker.NewExecutor(q, newRegistry(t))
	ctx := context.Background()

	c := claimOne(t, q, job.Instance{Name: "AddOne", Params: job.Params{map[string]any{"base": 5}}})
	res, err := exec.Execute(ctx, c)
	require.NoError(t, err)
	assert.True(t, res.Success)

	stored, ok, err := q.Completed(ctx, "AddOne")
	require.NoError(t, err)
	require.True(t, ok, "completion record must be stored under the job name")
	assert.True(t, stored.Success)
	var n int
	require.NoError(t, stored.Decode(&n))
	assert.Equal(t, 6, n)
	assert.Equal(t, "wkr_test", stored.Worker)

	running, _ := q.ListRunning(ctx)
	assert.Empty(t, running, "running entry must be removed on completion")
}

func TestExecute_FailureIsRecorded(t *testing.T) {
	q := queue.NewManager(memory.New())
	exec := worker.NewExecutor(q, newRegistry(t,
		job.NewDefinition("Explode", func(context.Context, job.Params) (any, error) {
			return nil, errors.New("disk full")
		}),
		job.NewDefinition("Panic", func(context.Context, job.Params) (any, error) {
			panic("nil map")
		}),
	), worker.WithMiddleware(middleware.Recover(slog.Default())))
	ctx := context.Background()

	res, err := exec.Execute(ctx, claimOne(t, q, job.Instance{Name: "Explode"}))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "disk full", res.Error)

	res, err = exec.Execute(ctx, claimOne(t, q, job.Instance{Name: "Panic"}))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "panic")

	stored, ok, _ := q.Completed(ctx, "Explode")
	require.True(t, ok)
	assert.Equal(t, "disk full", stored.Error)
}

func TestExecute_UnknownJob(t *testing.T) {
	q := queue.NewManager(memory.New())
	exec := worker.NewExecutor(q, newRegistry(t))

	res, err := exec.Execute(context.Background(), claimOne(t, q, job.Instance{Name: "Ghost"}))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, nuts.ErrUnknownJob.Error())
}

func TestExecute_CancelledBeforeStart(t *testing.T) {
	q := queue.NewManager(memory.New())
	var called atomic.Bool
	exec := worker.NewExecutor(q, newRegistry(t, job.NewDefinition("Slow", func(context.Context, job.Params) (any, error) {
		called.Store(true)
		return nil, nil
	})))
	ctx := context.Background()

	c := claimOne(t, q, job.Instance{Name: "Slow"})
	require.NoError(t, q.RequestCancel(ctx, c.RunningKey()))

	res, err := exec.Execute(ctx, c)
	require.NoError(t, err)
	assert.False(t, called.Load(), "a cancelled job must not run")
	assert.True(t, res.Cancelled())
	assert.Equal(t, job.CancelledError, res.Error)

	still, _ := q.CheckCancelled(ctx, c.RunningKey())
	assert.False(t, still, "the request is cleared once honored")
}

func TestExecute_CancelledWhileRunning(t *testing.T) {
	q := queue.NewManager(memory.New())
	started := make(chan struct{})
	var checks atomic.Int32

	exec := worker.NewExecutor(q, newRegistry(t, job.NewDefinition("Loop", func(ctx context.Context, _ job.Params) (any, error) {
		close(started)
		for !job.Cancelled(ctx) {
			checks.Add(1)
			time.Sleep(time.Millisecond)
		}
		return nil, ctx.Err()
	})), worker.WithCancelPollInterval(5*time.Millisecond))
	ctx := context.Background()

	c := claimOne(t, q, job.Instance{Name: "Loop"})

	var (
		wg  sync.WaitGroup
		res job.Result
		err error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		res, err = exec.Execute(ctx, c)
	}()

	<-started
	require.NoError(t, q.RequestCancel(ctx, "Loop"))
	ok, _ := q.CheckCancelled(ctx, "Loop")
	assert.True(t, ok, "the request is visible immediately")

	wg.Wait()
	require.NoError(t, err)
	assert.True(t, res.Cancelled())
	assert.Positive(t, checks.Load())
}

func TestExecute_InterruptedIsRequeued(t *testing.T) {
	q := queue.NewManager(memory.New())
	started := make(chan struct{})
	exec := worker.NewExecutor(q, newRegistry(t, job.NewDefinition("Block", func(ctx context.Context, _ job.Params) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})))

	c := claimOne(t, q, job.Instance{Name: "Block", Workflow: "etl"})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := exec.Execute(ctx, c)
	require.ErrorIs(t, err, worker.ErrInterrupted)

	bg := context.Background()
	pending, _ := q.ListPending(bg)
	require.Len(t, pending, 1)
	assert.Equal(t, "workflow-etl|Block", pending[0].Identity())
	_, done, _ := q.Completed(bg, "workflow-etl|Block")
	assert.False(t, done, "an interrupted job is not completed")
}
