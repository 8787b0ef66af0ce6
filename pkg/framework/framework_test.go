package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTaskStop(t *testing.T) {
	started := make(chan struct{})
	task := Spawn(context.Background(), NamedRun("blocker", RunFunc(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})))
	require.Equal(t, "blocker", task.Name())
	<-started
	require.NoError(t, task.Stop())
	select {
	case <-task.Done():
	default:
		require.Fail(t, "task not done after Stop")
	}
	// Stop is idempotent.
	require.NoError(t, task.Stop())
}

func TestTaskError(t *testing.T) {
	errBoom := errors.New("boom")
	task := Spawn(context.Background(), RunFunc(func(ctx context.Context) error {
		return errBoom
	}))
	require.Equal(t, "task", task.Name())
	require.ErrorIs(t, task.Wait(), errBoom)
	require.ErrorIs(t, task.Stop(), errBoom)
}

func TestAggregatedError(t *testing.T) {
	errA, errB := errors.New("a"), errors.New("b")
	tests := []struct {
		name   string
		errs   []error
		expect string
	}{
		{name: "none", errs: []error{nil, nil}},
		{name: "single", errs: []error{nil, errA}, expect: "a"},
		{name: "multiple", errs: []error{errA, errB}, expect: "Multiple errors:\na\nb"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var errs AggregatedError
			err := errs.Add(test.errs...).Aggregate()
			if test.expect == "" {
				require.NoError(t, err)
				return
			}
			require.EqualError(t, err, test.expect)
			require.ErrorIs(t, err, test.errs[len(test.errs)-1])
		})
	}
}

func TestRunnerWait(t *testing.T) {
	errBoom := errors.New("boom")
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunnerWith(ctx).Go(
		RunFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}),
		RunFunc(func(ctx context.Context) error {
			return errBoom
		}),
	)
	cancel()
	require.ErrorIs(t, r.Wait(), errBoom)
}

type testMsg struct {
	value int
}

func (m *testMsg) NewMessage() Message { return &testMsg{} }

func TestLoopDispatchesMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan int, 1)
	loop := NewLoop()
	loop.AddController(PrLvControl, ControlFunc(func(cc ControlContext) error {
		cc.Messages().ProcessMessages(ProcessMessageFunc(func(mctx MessageProcessingContext) {
			if msg := mctx.CurrentMessage().(*testMsg); msg.value > 0 {
				mctx.MessageTaken()
				got <- msg.value
			}
		}))
		return nil
	}))
	loop.AddRunnable(RunFunc(func(ctx context.Context) error {
		ctl := LoopCtlFrom(ctx)
		ctl.PostMessage(&testMsg{value: 0})
		ctl.PostMessage(&testMsg{value: 7})
		ctl.TriggerNext()
		<-ctx.Done()
		return ctx.Err()
	}))
	go loop.Run(ctx)

	select {
	case v := <-got:
		require.Equal(t, 7, v)
	case <-time.After(3 * time.Second):
		require.Fail(t, "message not dispatched")
	}
}

func TestLoopTriggerBeforeRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan int, 1)
	loop := NewLoop()
	loop.Interval = time.Hour
	loop.AddController(PrLvControl, ControlFunc(func(cc ControlContext) error {
		cc.Messages().ProcessMessages(ProcessMessageFunc(func(mctx MessageProcessingContext) {
			mctx.MessageTaken()
			got <- mctx.CurrentMessage().(*testMsg).value
		}))
		return nil
	}))
	loop.PostMessage(&testMsg{value: 3})
	loop.TriggerNext()
	go loop.Run(ctx)

	select {
	case v := <-got:
		require.Equal(t, 3, v)
	case <-time.After(3 * time.Second):
		require.Fail(t, "trigger before run dropped")
	}
}

func TestRunWithContextCloser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	closer := &testCloser{ch: make(chan struct{})}
	cancel()
	err := RunWithContextCloser(ctx, closer, func() error {
		<-closer.ch
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, closer.count)

	closer = &testCloser{ch: make(chan struct{})}
	require.NoError(t, RunWithContextCloser(context.Background(), closer, func() error { return nil }))
	require.Equal(t, 1, closer.count)
}

type testCloser struct {
	ch    chan struct{}
	count int
}

func (c *testCloser) Close() error {
	c.count++
	if c.count == 1 {
		close(c.ch)
	}
	return nil
}
