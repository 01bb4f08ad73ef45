package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playpoints/internal/logging"
)

func TestScheduler_FailingTaskDoesNotStopOthers(t *testing.T) {
	var healthy, failing, panicking atomic.Int32

	s := New(logging.Nop(), nil,
		Task{Name: "healthy", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
			healthy.Add(1)
			return nil
		}},
		Task{Name: "failing", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
			failing.Add(1)
			return errors.New("store down")
		}},
		Task{Name: "panicking", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
			panicking.Add(1)
			panic("boom")
		}},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	assert.Greater(t, healthy.Load(), int32(2))
	assert.Greater(t, failing.Load(), int32(2))
	assert.Greater(t, panicking.Load(), int32(2))
}

func TestScheduler_RunOnStart(t *testing.T) {
	var runs atomic.Int32
	s := New(logging.Nop(), nil, Task{
		Name:       "hourly",
		Interval:   time.Hour,
		RunOnStart: true,
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))
	assert.Equal(t, int32(1), runs.Load())
}
