package scheduler

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxKey struct{}

func TestCronSchedulerRunsJobsWithStartContext(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler(time.UTC, nil)

	var runs atomic.Int32
	seen := make(chan any, 4)
	require.NoError(t, s.Add("* * * * * *", func(ctx context.Context) {
		runs.Add(1)
		select {
		case seen <- ctx.Value(ctxKey{}):
		default:
		}
	}))

	ctx := context.WithValue(context.Background(), ctxKey{}, "base")
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Start(ctx))

	select {
	case v := <-seen:
		assert.Equal(t, "base", v)
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
	require.NoError(t, s.Stop(stopCtx))
	assert.GreaterOrEqual(t, runs.Load(), int32(1))
}

func TestCronSchedulerRejectsBadSpec(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler(nil, nil)
	require.Error(t, s.Add("every morning", func(context.Context) {}))
	require.Error(t, s.Add("0 6 * * *", func(context.Context) {}))
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestCronSchedulerLogsJobPanics(t *testing.T) {
	t.Parallel()

	var out lockedBuffer
	s := NewCronScheduler(time.UTC, slog.New(slog.NewTextHandler(&out, nil)))

	require.NoError(t, s.Add("* * * * * *", func(context.Context) {
		panic("validation exploded")
	}))
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "validation exploded")
	}, 3*time.Second, 20*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))

	logged := out.String()
	assert.Contains(t, logged, "level=ERROR")
	assert.Contains(t, logged, "cron: panic")
}
