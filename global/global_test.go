package global

import (
	"testing"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap/zapcore"

	"github.com/stretchr/testify/require"
)

func TestRepeatInBackground(t *testing.T) {
	t.Run("stops on global stop", func(t *testing.T) {
		g := NewWithLogLevel(zapcore.ErrorLevel)
		var counter atomic.Int64

		g.RepeatInBackground("test", time.Millisecond, func() bool {
			counter.Inc()
			return true
		})
		require.Eventually(t, func() bool { return counter.Load() >= 3 }, 5*time.Second, time.Millisecond)

		g.Stop()
		g.Wait() // returns only after the daemon exited
	})
	t.Run("stops when fun returns false", func(t *testing.T) {
		g := NewWithLogLevel(zapcore.ErrorLevel)
		var counter atomic.Int64

		g.RepeatInBackground("once", time.Millisecond, func() bool {
			counter.Inc()
			return false
		})
		g.Wait()
		require.EqualValues(t, 1, counter.Load())
	})
}

func TestTraceTags(t *testing.T) {
	g := NewWithLogLevel(zapcore.ErrorLevel)
	// no-op without enabled tags
	g.Tracef("sometag", "value %d", 42)

	g.EnableTraceTags("sometag")
	g.Tracef("sometag", "value %d", func() any { return 42 })
	g.Tracef("othertag", "never enabled")
}
