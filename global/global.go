package global

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/axonledger/axon/util"
	"github.com/axonledger/axon/util/set"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type (
	Global struct {
		*zap.SugaredLogger
		*sync.WaitGroup
		ctx             context.Context
		stopFun         context.CancelFunc
		stopOnce        *sync.Once
		metricsRegistry *prometheus.Registry
		enabledTrace    atomic.Bool
		traceTagsMutex  sync.RWMutex
		traceTags       set.Set[string]
	}
)

func New() *Global {
	return NewWithLogLevel(zapcore.InfoLevel)
}

func NewWithLogLevel(lvl zapcore.Level, outputs ...string) *Global {
	ctx, cancelFun := context.WithCancel(context.Background())
	return &Global{
		ctx:             ctx,
		stopFun:         cancelFun,
		SugaredLogger:   NewLogger("", lvl, outputs, ""),
		traceTags:       set.New[string](),
		WaitGroup:       &sync.WaitGroup{},
		stopOnce:        &sync.Once{},
		metricsRegistry: prometheus.NewRegistry(),
	}
}

func (l *Global) MarkWorkProcessStarted() {
	l.WaitGroup.Add(1)
}

func (l *Global) MarkWorkProcessStopped() {
	l.WaitGroup.Done()
}

func (l *Global) Stop() {
	l.stopFun()
}

func (l *Global) Ctx() context.Context {
	return l.ctx
}

func (l *Global) Wait() {
	l.WaitGroup.Wait()
	l.stopOnce.Do(func() {
		l.Log().Info("all work processes stopped")
	})
}

func (l *Global) Log() *zap.SugaredLogger {
	return l.SugaredLogger
}

func (l *Global) MetricsRegistry() *prometheus.Registry {
	return l.metricsRegistry
}

// RepeatInBackground runs fun every period until it returns false or the global context is cancelled.
// Registers itself as a work process so that Wait() holds until the loop exits.
func (l *Global) RepeatInBackground(name string, period time.Duration, fun func() bool) {
	l.MarkWorkProcessStarted()
	go func() {
		defer l.MarkWorkProcessStopped()

		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-l.ctx.Done():
				l.Log().Debugf("background work process '%s' stopped", name)
				return
			case <-ticker.C:
				if !fun() {
					l.Log().Debugf("background work process '%s' stopped itself", name)
					return
				}
			}
		}
	}()
}

func (l *Global) EnableTrace(enable bool) {
	l.enabledTrace.Store(enable)
}

func (l *Global) EnableTraceTags(tags ...string) {
	l.traceTagsMutex.Lock()
	for _, t := range tags {
		for _, t1 := range strings.Split(t, ",") {
			l.traceTags.Insert(strings.TrimSpace(t1))
		}
		l.enabledTrace.Store(true)
	}
	l.traceTagsMutex.Unlock()
	for _, tag := range tags {
		l.Tracef(tag, "trace tag enabled")
	}
}

func (l *Global) TraceLog(log *zap.SugaredLogger, tag string, format string, args ...any) {
	if !l.enabledTrace.Load() {
		return
	}

	l.traceTagsMutex.RLock()
	defer l.traceTagsMutex.RUnlock()

	for _, t := range strings.Split(tag, ",") {
		if l.traceTags.Contains(t) {
			log.Infof("TRACE(%s) %s", t, fmt.Sprintf(format, util.EvalLazyArgs(args...)...))
			return
		}
	}
}

func (l *Global) Tracef(tag string, format string, args ...any) {
	l.TraceLog(l.Log(), tag, format, args...)
}
