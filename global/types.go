package global

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type (
	Logging interface {
		Log() *zap.SugaredLogger
		Tracef(tag string, format string, args ...any)
	}

	Metrics interface {
		MetricsRegistry() *prometheus.Registry
	}

	// NodeGlobal is the environment implemented by *Global and accepted
	// by every component of the node
	NodeGlobal interface {
		Logging
		Metrics
		Ctx() context.Context
		Stop()
		MarkWorkProcessStarted()
		MarkWorkProcessStopped()
		RepeatInBackground(name string, period time.Duration, fun func() bool)
	}
)
