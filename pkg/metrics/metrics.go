// Package metrics defines the sink the Dispatcher records seat-wait
// latency through. The sink is optional — a nil-safe Noop
// implementation is the default when nothing is wired.
package metrics

import (
	"time"

	"proxysharing/pkg/logger"

	"go.uber.org/zap"
)

// Sink observes dispatcher-level measurements.
type Sink interface {
	ObserveSeatWait(specID string, d time.Duration)
}

// NoopSink discards every observation.
type NoopSink struct{}

func (NoopSink) ObserveSeatWait(string, time.Duration) {}

// LogSink records every observation as a structured log line, useful
// for local runs without a metrics backend wired in.
type LogSink struct{}

func (LogSink) ObserveSeatWait(specID string, d time.Duration) {
	logger.Info("seat wait observed",
		zap.String("specId", specID),
		zap.Duration("wait", d),
	)
}
