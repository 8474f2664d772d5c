// Package notify fans alerts out to operational sinks (log, Kafka, Redis).
// Delivery is best effort: a slow or failing sink never blocks the caller.
package notify

import (
	"context"
	"log/slog"
	"time"

	monitorDomain "github.com/allisson/gatekeeper/internal/monitor/domain"
)

// Sink delivers one alert to an external system.
type Sink interface {
	Name() string
	Send(ctx context.Context, alert monitorDomain.Alert) error
}

// Dispatcher queues alerts and delivers them to every sink from a single
// worker started with Run.
type Dispatcher struct {
	sinks       []Sink
	queue       chan monitorDomain.Alert
	sendTimeout time.Duration
	logger      *slog.Logger
}

// NewDispatcher creates a Dispatcher with a bounded queue.
func NewDispatcher(logger *slog.Logger, queueSize int, sendTimeout time.Duration, sinks ...Sink) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Dispatcher{
		sinks:       sinks,
		queue:       make(chan monitorDomain.Alert, queueSize),
		sendTimeout: sendTimeout,
		logger:      logger,
	}
}

// Publish enqueues alert. A full queue drops the alert.
func (d *Dispatcher) Publish(_ context.Context, alert monitorDomain.Alert) {
	select {
	case d.queue <- alert:
	default:
		d.logger.Warn("alert queue full, dropping alert",
			slog.String("alert_id", alert.ID.String()),
			slog.String("rule", string(alert.Rule)),
			slog.String("severity", string(alert.Severity)),
		)
	}
}

// Run delivers queued alerts until ctx is done, then drains what is left.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return nil
		case alert := <-d.queue:
			d.deliver(context.WithoutCancel(ctx), alert)
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case alert := <-d.queue:
			d.deliver(context.Background(), alert)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, alert monitorDomain.Alert) {
	for _, sink := range d.sinks {
		sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
		err := sink.Send(sendCtx, alert)
		cancel()
		if err != nil {
			d.logger.Error("failed to deliver alert",
				slog.String("sink", sink.Name()),
				slog.String("alert_id", alert.ID.String()),
				slog.Any("error", err),
			)
		}
	}
}
