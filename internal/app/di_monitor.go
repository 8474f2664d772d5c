package app

import (
	"context"
	"fmt"

	monitorHTTP "github.com/allisson/gatekeeper/internal/monitor/http"
	monitorService "github.com/allisson/gatekeeper/internal/monitor/service"
	"github.com/allisson/gatekeeper/internal/notify"
)

// Dispatcher returns the asynchronous alert dispatcher with every configured sink.
func (c *Container) Dispatcher() (*notify.Dispatcher, error) {
	var err error
	c.dispatcherInit.Do(func() {
		c.dispatcher, err = c.initDispatcher()
		if err != nil {
			c.initErrors["dispatcher"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["dispatcher"]; exists {
		return nil, storedErr
	}
	return c.dispatcher, nil
}

// Monitor returns the anomaly monitor.
func (c *Container) Monitor() (*monitorService.Monitor, error) {
	var err error
	c.monitorInit.Do(func() {
		var dispatcher *notify.Dispatcher
		dispatcher, err = c.Dispatcher()
		if err != nil {
			err = fmt.Errorf("failed to get dispatcher for monitor: %w", err)
			c.initErrors["monitor"] = err
			return
		}
		c.monitor = monitorService.NewMonitor(
			c.config.MonitorThresholds,
			dispatcher,
			c.Logger().With("component", "monitor"),
		)
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["monitor"]; exists {
		return nil, storedErr
	}
	return c.monitor, nil
}

func (c *Container) initDispatcher() (*notify.Dispatcher, error) {
	logger := c.Logger()

	sinks := make([]notify.Sink, 0, len(c.config.AlertSinks))
	for _, name := range c.config.AlertSinks {
		switch name {
		case "log":
			sinks = append(sinks, notify.NewLogSink(logger.With("component", "alerts")))
		case "kafka":
			sink, err := notify.NewKafkaSink(c.config.KafkaBrokers, c.config.KafkaTopic)
			if err != nil {
				return nil, fmt.Errorf("failed to create kafka alert sink: %w", err)
			}
			c.closers = append(c.closers, func() error {
				sink.Close()
				return nil
			})
			sinks = append(sinks, sink)
		case "redis":
			sink, err := notify.NewRedisSink(context.Background(), c.config.RedisURL, c.config.RedisChannel)
			if err != nil {
				return nil, fmt.Errorf("failed to create redis alert sink: %w", err)
			}
			c.closers = append(c.closers, sink.Close)
			sinks = append(sinks, sink)
		default:
			return nil, fmt.Errorf("unsupported alert sink: %s", name)
		}
	}

	if c.config.MetricsEnabled {
		gatewayMetrics, err := c.GatewayMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get gateway metrics for alert sink: %w", err)
		}
		sinks = append(sinks, notify.NewMetricsSink(gatewayMetrics))
	}

	return notify.NewDispatcher(logger, c.config.AlertQueueSize, c.config.AlertSendTimeout, sinks...), nil
}

func (c *Container) loginEventHandler() (*monitorHTTP.LoginEventHandler, error) {
	monitor, err := c.Monitor()
	if err != nil {
		return nil, fmt.Errorf("failed to get monitor for login event handler: %w", err)
	}
	return monitorHTTP.NewLoginEventHandler(monitor, c.Logger()), nil
}
