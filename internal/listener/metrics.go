package listener

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	triggerEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "multicorder_trigger_events_total",
		Help: "Trigger events handled, by operation and outcome.",
	}, []string{"operation", "outcome"})

	deviceStartFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "multicorder_device_start_failures_total",
		Help: "Devices that failed to start across all sessions.",
	})
)

func observe(operation string, resp triggerResponse) {
	outcome := "success"
	if !resp.Success {
		outcome = "failure"
	} else if resp.Code == codePartialStart {
		outcome = "partial"
	}
	triggerEvents.WithLabelValues(operation, outcome).Inc()
	if operation == "start" {
		deviceStartFailures.Add(float64(len(resp.FailedDevices)))
	}
}
