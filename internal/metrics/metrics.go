// Package metrics exposes Prometheus instrumentation for process
// execution, test tallies and console verification.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const Namespace = "codecheck"

var (
	processesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "processes_started_total",
		Help:      "Count of child processes successfully spawned",
	})

	spawnErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "spawn_errors_total",
		Help:      "Count of child processes that failed to spawn",
	})

	killsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "kills_total",
		Help:      "Count of signals delivered to running child processes",
	}, []string{
		"signal",
	})

	testResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "test_results_total",
		Help:      "Test outcomes recognised in framework output",
	}, []string{
		"framework",
		"result",
	})

	ambiguousRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "ambiguous_runs_total",
		Help:      "Test runs whose exit code disagrees with the recognised tally",
	}, []string{
		"framework",
	})

	watchdogTrips = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "watchdog_trips_total",
		Help:      "Count of processes killed by the CPU watchdog",
	})

	consoleVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "console_verifications_total",
		Help:      "Console interaction verifications by outcome",
	}, []string{
		"result",
	})
)

func RecordProcessStarted() { processesStarted.Inc() }

func RecordSpawnError() { spawnErrors.Inc() }

func RecordKill(signal string) { killsTotal.WithLabelValues(signal).Inc() }

func RecordWatchdogTrip() { watchdogTrips.Inc() }

// RecordTally adds a finished run's counts for framework.
func RecordTally(framework string, success, failure int, ambiguous bool) {
	testResults.WithLabelValues(framework, "pass").Add(float64(success))
	testResults.WithLabelValues(framework, "fail").Add(float64(failure))
	if ambiguous {
		ambiguousRuns.WithLabelValues(framework).Inc()
	}
}

// RecordConsole counts one console verification.
func RecordConsole(succeed bool) {
	result := "fail"
	if succeed {
		result = "pass"
	}
	consoleVerifications.WithLabelValues(result).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
