// Package metrics holds the Prometheus collectors shared by the sync engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Save results, used as the "result" label of SaveAttempts.
const (
	ResultSaved          = "saved"
	ResultFailed         = "failed"
	ResultBlocked        = "blocked"
	ResultUnchanged      = "unchanged"
	ResultSkippedOffline = "skipped_offline"
	ResultSkippedBusy    = "skipped_busy"
)

var (
	SaveAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notesync_save_attempts_total",
		Help: "Save attempts by outcome",
	}, []string{"result"})

	SaveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "notesync_save_duration_seconds",
		Help:    "Duration of remote writes",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
	}, []string{"status"})

	BackupOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notesync_backup_operations_total",
		Help: "Offline backup operations by type and status",
	}, []string{"operation", "status"})

	ConnectivityTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notesync_connectivity_transitions_total",
		Help: "Connectivity transitions by resulting state",
	}, []string{"state"})

	Online = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "notesync_online",
		Help: "1 while the remote store is reachable",
	})

	Recoveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notesync_recoveries_total",
		Help: "Backup conflicts detected and how they were resolved",
	}, []string{"outcome"})
)

// StatusLabel maps an error to the "status" label value.
func StatusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
