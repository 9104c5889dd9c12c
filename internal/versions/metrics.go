package versions

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// snapshotsCreated counts snapshots written, by kind.
	snapshotsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tabula_snapshots_created_total",
		Help: "Total snapshots created by kind",
	}, []string{"kind"})

	// snapshotsRotated counts snapshots evicted by the retention cap, by kind.
	snapshotsRotated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tabula_snapshots_rotated_total",
		Help: "Total snapshots removed by rotation by kind",
	}, []string{"kind"})

	// restoresTotal counts restores by result.
	restoresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tabula_restores_total",
		Help: "Total restore operations by result",
	}, []string{"result"})

	// backupFailures counts restores that went ahead without a backup.
	backupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tabula_restore_backup_failures_total",
		Help: "Total restores whose pre-restore backup could not be written",
	})

	// saveDuration tracks snapshot + rotate + write latency.
	saveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tabula_save_duration_seconds",
		Help:    "Document save duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	// diffLines tracks the size of computed edit scripts.
	diffLines = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tabula_diff_script_lines",
		Help:    "Number of operations per computed edit script",
		Buckets: []float64{10, 100, 1000, 10000, 100000},
	})
)
