package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Instance registry metrics
	InstancesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swarmd_instances_total",
			Help: "Total number of known instances by provider kind and status",
		},
		[]string{"provider_kind", "status"},
	)

	// Health monitor metrics
	InstanceHealthStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swarmd_instance_health_status",
			Help: "Current health status by instance (1 for the active status, 0 otherwise)",
		},
		[]string{"instance_id", "status"},
	)

	HealthCheckDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swarmd_health_check_duration_seconds",
			Help:    "Time taken to run one instance health check",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider_kind"},
	)

	HealthChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swarmd_health_checks_total",
			Help: "Total number of health checks run, by outcome",
		},
		[]string{"outcome"},
	)

	RecoveryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swarmd_recovery_attempts_total",
			Help: "Total number of auto-recovery attempts, by outcome",
		},
		[]string{"outcome"},
	)

	// Migration engine metrics
	MigrationPlansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swarmd_migration_plans_total",
			Help: "Total number of migration plans, by terminal status",
		},
		[]string{"status"},
	)

	MigrationStepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swarmd_migration_step_duration_seconds",
			Help:    "Time taken to execute one migration step",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step"},
	)

	MigrationPlanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "swarmd_migration_plan_duration_seconds",
			Help:    "Time taken for a migration plan from start to terminal status",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	// Driver latency metrics
	DriverOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swarmd_driver_operation_duration_seconds",
			Help:    "Time taken for one driver operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider_kind", "operation"},
	)

	DriverErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swarmd_driver_errors_total",
			Help: "Total number of driver operation errors, by kind",
		},
		[]string{"provider_kind", "kind"},
	)

	// Registry durability metrics
	RegistryFlushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "swarmd_registry_flush_duration_seconds",
			Help:    "Time taken for a background registry flush pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	RegistryLoadErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swarmd_registry_load_errors_total",
			Help: "Total number of unparseable records skipped on startup load",
		},
	)

	// Swarm controller metrics
	SwarmInitialized = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "swarmd_swarm_initialized",
			Help: "1 if the swarm controller has completed initialize(), 0 otherwise",
		},
	)
)

func init() {
	prometheus.MustRegister(InstancesTotal)
	prometheus.MustRegister(InstanceHealthStatus)
	prometheus.MustRegister(HealthCheckDuration)
	prometheus.MustRegister(HealthChecksTotal)
	prometheus.MustRegister(RecoveryAttemptsTotal)
	prometheus.MustRegister(MigrationPlansTotal)
	prometheus.MustRegister(MigrationStepDuration)
	prometheus.MustRegister(MigrationPlanDuration)
	prometheus.MustRegister(DriverOperationDuration)
	prometheus.MustRegister(DriverErrorsTotal)
	prometheus.MustRegister(RegistryFlushDuration)
	prometheus.MustRegister(RegistryLoadErrorsTotal)
	prometheus.MustRegister(SwarmInitialized)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
