package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProjectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avoidedcost_projects_total",
			Help: "Total number of project calculations by outcome",
		},
		[]string{"status"},
	)

	ProjectDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "avoidedcost_project_duration_seconds",
			Help:    "Time to compute one project, including avoided-cost fetches",
			Buckets: prometheus.DefBuckets,
		},
	)

	BenefitRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avoidedcost_benefit_rows_total",
			Help: "Benefit rows produced per stream",
		},
		[]string{"stream"},
	)

	RowsLoadedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avoidedcost_rows_loaded_total",
			Help: "Reference rows loaded per table",
		},
		[]string{"table"},
	)
)

// ObserveProject records one project calculation.
func ObserveProject(startedAt time.Time, elecRows, gasRows int, err error) {
	ProjectDurationSeconds.Observe(time.Since(startedAt).Seconds())
	if err != nil {
		ProjectsTotal.WithLabelValues("error").Inc()
		return
	}
	ProjectsTotal.WithLabelValues("ok").Inc()
	BenefitRowsTotal.WithLabelValues("electric").Add(float64(elecRows))
	BenefitRowsTotal.WithLabelValues("gas").Add(float64(gasRows))
}

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avoidedcost_requests_total",
			Help: "Total number of API requests per path",
		},
		[]string{"path"},
	)

	RequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "avoidedcost_request_duration_seconds",
			Help:    "Request duration in seconds per path",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	RequestErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avoidedcost_request_errors_total",
			Help: "Total number of error responses per path and code",
		},
		[]string{"path", "code"},
	)
)

var (
	DBPoolTotalConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "avoidedcost_db_pool_total_conns",
			Help: "Total number of connections in the DB pool per driver",
		},
		[]string{"driver"},
	)

	DBPoolIdleConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "avoidedcost_db_pool_idle_conns",
			Help: "Idle connections in the DB pool per driver",
		},
		[]string{"driver"},
	)

	DBPoolAcquiredConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "avoidedcost_db_pool_acquired_conns",
			Help: "Currently acquired (in-use) connections per driver",
		},
		[]string{"driver"},
	)

	DBPoolAcquiresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avoidedcost_db_pool_acquires_total",
			Help: "Total number of connection acquires per driver",
		},
		[]string{"driver"},
	)
)

// UpdateDBPoolMetrics sets the pool gauges. newAcquires is the number of
// acquires since the previous call, not the pool's running total.
func UpdateDBPoolMetrics(driver string, total, idle, acquired float64, newAcquires int64) {
	DBPoolTotalConns.WithLabelValues(driver).Set(total)
	DBPoolIdleConns.WithLabelValues(driver).Set(idle)
	DBPoolAcquiredConns.WithLabelValues(driver).Set(acquired)
	if newAcquires > 0 {
		DBPoolAcquiresTotal.WithLabelValues(driver).Add(float64(newAcquires))
	}
}

var (
	ScheduledJobLastRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "avoidedcost_job_last_run_timestamp",
			Help: "Unix timestamp of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobLastDurationSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "avoidedcost_job_last_duration_seconds",
			Help: "Duration of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avoidedcost_job_failures_total",
			Help: "Total number of failed executions per job",
		},
		[]string{"job"},
	)
)

func UpdateJobMetrics(job string, startedAt time.Time, err error) {
	dur := time.Since(startedAt).Seconds()
	ScheduledJobLastDurationSeconds.WithLabelValues(job).Set(dur)
	ScheduledJobLastRun.WithLabelValues(job).Set(float64(time.Now().Unix()))
	if err != nil {
		ScheduledJobFailuresTotal.WithLabelValues(job).Inc()
	}
}
