package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveProject(t *testing.T) {
	okBefore := testutil.ToFloat64(ProjectsTotal.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(ProjectsTotal.WithLabelValues("error"))
	elecBefore := testutil.ToFloat64(BenefitRowsTotal.WithLabelValues("electric"))

	ObserveProject(time.Now(), 8760, 4, nil)
	ObserveProject(time.Now(), 0, 0, errors.New("boom"))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(ProjectsTotal.WithLabelValues("ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(ProjectsTotal.WithLabelValues("error")))
	assert.Equal(t, elecBefore+8760, testutil.ToFloat64(BenefitRowsTotal.WithLabelValues("electric")))
}

func TestUpdateDBPoolMetricsAddsDelta(t *testing.T) {
	before := testutil.ToFloat64(DBPoolAcquiresTotal.WithLabelValues("test"))
	UpdateDBPoolMetrics("test", 4, 3, 1, 5)
	UpdateDBPoolMetrics("test", 4, 2, 2, 0)

	assert.Equal(t, before+5, testutil.ToFloat64(DBPoolAcquiresTotal.WithLabelValues("test")))
	assert.Equal(t, 2.0, testutil.ToFloat64(DBPoolIdleConns.WithLabelValues("test")))
}

func TestUpdateJobMetricsCountsFailures(t *testing.T) {
	before := testutil.ToFloat64(ScheduledJobFailuresTotal.WithLabelValues("recalculate"))
	UpdateJobMetrics("recalculate", time.Now(), nil)
	UpdateJobMetrics("recalculate", time.Now(), errors.New("boom"))
	assert.Equal(t, before+1, testutil.ToFloat64(ScheduledJobFailuresTotal.WithLabelValues("recalculate")))
}
