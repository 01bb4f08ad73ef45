package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObservePoints("g1", 3)
	m.ObserveLedgerFailure()
	m.ObserveRoleMutation("tenure", "add", nil)
	m.ObserveTask("scoring", time.Second)
	m.SetOpenSessions("voice", 2)
}

func TestDefault_Counts(t *testing.T) {
	m := Default()
	assert.Same(t, m, Default())

	m.ObservePoints("g-metrics", 4)
	m.ObservePoints("g-metrics", 2)
	assert.Equal(t, 6.0, testutil.ToFloat64(m.pointsAwarded.WithLabelValues("g-metrics")))

	m.ObserveRoleMutation("dynamic", "remove", errors.New("forbidden"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.roleMutations.WithLabelValues("dynamic", "remove", "error")))

	m.SetOpenSessions("voice", 7)
	assert.Equal(t, 7.0, testutil.ToFloat64(m.openSessions.WithLabelValues("voice")))
}
