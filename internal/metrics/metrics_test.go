package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveStage("posterior", 1500*time.Millisecond)
	m.SnapshotBuilt(time.Now(), 53, 2)
	m.ObserveRequest("/", 200)
	m.ObserveRequest("/", 200)

	assert.Equal(t, 1.5, testutil.ToFloat64(m.LoadSeconds.WithLabelValues("posterior")))
	assert.Equal(t, 53.0, testutil.ToFloat64(m.Individuals))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ShortChains))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("/", "200")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 5)
}
