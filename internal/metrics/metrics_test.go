package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := New()

	r.ObserveFetch(1, 200*time.Millisecond, nil)
	r.ObserveFetch(2, time.Second, errors.New("503"))
	r.ObserveBatch(1, 90, 3)
	r.ObserveBatch(3, 10, 0)

	assert.InDelta(t, 1, testutil.ToFloat64(r.fetchTotal.WithLabelValues("ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.fetchTotal.WithLabelValues("error")), 0)
	assert.InDelta(t, 100, testutil.ToFloat64(r.records.WithLabelValues("normalized")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(r.records.WithLabelValues("skipped")), 0)
	assert.InDelta(t, 90, testutil.ToFloat64(r.monthRecords.WithLabelValues("1")), 0)

	families, err := r.Registry().Gather()
	require.NoError(t, err)
	// layer_features has no series until a layer is observed.
	assert.Len(t, families, 4)

	r.ObserveLayer("black", 12)
	assert.InDelta(t, 12, testutil.ToFloat64(r.layerFeatures.WithLabelValues("black")), 0)
	families, err = r.Registry().Gather()
	require.NoError(t, err)
	assert.Len(t, families, 5)
}

func TestRecorder_ResetMonths(t *testing.T) {
	r := New()
	r.ObserveBatch(1, 5, 0)
	r.ObserveBatch(2, 7, 0)
	r.ResetMonths()
	r.ObserveBatch(2, 3, 0)

	assert.Equal(t, 1, testutil.CollectAndCount(r.monthRecords))
	assert.InDelta(t, 3, testutil.ToFloat64(r.monthRecords.WithLabelValues("2")), 0)
	// counters keep accumulating across runs
	assert.InDelta(t, 15, testutil.ToFloat64(r.records.WithLabelValues("normalized")), 0)
}
