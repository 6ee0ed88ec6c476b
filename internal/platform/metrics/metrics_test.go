package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_CountsOperations(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	r := New(reg)

	r.Op("executives", "add", nil)
	r.Op("executives", "add", nil)
	r.Op("executives", "add", errors.New("boom"))
	r.OrderSave("executives", 2, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.ops.WithLabelValues("executives", "add", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ops.WithLabelValues("executives", "add", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.orderSaveFailures.WithLabelValues("executives")))

	n, err := testutil.GatherAndCount(reg, "roster_order_save_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecorder_NilIsNoop(t *testing.T) {
	t.Parallel()

	var r *Recorder
	r.Op("moderators", "delete", nil)
	r.OrderSave("moderators", 1, time.Second)
}
