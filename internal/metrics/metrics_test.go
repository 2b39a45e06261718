package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/mbus-hat/internal/reading"
	"github.com/temoto/mbus-hat/internal/session"
)

func TestObserve(t *testing.T) {
	t.Parallel()
	m := New()
	v := 12.5
	r := &session.Result{
		Address:  1,
		Started:  time.Unix(1600000000, 0),
		Duration: 1500 * time.Millisecond,
		Reading: reading.Reading{
			MeterID: "12345678",
			Measurements: []reading.Measurement{
				{Key: "Volume_instantaneous", Type: "Volume", Value: &v, Unit: "m3"},
				{Key: "unknown", Type: "unknown", Raw: "0102"},
			},
		},
	}
	m.Observe(r, nil)
	m.Observe(nil, &session.Failure{Cause: session.CauseNoAckFromSlave})
	m.Observe(nil, errors.New("other"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sessions.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sessions.WithLabelValues("NoAckFromSlave")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sessions.WithLabelValues("Unexpected")))
	assert.Equal(t, 1.5, testutil.ToFloat64(m.SessionDuration))
	assert.Equal(t, 1600000001.5, testutil.ToFloat64(m.LastSuccess))
	assert.Equal(t, 12.5, testutil.ToFloat64(m.Measurement.WithLabelValues("12345678", "Volume_instantaneous", "m3", "0", "0")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Measurement))

	m.ObserveDelivery(nil)
	m.ObserveDelivery(errors.New("broker down"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Delivered.WithLabelValues("published")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Delivered.WithLabelValues("failed")))
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()
	m := New()
	m.Observe(nil, &session.Failure{Cause: session.CauseNoDataFromSlave})
	path := filepath.Join(t.TempDir(), "mbus.prom")
	require.NoError(t, m.WriteTextfile(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `mbus_sessions_total{result="NoDataFromSlave"} 1`)

	assert.NoError(t, m.WriteTextfile(""))
	err = m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics textfile=")
}
