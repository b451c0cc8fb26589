package metrics

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iptv-check/work/types"
)

func TestRecorder(t *testing.T) {
	r := New()

	r.ProbeStarted()
	r.ProbeStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(r.InflightProbes))

	r.ProbeFinished(types.ProbeResult{Classification: types.Online, Duration: time.Second})
	r.ProbeFinished(types.ProbeResult{Classification: types.OfflineBadLogin, Duration: 3 * time.Second})

	assert.Equal(t, 0.0, testutil.ToFloat64(r.InflightProbes))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ProbesTotal.WithLabelValues("online")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ProbesTotal.WithLabelValues("offline_bad_login")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.ProbesTotal.WithLabelValues("offline_network")))

	r.SetChannels("parsed", 12)
	assert.Equal(t, 12.0, testutil.ToFloat64(r.Channels.WithLabelValues("parsed")))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.ProbeStarted()
	r.ProbeFinished(types.ProbeResult{})
	r.SetChannels("parsed", 1)
	r.UncheckableAdded()
}

func TestWriteTextfileAndHandler(t *testing.T) {
	r := New()
	r.ProbeStarted()
	r.ProbeFinished(types.ProbeResult{Classification: types.Online})

	path := filepath.Join(t.TempDir(), "iptv_check.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `iptv_check_probes_total{classification="online"} 1`)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "iptv_check_probe_duration_seconds")
}
