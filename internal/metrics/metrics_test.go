package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	if out.Counter != nil {
		return out.GetCounter().GetValue()
	}
	return out.GetGauge().GetValue()
}

func TestCounters(t *testing.T) {
	Register()
	Register()

	before := value(t, apiRequests.WithLabelValues("GET", "404"))
	IncAPIRequest("GET", 404)
	assert.Equal(t, before+1, value(t, apiRequests.WithLabelValues("GET", "404")))

	before = value(t, guardDenied.WithLabelValues("admin"))
	IncGuardDenied("admin")
	assert.Equal(t, before+1, value(t, guardDenied.WithLabelValues("admin")))

	before = value(t, cacheLookups.WithLabelValues("hit"))
	IncCacheLookup(true)
	assert.Equal(t, before+1, value(t, cacheLookups.WithLabelValues("hit")))

	g := value(t, sessions)
	SessionOpened()
	SessionClosed()
	assert.Equal(t, g, value(t, sessions))
}
