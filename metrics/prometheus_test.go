// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T) map[string]*dto.MetricFamily {
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	out := make(map[string]*dto.MetricFamily)
	for _, mf := range families {
		out[mf.GetName()] = mf
	}
	return out
}

func TestNoopMetrics(t *testing.T) {
	metrics = defaultNoopMetrics()

	Counter("noop_count").Add(1)
	CounterVec("noop_count_vec", []string{"kind"}).AddWithLabel(1, map[string]string{"bogus": "x"})
	GaugeVec("noop_gauge_vec", []string{"kind"}).SetWithLabel(3, nil)
	Histogram("noop_hist", nil).Observe(5)
	assert.Nil(t, HTTPHandler())

	for _, m := range []any{
		Gauge("g"), GaugeVec("g", nil), Counter("c"), CounterVec("c", nil), Histogram("h", nil), HistogramVec("h", nil, nil),
	} {
		assert.IsType(t, &noopMeters{}, m)
	}
}

func TestPromMetrics(t *testing.T) {
	lazyCounter := LazyLoadCounter("lazy_count")
	lazyGaugeVec := LazyLoadGaugeVec("lazy_gauge_vec", []string{"kind"})
	InitializePrometheusMetrics()
	RegisterSystemCollector()

	require.IsType(t, &promCountMeter{}, lazyCounter())
	require.IsType(t, &promGaugeVecMeter{}, lazyGaugeVec())

	Counter("txs").Add(1)
	Counter("txs").Add(2)
	hist := Histogram("exec_ms", BucketExecution)
	total := 0
	for i := range 10 {
		hist.Observe(int64(i))
		HistogramVec("exec_vec_ms", []string{"parity"}, nil).
			ObserveWithLabels(int64(i), map[string]string{"parity": strconv.Itoa(i % 2)})
		total += i
	}
	lazyGaugeVec().SetWithLabel(7, map[string]string{"kind": "tx"})
	lazyGaugeVec().AddWithLabel(1, map[string]string{"kind": "tx"})

	m := gather(t)
	assert.Equal(t, float64(3), m["godwoken_txs"].Metric[0].GetCounter().GetValue())
	assert.Equal(t, float64(total), m["godwoken_exec_ms"].Metric[0].GetHistogram().GetSampleSum())
	vec := m["godwoken_exec_vec_ms"]
	assert.Equal(t, float64(total), vec.Metric[0].GetHistogram().GetSampleSum()+vec.Metric[1].GetHistogram().GetSampleSum())
	assert.Equal(t, float64(8), m["godwoken_lazy_gauge_vec"].Metric[0].GetGauge().GetValue())

	srv := httptest.NewServer(HTTPHandler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
