// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metrics

import (
	"os"

	"github.com/elastic/gosigar"
	"github.com/prometheus/client_golang/prometheus"
)

// SystemCollector reports host memory and the resident size of this process.
type SystemCollector struct {
	pid          int
	memTotalDesc *prometheus.Desc
	memFreeDesc  *prometheus.Desc
	residentDesc *prometheus.Desc
}

// NewSystemCollector creates a SystemCollector for the current process.
func NewSystemCollector() *SystemCollector {
	return &SystemCollector{
		pid: os.Getpid(),
		memTotalDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "system", "memory_total_bytes"),
			"Total physical memory of the host.",
			nil, nil,
		),
		memFreeDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "system", "memory_actual_free_bytes"),
			"Memory available to processes, including reclaimable caches.",
			nil, nil,
		),
		residentDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "process", "resident_bytes"),
			"Resident set size of the node process.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *SystemCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.memTotalDesc
	ch <- c.memFreeDesc
	ch <- c.residentDesc
}

// Collect implements prometheus.Collector.
func (c *SystemCollector) Collect(ch chan<- prometheus.Metric) {
	var mem gosigar.Mem
	if err := mem.Get(); err == nil {
		ch <- prometheus.MustNewConstMetric(c.memTotalDesc, prometheus.GaugeValue, float64(mem.Total))
		ch <- prometheus.MustNewConstMetric(c.memFreeDesc, prometheus.GaugeValue, float64(mem.ActualFree))
	}
	var procMem gosigar.ProcMem
	if err := procMem.Get(c.pid); err == nil {
		ch <- prometheus.MustNewConstMetric(c.residentDesc, prometheus.GaugeValue, float64(procMem.Resident))
	}
}

// RegisterSystemCollector registers a SystemCollector when prometheus metrics are enabled.
func RegisterSystemCollector() {
	if _, ok := metrics.(*prometheusMetrics); ok {
		register(NewSystemCollector())
	}
}
