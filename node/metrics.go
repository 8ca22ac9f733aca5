// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import (
	"time"

	"github.com/godwokenrises/godwoken-sub004/metrics"
)

var (
	metricBlockProducedCount    = metrics.LazyLoadCounterVec("block_produced_count", []string{"status"})
	metricBlockProducedTxs      = metrics.LazyLoadCounterVec("block_produced_request_count", []string{"kind"})
	metricBlockProducedDuration = metrics.LazyLoadHistogramVec(
		"block_produced_duration_ms", []string{"status"}, metrics.BucketHTTPReqs,
	)

	metricRevertedBlocks = metrics.LazyLoadCounter("reverted_block_count")
	metricChallengeCount = metrics.LazyLoadCounterVec("challenge_count", []string{"status"})
)

// evalBlockProduceMetrics captures block producing metrics
func evalBlockProduceMetrics(f func() error) error {
	startTime := time.Now()

	status := map[string]string{
		"status": "produced",
	}
	err := f()
	if err != nil {
		status["status"] = "failed"
	}
	metricBlockProducedCount().AddWithLabel(1, status)
	metricBlockProducedDuration().ObserveWithLabels(time.Since(startTime).Milliseconds(), status)
	return err
}
