// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package txpool

import "github.com/godwokenrises/godwoken-sub004/metrics"

var (
	metricPoolGauge     = metrics.LazyLoadGaugeVec("txpool_current_count", []string{"type"})
	metricBadTxCounter  = metrics.LazyLoadCounterVec("txpool_bad_tx_count", []string{"type"})
	metricQueueDropped  = metrics.LazyLoadCounter("txpool_queue_dropped_count")
	metricMemBlockReset = metrics.LazyLoadHistogram("txpool_mem_block_reset_ms", []int64{1, 5, 20, 100, 500, 2000})
)
