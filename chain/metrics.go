// Copyright (c) 2024 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import "github.com/godwokenrises/godwoken-sub004/metrics"

var (
	metricCacheHitMiss    = metrics.LazyLoadCounterVec("repo_cache_hit_miss_count", []string{"type", "event"})
	metricBlockRepository = metrics.LazyLoadCounterVec("block_repository_count", []string{"type"})
	metricTip             = metrics.LazyLoadGauge("repo_tip_number")
)
