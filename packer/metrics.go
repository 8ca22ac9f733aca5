// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package packer

import "github.com/godwokenrises/godwoken-sub004/metrics"

var (
	metricPackedCount = metrics.LazyLoadCounterVec("packer_packed_count", []string{"type"})
	metricBlockCycles = metrics.LazyLoadHistogram("packer_block_cycles", []int64{1_000_000, 10_000_000, 100_000_000, 1_000_000_000})
)
