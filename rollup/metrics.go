// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rollup

import "github.com/godwokenrises/godwoken-sub004/metrics"

var metricActionCount = metrics.LazyLoadCounterVec("rollup_action_count", []string{"action"})
