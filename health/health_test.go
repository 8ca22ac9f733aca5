// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godwokenrises/godwoken-sub004/gw"
)

func TestHealthNewTip(t *testing.T) {
	h := New(time.Second)

	status := h.Status(0)
	assert.False(t, status.Healthy)
	assert.Nil(t, status.BlockProduction.TipHash)
	assert.Nil(t, status.BlockProduction.TipTimestamp)

	hash := gw.Bytes32{1, 2, 3}
	h.NewTip(7, hash)
	status = h.Status(0)
	assert.False(t, status.Healthy, "base chain not synced")

	h.BaseChainSynced(true)
	status = h.Status(0)
	assert.True(t, status.Healthy)
	assert.True(t, status.BaseChainSynced)
	require.NotNil(t, status.BlockProduction.TipHash)
	assert.Equal(t, hash, *status.BlockProduction.TipHash)
	assert.Equal(t, uint64(7), status.BlockProduction.TipNumber)
	assert.WithinDuration(t, time.Now(), *status.BlockProduction.TipTimestamp, time.Second)
}

func TestHealthStaleTip(t *testing.T) {
	h := New(time.Second)
	h.BaseChainSynced(true)
	h.NewTip(1, gw.Bytes32{1})

	time.Sleep(20 * time.Millisecond)
	assert.False(t, h.Status(10*time.Millisecond).Healthy)
	assert.True(t, h.Status(time.Minute).Healthy)

	h.BaseChainSynced(false)
	assert.False(t, h.Status(time.Minute).Healthy)
}
