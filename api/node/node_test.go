// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godwokenrises/godwoken-sub004/api/node"
	"github.com/godwokenrises/godwoken-sub004/gw"
)

func TestNodeInfo(t *testing.T) {
	cfg := gw.DefaultConfig()
	genesis := gw.Bytes32{0xaa}
	router := mux.NewRouter()
	node.New(node.NewInfo("1.0.0", &cfg, genesis)).Mount(router, "/node")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/node/info", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &raw))
	assert.Equal(t, "0x116e8", raw["chainId"])

	var info node.Info
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &info))
	assert.Equal(t, "1.0.0", info.Version)
	assert.Equal(t, genesis, info.GenesisHash)
	assert.Equal(t, cfg.Hash(), info.RollupConfigHash)
	assert.Equal(t, cfg.FinalityBlocks, info.FinalityBlocks)
	assert.Equal(t, cfg.EOACodeHash, info.Backends.EOA)
}
