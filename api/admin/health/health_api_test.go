// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/health"
)

func get(t *testing.T, router *mux.Router, url string) (*health.Status, int) {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, url, nil))
	if rr.Code == http.StatusBadRequest {
		return nil, rr.Code
	}
	var status health.Status
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	return &status, rr.Code
}

func TestHealthAPI(t *testing.T) {
	h := health.New(time.Second)
	router := mux.NewRouter()
	NewAPI(h).Mount(router, "/health")

	status, code := get(t, router, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.False(t, status.Healthy)

	h.BaseChainSynced(true)
	h.NewTip(3, gw.Bytes32{3})
	status, code = get(t, router, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, status.Healthy)
	assert.Equal(t, uint64(3), status.BlockProduction.TipNumber)

	_, code = get(t, router, "/health?maxTimeBetweenBlocks=1ns")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	_, code = get(t, router, "/health?maxTimeBetweenBlocks=soon")
	assert.Equal(t, http.StatusBadRequest, code)
}
