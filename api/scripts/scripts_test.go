// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package scripts_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godwokenrises/godwoken-sub004/api/scripts"
	"github.com/godwokenrises/godwoken-sub004/api/types"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/test/datagen"
	"github.com/godwokenrises/godwoken-sub004/test/testchain"
	"github.com/godwokenrises/godwoken-sub004/tx"
	"github.com/godwokenrises/godwoken-sub004/txpool"
)

func httpGet(t *testing.T, url string) ([]byte, int) {
	res, err := http.Get(url) //#nosec G107
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return body, res.StatusCode
}

func TestScripts(t *testing.T) {
	chain, err := testchain.New()
	require.NoError(t, err)
	defer chain.Close()

	committed, pending := gw.Address{0x01}, gw.Address{0x02}
	_, err = chain.Mint(&testchain.Requests{Deposits: tx.Deposits{chain.Deposit(committed, 500_0000_0000)}})
	require.NoError(t, err)

	pool := chain.NewPool(txpool.DefaultOptions())
	defer pool.Close()
	pool.AddDeposits(tx.Deposits{chain.Deposit(pending, 500_0000_0000)})

	router := mux.NewRouter()
	scripts.New(chain.Repo(), chain.Stater(), pool).Mount(router, "/scripts")
	ts := httptest.NewServer(router)
	defer ts.Close()

	committedScript := chain.EOAScript(committed)
	pendingScript := chain.EOAScript(pending)

	t.Run("script", func(t *testing.T) {
		body, status := httpGet(t, ts.URL+"/scripts/"+committedScript.Hash().String())
		require.Equal(t, http.StatusOK, status)
		var script types.Script
		require.NoError(t, json.Unmarshal(body, &script))
		assert.Equal(t, types.ConvertScript(&committedScript), &script)
	})

	t.Run("script by revision", func(t *testing.T) {
		body, status := httpGet(t, ts.URL+"/scripts/"+committedScript.Hash().String()+"?revision=0")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "null", strings.TrimSpace(string(body)))
	})

	t.Run("pending script", func(t *testing.T) {
		body, status := httpGet(t, ts.URL+"/scripts/"+pendingScript.Hash().String())
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "null", strings.TrimSpace(string(body)))

		body, status = httpGet(t, ts.URL+"/scripts/"+pendingScript.Hash().String()+"?pending=true")
		require.Equal(t, http.StatusOK, status)
		var script types.Script
		require.NoError(t, json.Unmarshal(body, &script))
		assert.Equal(t, types.ConvertScript(&pendingScript), &script)
	})

	t.Run("account id", func(t *testing.T) {
		body, status := httpGet(t, ts.URL+"/scripts/"+committedScript.Hash().String()+"/account-id")
		require.Equal(t, http.StatusOK, status)
		var id scripts.AccountID
		require.NoError(t, json.Unmarshal(body, &id))
		want, exist, err := chain.State().GetAccountIDByScriptHash(committedScript.Hash())
		require.NoError(t, err)
		require.True(t, exist)
		assert.Equal(t, want, id.AccountID)

		body, status = httpGet(t, ts.URL+"/scripts/"+datagen.RandomHash().String()+"/account-id")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "null", strings.TrimSpace(string(body)))
	})

	t.Run("invalid request", func(t *testing.T) {
		_, status := httpGet(t, ts.URL+"/scripts/0x1234")
		assert.Equal(t, http.StatusBadRequest, status)
		_, status = httpGet(t, ts.URL+"/scripts/"+committedScript.Hash().String()+"?revision=x")
		assert.Equal(t, http.StatusBadRequest, status)
		_, status = httpGet(t, ts.URL+"/scripts/"+committedScript.Hash().String()+"?revision=9")
		assert.Equal(t, http.StatusNotFound, status)
	})
}
