// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accounts_test

import (
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godwokenrises/godwoken-sub004/api/accounts"
	"github.com/godwokenrises/godwoken-sub004/genesis"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/test/datagen"
	"github.com/godwokenrises/godwoken-sub004/test/testchain"
	"github.com/godwokenrises/godwoken-sub004/txpool"
)

var (
	ts    *httptest.Server
	chain *testchain.Chain
)

func initAccountServer(t *testing.T) {
	var err error
	chain, err = testchain.New()
	require.NoError(t, err)
	t.Cleanup(chain.Close)

	accs := genesis.DevAccounts()
	require.NoError(t, chain.MintBlock(chain.Transfer(0, 0, accs[1].Address, 100)))

	pool := chain.NewPool(txpool.DefaultOptions())
	t.Cleanup(pool.Close)
	require.NoError(t, pool.Add(chain.Transfer(0, 1, accs[1].Address, 50)))

	router := mux.NewRouter()
	accounts.New(chain.Repo(), chain.Stater(), pool).Mount(router, "/accounts")
	ts = httptest.NewServer(router)
	t.Cleanup(ts.Close)
}

func httpGet(t *testing.T, url string) ([]byte, int) {
	res, err := http.Get(url) //#nosec G107
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return body, res.StatusCode
}

func TestAccount(t *testing.T) {
	initAccountServer(t)

	for name, tt := range map[string]func(*testing.T){
		"getBalance":            getBalance,
		"getBalanceByRevision":  getBalanceByRevision,
		"getPendingBalance":     getPendingBalance,
		"getNonce":              getNonce,
		"getScriptHash":         getScriptHash,
		"getStorage":            getStorage,
		"getWithInvalidRequest": getWithInvalidRequest,
		"getNotFound":           getNotFound,
	} {
		t.Run(name, tt)
	}
}

func decodeBalance(t *testing.T, body []byte) *accounts.Balance {
	var balance accounts.Balance
	require.NoError(t, json.Unmarshal(body, &balance))
	return &balance
}

func spent(amounts ...uint64) *big.Int {
	v := new(big.Int).SetUint64(genesis.DevBalance)
	for _, a := range amounts {
		v.Sub(v, new(big.Int).SetUint64(a))
	}
	return v
}

func getBalance(t *testing.T) {
	acc := genesis.DevAccounts()[0]
	want := spent(100, testchain.Fee)
	script := chain.EOAScript(acc.Address)

	for _, ref := range []string{
		acc.Address.String(),
		"3",
		script.Hash().String(),
	} {
		body, status := httpGet(t, ts.URL+"/accounts/"+ref+"/balance")
		require.Equal(t, http.StatusOK, status, ref)
		balance := decodeBalance(t, body)
		assert.Equal(t, uint32(3), balance.AccountID)
		assert.Equal(t, gw.CKBSUDTAccountID, balance.SUDTID)
		assert.Equal(t, testchain.RegAddr(acc.Address).String(), balance.Address)
		assert.Equal(t, want, (*big.Int)(balance.Balance), ref)
	}
}

func getBalanceByRevision(t *testing.T) {
	acc := genesis.DevAccounts()[0]
	url := ts.URL + "/accounts/" + acc.Address.String() + "/balance?revision="

	body, status := httpGet(t, url+"0")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, spent(), (*big.Int)(decodeBalance(t, body).Balance))

	body, status = httpGet(t, url+chain.GenesisBlock().Hash().String())
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, spent(), (*big.Int)(decodeBalance(t, body).Balance))

	body, status = httpGet(t, url+"tip")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, spent(100, testchain.Fee), (*big.Int)(decodeBalance(t, body).Balance))

	body, status = httpGet(t, url+"finalized")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, spent(), (*big.Int)(decodeBalance(t, body).Balance), "block 1 is not finalized")
}

func getPendingBalance(t *testing.T) {
	acc := genesis.DevAccounts()[0]
	want := spent(100, testchain.Fee, 50, testchain.Fee)

	for _, query := range []string{"?pending=true", "?revision=pending"} {
		body, status := httpGet(t, ts.URL+"/accounts/"+acc.Address.String()+"/balance"+query)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, want, (*big.Int)(decodeBalance(t, body).Balance), query)
	}
}

func getNonce(t *testing.T) {
	acc := genesis.DevAccounts()[0]

	body, status := httpGet(t, ts.URL+"/accounts/"+acc.Address.String()+"/nonce")
	require.Equal(t, http.StatusOK, status)
	var nonce accounts.Nonce
	require.NoError(t, json.Unmarshal(body, &nonce))
	assert.Equal(t, accounts.Nonce{AccountID: 3, Nonce: 1}, nonce)

	body, status = httpGet(t, ts.URL+"/accounts/3/nonce?pending=true")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &nonce))
	assert.Equal(t, uint32(2), nonce.Nonce)
}

func getScriptHash(t *testing.T) {
	acc := genesis.DevAccounts()[2]

	body, status := httpGet(t, ts.URL+"/accounts/"+acc.Address.String()+"/script-hash")
	require.Equal(t, http.StatusOK, status)
	var hash accounts.ScriptHash
	require.NoError(t, json.Unmarshal(body, &hash))
	assert.Equal(t, uint32(5), hash.AccountID)
	script := chain.EOAScript(acc.Address)
	assert.Equal(t, script.Hash(), hash.ScriptHash)
}

func getStorage(t *testing.T) {
	body, status := httpGet(t, ts.URL+"/accounts/3/storage/"+datagen.RandomHash().String())
	require.Equal(t, http.StatusOK, status)
	var storage accounts.Storage
	require.NoError(t, json.Unmarshal(body, &storage))
	assert.True(t, storage.Value.IsZero())
}

func getWithInvalidRequest(t *testing.T) {
	for _, path := range []string{
		"/accounts/not-an-id/balance",
		"/accounts/3/balance?revision=bad",
		"/accounts/3/balance?pending=maybe",
		"/accounts/3/balance?registry=x",
		"/accounts/3/storage/0x01",
	} {
		_, status := httpGet(t, ts.URL+path)
		assert.Equal(t, http.StatusBadRequest, status, path)
	}
}

func getNotFound(t *testing.T) {
	for _, path := range []string{
		"/accounts/" + datagen.RandomAddress().String() + "/balance",
		"/accounts/" + datagen.RandomHash().String() + "/nonce",
		"/accounts/9999/nonce",
		"/accounts/3/nonce?revision=100",
		"/accounts/3/balance?registry=7",
	} {
		_, status := httpGet(t, ts.URL+path)
		assert.Equal(t, http.StatusNotFound, status, path)
	}
}
