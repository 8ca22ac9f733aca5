// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package subscriptions

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godwokenrises/godwoken-sub004/genesis"
	"github.com/godwokenrises/godwoken-sub004/test/datagen"
	"github.com/godwokenrises/godwoken-sub004/test/testchain"
	"github.com/godwokenrises/godwoken-sub004/tx"
	"github.com/godwokenrises/godwoken-sub004/txpool"
)

const backtraceLimit = 5

type testServer struct {
	*httptest.Server
	chain *testchain.Chain
	pool  *txpool.TxPool
}

func newTestServer(t *testing.T, blocks int) *testServer {
	chain := newChain(t, blocks)
	pool := chain.NewPool(txpool.DefaultOptions())
	t.Cleanup(pool.Close)

	sub := New(chain.Repo(), []string{"https://allowed.org"}, backtraceLimit, pool)
	router := mux.NewRouter()
	sub.Mount(router, "/subscriptions")
	ts := httptest.NewServer(router)
	t.Cleanup(func() {
		ts.Close()
		sub.Close()
	})
	return &testServer{ts, chain, pool}
}

func (ts *testServer) dial(t *testing.T, path string, header http.Header) (*websocket.Conn, *http.Response, error) {
	u := url.URL{Scheme: "ws", Host: strings.TrimPrefix(ts.URL, "http://"), Path: "/subscriptions/" + path}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		u.Path, u.RawQuery = "/subscriptions/"+path[:i], path[i+1:]
	}
	conn, res, err := websocket.DefaultDialer.Dial(u.String(), header)
	if conn != nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, res, err
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestSubscribeBlock(t *testing.T) {
	ts := newTestServer(t, 3)
	repo := ts.chain.Repo()

	conn, _, err := ts.dial(t, "block?pos=1", nil)
	require.NoError(t, err)
	for num := uint64(1); num <= 3; num++ {
		var blk BlockMessage
		readJSON(t, conn, &blk)
		assert.Equal(t, num, blk.Number)
		summary, err := repo.GetBlockSummary(num)
		require.NoError(t, err)
		assert.Equal(t, summary.Header.Hash(), blk.Hash)
	}

	trx := ts.chain.Transfer(0, 0, genesis.DevAccounts()[1].Address, 100)
	require.NoError(t, ts.chain.MintBlock(trx))
	var blk BlockMessage
	readJSON(t, conn, &blk)
	assert.Equal(t, uint64(4), blk.Number)
	assert.Equal(t, uint32(1), blk.TxCount)

	_, err = ts.chain.Revert(4)
	require.NoError(t, err)
	readJSON(t, conn, &blk)
	assert.True(t, blk.Obsolete)
	assert.Equal(t, uint64(4), blk.Number)

	// the tip by default
	conn, _, err = ts.dial(t, "block", nil)
	require.NoError(t, err)
	readJSON(t, conn, &blk)
	assert.Equal(t, uint64(3), blk.Number)
	assert.False(t, blk.Obsolete)
}

func TestSubscribeBlockByHash(t *testing.T) {
	ts := newTestServer(t, 2)
	b1, err := ts.chain.Repo().GetBlock(1)
	require.NoError(t, err)

	conn, _, err := ts.dial(t, "block?pos="+b1.Hash().String(), nil)
	require.NoError(t, err)
	var blk BlockMessage
	readJSON(t, conn, &blk)
	assert.Equal(t, b1.Hash(), blk.Hash)
}

func TestSubscribeTxPool(t *testing.T) {
	ts := newTestServer(t, 0)

	conn, _, err := ts.dial(t, "txpool", nil)
	require.NoError(t, err)

	trx := ts.chain.Transfer(0, 0, genesis.DevAccounts()[1].Address, 100)
	require.NoError(t, ts.pool.Add(trx))
	var msg PendingMessage
	readJSON(t, conn, &msg)
	assert.Equal(t, trx.Hash(), msg.Hash)
	assert.Equal(t, "transaction", msg.Kind)
	assert.Equal(t, testchain.AccountID(0), msg.From)

	w := ts.chain.Withdrawal(1, 0, 100_0000_0000)
	require.NoError(t, ts.pool.AddWithdrawal(w))
	readJSON(t, conn, &msg)
	assert.Equal(t, w.Hash(), msg.Hash)
	assert.Equal(t, "withdrawal", msg.Kind)
}

func TestSubscribeMemBlock(t *testing.T) {
	ts := newTestServer(t, 0)

	conn, _, err := ts.dial(t, "mem-block", nil)
	require.NoError(t, err)

	ts.pool.AddDeposits(tx.Deposits{ts.chain.Deposit(datagen.RandomAddress(), 500_0000_0000)})
	// skips the event of the initial mem block
	var ev txpool.MemBlockEvent
	for ev.Deposits == 0 {
		readJSON(t, conn, &ev)
	}
	assert.Equal(t, uint64(1), ev.Number)
	assert.Equal(t, 1, ev.Deposits)
}

func TestSubscribeInvalid(t *testing.T) {
	ts := newTestServer(t, 2*backtraceLimit)

	for _, tt := range []struct {
		path   string
		status int
	}{
		{"unknown", http.StatusNotFound},
		{"block?pos=abc", http.StatusBadRequest},
		{"block?pos=100", http.StatusBadRequest},
		{"block?pos=" + datagen.RandomHash().String(), http.StatusBadRequest},
		{"block?pos=1", http.StatusForbidden},
	} {
		_, res, err := ts.dial(t, tt.path, nil)
		require.Error(t, err, tt.path)
		require.NotNil(t, res, tt.path)
		assert.Equal(t, tt.status, res.StatusCode, tt.path)
		io.Copy(io.Discard, res.Body)
	}

	_, res, err := ts.dial(t, "txpool", http.Header{"Origin": {"https://evil.org"}})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	_, _, err = ts.dial(t, "txpool", http.Header{"Origin": {"https://allowed.org"}})
	assert.NoError(t, err)
}
