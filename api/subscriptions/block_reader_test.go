// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package subscriptions

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/test/testchain"
)

func newChain(t *testing.T, blocks int) *testchain.Chain {
	chain, err := testchain.New()
	require.NoError(t, err)
	t.Cleanup(chain.Close)
	for range blocks {
		require.NoError(t, chain.MintBlock())
	}
	return chain
}

func decodeBlocks(t *testing.T, msgs []json.RawMessage) []*BlockMessage {
	blks := make([]*BlockMessage, 0, len(msgs))
	for _, msg := range msgs {
		var blk BlockMessage
		require.NoError(t, json.Unmarshal(msg, &blk))
		blks = append(blks, &blk)
	}
	return blks
}

func TestBlockReader(t *testing.T) {
	chain := newChain(t, 3)
	repo := chain.Repo()
	br := newBlockReader(repo, 1, newMessageCache(10), 10)

	var sent []gw.Bytes32
	for num := uint64(1); num <= 3; num++ {
		msgs, err := br.read()
		require.NoError(t, err)
		blks := decodeBlocks(t, msgs)
		require.Len(t, blks, 1)
		assert.Equal(t, num, blks[0].Number)
		assert.False(t, blks[0].Obsolete)

		summary, err := repo.GetBlockSummary(num)
		require.NoError(t, err)
		assert.Equal(t, summary.Header.Hash(), blks[0].Hash)
		assert.Equal(t, summary.Header.ParentHash(), blks[0].ParentHash)
		sent = append(sent, blks[0].Hash)
	}

	msgs, err := br.read()
	require.NoError(t, err)
	assert.Empty(t, msgs, "caught up")

	_, err = chain.Revert(2)
	require.NoError(t, err)

	msgs, err = br.read()
	require.NoError(t, err)
	blks := decodeBlocks(t, msgs)
	require.Len(t, blks, 2)
	for i, want := range []struct {
		number uint64
		hash   gw.Bytes32
	}{{3, sent[2]}, {2, sent[1]}} {
		assert.True(t, blks[i].Obsolete)
		assert.Equal(t, want.number, blks[i].Number)
		assert.Equal(t, want.hash, blks[i].Hash)
	}

	require.NoError(t, chain.MintBlock())
	msgs, err = br.read()
	require.NoError(t, err)
	blks = decodeBlocks(t, msgs)
	require.Len(t, blks, 1)
	assert.Equal(t, uint64(2), blks[0].Number)
	assert.Equal(t, repo.Tip().Block.Hash(), blks[0].Hash)
	assert.False(t, blks[0].Obsolete)
}

func TestBlockReaderRead(t *testing.T) {
	chain := newChain(t, 0)
	br := newBlockReader(chain.Repo(), 1, newMessageCache(10), 10)

	stop := make(chan struct{})
	done := make(chan []json.RawMessage)
	go func() {
		msgs, err := br.Read(stop)
		assert.NoError(t, err)
		done <- msgs
	}()

	select {
	case <-done:
		t.Fatal("read returned before a new block")
	case <-time.After(50 * time.Millisecond):
	}
	require.NoError(t, chain.MintBlock())

	select {
	case msgs := <-done:
		blks := decodeBlocks(t, msgs)
		require.Len(t, blks, 1)
		assert.Equal(t, uint64(1), blks[0].Number)
	case <-time.After(time.Second):
		t.Fatal("read not woken by the new block")
	}

	go func() {
		msgs, err := br.Read(stop)
		assert.NoError(t, err)
		done <- msgs
	}()
	close(stop)
	select {
	case msgs := <-done:
		assert.Nil(t, msgs)
	case <-time.After(time.Second):
		t.Fatal("read not stopped")
	}
}

func TestMessageCache(t *testing.T) {
	cache := newMessageCache(2)
	hash := gw.Blake2b([]byte("block"))

	calls := 0
	create := func() (any, error) {
		calls++
		return &BlockMessage{Number: 1, Hash: hash}, nil
	}
	msg, created, err := cache.GetOrAdd(hash, create)
	require.NoError(t, err)
	assert.True(t, created)

	cached, created, err := cache.GetOrAdd(hash, create)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, msg, cached)
	assert.Equal(t, 1, calls)

	var blk BlockMessage
	require.NoError(t, json.Unmarshal(cached, &blk))
	assert.Equal(t, hash, blk.Hash)
}
