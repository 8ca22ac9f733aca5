// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package subscriptions

import (
	"encoding/json"

	"github.com/godwokenrises/godwoken-sub004/chain"
	"github.com/godwokenrises/godwoken-sub004/co"
	"github.com/godwokenrises/godwoken-sub004/gw"
)

type sentBlock struct {
	number uint64
	hash   gw.Bytes32
}

// blockReader reads blocks from a position on, and reports the sent blocks a revert removed.
type blockReader struct {
	repo   *chain.Repository
	ticker co.Waiter
	cache  *messageCache
	next   uint64
	sent   []sentBlock
	window int
}

func newBlockReader(repo *chain.Repository, position uint64, cache *messageCache, window int) *blockReader {
	return &blockReader{
		repo:   repo,
		ticker: repo.NewTicker(),
		cache:  cache,
		next:   position,
		window: max(window, 1),
	}
}

// dropReverted rewinds over sent blocks that are no longer in the chain.
func (br *blockReader) dropReverted(tip uint64) ([]json.RawMessage, error) {
	var msgs []json.RawMessage
	for len(br.sent) > 0 {
		last := br.sent[len(br.sent)-1]
		if last.number <= tip {
			summary, err := br.repo.GetBlockSummary(last.number)
			if err != nil && !br.repo.IsNotFound(err) {
				return nil, err
			}
			if err == nil && summary.Header.Hash() == last.hash {
				break
			}
		}
		msg, err := json.Marshal(obsoleteBlock(last.number, last.hash))
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
		br.sent = br.sent[:len(br.sent)-1]
		br.next = last.number
	}
	return msgs, nil
}

func (br *blockReader) Read(stop <-chan struct{}) ([]json.RawMessage, error) {
	for {
		msgs, err := br.read()
		if err != nil || len(msgs) > 0 {
			return msgs, err
		}
		select {
		case <-stop:
			return nil, nil
		case <-br.ticker.C():
		}
	}
}

// read returns messages of reverted blocks and the next block, if any.
func (br *blockReader) read() ([]json.RawMessage, error) {
	tip := br.repo.Tip().Block.Header().Number()
	msgs, err := br.dropReverted(tip)
	if err != nil {
		return nil, err
	}
	if br.next > tip {
		return msgs, nil
	}
	summary, err := br.repo.GetBlockSummary(br.next)
	if err != nil {
		if br.repo.IsNotFound(err) {
			// reverted meanwhile
			return msgs, nil
		}
		return nil, err
	}
	hash := summary.Header.Hash()
	msg, _, err := br.cache.GetOrAdd(hash, func() (any, error) {
		return convertBlock(summary), nil
	})
	if err != nil {
		return nil, err
	}
	msgs = append(msgs, msg)
	br.sent = append(br.sent, sentBlock{br.next, hash})
	if len(br.sent) > br.window {
		br.sent = br.sent[1:]
	}
	br.next++
	return msgs, nil
}
