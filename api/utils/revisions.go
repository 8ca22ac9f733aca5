// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package utils

import (
	"github.com/pkg/errors"

	"github.com/godwokenrises/godwoken-sub004/chain"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/state"
	"github.com/godwokenrises/godwoken-sub004/txpool"
)

type revKeyword byte

const (
	revTip revKeyword = iota
	revFinalized
	revPending
)

// Revision selects a committed block, or the mem block for pending queries.
type Revision struct {
	val any
}

// IsPending reports whether the revision is the mem block.
func (rev *Revision) IsPending() bool {
	return rev.val == revPending
}

// ParseRevision parses a block number, block hash, "tip", "finalized" or "pending".
func ParseRevision(revision string, allowPending bool) (*Revision, error) {
	switch revision {
	case "", "tip":
		return &Revision{revTip}, nil
	case "finalized":
		return &Revision{revFinalized}, nil
	case "pending":
		if !allowPending {
			return nil, errors.New("pending is not allowed")
		}
		return &Revision{revPending}, nil
	}
	if len(revision) == 66 || len(revision) == 64 {
		hash, err := gw.ParseBytes32(revision)
		if err != nil {
			return nil, err
		}
		return &Revision{hash}, nil
	}
	n, err := StringToUint64(revision)
	if err != nil {
		return nil, err
	}
	return &Revision{n}, nil
}

// ParseStateRevision parses the revision of an account query, where pending=true overrides it.
func ParseStateRevision(revision, pending string) (*Revision, error) {
	p, err := StringToBoolean(pending, false)
	if err != nil {
		return nil, errors.WithMessage(err, "pending")
	}
	if p {
		return &Revision{revPending}, nil
	}
	rev, err := ParseRevision(revision, true)
	if err != nil {
		return nil, errors.WithMessage(err, "revision")
	}
	return rev, nil
}

// GetSummary returns the summary of the committed block rev selects.
func GetSummary(rev *Revision, repo *chain.Repository) (*chain.BlockSummary, error) {
	var num uint64
	switch v := rev.val.(type) {
	case uint64:
		num = v
	case gw.Bytes32:
		n, err := repo.GetBlockNumber(v)
		if err != nil {
			return nil, err
		}
		num = n
	case revKeyword:
		tip := repo.Tip()
		switch v {
		case revTip:
			num = tip.Block.Header().Number()
		case revFinalized:
			num = tip.GlobalState.LastFinalizedBlockNumber
		default:
			return nil, errors.New("pending block has no summary")
		}
	}
	return repo.GetBlockSummary(num)
}

// ViewState runs fn on the state after the block rev selects, or on the mem block state.
// fn must not modify the state.
func ViewState(rev *Revision, repo *chain.Repository, stater *state.Stater, pool *txpool.TxPool, fn func(st *state.State) error) error {
	if rev.IsPending() {
		return pool.View(fn)
	}
	summary, err := GetSummary(rev, repo)
	if err != nil {
		if repo.IsNotFound(err) {
			return NotFound(errors.New("revision: block not found"))
		}
		return err
	}
	return fn(stater.NewState(summary.Header.PostAccount()))
}
