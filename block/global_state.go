// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package block

import (
	"io"

	"github.com/pkg/errors"
	"github.com/spacemeshos/go-scale"

	"github.com/godwokenrises/godwoken-sub004/gw"
)

// Status is the status of the rollup.
type Status byte

// rollup statuses.
const (
	StatusRunning Status = 0
	StatusHalting Status = 1
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusHalting:
		return "halting"
	default:
		return "unknown"
	}
}

// GlobalStateVersion is the version of global states produced by this node.
const GlobalStateVersion = 1

// GlobalState is the data of the rollup cell. A new global state supersedes the previous one
// with every rollup action.
type GlobalState struct {
	RollupConfigHash         gw.Bytes32            `json:"rollupConfigHash"`
	Account                  gw.AccountMerkleState `json:"account"`
	Block                    gw.BlockMerkleState   `json:"block"`
	RevertedBlockRoot        gw.Bytes32            `json:"revertedBlockRoot"`
	TipBlockHash             gw.Bytes32            `json:"tipBlockHash"`
	TipBlockTimestamp        uint64                `json:"tipBlockTimestamp"`
	LastFinalizedBlockNumber uint64                `json:"lastFinalizedBlockNumber"`
	Status                   Status                `json:"status"`
	Version                  byte                  `json:"version"`
}

// Hash returns blake2b of the encoded global state.
func (g *GlobalState) Hash() gw.Bytes32 {
	return gw.Blake2bFn(func(w io.Writer) {
		g.EncodeScale(scale.NewEncoder(w))
	})
}

// EncodeScale implements scale codec interface.
func (g *GlobalState) EncodeScale(e *scale.Encoder) (total int, err error) {
	{
		n, err := g.RollupConfigHash.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := g.Account.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := g.Block.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	for _, h := range []*gw.Bytes32{&g.RevertedBlockRoot, &g.TipBlockHash} {
		n, err := h.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	for _, v := range []uint64{g.TipBlockTimestamp, g.LastFinalizedBlockNumber} {
		n, err := scale.EncodeUint64(e, v)
		if err != nil {
			return total, err
		}
		total += n
	}
	for _, v := range []byte{byte(g.Status), g.Version} {
		n, err := scale.EncodeByte(e, v)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (g *GlobalState) DecodeScale(d *scale.Decoder) (total int, err error) {
	{
		n, err := g.RollupConfigHash.DecodeScale(d)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := g.Account.DecodeScale(d)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := g.Block.DecodeScale(d)
		if err != nil {
			return total, err
		}
		total += n
	}
	for _, h := range []*gw.Bytes32{&g.RevertedBlockRoot, &g.TipBlockHash} {
		n, err := h.DecodeScale(d)
		if err != nil {
			return total, err
		}
		total += n
	}
	for _, v := range []*uint64{&g.TipBlockTimestamp, &g.LastFinalizedBlockNumber} {
		field, n, err := scale.DecodeUint64(d)
		if err != nil {
			return total, err
		}
		total += n
		*v = field
	}
	{
		field, n, err := scale.DecodeByte(d)
		if err != nil {
			return total, err
		}
		total += n
		if field > byte(StatusHalting) {
			return total, errors.Errorf("invalid rollup status %d", field)
		}
		g.Status = Status(field)
	}
	{
		field, n, err := scale.DecodeByte(d)
		if err != nil {
			return total, err
		}
		total += n
		g.Version = field
	}
	return total, nil
}

// BlockSMTKey returns the key of a block in the block tree. The value is the block hash.
func BlockSMTKey(number uint64) gw.Bytes32 { return gw.Uint64ToBytes32(number) }

// RevertedSMTValue is the value of a reverted block hash in the reverted block tree.
var RevertedSMTValue = gw.Uint32ToBytes32(1)
