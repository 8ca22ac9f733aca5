// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"

	"github.com/godwokenrises/godwoken-sub004/api/utils"
	"github.com/godwokenrises/godwoken-sub004/gw"
)

type Backends struct {
	Meta        gw.Bytes32 `json:"meta"`
	SUDT        gw.Bytes32 `json:"sudt"`
	ETHRegistry gw.Bytes32 `json:"ethRegistry"`
	EOA         gw.Bytes32 `json:"eoa"`
}

// Info describes the node and the rollup it serves.
type Info struct {
	Version                 string         `json:"version"`
	ChainID                 hexutil.Uint64 `json:"chainId"`
	GenesisHash             gw.Bytes32     `json:"genesisHash"`
	RollupScriptHash        gw.Bytes32     `json:"rollupScriptHash"`
	RollupConfigHash        gw.Bytes32     `json:"rollupConfigHash"`
	FinalityBlocks          uint64         `json:"finalityBlocks"`
	ChallengeMaturityBlocks uint64         `json:"challengeMaturityBlocks"`
	RewardBurnRate          uint8          `json:"rewardBurnRate"`
	MaxCycles               uint64         `json:"maxCycles"`
	Backends                Backends       `json:"backends"`
}

func NewInfo(version string, cfg *gw.Config, genesisHash gw.Bytes32) Info {
	return Info{
		Version:                 version,
		ChainID:                 hexutil.Uint64(cfg.ChainID),
		GenesisHash:             genesisHash,
		RollupScriptHash:        cfg.RollupScriptHash,
		RollupConfigHash:        cfg.Hash(),
		FinalityBlocks:          cfg.FinalityBlocks,
		ChallengeMaturityBlocks: cfg.ChallengeMaturityBlocks,
		RewardBurnRate:          cfg.RewardBurnRate,
		MaxCycles:               cfg.MaxCycles,
		Backends: Backends{
			Meta:        cfg.MetaContractCodeHash,
			SUDT:        cfg.L2SUDTCodeHash,
			ETHRegistry: cfg.ETHRegistryCodeHash,
			EOA:         cfg.EOACodeHash,
		},
	}
}

type Node struct {
	info Info
}

func New(info Info) *Node {
	return &Node{info}
}

func (n *Node) handleNodeInfo(w http.ResponseWriter, _ *http.Request) error {
	return utils.WriteJSON(w, n.info)
}

func (n *Node) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/info").
		Methods(http.MethodGet).
		Name("node_get_info").
		HandlerFunc(utils.WrapHandlerFunc(n.handleNodeInfo))
}
