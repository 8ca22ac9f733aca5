// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package blocks

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/godwokenrises/godwoken-sub004/api/types"
	"github.com/godwokenrises/godwoken-sub004/api/utils"
	"github.com/godwokenrises/godwoken-sub004/chain"
	"github.com/godwokenrises/godwoken-sub004/gw"
)

type Blocks struct {
	repo *chain.Repository
}

func New(repo *chain.Repository) *Blocks {
	return &Blocks{
		repo,
	}
}

func (b *Blocks) getSummary(req *http.Request) (*chain.BlockSummary, error) {
	revision, err := utils.ParseRevision(mux.Vars(req)["revision"], false)
	if err != nil {
		return nil, utils.BadRequest(errors.WithMessage(err, "revision"))
	}
	summary, err := utils.GetSummary(revision, b.repo)
	if err != nil {
		if b.repo.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return summary, nil
}

func (b *Blocks) isFinalized(num uint64) bool {
	return gw.IsFinalized(num, b.repo.Tip().GlobalState.LastFinalizedBlockNumber)
}

func (b *Blocks) handleGetBlock(w http.ResponseWriter, req *http.Request) error {
	expanded, err := utils.StringToBoolean(req.URL.Query().Get("expanded"), false)
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "expanded"))
	}
	summary, err := b.getSummary(req)
	if err != nil {
		return err
	}
	if summary == nil {
		return utils.WriteJSON(w, nil)
	}

	num := summary.Header.Number()
	jSummary := types.ConvertBlockSummary(summary, b.isFinalized(num))
	if !expanded {
		return utils.WriteJSON(w, jSummary)
	}

	blk, err := b.repo.GetBlock(num)
	if err != nil {
		return err
	}
	receipts, err := b.repo.GetBlockReceipts(num)
	if err != nil {
		return err
	}
	txs := make([]*JSONEmbeddedTx, 0, len(blk.Transactions()))
	for i, trx := range blk.Transactions() {
		loc := &chain.Location{BlockNumber: num, Kind: chain.KindTransaction, Index: uint32(i)}
		txs = append(txs, &JSONEmbeddedTx{
			Transaction: types.ConvertTransaction(trx, loc),
			Receipt:     types.ConvertReceipt(receipts[i], false),
		})
	}
	withdrawals := make([]*types.Withdrawal, 0, len(blk.Withdrawals()))
	for i, wd := range blk.Withdrawals() {
		loc := &chain.Location{BlockNumber: num, Kind: chain.KindWithdrawal, Index: uint32(i)}
		withdrawals = append(withdrawals, types.ConvertWithdrawal(wd, loc))
	}
	return utils.WriteJSON(w, &JSONExpandedBlock{
		jSummary,
		txs,
		withdrawals,
	})
}

func (b *Blocks) handleGetGlobalState(w http.ResponseWriter, req *http.Request) error {
	summary, err := b.getSummary(req)
	if err != nil {
		return err
	}
	if summary == nil {
		return utils.WriteJSON(w, nil)
	}
	gs, err := b.repo.GetGlobalState(summary.Header.Number())
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, types.ConvertGlobalState(gs))
}

func (b *Blocks) handleGetLastSynced(w http.ResponseWriter, _ *http.Request) error {
	num, err := b.repo.LastSynced()
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, &JSONLastSynced{num})
}

func (b *Blocks) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/last-synced").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(b.handleGetLastSynced))
	sub.Path("/{revision}").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(b.handleGetBlock))
	sub.Path("/{revision}/global-state").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(b.handleGetGlobalState))
}
