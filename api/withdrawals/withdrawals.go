// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package withdrawals

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/godwokenrises/godwoken-sub004/api/types"
	"github.com/godwokenrises/godwoken-sub004/api/utils"
	"github.com/godwokenrises/godwoken-sub004/chain"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/txpool"
)

// Withdrawals serves submission and lookup of withdrawal requests.
type Withdrawals struct {
	repo *chain.Repository
	pool *txpool.TxPool
}

func New(repo *chain.Repository, pool *txpool.TxPool) *Withdrawals {
	return &Withdrawals{
		repo,
		pool,
	}
}

func (wd *Withdrawals) handleSendWithdrawal(w http.ResponseWriter, req *http.Request) error {
	var raw types.RawTx
	if err := utils.ParseJSON(req.Body, &raw); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	withdrawal, err := raw.DecodeWithdrawal()
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "raw"))
	}
	if err := wd.pool.AddWithdrawal(withdrawal); err != nil {
		switch {
		case txpool.IsBadTx(err):
			return utils.BadRequest(err)
		case txpool.IsTxRejected(err), txpool.IsKnownTx(err):
			return utils.Forbidden(err)
		}
		return err
	}
	hash := withdrawal.Hash()
	return utils.WriteJSON(w, map[string]*gw.Bytes32{
		"hash": &hash,
	})
}

func (wd *Withdrawals) handleGetWithdrawalByHash(w http.ResponseWriter, req *http.Request) error {
	hash, err := gw.ParseBytes32(mux.Vars(req)["hash"])
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "hash"))
	}
	if pending := wd.pool.GetWithdrawal(hash); pending != nil {
		return utils.WriteJSON(w, types.ConvertWithdrawal(pending, nil))
	}
	withdrawal, loc, err := wd.repo.GetWithdrawal(hash)
	if err != nil {
		if wd.repo.IsNotFound(err) {
			return utils.WriteJSON(w, nil)
		}
		return err
	}
	return utils.WriteJSON(w, types.ConvertWithdrawal(withdrawal, loc))
}

func (wd *Withdrawals) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").Methods(http.MethodPost).HandlerFunc(utils.WrapHandlerFunc(wd.handleSendWithdrawal))
	sub.Path("/{hash}").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(wd.handleGetWithdrawalByHash))
}
