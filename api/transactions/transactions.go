// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package transactions

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/godwokenrises/godwoken-sub004/api/types"
	"github.com/godwokenrises/godwoken-sub004/api/utils"
	"github.com/godwokenrises/godwoken-sub004/chain"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/runtime"
	"github.com/godwokenrises/godwoken-sub004/tx"
	"github.com/godwokenrises/godwoken-sub004/txpool"
)

// Transactions serves submission and lookup of transactions.
type Transactions struct {
	repo *chain.Repository
	pool *txpool.TxPool
}

func New(repo *chain.Repository, pool *txpool.TxPool) *Transactions {
	return &Transactions{
		repo,
		pool,
	}
}

// submitError maps a pool error to its http form.
func submitError(err error, kind string) error {
	result := "error"
	defer func() {
		metricSubmitted().AddWithLabel(1, map[string]string{"type": kind, "result": result})
	}()
	switch {
	case txpool.IsBadTx(err):
		result = "bad"
		return utils.BadRequest(err)
	case txpool.IsTxRejected(err), txpool.IsKnownTx(err):
		result = "rejected"
		return utils.Forbidden(err)
	}
	return err
}

func (t *Transactions) handleSendTransaction(w http.ResponseWriter, req *http.Request) error {
	var raw types.RawTx
	if err := utils.ParseJSON(req.Body, &raw); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	trx, err := raw.DecodeTransaction()
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "raw"))
	}
	if err := t.pool.Add(trx); err != nil {
		return submitError(err, "tx")
	}
	metricSubmitted().AddWithLabel(1, map[string]string{"type": "tx", "result": "ok"})
	hash := trx.Hash()
	return utils.WriteJSON(w, map[string]*gw.Bytes32{
		"hash": &hash,
	})
}

func (t *Transactions) handleExecuteTransaction(w http.ResponseWriter, req *http.Request) error {
	var raw types.RawTx
	if err := utils.ParseJSON(req.Body, &raw); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	trx, err := raw.DecodeTransaction()
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "raw"))
	}
	receipt, err := t.pool.Simulate(trx)
	if err != nil {
		if _, ok := runtime.AsTransactionError(err); ok {
			return utils.BadRequest(err)
		}
		return err
	}
	return utils.WriteJSON(w, types.ConvertReceipt(receipt, true))
}

func (t *Transactions) getTransaction(hash gw.Bytes32) (*tx.Transaction, *chain.Location, error) {
	if trx := t.pool.Get(hash); trx != nil {
		return trx, nil, nil
	}
	trx, loc, err := t.repo.GetTransaction(hash)
	if err != nil {
		if t.repo.IsNotFound(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	return trx, loc, nil
}

func (t *Transactions) handleGetTransactionByHash(w http.ResponseWriter, req *http.Request) error {
	hash, err := gw.ParseBytes32(mux.Vars(req)["hash"])
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "hash"))
	}
	raw, err := utils.StringToBoolean(req.URL.Query().Get("raw"), false)
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "raw"))
	}
	trx, loc, err := t.getTransaction(hash)
	if err != nil {
		return err
	}
	if trx == nil {
		return utils.WriteJSON(w, nil)
	}
	if raw {
		return utils.WriteJSON(w, types.EncodeRaw(trx))
	}
	return utils.WriteJSON(w, types.ConvertTransaction(trx, loc))
}

func (t *Transactions) handleGetTransactionReceiptByHash(w http.ResponseWriter, req *http.Request) error {
	hash, err := gw.ParseBytes32(mux.Vars(req)["hash"])
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "hash"))
	}
	if receipt, ok := t.pool.Receipt(hash); ok {
		return utils.WriteJSON(w, types.ConvertReceipt(receipt, true))
	}
	receipt, err := t.repo.GetReceipt(hash)
	if err != nil {
		if t.repo.IsNotFound(err) {
			return utils.WriteJSON(w, nil)
		}
		return err
	}
	return utils.WriteJSON(w, types.ConvertReceipt(receipt, false))
}

func (t *Transactions) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").Methods(http.MethodPost).HandlerFunc(utils.WrapHandlerFunc(t.handleSendTransaction))
	sub.Path("/execute").Methods(http.MethodPost).HandlerFunc(utils.WrapHandlerFunc(t.handleExecuteTransaction))
	sub.Path("/{hash}").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(t.handleGetTransactionByHash))
	sub.Path("/{hash}/receipt").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(t.handleGetTransactionReceiptByHash))
}
