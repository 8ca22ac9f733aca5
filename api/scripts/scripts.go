// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package scripts

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/godwokenrises/godwoken-sub004/api/types"
	"github.com/godwokenrises/godwoken-sub004/api/utils"
	"github.com/godwokenrises/godwoken-sub004/chain"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/state"
	"github.com/godwokenrises/godwoken-sub004/txpool"
)

type Scripts struct {
	repo   *chain.Repository
	stater *state.Stater
	pool   *txpool.TxPool
}

func New(repo *chain.Repository, stater *state.Stater, pool *txpool.TxPool) *Scripts {
	return &Scripts{
		repo,
		stater,
		pool,
	}
}

// AccountID for marshal the account bound to a script.
type AccountID struct {
	AccountID uint32 `json:"accountId"`
}

func (s *Scripts) view(req *http.Request, fn func(st *state.State, hash gw.Bytes32) error) error {
	hash, err := gw.ParseBytes32(mux.Vars(req)["hash"])
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "hash"))
	}
	query := req.URL.Query()
	rev, err := utils.ParseStateRevision(query.Get("revision"), query.Get("pending"))
	if err != nil {
		return utils.BadRequest(err)
	}
	return utils.ViewState(rev, s.repo, s.stater, s.pool, func(st *state.State) error {
		return fn(st, hash)
	})
}

func (s *Scripts) handleGetScript(w http.ResponseWriter, req *http.Request) error {
	var script *types.Script
	if err := s.view(req, func(st *state.State, hash gw.Bytes32) error {
		v, err := st.GetScript(hash)
		if err != nil {
			return err
		}
		if v != nil {
			script = types.ConvertScript(v)
		}
		return nil
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, script)
}

func (s *Scripts) handleGetAccountID(w http.ResponseWriter, req *http.Request) error {
	var result *AccountID
	if err := s.view(req, func(st *state.State, hash gw.Bytes32) error {
		id, exist, err := st.GetAccountIDByScriptHash(hash)
		if err != nil {
			return err
		}
		if exist {
			result = &AccountID{id}
		}
		return nil
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, result)
}

func (s *Scripts) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/{hash}").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(s.handleGetScript))
	sub.Path("/{hash}/account-id").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(s.handleGetAccountID))
}
