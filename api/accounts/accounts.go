// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accounts

import (
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/godwokenrises/godwoken-sub004/api/utils"
	"github.com/godwokenrises/godwoken-sub004/chain"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/state"
	"github.com/godwokenrises/godwoken-sub004/txpool"
)

var errAccountNotFound = errors.New("account not found")

// Accounts serves queries of the account registry.
type Accounts struct {
	repo   *chain.Repository
	stater *state.Stater
	pool   *txpool.TxPool
}

// New creates the accounts api.
func New(repo *chain.Repository, stater *state.Stater, pool *txpool.TxPool) *Accounts {
	return &Accounts{
		repo,
		stater,
		pool,
	}
}

// accountRef is an account id, a 20 bytes ethereum address or a 32 bytes script hash.
type accountRef struct {
	id         *uint32
	addr       *gw.Address
	scriptHash *gw.Bytes32
}

func parseAccountRef(s string) (*accountRef, error) {
	switch len(s) {
	case gw.AddressLength*2 + 2:
		addr, err := gw.ParseAddress(s)
		if err != nil {
			return nil, err
		}
		return &accountRef{addr: &addr}, nil
	case 66:
		hash, err := gw.ParseBytes32(s)
		if err != nil {
			return nil, err
		}
		return &accountRef{scriptHash: &hash}, nil
	}
	id, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return nil, err
	}
	v := uint32(id)
	return &accountRef{id: &v}, nil
}

// resolve returns the id of the referred account.
func (ref *accountRef) resolve(st *state.State) (uint32, error) {
	switch {
	case ref.id != nil:
		if *ref.id >= st.GetAccountCount() {
			return 0, utils.NotFound(errAccountNotFound)
		}
		return *ref.id, nil
	case ref.addr != nil:
		hash, exist, err := st.GetScriptHashByRegistryAddress(gw.NewRegistryAddress(gw.ETHRegistryID, ref.addr[:]))
		if err != nil {
			return 0, err
		}
		if !exist {
			return 0, utils.NotFound(errAccountNotFound)
		}
		return ref.byScriptHash(st, hash)
	default:
		return ref.byScriptHash(st, *ref.scriptHash)
	}
}

func (ref *accountRef) byScriptHash(st *state.State, hash gw.Bytes32) (uint32, error) {
	id, exist, err := st.GetAccountIDByScriptHash(hash)
	if err != nil {
		return 0, err
	}
	if !exist {
		return 0, utils.NotFound(errAccountNotFound)
	}
	return id, nil
}

// view resolves the referred account and runs fn on the state the request selects.
func (a *Accounts) view(req *http.Request, fn func(st *state.State, id uint32) error) error {
	ref, err := parseAccountRef(mux.Vars(req)["id"])
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "id"))
	}
	query := req.URL.Query()
	rev, err := utils.ParseStateRevision(query.Get("revision"), query.Get("pending"))
	if err != nil {
		return utils.BadRequest(err)
	}
	return utils.ViewState(rev, a.repo, a.stater, a.pool, func(st *state.State) error {
		id, err := ref.resolve(st)
		if err != nil {
			return err
		}
		return fn(st, id)
	})
}

func (a *Accounts) handleGetBalance(w http.ResponseWriter, req *http.Request) error {
	query := req.URL.Query()
	registryID, err := utils.StringToUint32(query.Get("registry"), gw.ETHRegistryID)
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "registry"))
	}
	sudtID, err := utils.StringToUint32(query.Get("sudt"), gw.CKBSUDTAccountID)
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "sudt"))
	}

	var balance *Balance
	if err := a.view(req, func(st *state.State, id uint32) error {
		scriptHash, err := st.GetScriptHash(id)
		if err != nil {
			return err
		}
		addr, exist, err := st.GetRegistryAddressByScriptHash(registryID, scriptHash)
		if err != nil {
			return err
		}
		if !exist {
			return utils.NotFound(errors.Errorf("account %d has no address in registry %d", id, registryID))
		}
		v, err := st.GetSUDTBalance(sudtID, addr)
		if err != nil {
			return err
		}
		balance = &Balance{
			AccountID: id,
			Address:   addr.String(),
			SUDTID:    sudtID,
			Balance:   (*math.HexOrDecimal256)(v.ToBig()),
		}
		return nil
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, balance)
}

func (a *Accounts) handleGetStorage(w http.ResponseWriter, req *http.Request) error {
	key, err := gw.ParseBytes32(mux.Vars(req)["key"])
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "key"))
	}
	var storage Storage
	if err := a.view(req, func(st *state.State, id uint32) (err error) {
		storage.Value, err = st.GetValue(id, key[:])
		return err
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, &storage)
}

func (a *Accounts) handleGetNonce(w http.ResponseWriter, req *http.Request) error {
	var nonce Nonce
	if err := a.view(req, func(st *state.State, id uint32) (err error) {
		nonce.AccountID = id
		nonce.Nonce, err = st.GetNonce(id)
		return err
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, &nonce)
}

func (a *Accounts) handleGetScriptHash(w http.ResponseWriter, req *http.Request) error {
	var hash ScriptHash
	if err := a.view(req, func(st *state.State, id uint32) (err error) {
		hash.AccountID = id
		hash.ScriptHash, err = st.GetScriptHash(id)
		return err
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, &hash)
}

func (a *Accounts) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/{id}/balance").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(a.handleGetBalance))
	sub.Path("/{id}/storage/{key}").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(a.handleGetStorage))
	sub.Path("/{id}/nonce").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(a.handleGetNonce))
	sub.Path("/{id}/script-hash").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(a.handleGetScriptHash))
}
