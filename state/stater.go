// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/kv"
	"github.com/godwokenrises/godwoken-sub004/smt"
)

// Stater is the state creator.
type Stater struct {
	db    *smt.Database
	store kv.Store
}

// NewStater create a new stater. cacheSize bounds the number of cached tree nodes.
func NewStater(store kv.Store, cacheSize int) *Stater {
	return &Stater{
		db:    smt.NewDatabase(kv.Bucket(AccountTreeName).NewGetter(store), cacheSize),
		store: store,
	}
}

// NewState create a new state object at the given account merkle state.
func (s *Stater) NewState(account gw.AccountMerkleState) *State {
	return New(s.db.NewTree(account.MerkleRoot), s.store, account.Count)
}

// MerkleProof proves keys against the committed tree of root.
func (s *Stater) MerkleProof(root gw.Bytes32, keys []gw.Bytes32) (smt.Proof, error) {
	return s.db.NewTree(root).MerkleProof(keys)
}

// Store returns the underlying store.
func (s *Stater) Store() kv.Store {
	return s.store
}

// NewTree returns a mutable tree at root. A state created over it with New shares its modifications.
func (s *Stater) NewTree(root gw.Bytes32) *smt.Tree {
	return s.db.NewTree(root)
}
