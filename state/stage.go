// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"github.com/godwokenrises/godwoken-sub004/codec"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/kv"
)

// Committer is a tree able to persist its pending nodes.
type Committer interface {
	Commit(w kv.Putter) error
}

// Stage abstracts changes on the account tree.
type Stage struct {
	account gw.AccountMerkleState
	tree    Tree
	scripts map[gw.Bytes32]*gw.Script
	data    map[gw.Bytes32][]byte
}

// Account returns the account merkle state after changes.
func (s *Stage) Account() gw.AccountMerkleState {
	return s.account
}

// Commit writes tree nodes, scripts and data. A tree not implementing Committer commits nothing,
// which is the case of witness trees.
func (s *Stage) Commit(w kv.Putter) error {
	if c, ok := s.tree.(Committer); ok {
		if err := c.Commit(kv.Bucket(AccountTreeName).NewPutter(w)); err != nil {
			return &Error{err}
		}
	}
	scripts := kv.Bucket(scriptStoreName).NewPutter(w)
	for hash, script := range s.scripts {
		if script == nil {
			continue
		}
		data, err := codec.Encode(script)
		if err != nil {
			return &Error{err}
		}
		if err := scripts.Put(hash[:], data); err != nil {
			return &Error{err}
		}
	}
	datas := kv.Bucket(dataStoreName).NewPutter(w)
	for hash, data := range s.data {
		if data == nil {
			continue
		}
		if err := datas.Put(hash[:], data); err != nil {
			return &Error{err}
		}
	}
	return nil
}
