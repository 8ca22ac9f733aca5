// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"github.com/pkg/errors"

	"github.com/godwokenrises/godwoken-sub004/codec"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/kv"
	"github.com/godwokenrises/godwoken-sub004/smt"
)

var errWitnessNotFound = errors.New("not found in witness")

// WitnessSide is a side store made of the scripts and data carried by a verification context.
type WitnessSide map[string][]byte

// NewWitnessSide builds a side store from scripts and data.
func NewWitnessSide(scripts []*gw.Script, data [][]byte) (WitnessSide, error) {
	side := make(WitnessSide)
	for _, script := range scripts {
		enc, err := codec.Encode(script)
		if err != nil {
			return nil, err
		}
		hash := script.Hash()
		side[string(append([]byte(scriptStoreName), hash[:]...))] = enc
	}
	for _, d := range data {
		hash := gw.Blake2b(d)
		side[string(append([]byte(dataStoreName), hash[:]...))] = d
	}
	return side, nil
}

// Get implements kv.Getter.
func (w WitnessSide) Get(key []byte) ([]byte, error) {
	if v, ok := w[string(key)]; ok {
		return v, nil
	}
	return nil, errWitnessNotFound
}

// Has implements kv.Getter.
func (w WitnessSide) Has(key []byte) (bool, error) {
	_, ok := w[string(key)]
	return ok, nil
}

// IsNotFound implements kv.Getter.
func (w WitnessSide) IsNotFound(err error) bool { return errors.Is(err, errWitnessNotFound) }

var _ kv.Getter = WitnessSide(nil)

// NewWitnessState creates a state over the proven pairs of a compiled proof. Reading or writing a
// key outside the pairs fails with a state Error.
func NewWitnessState(prev gw.AccountMerkleState, keys, values []gw.Bytes32, proof smt.Proof, side kv.Getter) (*State, error) {
	tree, err := smt.NewPartialTree(prev.MerkleRoot, keys, values, proof)
	if err != nil {
		return nil, err
	}
	return New(tree, side, prev.Count), nil
}
