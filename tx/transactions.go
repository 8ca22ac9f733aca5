// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tx

import (
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/smt"
)

// Transactions a slice of transactions.
type Transactions []*Transaction

// WitnessRoot returns the root of the witness hashes keyed by index.
func (txs Transactions) WitnessRoot() gw.Bytes32 {
	hashes := make([]gw.Bytes32, len(txs))
	for i, tx := range txs {
		hashes[i] = tx.WitnessHash()
	}
	return WitnessRoot(hashes)
}

// WitnessRoot returns the root of a tree mapping index LE4 to hashes[index].
func WitnessRoot(hashes []gw.Bytes32) gw.Bytes32 {
	return witnessTree(hashes).Root()
}

// WitnessProof proves the witness hash at index against WitnessRoot(hashes).
func WitnessProof(hashes []gw.Bytes32, index uint32) (smt.Proof, error) {
	return witnessTree(hashes).MerkleProof([]gw.Bytes32{gw.Uint32ToBytes32(index)})
}

// VerifyWitness checks that hash is at index under root.
func VerifyWitness(root gw.Bytes32, index uint32, hash gw.Bytes32, proof smt.Proof) bool {
	return smt.Verify(root, []gw.Bytes32{gw.Uint32ToBytes32(index)}, []gw.Bytes32{hash}, proof)
}

func witnessTree(hashes []gw.Bytes32) *smt.Tree {
	tree := smt.NewMemTree()
	for i, h := range hashes {
		// in-memory trees never load persisted nodes
		_ = tree.Update(gw.Uint32ToBytes32(uint32(i)), h)
	}
	return tree
}
