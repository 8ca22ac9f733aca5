// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tx

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/godwokenrises/godwoken-sub004/gw"
)

// SigningMessage returns the digest an ethereum wallet signs for a layer2 hash: the personal
// message hash of blake2b(rollup_script_hash | hash).
func SigningMessage(rollupScriptHash, hash gw.Bytes32) gw.Bytes32 {
	inner := gw.Blake2b(rollupScriptHash[:], hash[:])
	return gw.BytesToBytes32(accounts.TextHash(inner[:]))
}

// SignMessage signs message with pk.
func SignMessage(message gw.Bytes32, pk *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(message[:], pk)
	if err != nil {
		return nil, errors.Wrap(err, "sign")
	}
	return sig, nil
}

// Sign signs a transaction with pk.
func Sign(tx *Transaction, rollupScriptHash gw.Bytes32, pk *ecdsa.PrivateKey) (*Transaction, error) {
	sig, err := SignMessage(SigningMessage(rollupScriptHash, tx.Hash()), pk)
	if err != nil {
		return nil, err
	}
	return tx.WithSignature(sig), nil
}

// MustSign is like Sign but panics on error.
func MustSign(tx *Transaction, rollupScriptHash gw.Bytes32, pk *ecdsa.PrivateKey) *Transaction {
	signed, err := Sign(tx, rollupScriptHash, pk)
	if err != nil {
		panic(err)
	}
	return signed
}

// RecoverSigner returns the address whose key produced sig over message. Both 0/1 and 27/28
// recovery ids are accepted.
func RecoverSigner(message gw.Bytes32, sig []byte) (gw.Address, error) {
	if len(sig) != SignatureLength {
		return gw.Address{}, errors.Errorf("invalid signature length %d", len(sig))
	}
	normalized := append([]byte(nil), sig...)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := crypto.SigToPub(message[:], normalized)
	if err != nil {
		return gw.Address{}, errors.Wrap(err, "recover")
	}
	return gw.Address(crypto.PubkeyToAddress(*pub)), nil
}
