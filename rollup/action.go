// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rollup

import (
	"github.com/pkg/errors"
	"github.com/spacemeshos/go-scale"

	"github.com/godwokenrises/godwoken-sub004/block"
	"github.com/godwokenrises/godwoken-sub004/codec"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/smt"
	"github.com/godwokenrises/godwoken-sub004/tx"
)

// MaxRevertedBlocks limits the blocks reverted by one action.
const MaxRevertedBlocks = 128

const (
	maxProofSize   = 1 << 20
	maxWitnessKeys = 1 << 12
	maxWitnessData = 1 << 10
)

// action tags of the encoded union.
const (
	tagSubmitBlock     byte = 0
	tagEnterChallenge  byte = 1
	tagCancelChallenge byte = 2
	tagRevert          byte = 3
)

// Action is a rollup action carried by the base chain transaction that updates the rollup cell.
// The variants are SubmitBlock, EnterChallenge, CancelChallenge and Revert.
type Action interface {
	scale.Encodable
	scale.Decodable
	Name() string
	tag() byte
}

// SubmitBlock commits a new block.
type SubmitBlock struct {
	Block *block.Block
	// BlockProof proves the block number absent from the block tree.
	BlockProof smt.Proof
	// RevertedBlockHashes are the reverted blocks whose cells the transaction reconciles.
	RevertedBlockHashes []gw.Bytes32
	// RevertedBlockProof proves the hashes present in the reverted block tree.
	RevertedBlockProof smt.Proof
}

// EnterChallenge halts the rollup on a challenge of one operation of a committed block.
type EnterChallenge struct {
	Header *block.Header
	// BlockProof proves the header hash present in the block tree.
	BlockProof smt.Proof
}

// CancelChallenge resumes the rollup by replaying the challenged operation.
type CancelChallenge struct {
	Verify *VerifyContext
}

// Revert resumes the rollup after a matured challenge, reverting the challenged block and all
// its descendants.
type Revert struct {
	// Headers from the challenged block to the tip.
	Headers []*block.Header
	// BlockProof proves the header hashes present in the block tree.
	BlockProof smt.Proof
	// RevertedBlockProof proves the header hashes absent from the reverted block tree.
	RevertedBlockProof smt.Proof
}

func (*SubmitBlock) Name() string     { return "submit-block" }
func (*EnterChallenge) Name() string  { return "enter-challenge" }
func (*CancelChallenge) Name() string { return "cancel-challenge" }
func (*Revert) Name() string          { return "revert" }

func (*SubmitBlock) tag() byte     { return tagSubmitBlock }
func (*EnterChallenge) tag() byte  { return tagEnterChallenge }
func (*CancelChallenge) tag() byte { return tagCancelChallenge }
func (*Revert) tag() byte          { return tagRevert }

// EncodeAction encodes an action as a tagged union.
func EncodeAction(a Action) ([]byte, error) {
	body, err := codec.Encode(a)
	if err != nil {
		return nil, err
	}
	return append([]byte{a.tag()}, body...), nil
}

// DecodeAction decodes an action written by EncodeAction.
func DecodeAction(data []byte) (Action, error) {
	if len(data) == 0 {
		return nil, errors.New("empty rollup action")
	}
	var a Action
	switch data[0] {
	case tagSubmitBlock:
		a = new(SubmitBlock)
	case tagEnterChallenge:
		a = new(EnterChallenge)
	case tagCancelChallenge:
		a = new(CancelChallenge)
	case tagRevert:
		a = new(Revert)
	default:
		return nil, errors.Errorf("unknown rollup action %d", data[0])
	}
	if err := codec.Decode(data[1:], a); err != nil {
		return nil, err
	}
	return a, nil
}

func encodeProofs(e *scale.Encoder, proofs ...smt.Proof) (total int, err error) {
	for _, p := range proofs {
		n, err := scale.EncodeByteSliceWithLimit(e, p, maxProofSize)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func decodeProofs(d *scale.Decoder, proofs ...*smt.Proof) (total int, err error) {
	for _, p := range proofs {
		field, n, err := scale.DecodeByteSliceWithLimit(d, maxProofSize)
		if err != nil {
			return total, err
		}
		total += n
		*p = field
	}
	return total, nil
}

// EncodeScale implements scale codec interface.
func (a *SubmitBlock) EncodeScale(e *scale.Encoder) (total int, err error) {
	{
		n, err := a.Block.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := encodeProofs(e, a.BlockProof)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := codec.EncodeHashes(e, a.RevertedBlockHashes, MaxRevertedBlocks)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := encodeProofs(e, a.RevertedBlockProof)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (a *SubmitBlock) DecodeScale(d *scale.Decoder) (total int, err error) {
	{
		a.Block = new(block.Block)
		n, err := a.Block.DecodeScale(d)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := decodeProofs(d, &a.BlockProof)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := codec.DecodeHashes[gw.Bytes32](d, MaxRevertedBlocks)
		if err != nil {
			return total, err
		}
		total += n
		a.RevertedBlockHashes = field
	}
	{
		n, err := decodeProofs(d, &a.RevertedBlockProof)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// EncodeScale implements scale codec interface.
func (a *EnterChallenge) EncodeScale(e *scale.Encoder) (total int, err error) {
	{
		n, err := a.Header.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := encodeProofs(e, a.BlockProof)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (a *EnterChallenge) DecodeScale(d *scale.Decoder) (total int, err error) {
	{
		a.Header = new(block.Header)
		n, err := a.Header.DecodeScale(d)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := decodeProofs(d, &a.BlockProof)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// EncodeScale implements scale codec interface.
func (a *CancelChallenge) EncodeScale(e *scale.Encoder) (int, error) {
	return a.Verify.EncodeScale(e)
}

// DecodeScale implements scale codec interface.
func (a *CancelChallenge) DecodeScale(d *scale.Decoder) (int, error) {
	a.Verify = new(VerifyContext)
	return a.Verify.DecodeScale(d)
}

// EncodeScale implements scale codec interface.
func (a *Revert) EncodeScale(e *scale.Encoder) (total int, err error) {
	{
		n, err := codec.EncodeSlice(e, a.Headers, MaxRevertedBlocks)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := encodeProofs(e, a.BlockProof, a.RevertedBlockProof)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (a *Revert) DecodeScale(d *scale.Decoder) (total int, err error) {
	{
		field, n, err := codec.DecodeSlice[block.Header](d, MaxRevertedBlocks)
		if err != nil {
			return total, err
		}
		total += n
		a.Headers = field
	}
	{
		n, err := decodeProofs(d, &a.BlockProof, &a.RevertedBlockProof)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// VerifyContext is the evidence replaying one operation of a committed block. The account state
// before the operation is given by the proven key value pairs, scripts and data.
type VerifyContext struct {
	Target ChallengeTarget
	Header *block.Header
	// BlockProof proves the header hash present in the block tree.
	BlockProof smt.Proof
	// PrevAccount is the account state before the operation. Its checkpoint is committed by the header.
	PrevAccount gw.AccountMerkleState
	// Transaction is set for transaction targets, Withdrawal for withdrawal targets.
	Transaction *tx.Transaction
	Withdrawal  *tx.Withdrawal
	// WitnessProof proves the operation in the witness root of the header.
	WitnessProof smt.Proof
	Keys         []gw.Bytes32
	Values       []gw.Bytes32
	StateProof   smt.Proof
	Scripts      []*gw.Script
	Data         [][]byte
}

// EncodeScale implements scale codec interface.
func (v *VerifyContext) EncodeScale(e *scale.Encoder) (total int, err error) {
	{
		n, err := v.Target.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := v.Header.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := encodeProofs(e, v.BlockProof)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := v.PrevAccount.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		var n int
		switch {
		case v.Target.TargetType == TargetTransaction && v.Transaction != nil:
			n, err = v.Transaction.EncodeScale(e)
		case v.Target.TargetType == TargetWithdrawal && v.Withdrawal != nil:
			n, err = v.Withdrawal.EncodeScale(e)
		default:
			err = errors.Errorf("missing %v of the target", v.Target.TargetType)
		}
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := encodeProofs(e, v.WitnessProof)
		if err != nil {
			return total, err
		}
		total += n
	}
	for _, hashes := range [][]gw.Bytes32{v.Keys, v.Values} {
		n, err := codec.EncodeHashes(e, hashes, maxWitnessKeys)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := encodeProofs(e, v.StateProof)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := codec.EncodeSlice(e, v.Scripts, maxWitnessData)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		if len(v.Data) > maxWitnessData {
			return total, errors.Errorf("%d data items exceed limit", len(v.Data))
		}
		n, err := scale.EncodeCompact32(e, uint32(len(v.Data)))
		if err != nil {
			return total, err
		}
		total += n
		for _, item := range v.Data {
			n, err := scale.EncodeByteSliceWithLimit(e, item, gw.MaxReadDataBytes)
			if err != nil {
				return total, err
			}
			total += n
		}
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (v *VerifyContext) DecodeScale(d *scale.Decoder) (total int, err error) {
	{
		n, err := v.Target.DecodeScale(d)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		v.Header = new(block.Header)
		n, err := v.Header.DecodeScale(d)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := decodeProofs(d, &v.BlockProof)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := v.PrevAccount.DecodeScale(d)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		var n int
		if v.Target.TargetType == TargetTransaction {
			v.Transaction = new(tx.Transaction)
			n, err = v.Transaction.DecodeScale(d)
		} else {
			v.Withdrawal = new(tx.Withdrawal)
			n, err = v.Withdrawal.DecodeScale(d)
		}
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := decodeProofs(d, &v.WitnessProof)
		if err != nil {
			return total, err
		}
		total += n
	}
	for _, hashes := range []*[]gw.Bytes32{&v.Keys, &v.Values} {
		field, n, err := codec.DecodeHashes[gw.Bytes32](d, maxWitnessKeys)
		if err != nil {
			return total, err
		}
		total += n
		*hashes = field
	}
	{
		n, err := decodeProofs(d, &v.StateProof)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := codec.DecodeSlice[gw.Script](d, maxWitnessData)
		if err != nil {
			return total, err
		}
		total += n
		v.Scripts = field
	}
	{
		count, n, err := scale.DecodeCompact32(d)
		if err != nil {
			return total, err
		}
		total += n
		if count > maxWitnessData {
			return total, errors.Errorf("%d data items exceed limit", count)
		}
		v.Data = nil
		for range count {
			item, n, err := scale.DecodeByteSliceWithLimit(d, gw.MaxReadDataBytes)
			if err != nil {
				return total, err
			}
			total += n
			v.Data = append(v.Data, item)
		}
	}
	return total, nil
}
