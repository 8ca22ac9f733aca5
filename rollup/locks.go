// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rollup

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/spacemeshos/go-scale"

	"github.com/godwokenrises/godwoken-sub004/codec"
	"github.com/godwokenrises/godwoken-sub004/gw"
)

// TargetType is the kind of operation a challenge targets.
type TargetType byte

// challenge target types.
const (
	TargetTransaction TargetType = 0
	TargetWithdrawal  TargetType = 1
)

func (t TargetType) String() string {
	switch t {
	case TargetTransaction:
		return "transaction"
	case TargetWithdrawal:
		return "withdrawal"
	default:
		return "unknown"
	}
}

// ChallengeTarget names one operation of a committed block.
type ChallengeTarget struct {
	BlockHash   gw.Bytes32 `json:"blockHash"`
	BlockNumber uint64     `json:"blockNumber"`
	TargetIndex uint32     `json:"targetIndex"`
	TargetType  TargetType `json:"targetType"`
}

// EncodeScale implements scale codec interface.
func (t *ChallengeTarget) EncodeScale(e *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeByteArray(e, t.BlockHash[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeUint64(e, t.BlockNumber)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeUint32(e, t.TargetIndex)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByte(e, byte(t.TargetType))
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (t *ChallengeTarget) DecodeScale(d *scale.Decoder) (total int, err error) {
	{
		n, err := scale.DecodeByteArray(d, t.BlockHash[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := scale.DecodeUint64(d)
		if err != nil {
			return total, err
		}
		total += n
		t.BlockNumber = field
	}
	{
		field, n, err := scale.DecodeUint32(d)
		if err != nil {
			return total, err
		}
		total += n
		t.TargetIndex = field
	}
	{
		field, n, err := scale.DecodeByte(d)
		if err != nil {
			return total, err
		}
		total += n
		if field > byte(TargetWithdrawal) {
			return total, errors.Errorf("invalid target type %d", field)
		}
		t.TargetType = TargetType(field)
	}
	return total, nil
}

// StakeLockArgs locks the stake of a block producer.
type StakeLockArgs struct {
	OwnerLockHash    gw.Bytes32
	StakeBlockNumber uint64
}

// EncodeScale implements scale codec interface.
func (a *StakeLockArgs) EncodeScale(e *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeByteArray(e, a.OwnerLockHash[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeUint64(e, a.StakeBlockNumber)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (a *StakeLockArgs) DecodeScale(d *scale.Decoder) (total int, err error) {
	{
		n, err := scale.DecodeByteArray(d, a.OwnerLockHash[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := scale.DecodeUint64(d)
		if err != nil {
			return total, err
		}
		total += n
		a.StakeBlockNumber = field
	}
	return total, nil
}

// DepositLockArgs locks a deposit waiting to be collected by a block.
type DepositLockArgs struct {
	OwnerLockHash gw.Bytes32
	Layer2Lock    gw.Script
	// CancelTimeout counts base chain blocks since the deposit cell was committed.
	CancelTimeout uint64
	RegistryID    uint32
}

// Equal compares two deposit lock args.
func (a *DepositLockArgs) Equal(o *DepositLockArgs) bool {
	return a.OwnerLockHash == o.OwnerLockHash &&
		a.Layer2Lock.Equal(&o.Layer2Lock) &&
		a.CancelTimeout == o.CancelTimeout &&
		a.RegistryID == o.RegistryID
}

// EncodeScale implements scale codec interface.
func (a *DepositLockArgs) EncodeScale(e *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeByteArray(e, a.OwnerLockHash[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := a.Layer2Lock.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeUint64(e, a.CancelTimeout)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeUint32(e, a.RegistryID)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (a *DepositLockArgs) DecodeScale(d *scale.Decoder) (total int, err error) {
	{
		n, err := scale.DecodeByteArray(d, a.OwnerLockHash[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := a.Layer2Lock.DecodeScale(d)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := scale.DecodeUint64(d)
		if err != nil {
			return total, err
		}
		total += n
		a.CancelTimeout = field
	}
	{
		field, n, err := scale.DecodeUint32(d)
		if err != nil {
			return total, err
		}
		total += n
		a.RegistryID = field
	}
	return total, nil
}

// CustodianLockArgs locks deposited assets, keyed by the block that collected the deposit.
type CustodianLockArgs struct {
	DepositBlockHash   gw.Bytes32
	DepositBlockNumber uint64
	DepositLockArgs    DepositLockArgs
}

// EncodeScale implements scale codec interface.
func (a *CustodianLockArgs) EncodeScale(e *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeByteArray(e, a.DepositBlockHash[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeUint64(e, a.DepositBlockNumber)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := a.DepositLockArgs.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (a *CustodianLockArgs) DecodeScale(d *scale.Decoder) (total int, err error) {
	{
		n, err := scale.DecodeByteArray(d, a.DepositBlockHash[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := scale.DecodeUint64(d)
		if err != nil {
			return total, err
		}
		total += n
		a.DepositBlockNumber = field
	}
	{
		n, err := a.DepositLockArgs.DecodeScale(d)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// WithdrawalLockArgs locks withdrawn assets, keyed by the block that applied the withdrawal.
type WithdrawalLockArgs struct {
	AccountScriptHash     gw.Bytes32
	WithdrawalBlockHash   gw.Bytes32
	WithdrawalBlockNumber uint64
	OwnerLockHash         gw.Bytes32
}

// EncodeScale implements scale codec interface.
func (a *WithdrawalLockArgs) EncodeScale(e *scale.Encoder) (total int, err error) {
	for _, h := range []*gw.Bytes32{&a.AccountScriptHash, &a.WithdrawalBlockHash} {
		n, err := scale.EncodeByteArray(e, h[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeUint64(e, a.WithdrawalBlockNumber)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteArray(e, a.OwnerLockHash[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (a *WithdrawalLockArgs) DecodeScale(d *scale.Decoder) (total int, err error) {
	for _, h := range []*gw.Bytes32{&a.AccountScriptHash, &a.WithdrawalBlockHash} {
		n, err := scale.DecodeByteArray(d, h[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := scale.DecodeUint64(d)
		if err != nil {
			return total, err
		}
		total += n
		a.WithdrawalBlockNumber = field
	}
	{
		n, err := scale.DecodeByteArray(d, a.OwnerLockHash[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// ChallengeLockArgs locks the collateral of a challenge.
type ChallengeLockArgs struct {
	Target              ChallengeTarget
	RewardsReceiverLock gw.Script
}

// EncodeScale implements scale codec interface.
func (a *ChallengeLockArgs) EncodeScale(e *scale.Encoder) (total int, err error) {
	{
		n, err := a.Target.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := a.RewardsReceiverLock.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (a *ChallengeLockArgs) DecodeScale(d *scale.Decoder) (total int, err error) {
	{
		n, err := a.Target.DecodeScale(d)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := a.RewardsReceiverLock.DecodeScale(d)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// LockScript builds a base chain lock of the rollup. Its args are the rollup script hash followed
// by the encoded lock args.
func LockScript(codeHash, rollupScriptHash gw.Bytes32, args scale.Encodable) (gw.Script, error) {
	enc, err := codec.Encode(args)
	if err != nil {
		return gw.Script{}, err
	}
	return gw.Script{
		CodeHash: codeHash,
		HashType: gw.HashTypeType,
		Args:     append(rollupScriptHash.Bytes(), enc...),
	}, nil
}

func parseLockArgs(lock *gw.Script, rollupScriptHash gw.Bytes32, args scale.Decodable) error {
	if !bytes.HasPrefix(lock.Args, rollupScriptHash[:]) {
		return errors.New("lock args without rollup script hash")
	}
	return codec.Decode(lock.Args[len(rollupScriptHash):], args)
}
