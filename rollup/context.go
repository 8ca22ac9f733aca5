// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rollup

import (
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/godwokenrises/godwoken-sub004/codec"
	"github.com/godwokenrises/godwoken-sub004/gw"
)

// Cell is a base chain cell.
type Cell struct {
	Capacity uint64
	Lock     gw.Script
	Type     *gw.Script
	Data     []byte
}

// SUDTAmount returns the sUDT amount held by the cell, read from the first 16 bytes of its data.
func (c *Cell) SUDTAmount() *uint256.Int {
	if len(c.Data) < 16 {
		return new(uint256.Int)
	}
	return codec.U128FromLE(c.Data[:16])
}

// Input is a cell consumed by a base chain transaction.
type Input struct {
	Cell
	// Since counts the base chain blocks since the cell was committed.
	Since uint64
}

// Context is the base chain transaction a rollup action or an unlock is validated in.
type Context struct {
	Inputs  []*Input
	Outputs []*Cell
}

func (c *Context) hasInputLock(lockHash gw.Bytes32) bool {
	for _, in := range c.Inputs {
		if in.Lock.Hash() == lockHash {
			return true
		}
	}
	return false
}

func (c *Context) hasInputCode(codeHash gw.Bytes32) bool {
	for _, in := range c.Inputs {
		if in.Lock.CodeHash == codeHash {
			return true
		}
	}
	return false
}

var errCapacityOverflow = errors.New("capacity overflow")

// sumCapacity adds up the capacities picked from cells.
func sumCapacity[T any](cells []T, capacity func(T) (uint64, bool)) (uint64, error) {
	var total uint64
	for _, c := range cells {
		v, ok := capacity(c)
		if !ok {
			continue
		}
		var overflow bool
		if total, overflow = math.SafeAdd(total, v); overflow {
			return 0, errCapacityOverflow
		}
	}
	return total, nil
}

// receivedCapacity returns the capacity gained by lockHash, outputs minus inputs, saturating at zero.
func (c *Context) receivedCapacity(lockHash gw.Bytes32) (uint64, error) {
	in, err := sumCapacity(c.Inputs, func(in *Input) (uint64, bool) {
		return in.Capacity, in.Lock.Hash() == lockHash
	})
	if err != nil {
		return 0, err
	}
	out, err := sumCapacity(c.Outputs, func(out *Cell) (uint64, bool) {
		return out.Capacity, out.Lock.Hash() == lockHash
	})
	if err != nil {
		return 0, err
	}
	if out < in {
		return 0, nil
	}
	return out - in, nil
}

// checkReceived checks every lock hash gains at least its required capacity.
func (c *Context) checkReceived(required map[gw.Bytes32]uint64) error {
	for lockHash, want := range required {
		got, err := c.receivedCapacity(lockHash)
		if err != nil {
			return err
		}
		if got < want {
			return errors.Errorf("lock %v received %d, want %d", lockHash, got, want)
		}
	}
	return nil
}
