// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package xenv

// Syscall numbers.
const (
	SysStore                          = 3051
	SysLoad                           = 3052
	SysSetReturnData                  = 3061
	SysCreate                         = 3071
	SysLoadTransaction                = 4051
	SysLoadBlockInfo                  = 4052
	SysLoadScriptHashByAccountID      = 4053
	SysLoadAccountIDByScriptHash      = 4054
	SysLoadAccountScript              = 4055
	SysStoreData                      = 4056
	SysLoadData                       = 4057
	SysGetRegistryAddressByScriptHash = 4058
	SysGetScriptHashByRegistryAddress = 4059
	SysLog                            = 4061
)

// cycle costs.
const (
	// CyclesBackendBase is charged once per backend run.
	CyclesBackendBase = 10_000
	// CyclesScriptStep is charged per loop iteration and function call of an external backend.
	CyclesScriptStep = 1_000
	cyclesPerByte     = 1
)

var syscallCycles = map[int]uint64{
	SysStore:                          2_000,
	SysLoad:                           1_000,
	SysSetReturnData:                  500,
	SysCreate:                         5_000,
	SysLoadTransaction:                500,
	SysLoadBlockInfo:                  500,
	SysLoadScriptHashByAccountID:      1_000,
	SysLoadAccountIDByScriptHash:      1_000,
	SysLoadAccountScript:              1_000,
	SysStoreData:                      3_000,
	SysLoadData:                       1_500,
	SysGetRegistryAddressByScriptHash: 1_000,
	SysGetScriptHashByRegistryAddress: 1_000,
	SysLog:                            500,
}

// CycleMeter counts cycles against a limit.
type CycleMeter struct {
	limit uint64
	used  uint64
}

// NewCycleMeter creates a meter with limit.
func NewCycleMeter(limit uint64) *CycleMeter {
	return &CycleMeter{limit: limit}
}

// Limit returns the limit.
func (m *CycleMeter) Limit() uint64 { return m.limit }

// Used returns the cycles consumed, never more than the limit.
func (m *CycleMeter) Used() uint64 { return m.used }

// Charge consumes n cycles. Once the limit is reached the meter stays exhausted.
func (m *CycleMeter) Charge(n uint64) error {
	if n > m.limit-m.used {
		m.used = m.limit
		return ErrExceededCycles
	}
	m.used += n
	return nil
}

// ChargeSyscall consumes the cost of a syscall moving size bytes.
func (m *CycleMeter) ChargeSyscall(number int, size int) error {
	return m.Charge(syscallCycles[number] + uint64(size)*cyclesPerByte)
}
