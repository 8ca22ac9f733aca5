// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package xenv

import (
	"github.com/spacemeshos/go-scale"

	"github.com/godwokenrises/godwoken-sub004/codec"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/state"
	"github.com/godwokenrises/godwoken-sub004/tx"
)

// BlockInfo is the block context visible to backends.
type BlockInfo struct {
	Number        uint64
	Timestamp     uint64
	BlockProducer gw.RegistryAddress
}

// EncodeScale implements scale codec interface.
func (b *BlockInfo) EncodeScale(e *scale.Encoder) (total int, err error) {
	for _, v := range []uint64{b.Number, b.Timestamp} {
		n, err := scale.EncodeUint64(e, v)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := b.BlockProducer.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// Environment is the context of one transaction run. It's created per transaction and
// discarded afterwards.
type Environment struct {
	config        *gw.Config
	state         *state.State
	blockInfo     *BlockInfo
	tx            *tx.Transaction
	meter         *CycleMeter
	maxReturnData int

	returnData    []byte
	logs          []*tx.Log
	readData      map[gw.Bytes32]int
	readDataOrder []gw.Bytes32
	readDataBytes int
}

// New create a new env.
func New(config *gw.Config, st *state.State, blockInfo *BlockInfo, trx *tx.Transaction, maxCycles uint64) *Environment {
	return &Environment{
		config:        config,
		state:         st,
		blockInfo:     blockInfo,
		tx:            trx,
		meter:         NewCycleMeter(maxCycles),
		maxReturnData: gw.MaxReturnDataSize,
		readData:      make(map[gw.Bytes32]int),
	}
}

func (env *Environment) Config() *gw.Config           { return env.config }
func (env *Environment) State() *state.State          { return env.state }
func (env *Environment) BlockInfo() *BlockInfo        { return env.blockInfo }
func (env *Environment) Transaction() *tx.Transaction { return env.tx }
func (env *Environment) Meter() *CycleMeter           { return env.meter }
func (env *Environment) ReturnData() []byte           { return env.returnData }
func (env *Environment) Logs() []*tx.Log              { return env.logs }

// AccountID returns the id of the account being called.
func (env *Environment) AccountID() uint32 { return env.tx.ToID() }

// Sender returns the id of the sender account.
func (env *Environment) Sender() uint32 { return env.tx.FromID() }

// SetMaxReturnData raises or lowers the return data limit, used by external backends.
func (env *Environment) SetMaxReturnData(n int) { env.maxReturnData = n }

// ReadDataHashes returns hashes of data loaded, in first load order.
func (env *Environment) ReadDataHashes() []gw.Bytes32 {
	return append([]gw.Bytes32(nil), env.readDataOrder...)
}

// Charge consumes cycles of backend computation.
func (env *Environment) Charge(cycles uint64) error {
	return env.meter.Charge(cycles)
}

// Store writes a raw tree value.
func (env *Environment) Store(key, value gw.Bytes32) error {
	if err := env.meter.ChargeSyscall(SysStore, 64); err != nil {
		return err
	}
	env.state.UpdateRaw(key, value)
	return nil
}

// Load reads a raw tree value.
func (env *Environment) Load(key gw.Bytes32) (gw.Bytes32, error) {
	if err := env.meter.ChargeSyscall(SysLoad, 32); err != nil {
		return gw.Bytes32{}, err
	}
	return env.state.GetRaw(key)
}

// StoreValue writes key of the kv space of account id.
func (env *Environment) StoreValue(id uint32, key []byte, value gw.Bytes32) error {
	return env.Store(state.AccountKey(id, key), value)
}

// LoadValue reads key of the kv space of account id.
func (env *Environment) LoadValue(id uint32, key []byte) (gw.Bytes32, error) {
	return env.Load(state.AccountKey(id, key))
}

// SetReturnData sets the data returned to the caller.
func (env *Environment) SetReturnData(data []byte) error {
	if len(data) > env.maxReturnData {
		return ErrExceededMaxReturnData
	}
	if err := env.meter.ChargeSyscall(SysSetReturnData, len(data)); err != nil {
		return err
	}
	env.returnData = append([]byte(nil), data...)
	return nil
}

// Create creates an account for script and returns its id.
func (env *Environment) Create(script *gw.Script) (uint32, error) {
	if err := env.meter.ChargeSyscall(SysCreate, len(script.Args)); err != nil {
		return 0, err
	}
	if len(script.Args) < 32 || gw.BytesToBytes32(script.Args[:32]) != env.config.RollupScriptHash {
		return 0, Exit(ExitErrorInvalidAccountScript, "script args must start with the rollup script hash")
	}
	hash := env.state.InsertScript(script)
	id, err := env.state.CreateAccount(hash)
	if err != nil {
		if state.IsDuplicatedScriptHash(err) {
			return 0, Exit(ExitErrorDuplicatedScriptHash, "script %v exists", hash)
		}
		return 0, err
	}
	return id, nil
}

// LoadTransaction returns the encoded transaction.
func (env *Environment) LoadTransaction() ([]byte, error) {
	data, err := codec.Encode(env.tx)
	if err != nil {
		return nil, err
	}
	if err := env.meter.ChargeSyscall(SysLoadTransaction, len(data)); err != nil {
		return nil, err
	}
	return data, nil
}

// LoadBlockInfo returns the encoded block info.
func (env *Environment) LoadBlockInfo() ([]byte, error) {
	data, err := codec.Encode(env.blockInfo)
	if err != nil {
		return nil, err
	}
	if err := env.meter.ChargeSyscall(SysLoadBlockInfo, len(data)); err != nil {
		return nil, err
	}
	return data, nil
}

// LoadScriptHashByAccountID returns the script hash of account id.
func (env *Environment) LoadScriptHashByAccountID(id uint32) (gw.Bytes32, error) {
	if err := env.meter.ChargeSyscall(SysLoadScriptHashByAccountID, 32); err != nil {
		return gw.Bytes32{}, err
	}
	hash, err := env.state.GetScriptHash(id)
	if err != nil {
		return gw.Bytes32{}, err
	}
	if hash.IsZero() {
		return gw.Bytes32{}, Exit(ExitErrorAccountNotExists, "account %d", id)
	}
	return hash, nil
}

// LoadAccountIDByScriptHash returns the id of the account bound to hash.
func (env *Environment) LoadAccountIDByScriptHash(hash gw.Bytes32) (uint32, error) {
	if err := env.meter.ChargeSyscall(SysLoadAccountIDByScriptHash, 32); err != nil {
		return 0, err
	}
	id, exist, err := env.state.GetAccountIDByScriptHash(hash)
	if err != nil {
		return 0, err
	}
	if !exist {
		return 0, Exit(ExitErrorNotFound, "script hash %v", hash)
	}
	return id, nil
}

// LoadAccountScript returns the script of account id.
func (env *Environment) LoadAccountScript(id uint32) (*gw.Script, error) {
	hash, err := env.LoadScriptHashByAccountID(id)
	if err != nil {
		return nil, err
	}
	script, err := env.state.GetScript(hash)
	if err != nil {
		return nil, err
	}
	if script == nil {
		return nil, Exit(ExitErrorNotFound, "script %v", hash)
	}
	if err := env.meter.ChargeSyscall(SysLoadAccountScript, len(script.Args)+33); err != nil {
		return nil, err
	}
	return script, nil
}

// GetAccountNonce returns the nonce of account id.
func (env *Environment) GetAccountNonce(id uint32) (uint32, error) {
	if err := env.meter.ChargeSyscall(SysLoad, 32); err != nil {
		return 0, err
	}
	return env.state.GetNonce(id)
}

// StoreData stores data and returns its hash.
func (env *Environment) StoreData(data []byte) (gw.Bytes32, error) {
	if len(data) > gw.MaxWriteDataBytes {
		return gw.Bytes32{}, ErrExceededMaxWriteData
	}
	if err := env.meter.ChargeSyscall(SysStoreData, len(data)); err != nil {
		return gw.Bytes32{}, err
	}
	return env.state.StoreData(data), nil
}

// LoadData returns data by hash.
func (env *Environment) LoadData(hash gw.Bytes32) ([]byte, error) {
	data, ok, err := env.state.GetData(hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, Exit(ExitErrorNotFound, "data %v", hash)
	}
	if err := env.meter.ChargeSyscall(SysLoadData, len(data)); err != nil {
		return nil, err
	}
	if _, seen := env.readData[hash]; !seen {
		env.readDataBytes += len(data)
		if env.readDataBytes > gw.MaxReadDataBytes {
			return nil, ErrExceededMaxReadData
		}
		env.readData[hash] = len(data)
		env.readDataOrder = append(env.readDataOrder, hash)
	}
	return data, nil
}

// GetRegistryAddressByScriptHash returns the address registry registryID maps hash to.
func (env *Environment) GetRegistryAddressByScriptHash(hash gw.Bytes32, registryID uint32) (gw.RegistryAddress, error) {
	if err := env.meter.ChargeSyscall(SysGetRegistryAddressByScriptHash, 32); err != nil {
		return gw.RegistryAddress{}, err
	}
	addr, exist, err := env.state.GetRegistryAddressByScriptHash(registryID, hash)
	if err != nil {
		return gw.RegistryAddress{}, err
	}
	if !exist {
		return gw.RegistryAddress{}, Exit(ExitErrorNotFound, "registry address of %v", hash)
	}
	return addr, nil
}

// GetScriptHashByRegistryAddress returns the script hash addr is mapped to.
func (env *Environment) GetScriptHashByRegistryAddress(addr gw.RegistryAddress) (gw.Bytes32, error) {
	if err := env.meter.ChargeSyscall(SysGetScriptHashByRegistryAddress, len(addr.Address)+8); err != nil {
		return gw.Bytes32{}, err
	}
	hash, exist, err := env.state.GetScriptHashByRegistryAddress(addr)
	if err != nil {
		return gw.Bytes32{}, err
	}
	if !exist {
		return gw.Bytes32{}, Exit(ExitErrorNotFound, "script hash of %v", addr)
	}
	return hash, nil
}

// MapRegistryAddress binds addr and hash in both directions.
func (env *Environment) MapRegistryAddress(addr gw.RegistryAddress, hash gw.Bytes32) error {
	if err := env.meter.ChargeSyscall(SysStore, 128); err != nil {
		return err
	}
	err := env.state.MappingRegistryAddress(addr, hash)
	switch {
	case state.IsDuplicatedRegistryAddress(err):
		return Exit(ExitRegistryDuplicateMapping, "%v already mapped", addr)
	case state.IsInvalidArgs(err):
		return Exit(ExitFatalInvalidData, "mapping %v to %v", addr, hash)
	}
	return err
}

// Log appends a log item.
func (env *Environment) Log(accountID uint32, serviceFlag byte, data []byte) error {
	if err := env.meter.ChargeSyscall(SysLog, len(data)); err != nil {
		return err
	}
	if len(env.logs) >= tx.MaxLogs {
		return Exit(ExitFatalBufferOverflow, "too many logs")
	}
	env.logs = append(env.logs, &tx.Log{
		AccountID:   accountID,
		ServiceFlag: serviceFlag,
		Data:        append([]byte(nil), data...),
	})
	return nil
}

// Finalize increases the sender nonce. Every successful backend run ends with it.
func (env *Environment) Finalize() error {
	nonce, err := env.state.GetNonce(env.Sender())
	if err != nil {
		return err
	}
	if nonce == ^uint32(0) {
		return Exit(ExitFatalInvalidContext, "nonce overflow")
	}
	env.state.SetNonce(env.Sender(), nonce+1)
	return nil
}
