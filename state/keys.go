// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"encoding/binary"

	"github.com/godwokenrises/godwoken-sub004/gw"
)

// field types of tree keys.
const (
	accountKVType         byte = 0
	accountNonceType      byte = 1
	accountScriptHashType byte = 2
	scriptHashToIDType    byte = 3
	dataHashType          byte = 4
)

// sUDT and registry key flags.
const (
	sudtKeyFlagBalance uint32 = 1

	registryKeyFlagScriptHashToNative byte = 1
	registryKeyFlagNativeToScriptHash byte = 2
)

var registryKeyPrefix = []byte("reg")

// AccountKey returns the tree key of the account kv pair, blake2b(id | 0 | key).
func AccountKey(id uint32, key []byte) gw.Bytes32 {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], id)
	return gw.Blake2b(b[:], []byte{accountKVType}, key)
}

func accountFieldKey(id uint32, typ byte) (key gw.Bytes32) {
	binary.LittleEndian.PutUint32(key[:4], id)
	key[4] = typ
	return
}

// NonceKey returns the tree key of the account nonce.
func NonceKey(id uint32) gw.Bytes32 { return accountFieldKey(id, accountNonceType) }

// ScriptHashKey returns the tree key of the account script hash.
func ScriptHashKey(id uint32) gw.Bytes32 { return accountFieldKey(id, accountScriptHashType) }

// ScriptHashToIDKey returns the tree key of the script hash index.
func ScriptHashToIDKey(scriptHash gw.Bytes32) gw.Bytes32 {
	return gw.Blake2b(make([]byte, 4), []byte{scriptHashToIDType}, scriptHash[:])
}

// DataHashKey returns the tree key marking data as stored.
func DataHashKey(dataHash gw.Bytes32) gw.Bytes32 {
	return gw.Blake2b(make([]byte, 4), []byte{dataHashType}, dataHash[:])
}

// SUDTBalanceKey returns the account kv key of the balance of addr inside a sUDT account.
func SUDTBalanceKey(addr gw.RegistryAddress) []byte {
	key := make([]byte, 4, 4+8+len(addr.Address))
	binary.LittleEndian.PutUint32(key, sudtKeyFlagBalance)
	return append(key, addr.Serialize()...)
}

// ScriptHashToRegistryKey returns the registry kv key mapping script hash to native address.
func ScriptHashToRegistryKey(scriptHash gw.Bytes32) []byte {
	key := make([]byte, 0, 36)
	key = append(key, registryKeyPrefix...)
	key = append(key, registryKeyFlagScriptHashToNative)
	return append(key, scriptHash[:]...)
}

// RegistryToScriptHashKey returns the registry kv key mapping native address to script hash.
func RegistryToScriptHashKey(addr gw.RegistryAddress) []byte {
	key := make([]byte, 0, 4+8+len(addr.Address))
	key = append(key, registryKeyPrefix...)
	key = append(key, registryKeyFlagNativeToScriptHash)
	return append(key, addr.Serialize()...)
}

func scriptHashToIDValue(id uint32) gw.Bytes32 {
	v := gw.Uint32ToBytes32(id)
	v[4] = 1
	return v
}

var dataStoredValue = gw.Uint32ToBytes32(1)
