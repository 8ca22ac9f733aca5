// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"bytes"
	"fmt"
	"iter"
	"maps"
	"slices"

	"github.com/pkg/errors"

	"github.com/godwokenrises/godwoken-sub004/codec"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/kv"
	"github.com/godwokenrises/godwoken-sub004/stackedmap"
)

// AccountTreeName is the bucket of account tree nodes.
const AccountTreeName = "state.tree"

// buckets of the side store.
const (
	scriptStoreName = "state.script"
	dataStoreName   = "state.data"
)

var (
	errDuplicatedScriptHash      = errors.New("duplicated script hash")
	errDuplicatedRegistryAddress = errors.New("duplicated registry address")
	errAmountOverflow            = errors.New("amount overflow")
	errInvalidArgs               = errors.New("invalid args")
)

// IsDuplicatedScriptHash reports whether err is caused by creating an account twice.
func IsDuplicatedScriptHash(err error) bool { return errors.Is(err, errDuplicatedScriptHash) }

// IsDuplicatedRegistryAddress reports whether err is caused by mapping an address twice.
func IsDuplicatedRegistryAddress(err error) bool { return errors.Is(err, errDuplicatedRegistryAddress) }

// IsAmountOverflow reports whether err is caused by a balance or supply overflow or underflow.
func IsAmountOverflow(err error) bool { return errors.Is(err, errAmountOverflow) }

// IsInvalidArgs reports whether err is caused by malformed arguments.
func IsInvalidArgs(err error) bool { return errors.Is(err, errInvalidArgs) }

// Error is the error caused by state access failure. It's never caused by the operation
// itself, so the caller should treat it as fatal.
type Error struct {
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("state: %v", e.cause)
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error { return e.cause }

// Tree is the key value tree under a state. Zero value means absent.
type Tree interface {
	Get(key gw.Bytes32) (gw.Bytes32, error)
	Update(key, value gw.Bytes32) error
	Root() gw.Bytes32
}

type (
	treeKey   gw.Bytes32
	scriptKey gw.Bytes32
	dataKey   gw.Bytes32
	countKey  struct{}
)

// State manages the account state.
type State struct {
	tree    Tree
	side    kv.Getter
	count   uint32
	cache   map[gw.Bytes32]gw.Bytes32
	touched map[gw.Bytes32]struct{}
	sm      *stackedmap.StackedMap[any, any]

	// flushed but not yet committed side data
	scripts map[gw.Bytes32]*gw.Script
	data    map[gw.Bytes32][]byte

	// side data read from outside the state
	readScripts map[gw.Bytes32]*gw.Script
	readData    map[gw.Bytes32][]byte
}

// New creates a state over tree, whose account count is count. Scripts and data are read from side.
func New(tree Tree, side kv.Getter, count uint32) *State {
	s := &State{
		tree:    tree,
		side:    side,
		count:   count,
		cache:   make(map[gw.Bytes32]gw.Bytes32),
		touched: make(map[gw.Bytes32]struct{}),
		scripts: make(map[gw.Bytes32]*gw.Script),
		data:    make(map[gw.Bytes32][]byte),

		readScripts: make(map[gw.Bytes32]*gw.Script),
		readData:    make(map[gw.Bytes32][]byte),
	}
	s.sm = stackedmap.New(s.source)
	return s
}

func (s *State) source(key any) (any, bool, error) {
	switch k := key.(type) {
	case treeKey:
		s.touched[gw.Bytes32(k)] = struct{}{}
		if v, ok := s.cache[gw.Bytes32(k)]; ok {
			return v, true, nil
		}
		v, err := s.tree.Get(gw.Bytes32(k))
		if err != nil {
			return nil, false, err
		}
		s.cache[gw.Bytes32(k)] = v
		return v, true, nil
	case scriptKey:
		if script, ok := s.scripts[gw.Bytes32(k)]; ok {
			return script, true, nil
		}
		script, err := s.loadScript(gw.Bytes32(k))
		if err != nil {
			return nil, false, err
		}
		if script != nil {
			s.readScripts[gw.Bytes32(k)] = script
		}
		return script, true, nil
	case dataKey:
		if data, ok := s.data[gw.Bytes32(k)]; ok {
			return data, true, nil
		}
		data, err := s.loadData(gw.Bytes32(k))
		if err != nil {
			return nil, false, err
		}
		if data != nil {
			s.readData[gw.Bytes32(k)] = data
		}
		return data, true, nil
	case countKey:
		return s.count, true, nil
	}
	panic(fmt.Errorf("unexpected key type %T", key))
}

func (s *State) loadScript(hash gw.Bytes32) (*gw.Script, error) {
	if s.side == nil {
		return nil, nil
	}
	raw, err := kv.Bucket(scriptStoreName).NewGetter(s.side).Get(hash[:])
	if err != nil {
		if s.side.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var script gw.Script
	if err := codec.Decode(raw, &script); err != nil {
		return nil, err
	}
	return &script, nil
}

func (s *State) loadData(hash gw.Bytes32) ([]byte, error) {
	if s.side == nil {
		return nil, nil
	}
	data, err := kv.Bucket(dataStoreName).NewGetter(s.side).Get(hash[:])
	if err != nil {
		if s.side.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// GetRaw returns the tree value of key.
func (s *State) GetRaw(key gw.Bytes32) (gw.Bytes32, error) {
	v, _, err := s.sm.Get(treeKey(key))
	if err != nil {
		return gw.Bytes32{}, &Error{err}
	}
	return v.(gw.Bytes32), nil
}

// UpdateRaw sets the tree value of key.
func (s *State) UpdateRaw(key, value gw.Bytes32) {
	s.touched[key] = struct{}{}
	s.sm.Put(treeKey(key), value)
}

// GetAccountCount returns the number of accounts.
func (s *State) GetAccountCount() uint32 {
	v, _, _ := s.sm.Get(countKey{})
	return v.(uint32)
}

// CreateAccount creates an account bound to scriptHash and returns its id.
func (s *State) CreateAccount(scriptHash gw.Bytes32) (uint32, error) {
	if scriptHash.IsZero() {
		return 0, errInvalidArgs
	}
	_, exist, err := s.GetAccountIDByScriptHash(scriptHash)
	if err != nil {
		return 0, err
	}
	if exist {
		return 0, errDuplicatedScriptHash
	}
	id := s.GetAccountCount()
	if id == ^uint32(0) {
		return 0, errAmountOverflow
	}
	s.UpdateRaw(NonceKey(id), gw.Bytes32{})
	s.UpdateRaw(ScriptHashKey(id), scriptHash)
	s.UpdateRaw(ScriptHashToIDKey(scriptHash), scriptHashToIDValue(id))
	s.sm.Put(countKey{}, id+1)
	return id, nil
}

// GetNonce returns the nonce of account id.
func (s *State) GetNonce(id uint32) (uint32, error) {
	v, err := s.GetRaw(NonceKey(id))
	if err != nil {
		return 0, err
	}
	return v.Uint32(), nil
}

// SetNonce sets the nonce of account id.
func (s *State) SetNonce(id uint32, nonce uint32) {
	s.UpdateRaw(NonceKey(id), gw.Uint32ToBytes32(nonce))
}

// GetScriptHash returns the script hash of account id, zero if the account does not exist.
func (s *State) GetScriptHash(id uint32) (gw.Bytes32, error) {
	return s.GetRaw(ScriptHashKey(id))
}

// GetAccountIDByScriptHash returns the id of the account bound to scriptHash.
func (s *State) GetAccountIDByScriptHash(scriptHash gw.Bytes32) (uint32, bool, error) {
	v, err := s.GetRaw(ScriptHashToIDKey(scriptHash))
	if err != nil {
		return 0, false, err
	}
	if v.IsZero() {
		return 0, false, nil
	}
	return v.Uint32(), true, nil
}

// GetValue returns the value of key in the kv space of account id.
func (s *State) GetValue(id uint32, key []byte) (gw.Bytes32, error) {
	if len(key) == 0 {
		return gw.Bytes32{}, errInvalidArgs
	}
	return s.GetRaw(AccountKey(id, key))
}

// UpdateValue sets the value of key in the kv space of account id.
func (s *State) UpdateValue(id uint32, key []byte, value gw.Bytes32) error {
	if len(key) == 0 {
		return errInvalidArgs
	}
	s.UpdateRaw(AccountKey(id, key), value)
	return nil
}

// GetScript returns the script by hash, nil if unknown.
func (s *State) GetScript(hash gw.Bytes32) (*gw.Script, error) {
	v, _, err := s.sm.Get(scriptKey(hash))
	if err != nil {
		return nil, &Error{err}
	}
	return v.(*gw.Script), nil
}

// InsertScript stores the script and returns its hash.
func (s *State) InsertScript(script *gw.Script) gw.Bytes32 {
	hash := script.Hash()
	cpy := *script
	cpy.Args = append([]byte(nil), script.Args...)
	s.sm.Put(scriptKey(hash), &cpy)
	return hash
}

// StoreData stores data and marks its hash in the tree.
func (s *State) StoreData(data []byte) gw.Bytes32 {
	hash := gw.Blake2b(data)
	s.sm.Put(dataKey(hash), append([]byte(nil), data...))
	s.UpdateRaw(DataHashKey(hash), dataStoredValue)
	return hash
}

// IsDataStored reports whether data of hash is marked in the tree.
func (s *State) IsDataStored(hash gw.Bytes32) (bool, error) {
	v, err := s.GetRaw(DataHashKey(hash))
	if err != nil {
		return false, err
	}
	return v == dataStoredValue, nil
}

// GetData returns the data of hash. Data not marked in the tree is reported as absent.
func (s *State) GetData(hash gw.Bytes32) ([]byte, bool, error) {
	stored, err := s.IsDataStored(hash)
	if err != nil || !stored {
		return nil, false, err
	}
	v, _, err := s.sm.Get(dataKey(hash))
	if err != nil {
		return nil, false, &Error{err}
	}
	data := v.([]byte)
	if data == nil {
		return nil, false, &Error{errors.Errorf("data %v marked but missing", hash)}
	}
	return data, true, nil
}

// NewCheckpoint makes a checkpoint of current state.
// It returns revision of the checkpoint.
func (s *State) NewCheckpoint() int {
	return s.sm.Push()
}

// RevertTo revert to checkpoint specified by revision.
func (s *State) RevertTo(revision int) {
	s.sm.PopTo(revision)
}

// TouchedKeys returns every tree key read or written so far.
func (s *State) TouchedKeys() []gw.Bytes32 {
	keys := make([]gw.Bytes32, 0, len(s.touched))
	for k := range s.touched {
		keys = append(keys, k)
	}
	return keys
}

// Witness returns the scripts and data read from the side store, ordered by hash.
func (s *State) Witness() ([]*gw.Script, [][]byte) {
	scripts := make([]*gw.Script, 0, len(s.readScripts))
	for _, h := range sortedHashes(maps.Keys(s.readScripts)) {
		scripts = append(scripts, s.readScripts[h])
	}
	data := make([][]byte, 0, len(s.readData))
	for _, h := range sortedHashes(maps.Keys(s.readData)) {
		data = append(data, s.readData[h])
	}
	return scripts, data
}

func sortedHashes(seq iter.Seq[gw.Bytes32]) []gw.Bytes32 {
	return slices.SortedFunc(seq, func(a, b gw.Bytes32) int { return bytes.Compare(a[:], b[:]) })
}

// Flush writes the journal into the tree and returns the account merkle state.
// Revisions returned by NewCheckpoint before flushing become invalid.
func (s *State) Flush() (gw.AccountMerkleState, error) {
	var err error
	s.sm.Journal(func(k, v any) bool {
		switch key := k.(type) {
		case treeKey:
			value := v.(gw.Bytes32)
			if err = s.tree.Update(gw.Bytes32(key), value); err != nil {
				return false
			}
			s.cache[gw.Bytes32(key)] = value
		case scriptKey:
			s.scripts[gw.Bytes32(key)] = v.(*gw.Script)
		case dataKey:
			s.data[gw.Bytes32(key)] = v.([]byte)
		case countKey:
			s.count = v.(uint32)
		}
		return true
	})
	if err != nil {
		return gw.AccountMerkleState{}, &Error{err}
	}
	s.sm = stackedmap.New(s.source)
	return gw.AccountMerkleState{MerkleRoot: s.tree.Root(), Count: s.count}, nil
}

// Checkpoint flushes the state and returns the state checkpoint.
func (s *State) Checkpoint() (gw.Bytes32, error) {
	ams, err := s.Flush()
	if err != nil {
		return gw.Bytes32{}, err
	}
	return ams.Checkpoint(), nil
}

// Stage flushes the state and makes a stage object to commit all changes.
func (s *State) Stage() (*Stage, error) {
	ams, err := s.Flush()
	if err != nil {
		return nil, err
	}
	return &Stage{
		account: ams,
		tree:    s.tree,
		scripts: s.scripts,
		data:    s.data,
	}, nil
}
