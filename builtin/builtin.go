// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package builtin

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/godwokenrises/godwoken-sub004/builtin/sudt"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/xenv"
)

// Backend is the logic bound to accounts whose script has a given code hash.
//
// Handle returns nil when the run succeeds. An exit error or ErrExceededCycles fails the
// transaction, any other error is fatal.
type Backend interface {
	Name() string
	Handle(env *xenv.Environment, args []byte) error
	// Fee returns the fee declared by args. It's charged when the run fails.
	Fee(args []byte) Fee
	backend()
}

// DefaultWatchdogTimeout is the wall clock limit of an external backend run. Runs are bounded by
// cycles, the watchdog only guards the host against native builtins that cycles don't cover.
const DefaultWatchdogTimeout = 10 * time.Second

// Manager maps code hashes to backends.
type Manager struct {
	config *gw.Config

	lock     sync.RWMutex
	backends map[gw.Bytes32]Backend
	watchdog time.Duration
}

// NewManager creates a manager with the builtin backends bound to the code hashes of cfg.
func NewManager(cfg *gw.Config) *Manager {
	m := &Manager{
		config:   cfg,
		backends: make(map[gw.Bytes32]Backend),
		watchdog: DefaultWatchdogTimeout,
	}
	m.backends[cfg.MetaContractCodeHash] = &metaContract{known: m.IsKnown}
	m.backends[cfg.L2SUDTCodeHash] = sudtBackend{}
	m.backends[cfg.ETHRegistryCodeHash] = ethRegistry{}
	return m
}

// Get returns the backend bound to codeHash.
func (m *Manager) Get(codeHash gw.Bytes32) (Backend, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	b, ok := m.backends[codeHash]
	return b, ok
}

// IsKnown reports whether accounts with codeHash can be created.
func (m *Manager) IsKnown(codeHash gw.Bytes32) bool {
	if codeHash == m.config.EOACodeHash {
		return true
	}
	_, ok := m.Get(codeHash)
	return ok
}

// BindExternal compiles source and binds it to codeHash, replacing the previous binding.
// checksum must be the blake2b hash of source.
func (m *Manager) BindExternal(name string, codeHash gw.Bytes32, source []byte, checksum gw.Bytes32) error {
	if gw.Blake2b(source) != checksum {
		return errors.Errorf("backend %s: checksum mismatch", name)
	}
	switch codeHash {
	case m.config.MetaContractCodeHash, m.config.L2SUDTCodeHash, m.config.ETHRegistryCodeHash, m.config.EOACodeHash:
		return errors.Errorf("backend %s: code hash %v is reserved", name, codeHash)
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	ext, err := newExternal(name, source, m.watchdog)
	if err != nil {
		return err
	}
	m.backends[codeHash] = ext
	return nil
}

// payFee pays fee from the registry address of the sender.
func payFee(env *xenv.Environment, fee Fee) error {
	if fee.IsZero() {
		return nil
	}
	hash, err := env.LoadScriptHashByAccountID(env.Sender())
	if err != nil {
		return err
	}
	payer, err := env.GetRegistryAddressByScriptHash(hash, fee.RegistryID)
	if err != nil {
		return err
	}
	return sudt.New(gw.CKBSUDTAccountID, env).PayFee(payer, fee.Amount)
}

// feeOf decodes the fee carried by args, zero if none.
func feeOf(args []byte, newMsg func(tag byte) Message) Fee {
	msg, err := decodeArgs(args, newMsg)
	if err != nil {
		return Fee{}
	}
	switch m := msg.(type) {
	case *CreateAccount:
		return m.Fee
	case *BatchCreateEOA:
		return m.Fee
	case *SUDTTransfer:
		return m.Fee
	case *SetMapping:
		return m.Fee
	case *BatchSetMapping:
		return m.Fee
	}
	return Fee{}
}
