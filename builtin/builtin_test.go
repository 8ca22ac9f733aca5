// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package builtin_test

import (
	"encoding/binary"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godwokenrises/godwoken-sub004/builtin"
	"github.com/godwokenrises/godwoken-sub004/builtin/sudt"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/smt"
	"github.com/godwokenrises/godwoken-sub004/state"
	"github.com/godwokenrises/godwoken-sub004/tx"
	"github.com/godwokenrises/godwoken-sub004/xenv"
)

type fixture struct {
	cfg gw.Config
	st  *state.State
	mgr *builtin.Manager

	alice, bob, producer       gw.RegistryAddress
	aliceID, bobID, producerID uint32
}

func newFixture(t *testing.T) *fixture {
	cfg := gw.DefaultConfig()
	f := &fixture{cfg: cfg, st: state.New(smt.NewMemTree(), nil, 0)}
	f.mgr = builtin.NewManager(&f.cfg)

	f.create(t, cfg.MetaContractCodeHash, nil)
	f.create(t, cfg.L2SUDTCodeHash, make([]byte, 32))
	f.create(t, cfg.ETHRegistryCodeHash, nil)

	f.aliceID, f.alice = f.eoa(t, 0xa1, true)
	f.bobID, f.bob = f.eoa(t, 0xb0, true)
	f.producerID, f.producer = f.eoa(t, 0xcc, true)
	require.NoError(t, f.st.MintSUDT(gw.CKBSUDTAccountID, f.alice, uint256.NewInt(1000)))
	return f
}

func (f *fixture) create(t *testing.T, codeHash gw.Bytes32, extra []byte) uint32 {
	script := &gw.Script{
		CodeHash: codeHash,
		HashType: gw.HashTypeType,
		Args:     append(f.cfg.RollupScriptHash.Bytes(), extra...),
	}
	id, err := f.st.CreateAccount(f.st.InsertScript(script))
	require.NoError(t, err)
	return id
}

func (f *fixture) eoa(t *testing.T, b byte, mapped bool) (uint32, gw.RegistryAddress) {
	addr := gw.Address{19: b}
	script := gw.NewEOAScript(f.cfg.EOACodeHash, f.cfg.RollupScriptHash, addr)
	id, err := f.st.CreateAccount(f.st.InsertScript(script))
	require.NoError(t, err)
	regAddr := gw.NewRegistryAddress(gw.ETHRegistryID, addr[:])
	if mapped {
		require.NoError(t, f.st.MappingRegistryAddress(regAddr, script.Hash()))
	}
	return id, regAddr
}

func (f *fixture) run(t *testing.T, from, to uint32, args []byte) (*xenv.Environment, error) {
	nonce, err := f.st.GetNonce(from)
	require.NoError(t, err)
	trx := tx.NewBuilder(f.cfg.ChainID).From(from).To(to).Nonce(nonce).Args(args).Build()
	env := xenv.New(&f.cfg, f.st, &xenv.BlockInfo{Number: 1, Timestamp: 1000, BlockProducer: f.producer}, trx, 100_000_000)

	hash, err := f.st.GetScriptHash(to)
	require.NoError(t, err)
	script, err := f.st.GetScript(hash)
	require.NoError(t, err)
	b, ok := f.mgr.Get(script.CodeHash)
	require.True(t, ok)
	return env, b.Handle(env, args)
}

func (f *fixture) balance(t *testing.T, addr gw.RegistryAddress) uint64 {
	v, err := f.st.GetSUDTBalance(gw.CKBSUDTAccountID, addr)
	require.NoError(t, err)
	return v.Uint64()
}

func exitCode(err error) int8 {
	code, ok := xenv.ExitCodeOf(err)
	if !ok {
		return -100
	}
	return code
}

func TestSUDTTransfer(t *testing.T) {
	f := newFixture(t)

	env, err := f.run(t, f.aliceID, gw.CKBSUDTAccountID, builtin.EncodeArgs(&builtin.SUDTTransfer{
		To:     f.bob,
		Amount: uint256.NewInt(100),
		Fee:    builtin.NewFee(gw.ETHRegistryID, 1),
	}))
	require.NoError(t, err)

	assert.Equal(t, uint64(899), f.balance(t, f.alice))
	assert.Equal(t, uint64(100), f.balance(t, f.bob))
	assert.Equal(t, uint64(1), f.balance(t, f.producer))
	nonce, err := f.st.GetNonce(f.aliceID)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), nonce)

	supply, err := f.st.GetSUDTTotalSupply(gw.CKBSUDTAccountID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), supply.Uint64())

	logs := env.Logs()
	require.Len(t, logs, 2)
	assert.Equal(t, tx.LogSUDTPayFee, logs[0].ServiceFlag)
	assert.Equal(t, tx.LogSUDTTransfer, logs[1].ServiceFlag)
	l, err := sudt.ParseLog(logs[1].Data)
	require.NoError(t, err)
	assert.Equal(t, f.alice, l.From)
	assert.Equal(t, f.bob, l.To)
	assert.Equal(t, uint64(100), l.Amount.Uint64())

	env, err = f.run(t, f.bobID, gw.CKBSUDTAccountID, builtin.EncodeArgs(&builtin.SUDTQuery{Address: f.bob}))
	require.NoError(t, err)
	require.Len(t, env.ReturnData(), 32)
	assert.Equal(t, uint64(100), binary.LittleEndian.Uint64(env.ReturnData()))
}

func TestSUDTTransferFailures(t *testing.T) {
	f := newFixture(t)

	_, err := f.run(t, f.bobID, gw.CKBSUDTAccountID, builtin.EncodeArgs(&builtin.SUDTTransfer{
		To:     f.alice,
		Amount: uint256.NewInt(1),
		Fee:    builtin.Fee{RegistryID: gw.ETHRegistryID},
	}))
	assert.Equal(t, xenv.ExitSUDTInsufficientBalance, exitCode(err))

	_, err = f.run(t, f.aliceID, gw.CKBSUDTAccountID, builtin.EncodeArgs(&builtin.SUDTTransfer{
		To:     gw.NewRegistryAddress(gw.ETHRegistryID, []byte{1, 2}),
		Amount: uint256.NewInt(1),
		Fee:    builtin.Fee{RegistryID: gw.ETHRegistryID},
	}))
	assert.Equal(t, xenv.ExitSUDTInvalidAddress, exitCode(err))

	_, err = f.run(t, f.aliceID, gw.CKBSUDTAccountID, []byte{9})
	assert.Equal(t, xenv.ExitFatalUnknownArgs, exitCode(err))

	_, err = f.run(t, f.aliceID, gw.CKBSUDTAccountID, []byte{1, 2, 3})
	assert.Equal(t, xenv.ExitFatalInvalidData, exitCode(err))
}

func TestMetaContract(t *testing.T) {
	f := newFixture(t)

	script := gw.Script{
		CodeHash: f.cfg.L2SUDTCodeHash,
		HashType: gw.HashTypeType,
		Args:     append(f.cfg.RollupScriptHash.Bytes(), gw.Blake2b([]byte("l1 token")).Bytes()...),
	}
	env, err := f.run(t, f.aliceID, gw.MetaContractAccountID, builtin.EncodeArgs(&builtin.CreateAccount{
		Script: script,
		Fee:    builtin.NewFee(gw.ETHRegistryID, 5),
	}))
	require.NoError(t, err)
	id := binary.LittleEndian.Uint32(env.ReturnData())
	assert.Equal(t, f.producerID+1, id)
	assert.Equal(t, uint64(995), f.balance(t, f.alice))
	assert.Equal(t, uint64(5), f.balance(t, f.producer))

	_, err = f.run(t, f.aliceID, gw.MetaContractAccountID, builtin.EncodeArgs(&builtin.CreateAccount{Script: script}))
	assert.Equal(t, xenv.ExitErrorDuplicatedScriptHash, exitCode(err))

	unknown := script
	unknown.CodeHash = gw.Blake2b([]byte("unknown"))
	_, err = f.run(t, f.aliceID, gw.MetaContractAccountID, builtin.EncodeArgs(&builtin.CreateAccount{Script: unknown}))
	assert.Equal(t, xenv.ExitErrorUnknownScriptCodeHash, exitCode(err))

	eoa := gw.NewEOAScript(f.cfg.EOACodeHash, f.cfg.RollupScriptHash, gw.Address{19: 0xdd})
	env, err = f.run(t, f.aliceID, gw.MetaContractAccountID, builtin.EncodeArgs(&builtin.BatchCreateEOA{
		Scripts: []*gw.Script{eoa},
		Fee:     builtin.NewFee(gw.ETHRegistryID, 1),
	}))
	require.NoError(t, err)
	assert.Len(t, env.ReturnData(), 4)
	hash, exist, err := f.st.GetScriptHashByRegistryAddress(gw.NewRegistryAddress(gw.ETHRegistryID, eoa.Args[32:]))
	require.NoError(t, err)
	assert.True(t, exist)
	assert.Equal(t, eoa.Hash(), hash)

	_, err = f.run(t, f.aliceID, gw.MetaContractAccountID, builtin.EncodeArgs(&builtin.BatchCreateEOA{
		Scripts: []*gw.Script{&script},
	}))
	assert.Equal(t, xenv.ExitErrorInvalidAccountScript, exitCode(err))
}

func TestETHRegistry(t *testing.T) {
	f := newFixture(t)

	env, err := f.run(t, f.aliceID, gw.ETHRegistryAccountID, builtin.EncodeArgs(&builtin.EthToGw{
		Address: gw.BytesToAddress(f.bob.Address),
	}))
	require.NoError(t, err)
	bobHash, err := f.st.GetScriptHash(f.bobID)
	require.NoError(t, err)
	assert.Equal(t, bobHash.Bytes(), env.ReturnData())

	env, err = f.run(t, f.aliceID, gw.ETHRegistryAccountID, builtin.EncodeArgs(&builtin.GwToEth{ScriptHash: bobHash}))
	require.NoError(t, err)
	assert.Equal(t, f.bob.Serialize(), env.ReturnData())

	carolID, carol := f.eoa(t, 0xca, false)
	carolHash, err := f.st.GetScriptHash(carolID)
	require.NoError(t, err)
	_, err = f.run(t, f.aliceID, gw.ETHRegistryAccountID, builtin.EncodeArgs(&builtin.EthToGw{
		Address: gw.BytesToAddress(carol.Address),
	}))
	assert.Equal(t, xenv.ExitErrorNotFound, exitCode(err))

	_, err = f.run(t, f.aliceID, gw.ETHRegistryAccountID, builtin.EncodeArgs(&builtin.SetMapping{
		ScriptHash: carolHash,
		Fee:        builtin.NewFee(gw.ETHRegistryID, 2),
	}))
	require.NoError(t, err)
	assert.Equal(t, uint64(998), f.balance(t, f.alice))
	hash, exist, err := f.st.GetScriptHashByRegistryAddress(carol)
	require.NoError(t, err)
	assert.True(t, exist)
	assert.Equal(t, carolHash, hash)

	_, err = f.run(t, f.aliceID, gw.ETHRegistryAccountID, builtin.EncodeArgs(&builtin.BatchSetMapping{
		ScriptHashes: []gw.Bytes32{carolHash},
	}))
	assert.Equal(t, xenv.ExitRegistryDuplicateMapping, exitCode(err))
}

func TestFee(t *testing.T) {
	f := newFixture(t)
	meta, _ := f.mgr.Get(f.cfg.MetaContractCodeHash)
	fee := meta.Fee(builtin.EncodeArgs(&builtin.CreateAccount{Fee: builtin.NewFee(gw.ETHRegistryID, 42)}))
	assert.Equal(t, gw.ETHRegistryID, fee.RegistryID)
	assert.Equal(t, uint64(42), fee.Amount.Uint64())

	fee = meta.Fee([]byte{0xff})
	assert.True(t, fee.IsZero())

	reg, _ := f.mgr.Get(f.cfg.ETHRegistryCodeHash)
	regFee := reg.Fee(builtin.EncodeArgs(&builtin.GwToEth{}))
	assert.True(t, regFee.IsZero())
}

func TestExternal(t *testing.T) {
	f := newFixture(t)
	codeHash := gw.Blake2b([]byte("counter"))
	id := f.create(t, codeHash, nil)
	bind := func(src string) {
		require.NoError(t, f.mgr.BindExternal("counter", codeHash, []byte(src), gw.Blake2b([]byte(src))))
	}

	assert.Error(t, f.mgr.BindExternal("bad", codeHash, []byte("x"), gw.Bytes32{}))
	assert.Error(t, f.mgr.BindExternal("meta", f.cfg.MetaContractCodeHash, []byte("x"), gw.Blake2b([]byte("x"))))
	assert.Error(t, f.mgr.BindExternal("syntax", codeHash, []byte("function ("), gw.Blake2b([]byte("function ("))))
	assert.True(t, f.mgr.IsKnown(f.cfg.EOACodeHash))
	assert.False(t, f.mgr.IsKnown(codeHash))

	bind(`
function handle(args) {
	gw.store("0x01", "0x000000000000000000000000000000000000000000000000000000000000002a");
	gw.log(3, args);
	gw.setReturnData(gw.load("0x01"));
	gw.finalize();
}`)
	assert.True(t, f.mgr.IsKnown(codeHash))
	env, err := f.run(t, f.aliceID, id, []byte{0xbe, 0xef})
	require.NoError(t, err)
	v, err := f.st.GetValue(id, []byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, byte(0x2a), v[31])
	assert.Equal(t, v.Bytes(), env.ReturnData())
	require.Len(t, env.Logs(), 1)
	assert.Equal(t, []byte{0xbe, 0xef}, env.Logs()[0].Data)

	bind(`function handle(args) { gw.exit(7); }`)
	_, err = f.run(t, f.aliceID, id, nil)
	assert.Equal(t, int8(7), exitCode(err))

	bind(`function handle(args) { throw new Error("boom"); }`)
	_, err = f.run(t, f.aliceID, id, nil)
	assert.Equal(t, int8(1), exitCode(err))

	bind(`function handle(args) { try { gw.load("zz"); } catch (e) {} gw.finalize(); }`)
	_, err = f.run(t, f.aliceID, id, nil)
	assert.Equal(t, xenv.ExitFatalInvalidData, exitCode(err), "syscall failures cannot be caught")

	for _, src := range []string{
		`function handle(args) { for (;;) {} }`,
		`function handle(args) { while (true) try { for (;;); } catch (e) {} }`,
		`function handle(args) { var i = 0; do i++; while (i >= 0) }`,
		`function handle(args) { const f = (n) => n + 1; for (let i = 0; ; i = f(i)) {} }`,
	} {
		bind(src)
		env, err := f.run(t, f.aliceID, id, nil)
		assert.Equal(t, xenv.ExitExceededCycles, exitCode(err), src)
		assert.Equal(t, env.Meter().Limit(), env.Meter().Used(), src)
	}
}

func TestExternalDeterministic(t *testing.T) {
	f := newFixture(t)
	codeHash := gw.Blake2b([]byte("counter"))
	id := f.create(t, codeHash, nil)
	bind := func(src string) {
		require.NoError(t, f.mgr.BindExternal("counter", codeHash, []byte(src), gw.Blake2b([]byte(src))))
	}

	bind(`
function handle(args) {
	var n = 0;
	for (var i = 0; i < 10; i++) { n += [1, 2].map(x => x * i).length; }
	gw.store("0x01", "0x" + "0".repeat(62) + n.toString(16));
}`)
	run := func() uint64 {
		env, err := f.run(t, f.aliceID, id, nil)
		require.NoError(t, err)
		return env.Meter().Used()
	}
	used := run()
	assert.Equal(t, used, run(), "same script, same cycles")
	assert.Greater(t, used, uint64(10*xenv.CyclesScriptStep))
	v, err := f.st.GetValue(id, []byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, byte(20), v[31])

	for _, src := range []string{
		`function handle(args) { gw.store("0x01", Math.random()); }`,
		`function handle(args) { Date.now(); }`,
		`function handle(args) { new Date(); }`,
	} {
		bind(src)
		_, err := f.run(t, f.aliceID, id, nil)
		assert.Equal(t, int8(1), exitCode(err), src)
	}

	bind(`function __gw_step() {} function handle(args) {}`)
	_, err = f.run(t, f.aliceID, id, nil)
	assert.Equal(t, int8(1), exitCode(err), "the step meter can't be replaced")

	bind(`function f() { f(); } function handle(args) { f(); }`)
	env, err := f.run(t, f.aliceID, id, nil)
	assert.Equal(t, int8(1), exitCode(err), "call depth is bounded")
	assert.Less(t, env.Meter().Used(), env.Meter().Limit())
}
