// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/godwokenrises/godwoken-sub004/block"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/lvldb"
	"github.com/godwokenrises/godwoken-sub004/state"
)

func newContext(t *testing.T, args map[string]string) *cli.Context {
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.String(configFlag.Name, "", "")
	set.String(dataDirFlag.Name, "", "")
	for k, v := range args {
		require.NoError(t, set.Set(k, v))
	}
	return cli.NewContext(nil, set, nil)
}

func TestLoadConfig(t *testing.T) {
	cfg := loadConfig(newContext(t, nil))
	def := gw.DefaultConfig()
	assert.Equal(t, def.ChainID, cfg.ChainID)
	assert.Equal(t, devBurnLock.Hash(), cfg.BurnLockHash)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chain_id: 42\nfinality_blocks: 3\n"), 0600))
	cfg = loadConfig(newContext(t, map[string]string{configFlag.Name: path}))
	assert.Equal(t, uint64(42), cfg.ChainID)
	assert.Equal(t, uint64(3), cfg.FinalityBlocks)
	assert.Equal(t, def.RollupScriptHash, cfg.RollupScriptHash, "unset fields keep defaults")
}

func TestGenesisStable(t *testing.T) {
	cfg := loadConfig(newContext(t, nil))
	b0 := genesisBlock(cfg)
	assert.Equal(t, b0.Hash(), genesisBlock(cfg).Hash())
	assert.Equal(t, uint64(devnetLaunchTime), b0.Header().Timestamp())

	// the instance dir stays at the same place across restarts
	ctx := newContext(t, map[string]string{dataDirFlag.Name: t.TempDir()})
	dir := makeInstanceDir(ctx, b0)
	assert.Equal(t, dir, makeInstanceDir(ctx, b0))
	assert.DirExists(t, dir)
}

func TestInitChain(t *testing.T) {
	cfg := loadConfig(newContext(t, nil))
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	stater := state.NewStater(db, 16)

	repo := initChain(cfg, db, stater)
	assert.Equal(t, genesisBlock(cfg).Hash(), repo.GenesisBlock().Hash())
	assert.Equal(t, block.StatusRunning, repo.Tip().GlobalState.Status)

	// reopening rebuilds the same genesis
	reopened := initChain(cfg, db, stater)
	assert.Equal(t, repo.Tip().Block.Hash(), reopened.Tip().Block.Hash())
}

func TestNormalizeCacheSize(t *testing.T) {
	assert.Equal(t, 128, normalizeCacheSize(1))
	assert.LessOrEqual(t, normalizeCacheSize(1<<40), 1<<40)
}
