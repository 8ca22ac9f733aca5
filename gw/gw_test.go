// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package gw

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestBytes32JSON(t *testing.T) {
	originalHex := `"0x00000000000000000000000000000000000000000000000000006d6173746572"`

	var v Bytes32
	require.NoError(t, json.Unmarshal([]byte(originalHex), &v))

	out, err := json.Marshal(&v)
	assert.NoError(t, err)
	assert.Equal(t, originalHex, string(out))

	_, err = ParseBytes32("0x1234")
	assert.Error(t, err)
	_, err = ParseBytes32("1x" + originalHex[3:len(originalHex)-1])
	assert.Error(t, err)
}

func TestBytes32LittleEndian(t *testing.T) {
	b := Uint32ToBytes32(0x01020304)
	assert.Equal(t, byte(0x04), b[0])
	assert.Equal(t, uint32(0x01020304), b.Uint32())

	b = Uint64ToBytes32(1 << 40)
	assert.Equal(t, uint64(1<<40), b.Uint64())
}

func TestRegistryAddress(t *testing.T) {
	addr := NewRegistryAddress(ETHRegistryID, make([]byte, 20))
	addr.Address[19] = 0xaa

	raw := addr.Serialize()
	assert.Len(t, raw, 28)
	assert.Equal(t, []byte{2, 0, 0, 0, 20, 0, 0, 0}, raw[:8])

	parsed, rest, err := ParseRegistryAddress(append(raw, 0x01))
	require.NoError(t, err)
	assert.Equal(t, addr, parsed)
	assert.Equal(t, []byte{0x01}, rest)

	_, _, err = ParseRegistryAddress(raw[:10])
	assert.Error(t, err)
}

func TestScriptHash(t *testing.T) {
	cfg := DefaultConfig()
	addr, err := ParseAddress("0x00000000000000000000000000000000000000a1")
	require.NoError(t, err)

	s1 := NewEOAScript(cfg.EOACodeHash, cfg.RollupScriptHash, addr)
	s2 := NewEOAScript(cfg.EOACodeHash, cfg.RollupScriptHash, addr)
	assert.Equal(t, s1.Hash(), s2.Hash())
	assert.True(t, s1.Equal(s2))

	got, ok := s1.EOAAddress()
	assert.True(t, ok)
	assert.Equal(t, addr, got)

	s2.Args[len(s2.Args)-1] ^= 1
	assert.NotEqual(t, s1.Hash(), s2.Hash())
}

func TestConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	data, err := yaml.Marshal(&cfg)
	require.NoError(t, err)
	var decoded Config
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, cfg, decoded)
	assert.Equal(t, cfg.Hash(), decoded.Hash())

	decoded.FinalityBlocks++
	assert.NotEqual(t, cfg.Hash(), decoded.Hash())

	assert.Equal(t, uint64(0), cfg.LastFinalizedBlockNumber(cfg.FinalityBlocks-1))
	assert.Equal(t, uint64(4), cfg.LastFinalizedBlockNumber(cfg.FinalityBlocks+4))

	cfg.RewardBurnRate = 101
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.RequiredChallengeCapacity = 0
	assert.Error(t, cfg.Validate())
}

func TestBurnShare(t *testing.T) {
	cfg := DefaultConfig()
	burn, rest := cfg.BurnShare(301)
	assert.Equal(t, uint64(150), burn)
	assert.Equal(t, uint64(151), rest)

	// no overflow on the full range
	burn, rest = cfg.BurnShare(math.MaxUint64)
	assert.Equal(t, uint64(math.MaxUint64/2), burn)
	assert.Equal(t, uint64(math.MaxUint64)-burn, rest)

	cfg.RewardBurnRate = 100
	burn, rest = cfg.BurnShare(math.MaxUint64)
	assert.Equal(t, uint64(math.MaxUint64), burn)
	assert.Zero(t, rest)

	cfg.RewardBurnRate = 0
	burn, rest = cfg.BurnShare(99)
	assert.Zero(t, burn)
	assert.Equal(t, uint64(99), rest)
}
