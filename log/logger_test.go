// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminalHandler(t *testing.T) {
	var out bytes.Buffer
	l := NewLogger(NewTerminalHandler(&out, false))
	l.Info("block packed", "number", 12, "fee", uint256.NewInt(1000))

	line := out.String()
	assert.True(t, strings.HasPrefix(line, "INFO ["), line)
	assert.Contains(t, line, "block packed")
	assert.Contains(t, line, "number=12")
	assert.Contains(t, line, "fee=1000")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestTerminalHandlerLevel(t *testing.T) {
	var (
		out   bytes.Buffer
		level slog.LevelVar
	)
	level.Set(LevelWarn)
	l := NewLogger(NewTerminalHandlerWithLevel(&out, &level, false))
	l.Info("dropped")
	assert.Empty(t, out.String())

	l.Warn("kept", "reason", "with space")
	assert.Contains(t, out.String(), `reason="with space"`)
}

func TestJSONHandler(t *testing.T) {
	var (
		out   bytes.Buffer
		level slog.LevelVar
	)
	level.Set(LevelTrace)
	l := NewLogger(JSONHandlerWithLevel(&out, &level)).With("pkg", "txpool")
	l.Trace("tx rejected", "nonce", 3)

	var m map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &m))
	assert.Equal(t, "TRCE", m["lvl"])
	assert.Equal(t, "txpool", m["pkg"])
	assert.Equal(t, float64(3), m["nonce"])
}

func TestWithContextFollowsRoot(t *testing.T) {
	pkgLogger := WithContext("pkg", "chain")

	var out bytes.Buffer
	prev := Root()
	defer SetDefault(prev)
	SetDefault(NewLogger(NewTerminalHandler(&out, false)))

	pkgLogger.Debug("new tip", "number", 7)
	assert.Contains(t, out.String(), "pkg=chain")
	assert.Contains(t, out.String(), "number=7")
}

func TestFromLegacyLevel(t *testing.T) {
	assert.Equal(t, LevelCrit, FromLegacyLevel(LegacyLevelCrit))
	assert.Equal(t, LevelInfo, FromLegacyLevel(LegacyLevelInfo))
	assert.Equal(t, LevelTrace, FromLegacyLevel(9))
	assert.Equal(t, "EROR", LevelString(LevelError))
}
