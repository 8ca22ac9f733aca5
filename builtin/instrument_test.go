// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package builtin

import (
	"strings"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrument(t *testing.T) {
	tests := []struct {
		src   string
		steps int
	}{
		{`var a = 1;`, 0},
		{`for (;;) {}`, 1},
		{`for (;;);`, 1},
		{`var i = 0; do i++; while (i < 3)`, 1},
		{`if (true) for (var k in {}) k; else {}`, 1},
		{`while (false) while (false) x();`, 2},
		{`function f() { return [1].map(x => x + 1); }`, 2},
		{`var o = { get v() { return 1; }, m() {} };`, 2},
		{`class C { m() { for (const x of []) {} } }`, 2},
		{`var f = function () {};`, 1},
	}
	for _, tt := range tests {
		out, err := instrument("t.js", tt.src)
		require.NoError(t, err, tt.src)
		assert.Equal(t, tt.steps, strings.Count(out, stepFunc), out)

		_, err = goja.Compile("t.js", out, true)
		assert.NoError(t, err, out)
	}

	_, err := instrument("t.js", "function (")
	assert.Error(t, err)
}

func TestInstrumentRuns(t *testing.T) {
	out, err := instrument("t.js", `
var n = 0;
for (var i = 0; i < 3; i++) n += [1, 2].map(x => x).length;
var j = 0;
do j++; while (j < 4)
n + j;`)
	require.NoError(t, err)

	vm := goja.New()
	steps := 0
	require.NoError(t, vm.Set(stepFunc, func() { steps++ }))
	v, err := vm.RunString(out)
	require.NoError(t, err)
	assert.Equal(t, int64(10), v.ToInteger())
	// 3 loop iterations, 6 arrow calls, 4 do-while iterations
	assert.Equal(t, 13, steps)
}
