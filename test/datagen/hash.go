// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package datagen

import (
	"crypto/rand"

	"github.com/godwokenrises/godwoken-sub004/gw"
)

func RandomHash() gw.Bytes32 {
	var b32 gw.Bytes32

	rand.Read(b32[:])
	return b32
}

func RandomAddress() gw.Address {
	var addr gw.Address

	rand.Read(addr[:])
	return addr
}
