// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package genesis

import (
	"crypto/ecdsa"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/godwokenrises/godwoken-sub004/gw"
)

// DevAccount account for development.
type DevAccount struct {
	Address    gw.Address
	PrivateKey *ecdsa.PrivateKey
}

// DevBalance is the CKB each dev account holds at genesis.
const DevBalance = 1_000_000_0000_0000

var devAccounts atomic.Value

// DevAccounts returns pre-alloced accounts for devnet.
func DevAccounts() []DevAccount {
	if accs := devAccounts.Load(); accs != nil {
		return accs.([]DevAccount)
	}

	var accs []DevAccount
	privKeys := []string{
		"dce1443bd2ef0c2631adc1c67e5c93f13dc23a41c18b536effbbdcbcdb96fb65",
		"321d6443bc6177273b5abf54210fe806d451d6b7973bccc2384ef78bbcd0bf51",
		"2d7c882bad2a01105e36dda3646693bc1aaaa45b0ed63fb0ce23c060294f3af2",
		"593537225b037191d322c3b1df585fb1e5100811b71a6f7fc7e29cca1333483e",
		"ca7b25fc980c759df5f3ce17a3d881d6e19a38e651fc4315fc08917edab41058",
	}
	for _, str := range privKeys {
		pk, err := crypto.HexToECDSA(str)
		if err != nil {
			panic(err)
		}
		accs = append(accs, DevAccount{gw.Address(crypto.PubkeyToAddress(pk.PublicKey)), pk})
	}
	devAccounts.Store(accs)
	return accs
}

// NewDevnet creates the genesis builder of a devnet, funding every dev account.
func NewDevnet(cfg *gw.Config) *Builder {
	b := NewBuilder(cfg)
	for _, acc := range DevAccounts() {
		b.Alloc(acc.Address, DevBalance)
	}
	return b
}
