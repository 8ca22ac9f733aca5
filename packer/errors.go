// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package packer

import "github.com/pkg/errors"

var (
	errBlockFull           = errors.New("block full")
	errCyclesPoolExhausted = errors.New("cycles pool exhausted")
	errKnownTx             = errors.New("known tx")
	errPhase               = errors.New("operation out of order")
)

// IsBlockFull the block reached the cap of the request kind.
func IsBlockFull(err error) bool {
	return errors.Is(err, errBlockFull)
}

// IsCyclesPoolExhausted the block has no cycles left for the tx. It may fit a later block.
func IsCyclesPoolExhausted(err error) bool {
	return errors.Is(err, errCyclesPoolExhausted)
}

// IsKnownTx the tx is already packed.
func IsKnownTx(err error) bool {
	return errors.Is(err, errKnownTx)
}

// IsBadTx not a valid request for the current state.
func IsBadTx(err error) bool {
	return errors.As(err, &badTxError{})
}

type badTxError struct {
	msg string
}

func (e badTxError) Error() string {
	return "bad tx: " + e.msg
}
