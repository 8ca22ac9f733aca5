// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package txpool

import "github.com/pkg/errors"

var errKnownTx = errors.New("known tx")

// IsKnownTx the request is already packed or pooled.
func IsKnownTx(err error) bool {
	return errors.Is(err, errKnownTx)
}

// IsBadTx returns whether the given error indicates that tx is bad.
func IsBadTx(err error) bool {
	return errors.As(err, &badTxError{})
}

// IsTxRejected returns whether the given error indicates tx is rejected.
func IsTxRejected(err error) bool {
	return errors.As(err, &txRejectedError{})
}

// badTxError indicates that the tx is invalid and can never be executed.
type badTxError struct {
	msg string
}

func (e badTxError) Error() string {
	return "bad tx: " + e.msg
}

// txRejectedError indicates that the tx can't be accepted now, it may be accepted later.
type txRejectedError struct {
	msg string
}

func (e txRejectedError) Error() string {
	return "tx rejected: " + e.msg
}
