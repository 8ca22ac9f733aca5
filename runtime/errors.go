// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies transaction errors.
type ErrorKind int

// transaction error kinds.
const (
	ErrInvalidExitCode ErrorKind = iota
	ErrNonce
	ErrBackendNotFound
	ErrScriptHashNotFound
	ErrInsufficientBalance
	ErrNonceOverflow
	ErrBackendMustIncreaseNonce
	ErrExceededMaxReturnData
	ErrExceededCycles
	ErrInvalidChainID
	ErrInvalidSignature
	ErrExceededMaxWriteData
	ErrExceededMaxReadData
)

var kindNames = [...]string{
	ErrInvalidExitCode:          "invalid exit code",
	ErrNonce:                    "nonce",
	ErrBackendNotFound:          "backend not found",
	ErrScriptHashNotFound:       "script hash not found",
	ErrInsufficientBalance:      "insufficient balance",
	ErrNonceOverflow:            "nonce overflow",
	ErrBackendMustIncreaseNonce: "backend must increase nonce",
	ErrExceededMaxReturnData:    "exceeded max return data",
	ErrExceededCycles:           "exceeded cycles",
	ErrInvalidChainID:           "invalid chain id",
	ErrInvalidSignature:         "invalid signature",
	ErrExceededMaxWriteData:     "exceeded max write data",
	ErrExceededMaxReadData:      "exceeded max read data",
}

func (k ErrorKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// TransactionError rejects a transaction or a withdrawal. It's an ordinary error: the request is
// excluded and the state is left as before the request.
type TransactionError struct {
	Kind ErrorKind
	// Expected and Actual are set by ErrNonce.
	Expected, Actual uint32
	// ExitCode is set by ErrInvalidExitCode.
	ExitCode int8
	msg      string
}

func (e *TransactionError) Error() string {
	switch e.Kind {
	case ErrNonce:
		return fmt.Sprintf("nonce: expected %d, actual %d", e.Expected, e.Actual)
	case ErrInvalidExitCode:
		return fmt.Sprintf("invalid exit code %d", e.ExitCode)
	}
	if e.msg != "" {
		return e.Kind.String() + ": " + e.msg
	}
	return e.Kind.String()
}

func txError(kind ErrorKind, format string, args ...any) *TransactionError {
	return &TransactionError{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// AsTransactionError returns the transaction error carried by err.
func AsTransactionError(err error) (*TransactionError, bool) {
	var txErr *TransactionError
	if errors.As(err, &txErr) {
		return txErr, true
	}
	return nil, false
}

// IsTransactionError reports whether err is a transaction error of kind.
func IsTransactionError(err error, kind ErrorKind) bool {
	txErr, ok := AsTransactionError(err)
	return ok && txErr.Kind == kind
}

// FatalError is an error the executor cannot attribute to the request, like a broken store or a
// backend violating its contract. The producer aborts the block attempt.
type FatalError struct {
	cause error
}

func (e *FatalError) Error() string { return "fatal: " + e.cause.Error() }
func (e *FatalError) Unwrap() error { return e.cause }

// IsFatal reports whether err is fatal. Every non-nil error but transaction errors is.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	_, ok := AsTransactionError(err)
	return !ok
}
