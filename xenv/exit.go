// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package xenv

import (
	"fmt"

	"github.com/pkg/errors"
)

// Exit codes reported in receipts.
const (
	ExitSuccess int8 = 0
	// ExitExceededCycles is the exit code of a run stopped by the cycle meter.
	ExitExceededCycles int8 = -1

	ExitFatalBufferOverflow    int8 = 50
	ExitFatalInvalidContext    int8 = 51
	ExitFatalInvalidData       int8 = 52
	ExitFatalMismatchReturn    int8 = 53
	ExitFatalUnknownArgs       int8 = 54
	ExitFatalInvalidSUDTScript int8 = 55

	ExitErrorDuplicatedScriptHash  int8 = 80
	ExitErrorUnknownScriptCodeHash int8 = 81
	ExitErrorInvalidAccountScript  int8 = 82
	ExitErrorNotFound              int8 = 83
	ExitErrorRecover               int8 = 84
	ExitErrorAccountNotExists      int8 = 85

	ExitSUDTInsufficientBalance int8 = 92
	ExitSUDTAmountOverflow      int8 = 93
	ExitSUDTInvalidAddress      int8 = 95

	ExitRegistryDuplicateMapping int8 = 101
)

// ExitError stops a backend with a non-zero exit code. The transaction becomes a failed one.
type ExitError struct {
	Code int8
	msg  string
}

func (e *ExitError) Error() string {
	if e.msg == "" {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return fmt.Sprintf("exit code %d: %s", e.Code, e.msg)
}

// Exit returns an ExitError.
func Exit(code int8, format string, args ...any) error {
	return &ExitError{Code: code, msg: fmt.Sprintf(format, args...)}
}

// ExitCodeOf returns the exit code carried by err, and whether err is an exit.
func ExitCodeOf(err error) (int8, bool) {
	if err == nil {
		return ExitSuccess, true
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code, true
	}
	if errors.Is(err, ErrExceededCycles) {
		return ExitExceededCycles, true
	}
	return 0, false
}

// ErrExceededCycles stops a backend whose cycle budget is exhausted.
var ErrExceededCycles = errors.New("exceeded cycles")

// errors that reject the transaction instead of failing it.
var (
	ErrExceededMaxReturnData = errors.New("exceeded max return data")
	ErrExceededMaxWriteData  = errors.New("exceeded max write data")
	ErrExceededMaxReadData   = errors.New("exceeded max read data")
)
