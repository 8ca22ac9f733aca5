// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rollup

import (
	"fmt"

	"github.com/pkg/errors"
)

// RejectedError is returned when a base chain transaction can't be accepted by the rollup.
type RejectedError struct {
	Action string
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("rollup: %v rejected: %v", e.Action, e.Reason)
}

func rejectf(action, format string, args ...any) error {
	return &RejectedError{Action: action, Reason: fmt.Sprintf(format, args...)}
}

// IsRejected reports whether err is a RejectedError.
func IsRejected(err error) bool {
	var rejected *RejectedError
	return errors.As(err, &rejected)
}
