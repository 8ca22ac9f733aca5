// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import (
	"context"

	"github.com/godwokenrises/godwoken-sub004/block"
	"github.com/godwokenrises/godwoken-sub004/rollup"
	"github.com/godwokenrises/godwoken-sub004/tx"
)

// BaseChain is the node's view of the base chain: the rollup cell, the deposits waiting to be
// collected, and the transactions submitting blocks.
type BaseChain interface {
	// GlobalState returns the global state of the rollup cell.
	GlobalState(ctx context.Context) (*block.GlobalState, error)
	// CollectDeposits returns the deposits created since the last call, in base chain order.
	CollectDeposits(ctx context.Context) (tx.Deposits, error)
	// SubmitBlock commits the action in a base chain transaction and returns the global state
	// after it.
	SubmitBlock(ctx context.Context, action *rollup.SubmitBlock) (*block.GlobalState, error)
}

// Challenger is implemented by base chains the node can dispute blocks on.
type Challenger interface {
	// Challenge halts the rollup on target.
	Challenge(ctx context.Context, action *rollup.EnterChallenge, target *rollup.ChallengeTarget) (*block.GlobalState, error)
	// Revert reverts the challenged blocks. It's rejected until the challenge matures.
	Revert(ctx context.Context, action *rollup.Revert) (*block.GlobalState, error)
}
