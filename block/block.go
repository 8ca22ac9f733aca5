// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package block

import (
	"fmt"
	"sync/atomic"

	"github.com/spacemeshos/go-scale"

	"github.com/godwokenrises/godwoken-sub004/codec"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/tx"
)

// Block is an immutable layer2 block.
type Block struct {
	header      *Header
	deposits    tx.Deposits
	txs         tx.Transactions
	withdrawals tx.Withdrawals

	cache struct {
		size atomic.Int64
	}
}

// Compose composes a block with header and bodies.
func Compose(header *Header, deposits tx.Deposits, txs tx.Transactions, withdrawals tx.Withdrawals) *Block {
	return &Block{
		header:      header,
		deposits:    append(tx.Deposits(nil), deposits...),
		txs:         append(tx.Transactions(nil), txs...),
		withdrawals: append(tx.Withdrawals(nil), withdrawals...),
	}
}

// Header returns the block header.
func (b *Block) Header() *Header { return b.header }

// Hash returns the header hash.
func (b *Block) Hash() gw.Bytes32 { return b.header.Hash() }

// Deposits returns a copy of the deposits.
func (b *Block) Deposits() tx.Deposits {
	return append(tx.Deposits(nil), b.deposits...)
}

// Transactions returns a copy of the transactions.
func (b *Block) Transactions() tx.Transactions {
	return append(tx.Transactions(nil), b.txs...)
}

// Withdrawals returns a copy of the withdrawals.
func (b *Block) Withdrawals() tx.Withdrawals {
	return append(tx.Withdrawals(nil), b.withdrawals...)
}

// Size returns the encoded size of the block.
func (b *Block) Size() int {
	if cached := b.cache.size.Load(); cached > 0 {
		return int(cached)
	}
	size := len(codec.MustEncode(b))
	b.cache.size.Store(int64(size))
	return size
}

func (b *Block) String() string {
	return fmt.Sprintf(`Block(%v)
%v
Deposits: %v
Transactions: %v
Withdrawals: %v`, b.Size(), b.header, len(b.deposits), len(b.txs), len(b.withdrawals))
}

// EncodeScale implements scale codec interface.
func (b *Block) EncodeScale(e *scale.Encoder) (total int, err error) {
	{
		n, err := b.header.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := codec.EncodeSlice(e, b.deposits, codec.MaxItems)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := codec.EncodeSlice(e, b.txs, codec.MaxItems)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := codec.EncodeSlice(e, b.withdrawals, codec.MaxItems)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (b *Block) DecodeScale(d *scale.Decoder) (total int, err error) {
	var header Header
	{
		n, err := header.DecodeScale(d)
		if err != nil {
			return total, err
		}
		total += n
	}
	deposits, n, err := codec.DecodeSlice[tx.Deposit](d, codec.MaxItems)
	if err != nil {
		return total, err
	}
	total += n
	txs, n, err := codec.DecodeSlice[tx.Transaction](d, codec.MaxItems)
	if err != nil {
		return total, err
	}
	total += n
	withdrawals, n, err := codec.DecodeSlice[tx.Withdrawal](d, codec.MaxItems)
	if err != nil {
		return total, err
	}
	total += n

	*b = Block{
		header:      &header,
		deposits:    deposits,
		txs:         txs,
		withdrawals: withdrawals,
	}
	return total, nil
}
