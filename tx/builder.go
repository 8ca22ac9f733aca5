// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tx

// Builder to make it easy to build transaction.
type Builder struct {
	raw raw
}

// NewBuilder creates a builder for a tx bound to chainID.
func NewBuilder(chainID uint64) *Builder {
	return &Builder{raw: raw{ChainID: chainID}}
}

// From sets the sender account id.
func (b *Builder) From(id uint32) *Builder {
	b.raw.FromID = id
	return b
}

// To sets the called account id.
func (b *Builder) To(id uint32) *Builder {
	b.raw.ToID = id
	return b
}

// Nonce sets the sender nonce.
func (b *Builder) Nonce(nonce uint32) *Builder {
	b.raw.Nonce = nonce
	return b
}

// Args sets the call args.
func (b *Builder) Args(args []byte) *Builder {
	b.raw.Args = append([]byte(nil), args...)
	return b
}

// Build builds an unsigned tx.
func (b *Builder) Build() *Transaction {
	tx := Transaction{body: body{raw: b.raw}}
	tx.body.raw.Args = append([]byte(nil), b.raw.Args...)
	return &tx
}
