// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package builtin

import (
	"bytes"

	"github.com/holiman/uint256"
	"github.com/spacemeshos/go-scale"

	"github.com/godwokenrises/godwoken-sub004/codec"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/xenv"
)

// maxBatch bounds the items of batch messages.
const maxBatch = 256

// Message is a variant of a backend args union. Args are encoded as tag | message.
type Message interface {
	scale.Encodable
	scale.Decodable
	tag() byte
}

// EncodeArgs encodes msg into transaction args.
func EncodeArgs(msg Message) []byte {
	var buf bytes.Buffer
	buf.WriteByte(msg.tag())
	if _, err := msg.EncodeScale(scale.NewEncoder(&buf)); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// decodeArgs decodes args of the union whose variants are created by newMsg.
// Unknown tags and malformed bodies are reported as exits.
func decodeArgs(args []byte, newMsg func(tag byte) Message) (Message, error) {
	if len(args) == 0 {
		return nil, xenv.Exit(xenv.ExitFatalUnknownArgs, "empty args")
	}
	msg := newMsg(args[0])
	if msg == nil {
		return nil, xenv.Exit(xenv.ExitFatalUnknownArgs, "unknown args tag %d", args[0])
	}
	if err := codec.Decode(args[1:], msg); err != nil {
		return nil, xenv.Exit(xenv.ExitFatalInvalidData, "%v", err)
	}
	return msg, nil
}

// Fee is paid in CKB by the registry address of the sender.
type Fee struct {
	RegistryID uint32
	Amount     *uint256.Int
}

// NewFee creates a fee.
func NewFee(registryID uint32, amount uint64) Fee {
	return Fee{registryID, uint256.NewInt(amount)}
}

// IsZero reports whether no fee is paid.
func (f *Fee) IsZero() bool {
	return f.Amount == nil || f.Amount.IsZero()
}

// EncodeScale implements scale codec interface.
func (f *Fee) EncodeScale(e *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeUint32(e, f.RegistryID)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := codec.EncodeU128(e, f.Amount)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (f *Fee) DecodeScale(d *scale.Decoder) (total int, err error) {
	{
		field, n, err := scale.DecodeUint32(d)
		if err != nil {
			return total, err
		}
		total += n
		f.RegistryID = field
	}
	{
		field, n, err := codec.DecodeU128(d)
		if err != nil {
			return total, err
		}
		total += n
		f.Amount = field
	}
	return total, nil
}

// meta contract args.
type (
	// CreateAccount creates a contract or EOA account.
	CreateAccount struct {
		Script gw.Script
		Fee    Fee
	}
	// BatchCreateEOA creates EOA accounts and registers their ethereum addresses.
	BatchCreateEOA struct {
		Scripts []*gw.Script
		Fee     Fee
	}
)

func (*CreateAccount) tag() byte  { return 0 }
func (*BatchCreateEOA) tag() byte { return 1 }

func newMetaMessage(tag byte) Message {
	switch tag {
	case 0:
		return &CreateAccount{}
	case 1:
		return &BatchCreateEOA{}
	}
	return nil
}

// EncodeScale implements scale codec interface.
func (m *CreateAccount) EncodeScale(e *scale.Encoder) (total int, err error) {
	{
		n, err := m.Script.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := m.Fee.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (m *CreateAccount) DecodeScale(d *scale.Decoder) (total int, err error) {
	{
		n, err := m.Script.DecodeScale(d)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := m.Fee.DecodeScale(d)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// EncodeScale implements scale codec interface.
func (m *BatchCreateEOA) EncodeScale(e *scale.Encoder) (total int, err error) {
	{
		n, err := codec.EncodeSlice(e, m.Scripts, maxBatch)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := m.Fee.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (m *BatchCreateEOA) DecodeScale(d *scale.Decoder) (total int, err error) {
	{
		field, n, err := codec.DecodeSlice[gw.Script](d, maxBatch)
		if err != nil {
			return total, err
		}
		total += n
		m.Scripts = field
	}
	{
		n, err := m.Fee.DecodeScale(d)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// sUDT args.
type (
	// SUDTQuery returns the balance of Address.
	SUDTQuery struct {
		Address gw.RegistryAddress
	}
	// SUDTTransfer moves Amount from the sender to To.
	SUDTTransfer struct {
		To     gw.RegistryAddress
		Amount *uint256.Int
		Fee    Fee
	}
)

func (*SUDTQuery) tag() byte    { return 0 }
func (*SUDTTransfer) tag() byte { return 1 }

func newSUDTMessage(tag byte) Message {
	switch tag {
	case 0:
		return &SUDTQuery{}
	case 1:
		return &SUDTTransfer{}
	}
	return nil
}

// EncodeScale implements scale codec interface.
func (m *SUDTQuery) EncodeScale(e *scale.Encoder) (int, error) {
	return m.Address.EncodeScale(e)
}

// DecodeScale implements scale codec interface.
func (m *SUDTQuery) DecodeScale(d *scale.Decoder) (int, error) {
	return m.Address.DecodeScale(d)
}

// EncodeScale implements scale codec interface.
func (m *SUDTTransfer) EncodeScale(e *scale.Encoder) (total int, err error) {
	{
		n, err := m.To.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := codec.EncodeU256(e, m.Amount)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := m.Fee.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (m *SUDTTransfer) DecodeScale(d *scale.Decoder) (total int, err error) {
	{
		n, err := m.To.DecodeScale(d)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := codec.DecodeU256(d)
		if err != nil {
			return total, err
		}
		total += n
		m.Amount = field
	}
	{
		n, err := m.Fee.DecodeScale(d)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// eth address registry args.
type (
	// EthToGw returns the script hash an ethereum address is mapped to.
	EthToGw struct {
		Address gw.Address
	}
	// GwToEth returns the registry address a script hash is mapped to.
	GwToEth struct {
		ScriptHash gw.Bytes32
	}
	// SetMapping registers the ethereum address of an EOA account.
	SetMapping struct {
		ScriptHash gw.Bytes32
		Fee        Fee
	}
	// BatchSetMapping registers ethereum addresses of several EOA accounts.
	BatchSetMapping struct {
		ScriptHashes []gw.Bytes32
		Fee          Fee
	}
)

func (*EthToGw) tag() byte         { return 0 }
func (*GwToEth) tag() byte         { return 1 }
func (*SetMapping) tag() byte      { return 2 }
func (*BatchSetMapping) tag() byte { return 3 }

func newRegistryMessage(tag byte) Message {
	switch tag {
	case 0:
		return &EthToGw{}
	case 1:
		return &GwToEth{}
	case 2:
		return &SetMapping{}
	case 3:
		return &BatchSetMapping{}
	}
	return nil
}

// EncodeScale implements scale codec interface.
func (m *EthToGw) EncodeScale(e *scale.Encoder) (int, error) {
	return scale.EncodeByteArray(e, m.Address[:])
}

// DecodeScale implements scale codec interface.
func (m *EthToGw) DecodeScale(d *scale.Decoder) (int, error) {
	return scale.DecodeByteArray(d, m.Address[:])
}

// EncodeScale implements scale codec interface.
func (m *GwToEth) EncodeScale(e *scale.Encoder) (int, error) {
	return m.ScriptHash.EncodeScale(e)
}

// DecodeScale implements scale codec interface.
func (m *GwToEth) DecodeScale(d *scale.Decoder) (int, error) {
	return m.ScriptHash.DecodeScale(d)
}

// EncodeScale implements scale codec interface.
func (m *SetMapping) EncodeScale(e *scale.Encoder) (total int, err error) {
	{
		n, err := m.ScriptHash.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := m.Fee.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (m *SetMapping) DecodeScale(d *scale.Decoder) (total int, err error) {
	{
		n, err := m.ScriptHash.DecodeScale(d)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := m.Fee.DecodeScale(d)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// EncodeScale implements scale codec interface.
func (m *BatchSetMapping) EncodeScale(e *scale.Encoder) (total int, err error) {
	{
		n, err := codec.EncodeHashes(e, m.ScriptHashes, maxBatch)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := m.Fee.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (m *BatchSetMapping) DecodeScale(d *scale.Decoder) (total int, err error) {
	{
		field, n, err := codec.DecodeHashes[gw.Bytes32](d, maxBatch)
		if err != nil {
			return total, err
		}
		total += n
		m.ScriptHashes = field
	}
	{
		n, err := m.Fee.DecodeScale(d)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
