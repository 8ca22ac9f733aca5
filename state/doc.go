// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package state manages the layer2 account state.
// It follows the flow as bellow:
//
//	         o
//	         |
//	[ revertable state ]
//	         |
//	  [ stacked map ] -> [ journal ] -> [ flush ] -> [ updated tree ] -> [ stage ]
//	         |
//	  [ value cache ]
//	         |
//	 [ sparse merkle tree | witness tree ]
//
// Every account field, account kv pair, script hash index and data hash marker is a 32 bytes
// value in one sparse merkle tree. Scripts and data themselves live in a side store and are
// committed by hash only.
package state
