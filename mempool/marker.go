// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

const (
	// AccountSize is the number of bytes in an account identifier.
	AccountSize = 20

	// MarkerSize is the number of bytes in a marker: an 8-byte
	// little-endian nonce followed by the account identifier.
	MarkerSize = 8 + AccountSize
)

// Account identifies the sender of a transaction.
type Account [AccountSize]byte

// String returns the account as a 0x-prefixed hex string.
func (a Account) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// AccountFromHex decodes a hex encoded account.  The 0x prefix is optional.
func AccountFromHex(s string) (Account, error) {
	var a Account
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("malformed account %q: %w", s, err)
	}
	if len(b) != AccountSize {
		return a, fmt.Errorf("malformed account %q: want %d bytes, "+
			"got %d", s, AccountSize, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// Marker is an opaque identity for an (account, nonce) pair.  Transactions
// provide the marker of their own (account, nonce) and require the marker of
// the transaction that must precede them.
type Marker [MarkerSize]byte

// ToMarker returns the marker for the passed nonce and account.
func ToMarker(nonce uint64, account Account) Marker {
	var m Marker
	binary.LittleEndian.PutUint64(m[:8], nonce)
	copy(m[8:], account[:])
	return m
}

// Nonce returns the nonce encoded in the marker.
func (m Marker) Nonce() uint64 {
	return binary.LittleEndian.Uint64(m[:8])
}

// Account returns the account encoded in the marker.
func (m Marker) Account() Account {
	var a Account
	copy(a[:], m[8:])
	return a
}

// String returns a human readable form of the marker.
func (m Marker) String() string {
	return fmt.Sprintf("%v:%d", m.Account(), m.Nonce())
}

// TxMarkers computes the markers the passed transaction requires and
// provides.  A transaction always provides the marker of its own nonce.  It
// requires the marker of the previous nonce from the same sender unless its
// nonce does not exceed chainNonce, the next nonce expected on chain for the
// sender.
func TxMarkers(tx Transaction, chainNonce uint64) (requires, provides []Marker) {
	sender, nonce := tx.Sender(), tx.Nonce()

	provides = []Marker{ToMarker(nonce, sender)}
	if nonce > chainNonce {
		requires = []Marker{ToMarker(nonce-1, sender)}
	}

	return requires, provides
}

// markerSetKey returns a comparable key for an ordered set of markers.
func markerSetKey(markers []Marker) string {
	b := make([]byte, 0, len(markers)*MarkerSize)
	for i := range markers {
		b = append(b, markers[i][:]...)
	}
	return string(b)
}
