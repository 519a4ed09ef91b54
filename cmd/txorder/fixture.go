// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/txpool/mempool"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"
)

// fixtureTx is a transaction loaded from a fixture file.  It implements the
// mempool.Transaction interface.
type fixtureTx struct {
	hash     chainhash.Hash
	sender   mempool.Account
	nonce    uint64
	gasPrice *uint256.Int
}

// Ensure fixtureTx implements the mempool.Transaction interface.
var _ mempool.Transaction = (*fixtureTx)(nil)

func (tx *fixtureTx) Hash() chainhash.Hash    { return tx.hash }
func (tx *fixtureTx) Sender() mempool.Account { return tx.sender }
func (tx *fixtureTx) Nonce() uint64           { return tx.nonce }
func (tx *fixtureTx) GasPrice() *uint256.Int  { return tx.gasPrice }

// fixtureTxJSON is the JSON form of a fixture transaction.  The gas price is a
// decimal string so it is not limited to 64 bits.
type fixtureTxJSON struct {
	Hash     string `json:"hash,omitempty"`
	Sender   string `json:"sender"`
	Nonce    uint64 `json:"nonce"`
	GasPrice string `json:"gasPrice"`
}

// fixtureJSON is the JSON form of a fixture file.
type fixtureJSON struct {
	ChainNonces  map[string]uint64 `json:"chainNonces,omitempty"`
	Transactions []fixtureTxJSON   `json:"transactions"`
}

// fixture holds the decoded contents of a fixture file.
type fixture struct {
	chainNonces map[mempool.Account]uint64
	txs         []*fixtureTx
}

// chainNonce returns the next on-chain nonce of account.
func (f *fixture) chainNonce(account mempool.Account) uint64 {
	return f.chainNonces[account]
}

// fixtureTxHash derives a transaction hash as the Keccak-256 digest of the
// sender, the little-endian nonce and the big-endian gas price.
func fixtureTxHash(sender mempool.Account, nonce uint64,
	gasPrice *uint256.Int) chainhash.Hash {

	var buf [mempool.AccountSize + 8 + 32]byte
	copy(buf[:], sender[:])
	binary.LittleEndian.PutUint64(buf[mempool.AccountSize:], nonce)
	price := gasPrice.Bytes32()
	copy(buf[mempool.AccountSize+8:], price[:])

	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(buf[:])

	var hash chainhash.Hash
	copy(hash[:], hasher.Sum(nil))
	return hash
}

// decodeFixtureTx converts the JSON form of a transaction.
func decodeFixtureTx(in *fixtureTxJSON) (*fixtureTx, error) {
	sender, err := mempool.AccountFromHex(in.Sender)
	if err != nil {
		return nil, err
	}

	gasPrice := new(uint256.Int)
	if in.GasPrice != "" {
		gasPrice, err = uint256.FromDecimal(in.GasPrice)
		if err != nil {
			return nil, fmt.Errorf("malformed gas price %q: %w",
				in.GasPrice, err)
		}
	}

	tx := &fixtureTx{
		sender:   sender,
		nonce:    in.Nonce,
		gasPrice: gasPrice,
	}
	if in.Hash == "" {
		tx.hash = fixtureTxHash(sender, in.Nonce, gasPrice)
		return tx, nil
	}

	hash, err := chainhash.NewHashFromStr(in.Hash)
	if err != nil {
		return nil, fmt.Errorf("malformed hash %q: %w", in.Hash, err)
	}
	tx.hash = *hash
	return tx, nil
}

// loadFixture decodes a fixture file from r.
func loadFixture(r io.Reader) (*fixture, error) {
	var in fixtureJSON
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("unable to decode fixture: %w", err)
	}

	f := &fixture{
		chainNonces: make(map[mempool.Account]uint64, len(in.ChainNonces)),
		txs:         make([]*fixtureTx, 0, len(in.Transactions)),
	}
	for s, nonce := range in.ChainNonces {
		account, err := mempool.AccountFromHex(s)
		if err != nil {
			return nil, err
		}
		f.chainNonces[account] = nonce
	}
	for i := range in.Transactions {
		tx, err := decodeFixtureTx(&in.Transactions[i])
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		f.txs = append(f.txs, tx)
	}

	return f, nil
}
