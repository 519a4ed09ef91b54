// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/holiman/uint256"
)

// Transaction is the view of a decoded, signature-checked transaction that the
// pool needs.  Decoding and sender recovery happen upstream.
type Transaction interface {
	// Hash returns the transaction identifier.
	Hash() chainhash.Hash

	// Sender returns the account that signed the transaction.
	Sender() Account

	// Nonce returns the sender nonce of the transaction.
	Nonce() uint64

	// GasPrice returns the price per unit of gas the transaction pays.
	GasPrice() *uint256.Int
}

// PoolTransaction wraps a submitted transaction with the markers it requires
// and provides and its priority.  It is immutable once constructed and is
// shared by pointer between every index of the pool.
type PoolTransaction struct {
	// Tx is the underlying transaction.
	Tx Transaction

	// Requires holds the markers that must be provided by other
	// transactions before this one can be included.
	Requires []Marker

	// Provides holds the markers this transaction satisfies.
	Provides []Marker

	// Priority ranks the transaction among others that are ready at the
	// same time.  Higher is better.
	Priority uint256.Int
}

// NewPoolTransaction wraps tx, deriving its markers from the sender and nonce
// and its priority from order.  chainNonce is the next nonce expected on chain
// for the sender.
func NewPoolTransaction(tx Transaction, order TransactionOrder,
	chainNonce uint64) *PoolTransaction {

	requires, provides := TxMarkers(tx, chainNonce)
	return &PoolTransaction{
		Tx:       tx,
		Requires: requires,
		Provides: provides,
		Priority: order.Priority(tx),
	}
}

// Hash returns the hash of the wrapped transaction.
func (tx *PoolTransaction) Hash() chainhash.Hash {
	return tx.Tx.Hash()
}

// GasPrice returns the gas price of the wrapped transaction.  A nil price from
// the wrapped transaction is reported as zero.
func (tx *PoolTransaction) GasPrice() *uint256.Int {
	if price := tx.Tx.GasPrice(); price != nil {
		return price
	}
	return new(uint256.Int)
}

// String returns a short description of the transaction for logging.
func (tx *PoolTransaction) String() string {
	return fmt.Sprintf("%v (sender %v, nonce %d, gas price %s)",
		tx.Hash(), tx.Tx.Sender(), tx.Tx.Nonce(), tx.GasPrice().Dec())
}

// PendingPoolTransaction is a pool transaction together with the subset of its
// required markers that are not yet provided by a ready transaction.
type PendingPoolTransaction struct {
	// Transaction is the wrapped pool transaction.
	Transaction *PoolTransaction

	// MissingMarkers holds the required markers that are still missing.
	MissingMarkers mapset.Set[Marker]

	// AddedAt records when the transaction entered the pool.
	AddedAt time.Time
}

// NewPendingPoolTransaction wraps tx and computes its missing markers using
// provided, which reports whether a marker is already provided.  A nil
// provided function treats every required marker as missing.
func NewPendingPoolTransaction(tx *PoolTransaction,
	provided func(Marker) bool) *PendingPoolTransaction {

	missing := mapset.NewThreadUnsafeSet[Marker]()
	for _, marker := range tx.Requires {
		if provided == nil || !provided(marker) {
			missing.Add(marker)
		}
	}

	return &PendingPoolTransaction{
		Transaction:    tx,
		MissingMarkers: missing,
		AddedAt:        time.Now(),
	}
}

// IsReady returns whether all required markers are satisfied.
func (p *PendingPoolTransaction) IsReady() bool {
	return p.MissingMarkers.Cardinality() == 0
}

// Mark records that marker is now provided.
func (p *PendingPoolTransaction) Mark(marker Marker) {
	p.MissingMarkers.Remove(marker)
}

// poolTransactionRef pairs a transaction with the insertion id assigned by
// the ready set.  The id breaks priority ties in favor of earlier arrivals.
type poolTransactionRef struct {
	id          uint64
	transaction *PoolTransaction
}

// betterRef reports whether a should be included before b: higher priority
// first, then lower insertion id.
func betterRef(a, b *poolTransactionRef) bool {
	if c := a.transaction.Priority.Cmp(&b.transaction.Priority); c != 0 {
		return c > 0
	}
	return a.id < b.id
}
