// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"fmt"
	"iter"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	mapset "github.com/deckarep/golang-set/v2"
)

// PendingTransactions holds transactions whose required markers are not all
// provided yet.  Transactions leave the set when MarkAndUnlock reports them as
// unlocked or when they are removed.
//
// PendingTransactions is not safe for concurrent use; TxPool serializes
// access to it.
type PendingTransactions struct {
	// requiredMarkers maps a missing marker to the hashes of the waiting
	// transactions that require it.
	requiredMarkers map[Marker]mapset.Set[chainhash.Hash]

	// waitingMarkers maps the provides set of a waiting transaction to its
	// hash.  It is used to find the transaction a new submission would
	// replace.
	waitingMarkers map[string]chainhash.Hash

	// waitingQueue holds every waiting transaction by hash.
	waitingQueue map[chainhash.Hash]*PendingPoolTransaction
}

// NewPendingTransactions returns an empty pending set.
func NewPendingTransactions() *PendingTransactions {
	return &PendingTransactions{
		requiredMarkers: make(map[Marker]mapset.Set[chainhash.Hash]),
		waitingMarkers:  make(map[string]chainhash.Hash),
		waitingQueue:    make(map[chainhash.Hash]*PendingPoolTransaction),
	}
}

// AddTransaction adds a transaction that still misses at least one marker.
//
// When a waiting transaction already provides the same markers the new one
// must pay a strictly higher gas price.  Otherwise a PoolError with code
// ErrReplacementUnderpriced carrying the rejected transaction is returned and
// the set is left untouched.  On success the superseded transactions, if
// any, are removed and returned.
//
// It panics if tx is already ready or already present.
func (p *PendingTransactions) AddTransaction(
	tx *PendingPoolTransaction) ([]*PoolTransaction, error) {

	hash := tx.Transaction.Hash()
	if tx.IsReady() {
		panic(AssertError(fmt.Sprintf("pending transaction %v has no "+
			"missing markers", hash)))
	}
	if _, exists := p.waitingQueue[hash]; exists {
		panic(AssertError(fmt.Sprintf("transaction %v is already "+
			"pending", hash)))
	}

	key := markerSetKey(tx.Transaction.Provides)
	var replaced []*PoolTransaction
	if otherHash, ok := p.waitingMarkers[key]; ok {
		if other, ok := p.waitingQueue[otherHash]; ok {
			newPrice := tx.Transaction.GasPrice()
			if newPrice.Cmp(other.Transaction.GasPrice()) <= 0 {
				log.Warnf("Pending replacement transaction %v "+
					"underpriced", hash)
				str := fmt.Sprintf("replacement transaction %v "+
					"underpriced: gas price %s does not exceed "+
					"%s of pending transaction %v", hash,
					newPrice.Dec(),
					other.Transaction.GasPrice().Dec(),
					otherHash)
				return nil, poolError(ErrReplacementUnderpriced,
					tx.Transaction, str)
			}

			log.Debugf("Replacing pending transaction %v with %v",
				otherHash, hash)
			replaced = p.Remove(otherHash)
		}
	}

	for _, marker := range tx.MissingMarkers.ToSlice() {
		waiting, ok := p.requiredMarkers[marker]
		if !ok {
			waiting = mapset.NewThreadUnsafeSet[chainhash.Hash]()
			p.requiredMarkers[marker] = waiting
		}
		waiting.Add(hash)
	}
	p.waitingMarkers[key] = hash
	p.waitingQueue[hash] = tx

	log.Tracef("Added pending transaction %v (missing %d markers)", hash,
		tx.MissingMarkers.Cardinality())

	return replaced, nil
}

// MarkAndUnlock records that the passed markers are now provided.  Every
// waiting transaction left with no missing markers is removed from the set and
// returned.  The order of the returned transactions is unspecified.
func (p *PendingTransactions) MarkAndUnlock(
	markers ...Marker) []*PendingPoolTransaction {

	var unlocked []*PendingPoolTransaction
	for _, marker := range markers {
		waiting, ok := p.requiredMarkers[marker]
		if !ok {
			continue
		}
		delete(p.requiredMarkers, marker)

		for _, hash := range waiting.ToSlice() {
			tx, ok := p.waitingQueue[hash]
			if !ok {
				continue
			}
			tx.Mark(marker)
			if !tx.IsReady() {
				continue
			}

			delete(p.waitingQueue, hash)
			p.removeWaitingMarkers(tx)
			unlocked = append(unlocked, tx)
		}
	}

	return unlocked
}

// Remove removes the transactions with the passed hashes, cleaning up their
// marker bookkeeping, and returns the removed transactions.  Unknown hashes
// are ignored.
func (p *PendingTransactions) Remove(
	hashes ...chainhash.Hash) []*PoolTransaction {

	var removed []*PoolTransaction
	for _, hash := range hashes {
		tx, ok := p.waitingQueue[hash]
		if !ok {
			continue
		}
		delete(p.waitingQueue, hash)
		p.removeWaitingMarkers(tx)

		for _, marker := range tx.MissingMarkers.ToSlice() {
			waiting, ok := p.requiredMarkers[marker]
			if !ok {
				continue
			}
			waiting.Remove(hash)
			if waiting.Cardinality() == 0 {
				delete(p.requiredMarkers, marker)
			}
		}

		removed = append(removed, tx.Transaction)
	}

	return removed
}

// removeWaitingMarkers drops the provides entry of tx if it still points at
// tx.
func (p *PendingTransactions) removeWaitingMarkers(tx *PendingPoolTransaction) {
	key := markerSetKey(tx.Transaction.Provides)
	if p.waitingMarkers[key] == tx.Transaction.Hash() {
		delete(p.waitingMarkers, key)
	}
}

// Contains returns whether a transaction with the passed hash is pending.
func (p *PendingTransactions) Contains(hash chainhash.Hash) bool {
	_, ok := p.waitingQueue[hash]
	return ok
}

// Get returns the pending transaction with the passed hash.
func (p *PendingTransactions) Get(
	hash chainhash.Hash) (*PendingPoolTransaction, bool) {

	tx, ok := p.waitingQueue[hash]
	return tx, ok
}

// Len returns the number of pending transactions.
func (p *PendingTransactions) Len() int {
	return len(p.waitingQueue)
}

// IsEmpty returns whether the set holds no transactions.
func (p *PendingTransactions) IsEmpty() bool {
	return len(p.waitingQueue) == 0
}

// Clear removes every transaction.
func (p *PendingTransactions) Clear() {
	clear(p.requiredMarkers)
	clear(p.waitingMarkers)
	clear(p.waitingQueue)
}

// Transactions returns an iterator over a snapshot of the pending
// transactions.  The snapshot is taken when the iterator is created.
func (p *PendingTransactions) Transactions() iter.Seq[*PoolTransaction] {
	snapshot := make([]*PoolTransaction, 0, len(p.waitingQueue))
	for _, tx := range p.waitingQueue {
		snapshot = append(snapshot, tx.Transaction)
	}

	return func(yield func(*PoolTransaction) bool) {
		for _, tx := range snapshot {
			if !yield(tx) {
				return
			}
		}
	}
}
