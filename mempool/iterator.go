// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"iter"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/google/btree"
)

// awaitingTransaction tracks how many required markers of a transaction have
// been satisfied during one iteration pass.
type awaitingTransaction struct {
	satisfied int
	ref       *poolTransactionRef
}

// TransactionsIterator walks a snapshot of the ready set in an order that is
// safe for sequential inclusion in a block: a transaction is never yielded
// before the ready transactions it depends on, and among the transactions
// whose dependencies have all been yielded the one with the highest priority
// comes first, earlier arrivals winning ties.
//
// The iterator is not safe for concurrent use.  Changes to the ready set after
// the snapshot was taken are not reflected.
type TransactionsIterator struct {
	// all is the snapshot of the ready set.
	all map[chainhash.Hash]*readyTransaction

	// awaiting holds transactions with some but not all dependencies
	// yielded so far.
	awaiting map[chainhash.Hash]awaitingTransaction

	// independent holds the transactions that can be yielded next, best
	// first.
	independent *btree.BTreeG[*poolTransactionRef]

	// yielded guards against yielding a transaction twice.
	yielded map[chainhash.Hash]struct{}
}

// newTransactionsIterator returns an iterator over the passed snapshot.  It
// takes ownership of both arguments.
func newTransactionsIterator(all map[chainhash.Hash]*readyTransaction,
	independent *btree.BTreeG[*poolTransactionRef]) *TransactionsIterator {

	return &TransactionsIterator{
		all:         all,
		awaiting:    make(map[chainhash.Hash]awaitingTransaction),
		independent: independent,
		yielded:     make(map[chainhash.Hash]struct{}, len(all)),
	}
}

// Next returns the next transaction to include.  It returns false once no
// transaction is left.
func (it *TransactionsIterator) Next() (*PoolTransaction, bool) {
	for {
		best, ok := it.independent.DeleteMin()
		if !ok {
			return nil, false
		}

		hash := best.transaction.Hash()
		ready, ok := it.all[hash]
		if !ok {
			continue
		}
		if _, done := it.yielded[hash]; done {
			continue
		}
		it.yielded[hash] = struct{}{}

		for _, unlocked := range ready.unlocks {
			it.satisfy(unlocked)
		}

		return best.transaction, true
	}
}

// satisfy records that one more dependency of the transaction with the passed
// hash has been yielded and makes it eligible once all are.
func (it *TransactionsIterator) satisfy(hash chainhash.Hash) {
	var waiting awaitingTransaction
	if aw, ok := it.awaiting[hash]; ok {
		delete(it.awaiting, hash)
		waiting = aw
	} else if next, ok := it.all[hash]; ok {
		waiting = awaitingTransaction{
			satisfied: next.requiresOffset,
			ref:       next.ref,
		}
	} else {
		return
	}
	waiting.satisfied++

	if waiting.satisfied >= len(waiting.ref.transaction.Requires) {
		it.independent.ReplaceOrInsert(waiting.ref)
		return
	}
	it.awaiting[hash] = waiting
}

// All returns an iterator that drains the remaining transactions.
func (it *TransactionsIterator) All() iter.Seq[*PoolTransaction] {
	return func(yield func(*PoolTransaction) bool) {
		for {
			tx, ok := it.Next()
			if !ok || !yield(tx) {
				return
			}
		}
	}
}

// Collect drains the remaining transactions into a slice.
func (it *TransactionsIterator) Collect() []*PoolTransaction {
	var txs []*PoolTransaction
	for tx := range it.All() {
		txs = append(txs, tx)
	}
	return txs
}
