// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package mempool provides an in-memory pool of account based transactions that
orders them for block building.

# Markers

Dependencies between transactions are expressed with markers.  A marker is
the fixed width encoding of an (account, nonce) pair.  Every transaction
provides the marker of its own nonce and requires the marker of the previous
nonce of its sender, unless its nonce is the next one expected on chain.

# Pending and Ready Transactions

A submitted transaction whose required markers are all provided, either by the
chain or by a transaction already in the ready set, is ready.  Otherwise it is
pending until the markers it misses become available, at which point it is
promoted.  Ready transactions link to the ready transactions they depend on so
that removing one removes its dependents and pruning one after inclusion
unblocks them.

A transaction providing exactly the same markers as a pool transaction
replaces it only when it pays a strictly higher gas price.  Otherwise the
submission fails with ErrReplacementUnderpriced and the pool is unchanged.

# Ordering

ReadyTransactions returns a TransactionsIterator over a snapshot of the ready
set.  It never yields a transaction before the ready transactions it depends
on.  Among the transactions whose dependencies have been yielded it picks the
highest priority first and breaks ties by arrival.  With OrderFees the
priority is the gas price; with OrderFifo all priorities are equal so arrival
order decides.

# Example Usage

	pool := mempool.New(mempool.DefaultConfig())
	if _, err := pool.AddTransaction(tx); err != nil {
		// Handle rejection.
	}

	it := pool.ReadyTransactions()
	for tx := range it.All() {
		// Include tx in the block template.
	}

	// After the block is connected.
	pool.PruneMarkers(mempool.ToMarker(tx.Nonce(), tx.Sender()))

# Errors

Rejections are returned as PoolError values whose ErrorCode identifies the
reason.  Use errors.Is with an ErrorCode or errors.As with PoolError to inspect
them.  Violations of the insertion contracts of PendingTransactions and
ReadyTransactions are programming errors and panic with an AssertError.
*/
package mempool
