// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"sync"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/davecgh/go-spew/spew"
	"github.com/google/btree"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// requireTopologicalOrder drains a snapshot of r and checks that every
// transaction is yielded exactly once and only after all the ready
// transactions it is linked to as a dependent.
func requireTopologicalOrder(t require.TestingT, r *ReadyTransactions) {
	r.mtx.RLock()
	providers := make(map[chainhash.Hash][]chainhash.Hash)
	for hash, tx := range r.readyTx {
		for _, unlocked := range tx.unlocks {
			providers[unlocked] = append(providers[unlocked], hash)
		}
	}
	total := len(r.readyTx)
	r.mtx.RUnlock()

	yielded := make(map[chainhash.Hash]struct{}, total)
	for tx := range r.GetTransactions().All() {
		hash := tx.Hash()
		require.NotContains(t, yielded, hash)
		for _, provider := range providers[hash] {
			require.Containsf(t, yielded, provider,
				"%v yielded before its provider %v", hash,
				provider)
		}
		yielded[hash] = struct{}{}
	}
	require.Len(t, yielded, total)
}

// TestIteratorFeeOrder checks that independent transactions come out by gas
// price with arrival order breaking ties.
func TestIteratorFeeOrder(t *testing.T) {
	t.Parallel()

	r := NewReadyTransactions()
	low := newTestTx(testAccount(1), 0, 5)
	high := newTestTx(testAccount(2), 0, 50)
	tieFirst := newTestTx(testAccount(3), 0, 20)
	tieSecond := newTestTx(testAccount(4), 0, 20)
	for _, tx := range []*testTx{low, high, tieFirst, tieSecond} {
		mustAddReady(t, r, tx)
	}

	want := []chainhash.Hash{
		high.Hash(), tieFirst.Hash(), tieSecond.Hash(), low.Hash(),
	}
	got := r.GetTransactions().Collect()
	require.Equal(t, want, hashesOf(got), spew.Sdump(got))
}

// TestIteratorFifoOrder checks that all transactions rank equally under the
// fifo order so arrival decides.
func TestIteratorFifoOrder(t *testing.T) {
	t.Parallel()

	r := NewReadyTransactions()
	var want []chainhash.Hash
	for i, price := range []uint64{5, 50, 20, 1} {
		tx := newTestTx(testAccount(byte(i+1)), 0, price)
		ptx := NewPoolTransaction(tx, OrderFifo, 0)
		_, err := r.AddTransaction(
			NewPendingPoolTransaction(ptx, r.ProvidesMarker),
		)
		require.NoError(t, err)
		want = append(want, tx.Hash())
	}

	require.Equal(t, want, hashesOf(r.GetTransactions().Collect()))
}

// TestIteratorDependencyOrder checks that a high priced dependent waits for
// its low priced provider and then competes on priority.
func TestIteratorDependencyOrder(t *testing.T) {
	t.Parallel()

	a, b := testAccount(1), testAccount(2)
	r := NewReadyTransactions()

	a0 := newTestTx(a, 0, 1)
	a1 := newTestTx(a, 1, 100)
	b0 := newTestTx(b, 0, 50)
	b1 := newTestTx(b, 1, 10)
	for _, tx := range []*testTx{a0, a1, b0, b1} {
		mustAddReady(t, r, tx)
	}

	want := []chainhash.Hash{b0.Hash(), b1.Hash(), a0.Hash(), a1.Hash()}
	require.Equal(t, want, hashesOf(r.GetTransactions().Collect()))
}

// TestIteratorSnapshot checks that changes to the ready set after the
// snapshot do not affect the iterator.
func TestIteratorSnapshot(t *testing.T) {
	t.Parallel()

	sender := testAccount(1)
	r := NewReadyTransactions()
	tx0 := newTestTx(sender, 0, 1)
	tx1 := newTestTx(sender, 1, 1)
	mustAddReady(t, r, tx0)
	mustAddReady(t, r, tx1)

	it := r.GetTransactions()
	first, ok := it.Next()
	require.True(t, ok)
	require.Equal(t, tx0.Hash(), first.Hash())

	r.ClearTransactions(tx0.Hash())
	mustAddReady(t, r, newTestTx(testAccount(2), 0, 99))
	require.Equal(t, 1, r.Len())

	rest := it.Collect()
	require.Equal(t, []chainhash.Hash{tx1.Hash()}, hashesOf(rest))

	_, ok = it.Next()
	require.False(t, ok)
}

// TestIteratorSkipsStale checks that entries of the ordered set missing from
// the snapshot table are skipped and that nothing is yielded twice.
func TestIteratorSkipsStale(t *testing.T) {
	t.Parallel()

	live := &poolTransactionRef{
		id: 2, transaction: poolTx(newTestTx(testAccount(1), 0, 1)),
	}
	stale := &poolTransactionRef{
		id: 1, transaction: poolTx(newTestTx(testAccount(2), 0, 9)),
	}

	independent := btree.NewG[*poolTransactionRef](2, betterRef)
	independent.ReplaceOrInsert(live)
	independent.ReplaceOrInsert(stale)
	all := map[chainhash.Hash]*readyTransaction{
		live.transaction.Hash(): {ref: live},
	}

	it := newTransactionsIterator(all, independent)
	it.independent.ReplaceOrInsert(&poolTransactionRef{
		id: 3, transaction: live.transaction,
	})

	got := it.Collect()
	require.Equal(t, []chainhash.Hash{live.transaction.Hash()},
		hashesOf(got))
}

// TestIteratorPriorityAmongEligible builds random ready sets and checks that
// every yielded transaction is the best one among those whose dependencies
// have all been yielded.
func TestIteratorPriorityAmongEligible(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		order := rapid.SampledFrom(
			[]TransactionOrder{OrderFees, OrderFifo},
		).Draw(t, "order")

		r := NewReadyTransactions()
		numSenders := rapid.IntRange(1, 5).Draw(t, "numSenders")
		nextNonce := make([]uint64, numSenders)
		numTxs := rapid.IntRange(1, 30).Draw(t, "numTxs")
		for i := 0; i < numTxs; i++ {
			s := rapid.IntRange(0, numSenders-1).Draw(t, "sender")
			price := rapid.Uint64Range(0, 20).Draw(t, "price")
			tx := newTestTx(testAccount(byte(s+1)), nextNonce[s], price)
			nextNonce[s]++

			ptx := NewPoolTransaction(tx, order, 0)
			_, err := r.AddTransaction(
				NewPendingPoolTransaction(ptx, r.ProvidesMarker),
			)
			require.NoError(t, err)
		}

		// Model the eligible set from the links of the ready set.
		refs := make(map[chainhash.Hash]*poolTransactionRef)
		remaining := make(map[chainhash.Hash]int)
		for hash, tx := range r.readyTx {
			refs[hash] = tx.ref
			remaining[hash] += len(tx.ref.transaction.Requires) -
				tx.requiresOffset
		}

		it := r.GetTransactions()
		for yielded := 0; yielded < numTxs; yielded++ {
			var best *poolTransactionRef
			for hash, n := range remaining {
				if n != 0 {
					continue
				}
				if best == nil || betterRef(refs[hash], best) {
					best = refs[hash]
				}
			}
			require.NotNil(t, best)

			tx, ok := it.Next()
			require.True(t, ok)
			require.Equal(t, best.transaction.Hash(), tx.Hash())

			hash := tx.Hash()
			delete(remaining, hash)
			for _, unlocked := range r.readyTx[hash].unlocks {
				remaining[unlocked]--
			}
		}

		_, ok := it.Next()
		require.False(t, ok)
	})
}

// TestPromotionScenario walks an account through an out of order submission
// using the pending and ready sets directly.
func TestPromotionScenario(t *testing.T) {
	t.Parallel()

	x := testAccount(0x58)
	p := NewPendingTransactions()
	r := NewReadyTransactions()

	nonce0 := poolTx(newTestTx(x, 0, 10))
	nonce1 := poolTx(newTestTx(x, 1, 20))

	// The follow up nonce arrives first and has to wait.
	pending := NewPendingPoolTransaction(nonce1, r.ProvidesMarker)
	require.False(t, pending.IsReady())
	require.Equal(t, 1, pending.MissingMarkers.Cardinality())
	require.True(t, pending.MissingMarkers.Contains(ToMarker(0, x)))
	_, err := p.AddTransaction(pending)
	require.NoError(t, err)

	// The first nonce is ready right away.
	first := NewPendingPoolTransaction(nonce0, r.ProvidesMarker)
	require.True(t, first.IsReady())
	_, err = r.AddTransaction(first)
	require.NoError(t, err)
	require.True(t, r.ProvidesMarker(ToMarker(0, x)))

	unlocked := p.MarkAndUnlock(ToMarker(0, x))
	require.Len(t, unlocked, 1)
	require.Same(t, nonce1, unlocked[0].Transaction)
	require.True(t, unlocked[0].IsReady())

	_, err = r.AddTransaction(unlocked[0])
	require.NoError(t, err)

	// The second nonce depends on the first through the marker index and
	// becomes eligible once the first has been yielded.
	require.Equal(t, []chainhash.Hash{nonce1.Hash()},
		r.readyTx[nonce0.Hash()].unlocks)

	got := hashesOf(r.GetTransactions().Collect())
	require.Equal(t, []chainhash.Hash{nonce0.Hash(), nonce1.Hash()}, got)
}

// TestIteratorConcurrentSnapshots takes snapshots from many goroutines at
// once and checks each of them independently.  Run with -race.
func TestIteratorConcurrentSnapshots(t *testing.T) {
	t.Parallel()

	const (
		numAccounts = 4
		numNonces   = 8
		numReaders  = 8
		numRounds   = 50
	)

	r := NewReadyTransactions()
	for a := byte(0); a < numAccounts; a++ {
		sender := testAccount(a + 1)
		for nonce := uint64(0); nonce < numNonces; nonce++ {
			mustAddReady(t, r, newTestTx(sender, nonce,
				uint64(a)*10+nonce+1))
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < numReaders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for round := 0; round < numRounds; round++ {
				got := r.GetTransactions().Collect()
				if len(got) != numAccounts*numNonces {
					t.Errorf("snapshot yielded %d transactions, "+
						"want %d", len(got),
						numAccounts*numNonces)
					return
				}

				next := make(map[Account]uint64)
				for _, tx := range got {
					sender := tx.Tx.Sender()
					if tx.Tx.Nonce() != next[sender] {
						t.Errorf("%v yielded nonce %d, want %d",
							sender, tx.Tx.Nonce(),
							next[sender])
						return
					}
					next[sender]++
				}
			}
		}()
	}
	wg.Wait()

	require.Equal(t, numAccounts*numNonces, r.Len())
	requireMarkerIndexConsistent(t, r)
}
