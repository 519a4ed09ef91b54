// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/btree"
)

// independentDegree is the degree of the b-tree backing the independent set.
const independentDegree = 32

// readyTransaction is the ready set entry of a transaction.
type readyTransaction struct {
	// ref is the transaction with its insertion id.
	ref *poolTransactionRef

	// unlocks lists the ready transactions that require a marker this
	// transaction provides.
	unlocks []chainhash.Hash

	// requiresOffset counts the required markers that were not provided
	// by another ready transaction, either at insertion time or after
	// their provider was pruned.  The transaction is independent once it
	// equals the number of required markers.
	requiresOffset int
}

// clone returns a copy of the entry that does not share the unlocks slice.
func (t *readyTransaction) clone() *readyTransaction {
	return &readyTransaction{
		ref:            t.ref,
		unlocks:        slices.Clone(t.unlocks),
		requiresOffset: t.requiresOffset,
	}
}

// ReadyTransactions holds transactions whose required markers are all
// satisfied, either by the chain or by another ready transaction.
//
// Every marker is provided by at most one ready transaction.  The
// transactions with no ready transaction left to wait for form the
// independent set, ordered by priority and then by insertion id.
//
// Read-only methods may run concurrently.  Mutating methods must be
// serialized by the caller, as TxPool does, since the marker index, the
// transaction table and the independent set change together.
type ReadyTransactions struct {
	// nextID is the insertion id handed to the next transaction.
	nextID uint64

	// providedMarkers maps each marker to the ready transaction that
	// provides it.
	providedMarkers map[Marker]chainhash.Hash

	// readyTx holds every ready transaction by hash.
	readyTx map[chainhash.Hash]*readyTransaction

	// independent holds the ready transactions that do not depend on any
	// other ready transaction, best first.
	independent *btree.BTreeG[*poolTransactionRef]

	// mtx guards the fields above.  Readers take the read lock so
	// snapshots for block building do not block each other.
	mtx sync.RWMutex
}

// NewReadyTransactions returns an empty ready set.
func NewReadyTransactions() *ReadyTransactions {
	return &ReadyTransactions{
		providedMarkers: make(map[Marker]chainhash.Hash),
		readyTx:         make(map[chainhash.Hash]*readyTransaction),
		independent: btree.NewG[*poolTransactionRef](
			independentDegree, betterRef,
		),
	}
}

// AddTransaction inserts a transaction whose required markers are all
// satisfied.
//
// If a ready transaction already provides exactly the same markers, the new
// transaction must pay a strictly higher gas price.  Otherwise a PoolError
// with code ErrReplacementUnderpriced carrying the new transaction is
// returned and the set is left untouched.  Superseded transactions are
// removed and returned; the ready transactions that depended on them are
// handed over to the new transaction.
//
// It panics if tx still misses markers or is already present.
func (r *ReadyTransactions) AddTransaction(
	tx *PendingPoolTransaction) ([]*PoolTransaction, error) {

	r.mtx.Lock()
	defer r.mtx.Unlock()

	ptx := tx.Transaction
	hash := ptx.Hash()
	if !tx.IsReady() {
		panic(AssertError(fmt.Sprintf("ready transaction %v still misses "+
			"%d markers", hash, tx.MissingMarkers.Cardinality())))
	}
	if _, exists := r.readyTx[hash]; exists {
		panic(AssertError(fmt.Sprintf("transaction %v is already ready",
			hash)))
	}

	replaced, unlocks, err := r.replaceTransactions(ptx)
	if err != nil {
		return nil, err
	}

	r.nextID++
	ref := &poolTransactionRef{id: r.nextID, transaction: ptx}

	// Link the transaction to the ready transactions providing its
	// required markers.
	independent := true
	requiresOffset := 0
	for _, marker := range ptx.Requires {
		providerHash, ok := r.providedMarkers[marker]
		if !ok {
			requiresOffset++
			continue
		}
		provider := r.mustGet(providerHash)
		provider.unlocks = append(provider.unlocks, hash)
		independent = false
	}

	for _, marker := range ptx.Provides {
		r.providedMarkers[marker] = hash
	}

	if independent {
		r.independent.ReplaceOrInsert(ref)
	}
	r.readyTx[hash] = &readyTransaction{
		ref:            ref,
		unlocks:        unlocks,
		requiresOffset: requiresOffset,
	}

	log.Tracef("Added ready transaction %v (id %d, independent %v)", hash,
		ref.id, independent)

	return replaced, nil
}

// replaceTransactions removes the ready transactions that provide any marker
// ptx provides.  It returns the removed transactions together with the
// dependents they leave behind, which ptx takes over.  Nothing is removed
// when an exact replacement is underpriced.
//
// This function MUST be called with the lock held (for writes).
func (r *ReadyTransactions) replaceTransactions(
	ptx *PoolTransaction) ([]*PoolTransaction, []chainhash.Hash, error) {

	var toRemove []chainhash.Hash
	for _, marker := range ptx.Provides {
		hash, ok := r.providedMarkers[marker]
		if ok && !slices.Contains(toRemove, hash) {
			toRemove = append(toRemove, hash)
		}
	}
	if len(toRemove) == 0 {
		return nil, nil, nil
	}

	// Check every candidate before touching anything so an underpriced
	// replacement leaves the set as it was.
	for _, hash := range toRemove {
		existing, ok := r.readyTx[hash]
		if !ok {
			continue
		}

		existingTx := existing.ref.transaction
		if slices.Equal(existingTx.Provides, ptx.Provides) {
			newPrice := ptx.GasPrice()
			if newPrice.Cmp(existingTx.GasPrice()) <= 0 {
				log.Warnf("Ready replacement transaction %v "+
					"underpriced", ptx.Hash())
				str := fmt.Sprintf("replacement transaction %v "+
					"underpriced: gas price %s does not exceed "+
					"%s of ready transaction %v", ptx.Hash(),
					newPrice.Dec(), existingTx.GasPrice().Dec(),
					hash)
				return nil, nil, poolError(
					ErrReplacementUnderpriced, ptx, str,
				)
			}

			log.Debugf("Replacing ready transaction %v with higher "+
				"priced %v", hash, ptx.Hash())
		}
	}

	filter := mapset.NewThreadUnsafeSet(ptx.Provides...)
	removed, unlocks := r.removeWithMarkers(toRemove, filter)
	r.dropStaleMarkers(ptx.Provides)

	// Drop dependents that were removed along with a partially overlapping
	// transaction.
	unlocks = slices.DeleteFunc(unlocks, func(h chainhash.Hash) bool {
		_, ok := r.readyTx[h]
		return !ok
	})

	return removed, unlocks, nil
}

// RemoveWithMarkers removes the transactions with the passed hashes.
//
// Whenever a removed transaction gives up a marker not contained in filter,
// every ready transaction that depends on it is removed as well,
// transitively.  A nil filter gives up every marker.  Markers in filter are
// treated as satisfied elsewhere: the dependents they kept alive move closer
// to independence as if the markers had been pruned.  The removed
// transactions are returned in removal order.
func (r *ReadyTransactions) RemoveWithMarkers(hashes []chainhash.Hash,
	filter mapset.Set[Marker]) []*PoolTransaction {

	r.mtx.Lock()
	defer r.mtx.Unlock()

	removed, kept := r.removeWithMarkers(hashes, filter)
	if filter != nil {
		r.dropStaleMarkers(filter.ToSlice())
	}
	for _, hash := range kept {
		r.satisfyRequirement(hash)
	}

	return removed
}

// removeWithMarkers implements RemoveWithMarkers with an explicit worklist.
// Besides the removed transactions it returns the dependents of removed
// transactions that gave up no marker.  Those dependents stay in the set and
// the filtered markers keep pointing at the removed transactions.
//
// This function MUST be called with the lock held (for writes).
func (r *ReadyTransactions) removeWithMarkers(hashes []chainhash.Hash,
	filter mapset.Set[Marker]) ([]*PoolTransaction, []chainhash.Hash) {

	var (
		removed []*PoolTransaction
		kept    []chainhash.Hash
	)
	work := newStack(hashes...)
	for {
		hash, ok := work.Pop()
		if !ok {
			break
		}

		tx, ok := r.readyTx[hash]
		if !ok {
			continue
		}
		delete(r.readyTx, hash)
		ptx := tx.ref.transaction

		removedMarkers := false
		for _, marker := range ptx.Provides {
			if filter != nil && filter.Contains(marker) {
				continue
			}
			removedMarkers = true
			if r.providedMarkers[marker] == hash {
				delete(r.providedMarkers, marker)
			}
		}

		// Detach from the transactions this one was waiting on.
		for _, marker := range ptx.Requires {
			providerHash, ok := r.providedMarkers[marker]
			if !ok {
				continue
			}
			if provider, ok := r.readyTx[providerHash]; ok {
				provider.unlocks = removeHash(provider.unlocks, hash)
			}
		}

		r.independent.Delete(tx.ref)

		if removedMarkers {
			work.Push(tx.unlocks...)
		} else {
			kept = append(kept, tx.unlocks...)
		}

		log.Tracef("Removed ready transaction %v", hash)
		removed = append(removed, ptx)
	}

	return removed, kept
}

// dropStaleMarkers removes the passed markers from the marker index when the
// transaction they point at is no longer ready.
//
// This function MUST be called with the lock held (for writes).
func (r *ReadyTransactions) dropStaleMarkers(markers []Marker) {
	for _, marker := range markers {
		hash, ok := r.providedMarkers[marker]
		if !ok {
			continue
		}
		if _, ok := r.readyTx[hash]; !ok {
			delete(r.providedMarkers, marker)
		}
	}
}

// satisfyRequirement records that one more required marker of the ready
// transaction with the passed hash is satisfied outside the ready set and
// makes it independent once all are.
//
// This function MUST be called with the lock held (for writes).
func (r *ReadyTransactions) satisfyRequirement(hash chainhash.Hash) {
	dependent, ok := r.readyTx[hash]
	if !ok {
		return
	}
	dependent.requiresOffset++
	if dependent.requiresOffset == len(dependent.ref.transaction.Requires) {
		r.independent.ReplaceOrInsert(dependent.ref)
	}
}

// PruneTags removes the transaction providing marker, which has been
// satisfied outside the pool (typically by inclusion in a block).  Ancestors
// left without any dependent are pruned too, and dependents whose last
// pending requirement was the pruned transaction become independent.  The
// pruned transactions are returned.
func (r *ReadyTransactions) PruneTags(marker Marker) []*PoolTransaction {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	var pruned []*PoolTransaction
	work := newStack(marker)
	for {
		current, ok := work.Pop()
		if !ok {
			break
		}

		hash, ok := r.providedMarkers[current]
		if !ok {
			continue
		}
		delete(r.providedMarkers, current)

		tx, ok := r.readyTx[hash]
		if !ok {
			continue
		}
		delete(r.readyTx, hash)
		r.independent.Delete(tx.ref)
		ptx := tx.ref.transaction

		// Prune the previous transactions that have nothing left to
		// unlock.
		for _, required := range ptx.Requires {
			prevHash, ok := r.providedMarkers[required]
			if !ok {
				continue
			}
			prev, ok := r.readyTx[prevHash]
			if !ok {
				continue
			}
			prev.unlocks = removeHash(prev.unlocks, hash)
			if len(prev.unlocks) == 0 {
				work.Push(prev.ref.transaction.Provides...)
			}
		}

		// The pruned markers are satisfied now, so dependents move
		// closer to independence.
		for _, unlocked := range tx.unlocks {
			r.satisfyRequirement(unlocked)
		}

		for _, provided := range ptx.Provides {
			if provided == current {
				continue
			}
			owner, ok := r.providedMarkers[provided]
			if !ok || owner != hash {
				panic(AssertError(fmt.Sprintf("marker %v of "+
					"pruned transaction %v is provided by "+
					"%v", provided, hash, owner)))
			}
			delete(r.providedMarkers, provided)
		}

		log.Debugf("Pruned ready transaction %v", hash)
		pruned = append(pruned, ptx)
	}

	return pruned
}

// ClearTransactions removes the transactions with the passed hashes and all
// of their dependents unconditionally.
func (r *ReadyTransactions) ClearTransactions(
	hashes ...chainhash.Hash) []*PoolTransaction {

	return r.RemoveWithMarkers(hashes, nil)
}

// GetTransactions returns an iterator over a snapshot of the ready set that
// yields transactions in inclusion order.
func (r *ReadyTransactions) GetTransactions() *TransactionsIterator {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	all := make(map[chainhash.Hash]*readyTransaction, len(r.readyTx))
	for hash, tx := range r.readyTx {
		all[hash] = tx.clone()
	}

	// Clone writes to the source tree, so concurrent readers copy it
	// through Ascend instead.
	independent := btree.NewG[*poolTransactionRef](
		independentDegree, betterRef,
	)
	r.independent.Ascend(func(ref *poolTransactionRef) bool {
		independent.ReplaceOrInsert(ref)
		return true
	})

	return newTransactionsIterator(all, independent)
}

// Contains returns whether a transaction with the passed hash is ready.
func (r *ReadyTransactions) Contains(hash chainhash.Hash) bool {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	_, ok := r.readyTx[hash]
	return ok
}

// Get returns the ready transaction with the passed hash.
func (r *ReadyTransactions) Get(hash chainhash.Hash) (*PoolTransaction, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	tx, ok := r.readyTx[hash]
	if !ok {
		return nil, false
	}
	return tx.ref.transaction, true
}

// ProvidesMarker returns whether a ready transaction provides marker.
func (r *ReadyTransactions) ProvidesMarker(marker Marker) bool {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	_, ok := r.providedMarkers[marker]
	return ok
}

// ProvidedMarkers returns a copy of the marker index.
func (r *ReadyTransactions) ProvidedMarkers() map[Marker]chainhash.Hash {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	return maps.Clone(r.providedMarkers)
}

// Len returns the number of ready transactions.
func (r *ReadyTransactions) Len() int {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	return len(r.readyTx)
}

// Clear removes every transaction.  Insertion ids keep increasing.
func (r *ReadyTransactions) Clear() {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	clear(r.providedMarkers)
	clear(r.readyTx)
	r.independent.Clear(false)
}

// mustGet returns the entry for hash, which the marker index claims exists.
//
// This function MUST be called with the lock held.
func (r *ReadyTransactions) mustGet(hash chainhash.Hash) *readyTransaction {
	tx, ok := r.readyTx[hash]
	if !ok {
		panic(AssertError(fmt.Sprintf("marker index references missing "+
			"transaction %v", hash)))
	}
	return tx
}

// removeHash removes the first occurrence of hash from hashes without
// preserving order.
func removeHash(hashes []chainhash.Hash, hash chainhash.Hash) []chainhash.Hash {
	idx := slices.Index(hashes, hash)
	if idx < 0 {
		return hashes
	}
	last := len(hashes) - 1
	hashes[idx] = hashes[last]
	return hashes[:last]
}
