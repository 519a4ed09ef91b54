// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"fmt"
	"slices"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/decred/dcrd/lru"
)

const (
	// DefaultPrunedCacheSize is the default number of pruned transaction
	// hashes remembered to reject resubmission of included transactions.
	DefaultPrunedCacheSize = 4096
)

// Config defines the configuration of a TxPool.
type Config struct {
	// Order selects how transaction priority is derived.
	Order TransactionOrder

	// ChainNonce returns the next nonce expected on chain for an account.
	// Transactions with that nonce require no other transaction.  When
	// nil, every account is assumed to start at nonce zero.
	ChainNonce func(Account) uint64

	// PrunedCacheSize bounds the number of recently pruned transaction
	// hashes kept to reject resubmissions.  Zero disables the cache.
	PrunedCacheSize uint
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() *Config {
	return &Config{
		Order:           OrderFees,
		PrunedCacheSize: DefaultPrunedCacheSize,
	}
}

// AddedTransaction describes the outcome of a successful submission.
type AddedTransaction struct {
	// Hash is the hash of the submitted transaction.
	Hash chainhash.Hash

	// Transaction is the submitted transaction as stored by the pool.
	Transaction *PoolTransaction

	// Pending is true when the transaction waits for missing markers.
	Pending bool

	// Promoted lists the pending transactions that became ready because
	// of the submission.
	Promoted []*PoolTransaction

	// Discarded lists the pending transactions that were unlocked by the
	// submission but rejected by the ready set.
	Discarded []*PoolTransaction

	// Removed lists the transactions replaced as a side effect.
	Removed []*PoolTransaction
}

// PruneResult describes the outcome of PruneMarkers.
type PruneResult struct {
	// Pruned lists the ready transactions removed because their markers
	// were satisfied on chain.
	Pruned []*PoolTransaction

	// Dropped lists pending transactions that provided a marker satisfied
	// on chain by another transaction.
	Dropped []*PoolTransaction

	// Promoted lists the outcome of each pending transaction that became
	// ready.
	Promoted []*AddedTransaction

	// Failed lists the hashes of unlocked pending transactions that could
	// not be made ready.
	Failed []chainhash.Hash
}

// TxPool tracks pending and ready transactions and keeps them consistent as
// transactions arrive, get included, or turn out invalid.
//
// A transaction whose required markers are all provided, by the chain or by
// ready transactions, goes to the ready set.  Otherwise it waits in the
// pending set until the markers it misses become available.  Block builders
// take an ordered snapshot of the ready set with ReadyTransactions.
//
// TxPool is safe for concurrent use.
type TxPool struct {
	cfg Config

	// pending holds transactions that miss at least one marker.
	pending *PendingTransactions

	// ready holds transactions that can be included.
	ready *ReadyTransactions

	// recentlyPruned remembers hashes of transactions pruned on
	// inclusion.  Nil when disabled.
	recentlyPruned *lru.Cache

	// mtx serializes mutations across the pending and ready sets.
	mtx sync.RWMutex

	notificationsLock sync.RWMutex
	notifications     []NotificationCallback
}

// New returns a new pool using cfg.  A nil cfg selects DefaultConfig.
func New(cfg *Config) *TxPool {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	p := &TxPool{
		cfg:     *cfg,
		pending: NewPendingTransactions(),
		ready:   NewReadyTransactions(),
	}
	if cfg.PrunedCacheSize > 0 {
		cache := lru.NewCache(cfg.PrunedCacheSize)
		p.recentlyPruned = &cache
	}

	return p
}

// chainNonce returns the next on-chain nonce for account.
func (p *TxPool) chainNonce(account Account) uint64 {
	if p.cfg.ChainNonce == nil {
		return 0
	}
	return p.cfg.ChainNonce(account)
}

// AddTransaction submits a transaction to the pool.
//
// The transaction is placed in the ready set when all the markers it
// requires are provided, and in the pending set otherwise.  Making it ready
// may promote pending transactions waiting on the markers it provides.
// Duplicate, stale and underpriced submissions leave the pool unchanged.
//
// ErrCyclicTransaction is only possible for transactions that require a
// marker they also provide, which markers derived by TxMarkers never do.
// When it happens the transactions evicted on the way are not restored and
// are announced with NTTxRemoved.
func (p *TxPool) AddTransaction(tx Transaction) (*AddedTransaction, error) {
	p.mtx.Lock()
	added, err := p.addTransaction(tx)
	p.mtx.Unlock()
	if err != nil {
		// A failed promotion can still have evicted transactions.
		if added != nil {
			p.sendNotifications(NTTxRemoved, added.Removed)
		}
		return nil, err
	}

	p.notifyAdded(added)

	return added, nil
}

// addTransaction implements AddTransaction.
//
// This function MUST be called with the pool lock held (for writes).
func (p *TxPool) addTransaction(tx Transaction) (*AddedTransaction, error) {
	hash := tx.Hash()
	if p.ready.Contains(hash) || p.pending.Contains(hash) {
		str := fmt.Sprintf("transaction %v already imported", hash)
		return nil, poolError(ErrAlreadyImported, nil, str)
	}
	if p.recentlyPruned != nil && p.recentlyPruned.Contains(hash) {
		str := fmt.Sprintf("transaction %v was already included", hash)
		return nil, poolError(ErrAlreadyImported, nil, str)
	}

	sender := tx.Sender()
	chainNonce := p.chainNonce(sender)
	if tx.Nonce() < chainNonce {
		str := fmt.Sprintf("transaction %v nonce %d is below the next "+
			"nonce %d of %v", hash, tx.Nonce(), chainNonce, sender)
		return nil, poolError(ErrNonceTooLow, nil, str)
	}

	ptx := NewPoolTransaction(tx, p.cfg.Order, chainNonce)
	pending := NewPendingPoolTransaction(ptx, p.ready.ProvidesMarker)

	log.Tracef("Processing transaction %v", newLogClosure(func() string {
		return ptx.String()
	}))

	if !pending.IsReady() {
		replaced, err := p.pending.AddTransaction(pending)
		if err != nil {
			return nil, err
		}
		return &AddedTransaction{
			Hash:        hash,
			Transaction: ptx,
			Pending:     true,
			Removed:     replaced,
		}, nil
	}

	return p.addReadyTransaction(pending)
}

// addReadyTransaction inserts a ready transaction and then every pending
// transaction it transitively unlocks.  On ErrCyclicTransaction the returned
// AddedTransaction lists the transactions that left the pool in Removed.
//
// This function MUST be called with the pool lock held (for writes).
func (p *TxPool) addReadyTransaction(
	tx *PendingPoolTransaction) (*AddedTransaction, error) {

	hash := tx.Transaction.Hash()
	added := &AddedTransaction{Hash: hash, Transaction: tx.Transaction}

	work := newQueue(tx)
	isNew := true
	for {
		current, ok := work.Dequeue()
		if !ok {
			break
		}

		replaced, err := p.ready.AddTransaction(current)
		if err != nil {
			if isNew {
				log.Debugf("Failed to add transaction %v: %v",
					hash, err)
				return nil, err
			}
			log.Debugf("Discarding unlocked transaction %v: %v",
				current.Transaction.Hash(), err)
			added.Discarded = append(added.Discarded,
				current.Transaction)
			continue
		}

		if !isNew {
			added.Promoted = append(added.Promoted, current.Transaction)
		}
		added.Removed = append(added.Removed, replaced...)
		isNew = false

		unlocked := p.pending.MarkAndUnlock(current.Transaction.Provides...)
		work.Enqueue(unlocked...)
	}

	// Promoted transactions may in turn replace the submitted one.  Undo
	// the promotions in that case.
	cyclic := slices.ContainsFunc(added.Removed, func(t *PoolTransaction) bool {
		return t.Hash() == hash
	})
	if cyclic {
		promoted := make([]chainhash.Hash, 0, len(added.Promoted))
		for _, t := range added.Promoted {
			promoted = append(promoted, t.Hash())
		}
		lost := p.ready.ClearTransactions(promoted...)
		lost = append(lost, added.Discarded...)
		for _, t := range added.Removed {
			if t.Hash() != hash {
				lost = append(lost, t)
			}
		}

		str := fmt.Sprintf("transaction %v was displaced by the "+
			"transactions it unlocked", hash)
		err := poolError(ErrCyclicTransaction, tx.Transaction, str)
		return &AddedTransaction{
			Hash:        hash,
			Transaction: tx.Transaction,
			Removed:     lost,
		}, err
	}

	log.Debugf("Accepted transaction %v (ready %d, pending %d)", hash,
		p.ready.Len(), p.pending.Len())

	return added, nil
}

// PruneMarkers handles markers satisfied on chain, typically by a newly
// connected block.  Ready transactions providing the markers are pruned,
// pending transactions providing them are dropped, and pending transactions
// waiting on them are promoted.
func (p *TxPool) PruneMarkers(markers ...Marker) *PruneResult {
	p.mtx.Lock()
	result := p.pruneMarkers(markers)
	p.mtx.Unlock()

	p.sendNotifications(NTTxPruned, result.Pruned)
	p.sendNotifications(NTTxRemoved, result.Dropped)
	for _, added := range result.Promoted {
		p.notifyAdded(added)
	}

	return result
}

// pruneMarkers implements PruneMarkers.
//
// This function MUST be called with the pool lock held (for writes).
func (p *TxPool) pruneMarkers(markers []Marker) *PruneResult {
	log.Debugf("Pruning %d markers", len(markers))

	result := &PruneResult{}
	var imports []*PendingPoolTransaction
	for _, marker := range markers {
		imports = append(imports, p.pending.MarkAndUnlock(marker)...)
		result.Pruned = append(result.Pruned, p.ready.PruneTags(marker)...)

		key := markerSetKey([]Marker{marker})
		if stale, ok := p.pending.waitingMarkers[key]; ok {
			result.Dropped = append(result.Dropped,
				p.pending.Remove(stale)...)
		}
	}

	if p.recentlyPruned != nil {
		for _, tx := range result.Pruned {
			p.recentlyPruned.Add(tx.Hash())
		}
	}

	// Unlocked transactions providing a marker satisfied on chain are
	// stale.
	prunedMarkers := mapset.NewThreadUnsafeSet(markers...)
	isPruned := func(m Marker) bool { return prunedMarkers.Contains(m) }
	for _, tx := range imports {
		if slices.ContainsFunc(tx.Transaction.Provides, isPruned) {
			result.Dropped = append(result.Dropped, tx.Transaction)
			continue
		}

		hash := tx.Transaction.Hash()
		added, err := p.addReadyTransaction(tx)
		if err != nil {
			log.Warnf("Failed to promote transaction %v: %v", hash,
				err)
			result.Failed = append(result.Failed, hash)
			if added != nil {
				result.Dropped = append(result.Dropped,
					added.Removed...)
			}
			continue
		}
		result.Promoted = append(result.Promoted, added)
	}

	return result
}

// RemoveInvalid removes the transactions with the passed hashes from the
// pool.  Ready transactions depending on a removed ready transaction are
// removed as well.  The removed transactions are returned.
func (p *TxPool) RemoveInvalid(hashes ...chainhash.Hash) []*PoolTransaction {
	if len(hashes) == 0 {
		return nil
	}

	p.mtx.Lock()
	log.Tracef("Removing invalid transactions %v", hashes)
	removed := p.ready.RemoveWithMarkers(hashes, nil)
	removed = append(removed, p.pending.Remove(hashes...)...)
	p.mtx.Unlock()

	p.sendNotifications(NTTxRemoved, removed)
	return removed
}

// ReadyTransactions returns an iterator over a snapshot of the ready
// transactions in inclusion order.
func (p *TxPool) ReadyTransactions() *TransactionsIterator {
	p.mtx.RLock()
	defer p.mtx.RUnlock()

	return p.ready.GetTransactions()
}

// PendingTransactions returns the transactions waiting for missing markers.
func (p *TxPool) PendingTransactions() []*PoolTransaction {
	p.mtx.RLock()
	defer p.mtx.RUnlock()

	return slices.Collect(p.pending.Transactions())
}

// Contains returns whether the pool holds a transaction with the passed hash.
func (p *TxPool) Contains(hash chainhash.Hash) bool {
	p.mtx.RLock()
	defer p.mtx.RUnlock()

	return p.ready.Contains(hash) || p.pending.Contains(hash)
}

// Get returns the pool transaction with the passed hash.
func (p *TxPool) Get(hash chainhash.Hash) (*PoolTransaction, bool) {
	p.mtx.RLock()
	defer p.mtx.RUnlock()

	if tx, ok := p.ready.Get(hash); ok {
		return tx, true
	}
	if tx, ok := p.pending.Get(hash); ok {
		return tx.Transaction, true
	}
	return nil, false
}

// Count returns the number of ready and pending transactions.
func (p *TxPool) Count() (ready, pending int) {
	p.mtx.RLock()
	defer p.mtx.RUnlock()

	return p.ready.Len(), p.pending.Len()
}

// Clear removes every transaction from the pool without notifications.
func (p *TxPool) Clear() {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	p.ready.Clear()
	p.pending.Clear()
}

// notifyAdded sends the notifications describing a successful insertion.
func (p *TxPool) notifyAdded(added *AddedTransaction) {
	if added.Pending {
		p.sendNotification(NTTxPending, added.Transaction)
	} else {
		p.sendNotification(NTTxReady, added.Transaction)
	}
	p.sendNotifications(NTTxReady, added.Promoted)
	p.sendNotifications(NTTxRemoved, added.Discarded)
	p.sendNotifications(NTTxRemoved, added.Removed)
}
