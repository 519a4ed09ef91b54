// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"encoding/binary"
	"sync/atomic"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// testTxCounter makes every generated test transaction hash unique, even for
// transactions sharing sender, nonce and gas price.
var testTxCounter uint64

// testTx is a minimal Transaction implementation for tests.
type testTx struct {
	hash     chainhash.Hash
	sender   Account
	nonce    uint64
	gasPrice *uint256.Int
}

func (tx *testTx) Hash() chainhash.Hash   { return tx.hash }
func (tx *testTx) Sender() Account        { return tx.sender }
func (tx *testTx) Nonce() uint64          { return tx.nonce }
func (tx *testTx) GasPrice() *uint256.Int { return tx.gasPrice }

// newTestTx returns a transaction from sender with the passed nonce and gas
// price and a unique hash.
func newTestTx(sender Account, nonce, gasPrice uint64) *testTx {
	counter := atomic.AddUint64(&testTxCounter, 1)

	var buf [AccountSize + 24]byte
	copy(buf[:], sender[:])
	binary.LittleEndian.PutUint64(buf[AccountSize:], nonce)
	binary.LittleEndian.PutUint64(buf[AccountSize+8:], gasPrice)
	binary.LittleEndian.PutUint64(buf[AccountSize+16:], counter)

	return &testTx{
		hash:     chainhash.HashH(buf[:]),
		sender:   sender,
		nonce:    nonce,
		gasPrice: uint256.NewInt(gasPrice),
	}
}

// testAccount returns a deterministic account derived from id.
func testAccount(id byte) Account {
	var a Account
	for i := range a {
		a[i] = id
	}
	return a
}

// poolTx wraps tx with the fee order and a chain nonce of zero.
func poolTx(tx Transaction) *PoolTransaction {
	return NewPoolTransaction(tx, OrderFees, 0)
}

// readyTx wraps tx for insertion into r.
func readyTx(r *ReadyTransactions, tx Transaction) *PendingPoolTransaction {
	return NewPendingPoolTransaction(poolTx(tx), r.ProvidesMarker)
}

// mustAddReady inserts tx into r and fails the test on error.
func mustAddReady(t *testing.T, r *ReadyTransactions,
	tx Transaction) []*PoolTransaction {

	t.Helper()

	replaced, err := r.AddTransaction(readyTx(r, tx))
	require.NoError(t, err)
	return replaced
}

// hashesOf returns the hashes of txs in order.
func hashesOf(txs []*PoolTransaction) []chainhash.Hash {
	hashes := make([]chainhash.Hash, 0, len(txs))
	for _, tx := range txs {
		hashes = append(hashes, tx.Hash())
	}
	return hashes
}

// requireMarkerIndexConsistent checks that every provided marker points at a
// ready transaction that provides it and that every ready transaction owns
// the markers it provides.
func requireMarkerIndexConsistent(t require.TestingT, r *ReadyTransactions) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	for marker, hash := range r.providedMarkers {
		tx, ok := r.readyTx[hash]
		require.Truef(t, ok, "marker %v points at missing tx %v",
			marker, hash)
		require.Contains(t, tx.ref.transaction.Provides, marker)
	}
	for hash, tx := range r.readyTx {
		for _, marker := range tx.ref.transaction.Provides {
			require.Equal(t, hash, r.providedMarkers[marker])
		}
	}
}
