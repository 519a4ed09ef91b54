// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	txlog "github.com/btcsuite/txpool/internal/log"
	"github.com/btcsuite/txpool/internal/version"
	"github.com/btcsuite/txpool/mempool"
)

var log = btclog.Disabled

// loadPool submits every fixture transaction to pool in file order and
// returns the number of rejected transactions.  Rejections are logged.
func loadPool(pool *mempool.TxPool, f *fixture) int {
	var rejected int
	for _, tx := range f.txs {
		if _, err := pool.AddTransaction(tx); err != nil {
			var poolErr mempool.PoolError
			if !errors.As(err, &poolErr) {
				log.Errorf("Unexpected error adding %v: %v",
					tx.Hash(), err)
			} else {
				log.Warnf("Rejected transaction %v: %v (%v)",
					tx.Hash(), err, poolErr.ErrorCode)
			}
			rejected++
		}
	}
	return rejected
}

// writeOrder writes the inclusion order of the ready transactions followed by
// the pending transactions.
func writeOrder(w io.Writer, pool *mempool.TxPool) error {
	i := 0
	for tx := range pool.ReadyTransactions().All() {
		i++
		_, err := fmt.Fprintf(w, "%d\t%v\t%v\t%d\t%s\n", i, tx.Hash(),
			tx.Tx.Sender(), tx.Tx.Nonce(), tx.GasPrice().Dec())
		if err != nil {
			return err
		}
	}

	for _, tx := range pool.PendingTransactions() {
		_, err := fmt.Fprintf(w, "pending\t%v\t%v\t%d\t%s\n", tx.Hash(),
			tx.Tx.Sender(), tx.Tx.Nonce(), tx.GasPrice().Dec())
		if err != nil {
			return err
		}
	}
	return nil
}

// run loads the fixture into a new pool configured from cfg, applies the
// configured prunes and writes the resulting order to w.
func run(cfg *config, f *fixture, w io.Writer) error {
	pool := mempool.New(&mempool.Config{
		Order:           cfg.Order,
		ChainNonce:      f.chainNonce,
		PrunedCacheSize: cfg.PrunedCacheSize,
	})

	rejected := loadPool(pool, f)
	ready, pending := pool.Count()
	log.Infof("Loaded %d %s (%d ready, %d pending, %d rejected)",
		len(f.txs), txlog.PickNoun(uint64(len(f.txs)), "transaction",
			"transactions"), ready, pending, rejected)

	if len(cfg.pruneMarkers) > 0 {
		result := pool.PruneMarkers(cfg.pruneMarkers...)
		log.Infof("Pruned %d, dropped %d, promoted %d, failed %d",
			len(result.Pruned), len(result.Dropped),
			len(result.Promoted), len(result.Failed))
	}

	return writeOrder(w, pool)
}

// realMain is the real main function for the utility.  It is necessary to work
// around the fact that deferred functions do not run when os.Exit() is called.
func realMain() error {
	// Load configuration and parse command line.
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	if cfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, version.String())
		return nil
	}

	// Setup logging.
	if !cfg.NoFileLogging {
		logFile := filepath.Join(cfg.LogDir, defaultLogFilename)
		if err := txlog.InitLogRotator(logFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return err
		}
		defer txlog.LogRotator.Close()
	}
	if err := txlog.ParseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	log = txlog.TordLog
	defer os.Stdout.Sync()

	log.Infof("Version %s, order %v", version.String(), cfg.Order)

	fi, err := os.Open(cfg.InFile)
	if err != nil {
		log.Errorf("Failed to open file %v: %v", cfg.InFile, err)
		return err
	}
	defer fi.Close()

	f, err := loadFixture(fi)
	if err != nil {
		log.Errorf("Failed to load %v: %v", cfg.InFile, err)
		return err
	}

	return run(cfg, f, os.Stdout)
}

func main() {
	// Work around defer not working after os.Exit()
	if err := realMain(); err != nil {
		os.Exit(1)
	}
}
