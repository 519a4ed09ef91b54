// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/txpool/mempool"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultLogLevel    = "info"
	defaultLogFilename = "txorder.log"
	defaultLogDirname  = "logs"
)

var (
	txorderHomeDir = btcutil.AppDataDir("txorder", false)
	defaultLogDir  = filepath.Join(txorderHomeDir, defaultLogDirname)
)

// config defines the configuration options for txorder.
//
// See loadConfig for details on the configuration load process.
type config struct {
	ShowVersion     bool                     `short:"V" long:"version" description:"Display version information and exit"`
	InFile          string                   `short:"i" long:"infile" description:"JSON file containing the transactions to load" required:"true"`
	Order           mempool.TransactionOrder `long:"order" description:"Transaction ordering policy {fees, fifo}"`
	Prune           []string                 `long:"prune" description:"Marker satisfied on chain after loading, as <account>:<nonce> -- may be specified multiple times"`
	PrunedCacheSize uint                     `long:"prunedcache" description:"Number of pruned transaction hashes to remember"`
	LogDir          string                   `long:"logdir" description:"Directory to log output"`
	NoFileLogging   bool                     `long:"nofilelogging" description:"Disable file logging"`
	DebugLevel      string                   `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems"`

	pruneMarkers []mempool.Marker
}

// fileExists reports whether the named file or directory exists.
func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(txorderHomeDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	return filepath.Clean(os.ExpandEnv(path))
}

// parseMarker parses a marker given as <account>:<nonce>.
func parseMarker(s string) (mempool.Marker, error) {
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return mempool.Marker{}, fmt.Errorf("marker %q is not of the "+
			"form <account>:<nonce>", s)
	}

	account, err := mempool.AccountFromHex(s[:idx])
	if err != nil {
		return mempool.Marker{}, err
	}
	nonce, err := strconv.ParseUint(s[idx+1:], 10, 64)
	if err != nil {
		return mempool.Marker{}, fmt.Errorf("malformed nonce in marker "+
			"%q: %w", s, err)
	}

	return mempool.ToMarker(nonce, account), nil
}

// loadConfig initializes and parses the config using command line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for the version flag
//  3. Parse the command line options and validate them
func loadConfig() (*config, []string, error) {
	// Default config.
	cfg := config{
		Order:           mempool.OrderFees,
		PrunedCacheSize: mempool.DefaultPrunedCacheSize,
		LogDir:          defaultLogDir,
		DebugLevel:      defaultLogLevel,
	}

	// Pre-parse the command line options to see if the version was
	// requested.  Any errors aside from the help message error can be
	// ignored here since they will be caught by the final parse below.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.HelpFlag|flags.IgnoreUnknown)
	_, err := preParser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			return nil, nil, err
		}
	}
	if preCfg.ShowVersion {
		return &preCfg, nil, nil
	}

	// Parse command line options.
	parser := flags.NewParser(&cfg, flags.Default)
	remainingArgs, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			parser.WriteHelp(os.Stderr)
		}
		return nil, nil, err
	}

	funcName := "loadConfig"

	// Ensure the specified transaction file exists.
	if !fileExists(cfg.InFile) {
		str := "%s: The specified transaction file [%v] does not exist"
		err := fmt.Errorf(str, funcName, cfg.InFile)
		fmt.Fprintln(os.Stderr, err)
		parser.WriteHelp(os.Stderr)
		return nil, nil, err
	}

	for _, s := range cfg.Prune {
		marker, err := parseMarker(s)
		if err != nil {
			err := fmt.Errorf("%s: %w", funcName, err)
			fmt.Fprintln(os.Stderr, err)
			parser.WriteHelp(os.Stderr)
			return nil, nil, err
		}
		cfg.pruneMarkers = append(cfg.pruneMarkers, marker)
	}

	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)

	return &cfg, remainingArgs, nil
}
