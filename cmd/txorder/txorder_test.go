// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/btcsuite/txpool/mempool"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

const (
	accountA = "0x1111111111111111111111111111111111111111"
	accountB = "0x2222222222222222222222222222222222222222"
)

// TestLoadFixture checks fixture decoding and hash derivation.
func TestLoadFixture(t *testing.T) {
	t.Parallel()

	const data = `{
		"chainNonces": {"` + accountB + `": 4},
		"transactions": [
			{"sender": "` + accountA + `", "nonce": 0, "gasPrice": "340282366920938463463374607431768211456"},
			{"hash": "00000000000000000000000000000000000000000000000000000000000000aa", "sender": "` + accountB + `", "nonce": 4}
		]
	}`

	f, err := loadFixture(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, f.txs, 2)

	a, err := mempool.AccountFromHex(accountA)
	require.NoError(t, err)
	b, err := mempool.AccountFromHex(accountB)
	require.NoError(t, err)

	require.Equal(t, uint64(4), f.chainNonce(b))
	require.Zero(t, f.chainNonce(a))

	want, _ := uint256.FromDecimal("340282366920938463463374607431768211456")
	require.Equal(t, want, f.txs[0].GasPrice())
	require.Equal(t, fixtureTxHash(a, 0, want), f.txs[0].Hash())
	require.NotEqual(t, fixtureTxHash(a, 1, want), f.txs[0].Hash())

	require.Equal(t, "00000000000000000000000000000000000000000000000000000000000000aa",
		f.txs[1].Hash().String())
	require.True(t, f.txs[1].GasPrice().IsZero())
}

// TestLoadFixtureErrors checks that malformed fixtures are rejected.
func TestLoadFixtureErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{"not json", `transactions`},
		{"bad sender", `{"transactions": [{"sender": "0x12"}]}`},
		{"bad price", `{"transactions": [{"sender": "` + accountA + `", "gasPrice": "12ab"}]}`},
		{"bad hash", `{"transactions": [{"sender": "` + accountA + `", "hash": "zz"}]}`},
		{"bad chain nonce account", `{"chainNonces": {"0x1": 1}, "transactions": []}`},
	}

	for _, test := range tests {
		_, err := loadFixture(strings.NewReader(test.data))
		require.Error(t, err, test.name)
	}
}

// TestParseMarker checks parsing of prune markers.
func TestParseMarker(t *testing.T) {
	t.Parallel()

	a, err := mempool.AccountFromHex(accountA)
	require.NoError(t, err)

	marker, err := parseMarker(accountA + ":7")
	require.NoError(t, err)
	require.Equal(t, mempool.ToMarker(7, a), marker)

	_, err = parseMarker(accountA)
	require.Error(t, err)
	_, err = parseMarker(accountA + ":x")
	require.Error(t, err)
	_, err = parseMarker("0x12:1")
	require.Error(t, err)
}

// TestRun checks the order printed for a small fixture.
func TestRun(t *testing.T) {
	t.Parallel()

	const data = `{
		"chainNonces": {"` + accountB + `": 4},
		"transactions": [
			{"sender": "` + accountA + `", "nonce": 1, "gasPrice": "30"},
			{"sender": "` + accountA + `", "nonce": 0, "gasPrice": "5"},
			{"sender": "` + accountB + `", "nonce": 4, "gasPrice": "10"},
			{"sender": "` + accountB + `", "nonce": 3, "gasPrice": "99"},
			{"sender": "` + accountB + `", "nonce": 6, "gasPrice": "10"}
		]
	}`
	f, err := loadFixture(strings.NewReader(data))
	require.NoError(t, err)

	tests := []struct {
		name  string
		order mempool.TransactionOrder
		prune []string
		want  []string
	}{{
		name:  "fees",
		order: mempool.OrderFees,
		want: []string{
			accountB + "\t4\t10",
			accountA + "\t0\t5",
			accountA + "\t1\t30",
			"pending",
		},
	}, {
		name:  "fifo",
		order: mempool.OrderFifo,
		want: []string{
			accountA + "\t0\t5",
			accountA + "\t1\t30",
			accountB + "\t4\t10",
			"pending",
		},
	}, {
		name:  "prune",
		order: mempool.OrderFees,
		prune: []string{accountA + ":0", accountB + ":4", accountB + ":5"},
		want: []string{
			accountA + "\t1\t30",
			accountB + "\t6\t10",
		},
	}}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := &config{
				Order:           test.order,
				PrunedCacheSize: mempool.DefaultPrunedCacheSize,
			}
			for _, s := range test.prune {
				marker, err := parseMarker(s)
				require.NoError(t, err)
				cfg.pruneMarkers = append(cfg.pruneMarkers, marker)
			}

			var buf bytes.Buffer
			require.NoError(t, run(cfg, f, &buf))

			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			require.Len(t, lines, len(test.want), buf.String())
			for i, want := range test.want {
				if want == "pending" {
					require.True(t, strings.HasPrefix(lines[i],
						"pending\t"), lines[i])
					continue
				}
				require.True(t, strings.HasSuffix(lines[i], want),
					"line %d: %q", i, lines[i])
			}
		})
	}
}
