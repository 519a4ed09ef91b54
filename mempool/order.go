// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// TransactionOrder selects how the priority of a pool transaction is
// derived.
type TransactionOrder uint8

const (
	// OrderFees ranks transactions by gas price.  This is the default.
	OrderFees TransactionOrder = iota

	// OrderFifo gives every transaction the same priority so arrival order
	// decides.
	OrderFifo
)

// orderStrings maps each order to its configuration name.
var orderStrings = map[TransactionOrder]string{
	OrderFees: "fees",
	OrderFifo: "fifo",
}

// String returns the configuration name of the order.
func (o TransactionOrder) String() string {
	if s, ok := orderStrings[o]; ok {
		return s
	}
	return fmt.Sprintf("Unknown TransactionOrder (%d)", uint8(o))
}

// Priority returns the priority the order assigns to tx.
func (o TransactionOrder) Priority(tx Transaction) uint256.Int {
	if o == OrderFifo {
		return uint256.Int{}
	}
	if price := tx.GasPrice(); price != nil {
		return *price
	}
	return uint256.Int{}
}

// ParseTransactionOrder parses a configuration name into a TransactionOrder.
// Matching is case-insensitive.
func ParseTransactionOrder(s string) (TransactionOrder, error) {
	switch strings.ToLower(s) {
	case "fees":
		return OrderFees, nil
	case "fifo":
		return OrderFifo, nil
	}
	return OrderFees, fmt.Errorf("unknown transaction order %q, "+
		"want one of: fees, fifo", s)
}

// UnmarshalFlag implements the flags.Unmarshaler interface so the order can
// be used directly as a command line option.
func (o *TransactionOrder) UnmarshalFlag(value string) error {
	order, err := ParseTransactionOrder(value)
	if err != nil {
		return err
	}
	*o = order
	return nil
}

// MarshalFlag implements the flags.Marshaler interface.
func (o TransactionOrder) MarshalFlag() (string, error) {
	if _, ok := orderStrings[o]; !ok {
		return "", fmt.Errorf("unknown transaction order %d", uint8(o))
	}
	return o.String(), nil
}
