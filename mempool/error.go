// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"fmt"
)

// AssertError identifies an error that indicates an internal code consistency
// issue and should be treated as a critical and unrecoverable error.  The pool
// panics with an AssertError when a caller breaks an insertion contract.
type AssertError string

// Error returns the assertion error as a human-readable string and satisfies
// the error interface.
func (e AssertError) Error() string {
	return "assertion failed: " + string(e)
}

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific PoolError.
const (
	// ErrReplacementUnderpriced indicates a transaction tried to replace
	// a pool transaction providing the same markers without paying a
	// strictly higher gas price.
	ErrReplacementUnderpriced ErrorCode = iota

	// ErrAlreadyImported indicates the transaction is already in the pool
	// or was recently pruned from it.
	ErrAlreadyImported

	// ErrCyclicTransaction indicates that importing a transaction
	// promoted pending transactions which in turn displaced the imported
	// transaction.
	ErrCyclicTransaction

	// ErrNonceTooLow indicates the transaction nonce is below the next
	// nonce expected on chain for its sender.
	ErrNonceTooLow
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrReplacementUnderpriced: "ErrReplacementUnderpriced",
	ErrAlreadyImported:        "ErrAlreadyImported",
	ErrCyclicTransaction:      "ErrCyclicTransaction",
	ErrNonceTooLow:            "ErrNonceTooLow",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error satisfies the error interface so error codes can be used as
// errors.Is targets.
func (e ErrorCode) Error() string {
	return e.String()
}

// PoolError identifies a rejected pool operation.  The caller can use
// errors.As to access the ErrorCode and the rejected transaction, or
// errors.Is with an ErrorCode to test for a specific kind.
type PoolError struct {
	ErrorCode   ErrorCode        // Describes the kind of error
	Description string           // Human readable description of the issue
	Tx          *PoolTransaction // The rejected transaction, if any
}

// Error satisfies the error interface and prints human-readable errors.
func (e PoolError) Error() string {
	return e.Description
}

// Is reports whether target is the ErrorCode of e.
func (e PoolError) Is(target error) bool {
	code, ok := target.(ErrorCode)
	return ok && code == e.ErrorCode
}

// poolError creates a PoolError given a set of arguments.
func poolError(c ErrorCode, tx *PoolTransaction, desc string) PoolError {
	return PoolError{ErrorCode: c, Description: desc, Tx: tx}
}
