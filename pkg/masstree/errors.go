// pkg/masstree/errors.go
package masstree

import "github.com/pkg/errors"

// Error taxonomy per spec §7. Concurrency retries are internal and
// never surfaced; KeyExists is reported through Put's return value
// rather than an error so the common case avoids an allocation.
var (
	// ErrAllocationFailed backs the allocation-failure outcome spec §7
	// names. This package defines it, but it is raised and wrapped by
	// whichever collaborator actually allocates — pkg/mtstore, on its
	// pkg/arena copy of a key or value — since the core itself holds
	// no Allocator (see tree.go). The tree is left consistent either
	// way: no partially-linked node is ever published.
	ErrAllocationFailed = errors.New("masstree: allocation failed")

	// ErrInvariantViolation backs the fatal, non-recoverable assertion
	// failures spec §7 calls out on count/parentage/version transitions.
	ErrInvariantViolation = errors.New("masstree: invariant violation")

	// ErrKeyTooLong is returned by Put when len(key) exceeds the tree's
	// configured MaxKeyLen (spec §3: "len <= implementation-defined max").
	ErrKeyTooLong = errors.New("masstree: key exceeds configured maximum length")
)

// invariant panics with a wrapped ErrInvariantViolation, after logging
// it, matching spec §7's "the core aborts" policy for programming
// errors. It is never used for ordinary control flow.
func invariant(cond bool, msg string) {
	if cond {
		return
	}
	err := errors.Wrap(ErrInvariantViolation, msg)
	logInvariantViolation(err)
	panic(err)
}
