// Package registry implements the ledger of tracked heap allocations.
//
// Every allocation made outside an arena is recorded as an Object: its
// memory, size, label, allocation site, creation time and reference count.
// Objects are kept in an intrusive doubly-linked list in allocation order and,
// unless linear lookup is requested, in a map keyed by the address of the
// first byte of their memory.
//
// # Reclamation
//
// The registry never releases memory itself. Release and Collect unlink the
// affected objects and hand them back to the caller, which runs destructors
// and returns blocks to their source after the registry lock is dropped.
//
// Collect is a reference-count filter: the mark phase flags every object with
// a positive count and the sweep phase unlinks the rest. There is no root set
// and no object graph is walked.
//
// # Thread Safety
//
// A single mutex guards the list, the index and all counters. Every method
// acquires it for its whole duration.
package registry
