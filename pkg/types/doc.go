// Package types defines the identifiers, pointer encodings and result kinds
// shared by every layer of the fabric-attached memory allocator.
//
// Nothing in this package touches shared memory. It exists so that the
// shelf, stack, rootshelf and heap packages agree on how a location is
// named across processes and how outcomes are reported to callers.
//
// Design goals:
//   - Only region-relative offsets cross process boundaries, never addresses.
//   - Expected outcomes of a lock-free protocol (busy, not found, already
//     exists) are ordinary errors that callers branch on with errors.Is.
//   - Corruption and mapping failures are a separate, terminal category.
//
// This package has no dependencies beyond the standard library.
package types
