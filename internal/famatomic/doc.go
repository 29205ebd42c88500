// Package famatomic provides sequentially consistent atomic operations on
// 32, 64 and 128-bit words that live in memory shared between processes.
//
// # Overview
//
// Every location handed to this package is expected to sit inside a
// MAP_SHARED mapping of a shelf file. Two processes (or two independent
// mappings inside one process) that operate on the same physical page
// observe a single global order of operations, which is the only
// synchronization the allocator relies on. No lock, futex or semaphore is
// ever placed in shared memory.
//
// # Operations
//
// For each width the package offers:
//
//   - Load / Store
//   - FetchAdd, FetchAnd, FetchOr, FetchXor (return the value before the op)
//   - Swap (returns the previous value)
//   - CompareAndStore (returns the value observed; success iff it equals old)
//
// # 128-bit words
//
// Uint128 is a pair of 64-bit words updated as one indivisible unit. On
// amd64 it is backed by LOCK CMPXCHG16B, on arm64 by an LDAXP/STLXP loop.
// Loads are implemented with the same instruction so a torn read is never
// possible. Other architectures fall back to a striped process-local lock,
// which keeps single-process tests working but is NOT safe across processes.
//
// # Alignment
//
// 32-bit words need 4-byte alignment, 64-bit words 8-byte alignment and
// Uint128 16-byte alignment. Misalignment is a caller bug; the Ptr helpers
// panic on it rather than returning an error.
package famatomic
