// Package registers reads and writes node registers over the extended
// page protocol.
//
// Registers live in a paged space: 16-bit page, 8-bit offset. One
// request moves at most four values per response frame; longer ranges
// arrive as indexed frames that are reassembled in order. Replies are
// correlated by node, page and register offset, so transactions against
// different nodes can run concurrently without cross-delivery.
//
// Every transaction has a response timeout and a bounded retry budget.
// Verification failures are terminal: a write whose echo or read-back
// differs from what was written is never retried.
package registers
