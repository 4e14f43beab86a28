// Package firmware drives boot loader updates of a single node.
//
// A session runs in phases: handshake (read boot credentials, enter the
// boot loader, learn the flash geometry), transfer (blocks in strictly
// increasing order, each started, streamed in 8-byte chunks, checksum
// acknowledged and programmed), and verification (activate the new
// image under its CRC).
//
// A block that is not acknowledged is retried a bounded number of
// times; the blocks after it are never sent until it succeeds. Checksum
// rejection of the whole image is terminal and never retried. Whenever
// a session dies early it tells the node to reset, best-effort; a lost
// notification is the boot loader watchdog's problem, not ours.
package firmware
