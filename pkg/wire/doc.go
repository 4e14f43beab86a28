// Package wire implements the VSCP Level I frame codec for CAN.
//
// A Level I event travels in a single CAN frame with a 29-bit extended
// identifier. The identifier carries the event priority, the hardcoded
// flag, the 9-bit class, the 8-bit type and the 8-bit nickname of the
// sending node; the frame payload carries up to 8 data bytes.
//
// Decode and Encode are pure functions between Frame and Event. Decode
// assigns the event timestamp; nothing on the wire carries time.
//
// The package also holds the protocol constant tables (class and type
// identifiers), the human-readable dictionary used by the sniffer, and
// the CRC-16 used by the boot loader block protocol.
package wire
