// Package transport connects the engine to a CAN backend.
//
// The backend (SocketCAN, gs_usb, slcan, a simulator) sits behind the
// Port interface. Two components wrap it:
//
//   - Dispatcher serializes all outbound traffic. Sessions never talk
//     to the port directly, so frames of one logical operation are
//     contiguous relative to other senders.
//   - Pump is the single goroutine draining the port's receive channel,
//     decoding frames and publishing events to the bus. It is the only
//     goroutine tied to external I/O.
//
// A send is complete when the port accepts the frame; acknowledgement
// only ever arrives as a received event. When the port's receive
// channel closes the pump closes the bus, which every session observes
// as transport loss. There is no automatic reconnection.
package transport
