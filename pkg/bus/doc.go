// Package bus fans received events out to in-process subscribers.
//
// A single producer (the transport pump) publishes decoded events; every
// subscriber observes them in publish order through its own bounded
// queue. Publishing never blocks: when a subscriber's queue is full the
// oldest unread event is dropped and the subscription's overflow counter
// is incremented. Slow consumers lose history, never ordering.
//
// Closing the bus closes every subscriber channel. Sessions use that as
// the transport-loss signal.
package bus
