// Package sniffer taps the live event stream for inspection.
//
// A tap attaches to the bus with a filter and yields matching events
// tagged with their human readable class/type label. Any number of
// taps can run concurrently; a slow tap drops its own oldest events
// and never stalls the bus or the other taps.
package sniffer
