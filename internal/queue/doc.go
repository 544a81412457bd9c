// Package queue provides an unbounded FIFO used to hand messages from
// narration callbacks to the terminal UI in publish order without blocking
// the publisher.
package queue
