// Package broadcast implements the mixer session coordinator using the actor pattern.
//
// One goroutine owns the mixer state, the session set and the scheduler counters,
// and receives every input as a typed command on a single channel (no mutexes).
// Level, spectrum and autosave tickers run in the same loop; blocking DSP queries
// run on helper goroutines and post their results back as commands.
// Per-connection write goroutines absorb slow clients and are evicted when they fall behind.
package broadcast
