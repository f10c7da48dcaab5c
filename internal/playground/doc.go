// Package playground implements the playground controller and its registry.
//
// A Playground owns a source buffer, the output log and fault of its latest
// run and a render target nobody else writes to. Runs are serialised:
//
//	Run:   idle|error -> running -> idle (no fault) | error (fault)
//	Reset: any state  -> idle, source restored
//	Edit:  any state, no transition
//
// Every run gets a new generation number. Starting a run or a reset cancels
// the timers of the previous run and waits for them to stop; records that
// still arrive from an older generation are dropped before they reach
// snapshots or subscribers.
package playground
