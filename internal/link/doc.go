// Package link owns the accessory link lifecycle.
//
// Ownership boundary:
// - transport abstraction (PeerProvider, Handle)
// - attachment polling with a fixed cooldown
// - the single-worker read pump and its session state machine
// - the write gate that serializes outbound frames against teardown
// - the controller that re-arms sessions for repeated attach/detach cycles
//
// A Session moves Searching -> Attached -> ShuttingDown -> Closed and is never reused.
// All transport reads, frame dispatch and teardown run on the session's worker
// goroutine; writes may come from any goroutine through the WriteGate.
package link
