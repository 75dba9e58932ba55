// Package trace defines the activity events emitted by a simulation run and
// the sinks that consume them.
//
// Events are emitted synchronously from the goroutine of the agent that
// caused them, so the stream is ordered per agent but not globally. Seq is
// stamped by the engine's logical clock at emission time and gives a total
// order that is consistent with the locking of each utensil: an acquire is
// emitted after the utensil's lock is held and a release before it is
// dropped, so for a single utensil release(A).Seq < acquire(B).Seq always
// holds when B takes it over from A.
//
// Sinks must be safe for concurrent use.
package trace
