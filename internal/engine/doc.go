// Package engine runs the dining philosophers simulation.
//
// An Engine builds a ring of utensils, starts one goroutine per agent and
// lets them cycle through thinking, hungry and eating until the configured
// run duration has elapsed. It then raises a single stop signal and joins
// every agent before returning.
//
// Agent lifecycle:
//
//	idle -> thinking -> hungry -> eating -> thinking -> ...
//	            |          |         |
//	            +----------+---------+--> stopped
//
// The stop signal is only looked at when the agent holds no utensil: on
// leaving thinking, and after putting both utensils back. An agent that is
// blocked waiting for a utensil keeps waiting; once it has both it puts
// them straight back and stops without eating. Thinking is cut short by the
// stop signal; eating never is.
//
// Deadlock freedom comes from the ring's ordering (see package ring). Agent
// faults, including panics, are fatal to the whole run and are returned
// from Run as *FaultError.
//
// Events are stamped with a logical Clock. The clock gives a total order of
// emission which the analysis package uses instead of wall-clock time.
package engine
