// Package analysis replays a recorded event trace and checks it.
//
// Analyze rebuilds every agent's state and every utensil's holder from the
// events alone, in seq order, and reports meals per agent together with
// anything the trace shows that a correct run cannot produce: a utensil
// used by two agents at once, neighbours eating at the same time, utensils
// taken out of ascending order, transitions outside the agent state
// machine, and agents that did not end stopped and empty-handed.
//
// The analysis trusts nothing the engine computed; it is the independent
// second check on a run, and the only check on a run read back from the
// trace store.
package analysis
