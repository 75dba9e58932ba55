// Package harness runs conformance scenarios against the simulator.
//
// A scenario is a YAML file naming a run configuration and the assertions
// every run under it must satisfy. Runs are not deterministic, so
// assertions are properties (no findings, at least so many meals, finished
// within a bound) rather than expected traces.
//
// # Scenario Format
//
//	name: five_agents
//	description: "Five agents share five utensils without deadlock"
//	repeat: 3
//	config:
//	  agents: 5
//	  duration: 500ms
//	  think: 2ms
//	  eat: 2ms
//	  seed: 42
//	assertions:
//	  - type: correct
//	  - type: min_meals
//	    count: 1
//	  - type: max_elapsed
//	    within: 2s
//
// Durations are Go duration strings; plain numbers are rejected.
//
// # Assertion Types
//
//   - correct: trace analysis reports no findings
//   - min_meals: every agent (or the one named by agent) ate at least count times
//   - total_meals: all agents together ate at least count times
//   - max_elapsed: the run took no longer than within
//   - stop_cause: the run stopped for the given cause
//   - finding_count: analysis reports exactly count findings of kind
//   - config_error: the configuration is rejected before anything starts
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/five_agents.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario)
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
