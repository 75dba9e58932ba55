// Package testutil holds test helpers shared by several packages: an
// instrumented sink that checks utensil exclusion as events arrive, and a
// deterministic builder for hand-written event traces.
package testutil
