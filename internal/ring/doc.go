// Package ring implements the shared utensils of the dining table.
//
// A Ring owns N utensils arranged in a cycle. Agent i needs utensils i and
// (i+1) mod N, and Pair always reports them lowest index first. Acquiring
// in that order is the whole deadlock-avoidance story: every agent climbs
// the same total order, so no cycle of waiters can form. It does not
// prevent starvation.
//
// Each utensil is guarded by its own mutex; there is no table-wide lock.
package ring
