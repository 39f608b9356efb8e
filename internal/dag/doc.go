// Package dag builds the step dependency graph for a single workflow run.
//
// Three linking rules apply, in order:
//
//  1. explicit: names listed in a step's depends_on.
//  2. implicit: steps referenced from argument expressions (step.<name>.*).
//  3. sequential fallback: a step that ends up with no dependencies and is
//     not the first step chains onto the step declared before it. Declaring
//     an empty depends_on list opts a step out of the fallback so it can
//     run as an additional root.
//
// The fallback preserves plain top-to-bottom workflow semantics while still
// allowing deliberate fan-out.
package dag
