// Package orchestrator runs the fixed sequence of stages every command
// shares: load the current tree, compute the ideal tree, diff the two,
// execute the planned operations, run lifecycle scripts, persist state
// and summarize. Commands differ only in the Strategy they plug in.
//
// Nothing before the execute stage touches the disk, so a planning error
// always leaves the project as it was. Dry-run stops short of invoking
// any action, lifecycle script or save, but still plans, reports and
// emits the same progress hierarchy as a real run.
package orchestrator
