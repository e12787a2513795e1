// Package pipeline runs an ordered list of steps.
//
// Each step is a single action or a fan-out group of actions that may run
// concurrently. Steps are strict barriers: step N+1 starts only after every
// action of step N returned. The first failing action aborts the remaining
// steps and is returned wrapped as PIPELINE_ABORTED; completed work is not
// rolled back.
//
// Dry-run is a single flag on the executor. When set, every step and action
// is still walked and reported, including progress, but no action runs.
package pipeline
