// Package commands provides the strategy bundles the orchestrator runs
// for install, prune and update. Each bundle decides how the ideal tree
// is computed and which lifecycle scripts follow; the orchestrator owns
// everything else.
package commands
