// Package planner turns two package trees into an ordered set of filesystem
// operations.
//
// It has two halves. The prune half (SelectPrunable, RemoveDeps,
// LoadExtraneous) derives an ideal tree from the current one by excising
// extraneous packages and everything they alone kept alive. The diff half
// (Diff, Plan) compares any current/ideal pair and schedules the resulting
// operations into steps whose members touch disjoint paths.
package planner
