// Package filesystem applies planned tree operations to disk.
//
// FS is the narrow filesystem surface the applier and the reference
// collaborators need; NewOS backs it with the real filesystem. The Applier
// turns each planner operation into a synthfs custom operation so every
// mutation runs through the same execution path the rest of the tool uses.
package filesystem
