// Package paths locates arbor projects on disk.
//
// A project is a directory holding an arbor.toml manifest. Commands run
// from anywhere inside a project operate on the nearest such directory,
// unless ARBOR_PROJECT names one explicitly.
package paths
