// Package registry provides reference collaborators for resolving and
// fetching packages: a thread-safe index of published versions, a
// resolver that matches version ranges against it, and a fetcher that
// copies package contents into an install location.
//
// An index is usually loaded from a directory laid out as
// <root>/<name>/<version>/ with an arbor.toml in every version directory.
// Scoped names nest one level deeper: <root>/@scope/name/<version>/.
package registry
