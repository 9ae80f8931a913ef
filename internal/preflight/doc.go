// Package preflight validates the environment before the pipeline runs:
// directory access, free space, the capture tool, the asset store, and the
// catalog database.
package preflight
