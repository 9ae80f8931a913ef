// Package archive runs the capture side of the pipeline: it claims pending
// tasks, drives the external capture tool, and advances each task to
// archiving or failed.
package archive
