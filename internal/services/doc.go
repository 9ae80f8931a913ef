// Package services provides shared plumbing for the worker processes: the
// error taxonomy used to classify capture and store failures, and context
// annotation helpers that thread task/stage/correlation identifiers through
// each unit of work.
package services
