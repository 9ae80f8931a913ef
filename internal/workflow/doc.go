// Package workflow sequences the archive and extract passes, either once or
// as a polling loop, and enforces single-instance execution with a file
// lock.
package workflow
