// Command gazetteer is the CLI for the location media archive: it registers
// locations, enqueues capture tasks, runs the archive and extract workers,
// and reports pipeline status.
package main
