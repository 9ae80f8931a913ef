// Package archiver drives the external page-capture tool. Each capture
// produces a snapshot directory under the archive root named by a freshly
// minted snapshot identifier.
package archiver
