// Package assetstore uploads extracted media files to the remote asset
// service. Uploads are best effort: an unreachable service is reported with
// a sentinel so callers can record media without an asset reference and move
// on.
package assetstore
