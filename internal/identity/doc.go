// Package identity issues the two fingerprint schemes used for catalog
// identity: deterministic content fingerprints (streamed SHA-256 prefixes)
// for media deduplication, and collision-checked random fingerprints for
// entities without content addressing.
package identity
