// Package cache provides a persistent, zstd-compressed blob cache used to skip
// re-decoding sound files between runs.
package cache
