// Package overrides writes the side-file that tells a downstream packaging
// run which top-level manifest fields were already applied.
package overrides
