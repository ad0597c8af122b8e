//go:build !linux

package metadata

// debuggerAttached has no portable probe off linux; report not attached.
func debuggerAttached() bool { return false }
