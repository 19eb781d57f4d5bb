//go:build !linux

package numafit

// detectNodeCount degrades to a single pool on platforms without sysfs
// NUMA topology (identical behavior to a single-node Linux host).
func detectNodeCount() int { return 1 }

// pinToNode is a no-op outside Linux; CPU affinity pinning has no portable
// equivalent in the standard library or golang.org/x/sys on these GOOS
// values.
func pinToNode(int) {}
