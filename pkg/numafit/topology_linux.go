//go:build linux

package numafit

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

const sysNodeDir = "/sys/devices/system/node"

// detectNodeCount counts online NUMA nodes via sysfs, falling back to a
// single node when the host has no NUMA topology (or isn't reachable,
// e.g. inside a restrictive container).
func detectNodeCount() int {
	entries, err := os.ReadDir(sysNodeDir)
	if err != nil {
		return 1
	}

	count := 0

	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "node") {
			if _, convErr := strconv.Atoi(strings.TrimPrefix(e.Name(), "node")); convErr == nil {
				count++
			}
		}
	}

	if count == 0 {
		return 1
	}

	return count
}

// nodeCPUs parses /sys/devices/system/node/nodeN/cpulist ("0-3,8-11")
// into a flat CPU id list. Returns nil (meaning "all CPUs") if unreadable.
func nodeCPUs(node int) []int {
	data, err := os.ReadFile(filepath.Join(sysNodeDir, "node"+strconv.Itoa(node), "cpulist"))
	if err != nil {
		return nil
	}

	return parseCPUList(strings.TrimSpace(string(data)))
}

func parseCPUList(spec string) []int {
	var cpus []int

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if lo, hi, ok := strings.Cut(part, "-"); ok {
			loN, err1 := strconv.Atoi(lo)
			hiN, err2 := strconv.Atoi(hi)

			if err1 != nil || err2 != nil {
				continue
			}

			for c := loN; c <= hiN; c++ {
				cpus = append(cpus, c)
			}
		} else if n, err := strconv.Atoi(part); err == nil {
			cpus = append(cpus, n)
		}
	}

	return cpus
}

// pinToNode locks the calling goroutine to its OS thread and pins that
// thread's CPU affinity to the given NUMA node's CPUs. Errors are
// swallowed: a worker that fails to pin still processes its assigned
// dimensions, just without the NUMA locality benefit.
func pinToNode(node int) {
	runtime.LockOSThread()

	cpus := nodeCPUs(node)
	if len(cpus) == 0 {
		return
	}

	var mask unix.CPUSet

	mask.Zero()

	for _, cpu := range cpus {
		mask.Set(cpu)
	}

	_ = unix.SchedSetaffinity(0, &mask)
}
