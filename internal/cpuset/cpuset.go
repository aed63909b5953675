// Package cpuset enumerates the CPUs online at startup, the way
// original_source/ebpf-detector-agent/src/event_processor.rs calls aya's
// online_cpus() before opening one perf/ring buffer per CPU. Per spec §4.B,
// the set is captured once; a later hot-plug is not reconfigured.
package cpuset

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const onlinePath = "/sys/devices/system/cpu/online"

// Online parses the kernel's online-CPU range file (e.g. "0-3" or
// "0-1,4-5") into a sorted slice of CPU ids. This is the same sysfs file
// the eBPF ecosystem's own online-CPU helpers read.
func Online() ([]int, error) {
	raw, err := os.ReadFile(onlinePath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", onlinePath, err)
	}
	return parseRanges(strings.TrimSpace(string(raw)))
}

func parseRanges(s string) ([]int, error) {
	if s == "" {
		return nil, fmt.Errorf("empty cpu range in %s", onlinePath)
	}
	var cpus []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if i := strings.IndexByte(part, '-'); i >= 0 {
			lo, err := strconv.Atoi(part[:i])
			if err != nil {
				return nil, fmt.Errorf("parsing cpu range %q: %w", part, err)
			}
			hi, err := strconv.Atoi(part[i+1:])
			if err != nil {
				return nil, fmt.Errorf("parsing cpu range %q: %w", part, err)
			}
			for c := lo; c <= hi; c++ {
				cpus = append(cpus, c)
			}
			continue
		}
		c, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("parsing cpu id %q: %w", part, err)
		}
		cpus = append(cpus, c)
	}
	return cpus, nil
}
