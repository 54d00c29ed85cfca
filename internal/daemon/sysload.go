package daemon

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// loadHint is a cheap point-in-time read of system load, used to find a
// "polite window" before a background model upgrade competes for CPU and
// memory. Worker capacity/TTL sizing uses totalMemGB instead.
type loadHint struct {
	LoadAvg1       float64
	MemAvailableMB uint64
	MemAvailableOK bool
}

// sampleLoad reads /proc/loadavg and /proc/meminfo on Linux. On any other
// platform, or if the files are unreadable (containers sometimes restrict
// /proc), it returns a permissive zero-load hint, so the polite-upgrade
// wait ends after its initial fixed delay rather than blocking forever.
func sampleLoad() loadHint {
	if runtime.GOOS != "linux" {
		return loadHint{MemAvailableOK: false}
	}
	hint := loadHint{}
	if avg, ok := readLoadAvg("/proc/loadavg"); ok {
		hint.LoadAvg1 = avg
	}
	if mb, ok := readMemAvailableMB("/proc/meminfo"); ok {
		hint.MemAvailableMB = mb
		hint.MemAvailableOK = true
	}
	return hint
}

func readLoadAvg(path string) (float64, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func readMemAvailableMB(path string) (uint64, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemAvailable:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, false
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, false
		}
		return kb / 1024, true
	}
	return 0, false
}

// totalMemGB estimates total system memory for capacity sizing. On Linux
// it reads MemTotal from /proc/meminfo; elsewhere it falls back to a
// conservative 8 GiB assumption, matching the smallest capacity tier.
func totalMemGB() int {
	if runtime.GOOS == "linux" {
		if data, err := os.ReadFile("/proc/meminfo"); err == nil {
			for _, line := range strings.Split(string(data), "\n") {
				if !strings.HasPrefix(line, "MemTotal:") {
					continue
				}
				fields := strings.Fields(line)
				if len(fields) >= 2 {
					if kb, err := strconv.ParseUint(fields[1], 10, 64); err == nil {
						return int(kb / 1024 / 1024)
					}
				}
			}
		}
	}
	return 8
}
