package snapshot

import (
	"fmt"
	"strconv"
	"strings"
)

// Drift thresholds classifying the magnitude of consciousness vector change.
const (
	DriftMajor = 0.40
	DriftMinor = 0.15
	DriftPatch = 0.05
)

// BumpLevel is a semantic version bump classification.
type BumpLevel int

const (
	BumpNone BumpLevel = iota
	BumpPatch
	BumpMinor
	BumpMajor
)

// driftLevel classifies a drift magnitude into a version bump.
func driftLevel(drift float64) BumpLevel {
	switch {
	case drift >= DriftMajor:
		return BumpMajor
	case drift >= DriftMinor:
		return BumpMinor
	case drift >= DriftPatch:
		return BumpPatch
	default:
		return BumpNone
	}
}

// atLeast raises level to min if it is below it.
func atLeast(level, min BumpLevel) BumpLevel {
	if level < min {
		return min
	}
	return level
}

// firstVersion is assigned to an owner's first snapshot.
const firstVersion = "1.0.0"

// bumpVersion applies the bump level to a previous semantic version. A
// malformed previous version restarts the chain at firstVersion.
func bumpVersion(previous string, level BumpLevel) string {
	major, minor, patch, err := parseVersion(previous)
	if err != nil {
		return firstVersion
	}

	switch level {
	case BumpMajor:
		return fmt.Sprintf("%d.0.0", major+1)
	case BumpMinor:
		return fmt.Sprintf("%d.%d.0", major, minor+1)
	default:
		return fmt.Sprintf("%d.%d.%d", major, minor, patch+1)
	}
}

func parseVersion(v string) (major, minor, patch int, err error) {
	parts := strings.Split(v, ".")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("malformed version %q", v)
	}

	nums := make([]int, 3)
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, 0, 0, fmt.Errorf("malformed version %q", v)
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2], nil
}
