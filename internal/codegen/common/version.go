package common

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is injected at link time:
//
//	-ldflags "-X github.com/Alia5/loadergen/internal/codegen/common.Version=x.y.z"
var Version = ""

const devVersion = "0.0.1-dev"

// GetVersion returns Version without its "v" prefix, or a development
// version when nothing was injected.
func GetVersion() (string, error) {
	if Version == "" {
		return devVersion, nil
	}
	v := strings.TrimPrefix(Version, "v")
	base, _, _ := strings.Cut(v, "-")
	if !strings.Contains(base, ".") {
		return "", fmt.Errorf("invalid version format: %s (expected x.y.z)", Version)
	}
	return v, nil
}

// ParseVersion splits "1.2.3" or "1.2.3-dirty" into its numeric parts.
// Missing or malformed parts are zero.
func ParseVersion(version string) (major, minor, patch int) {
	base, _, _ := strings.Cut(version, "-")
	parts := strings.SplitN(base, ".", 3)
	nums := make([]int, 3)
	for i, p := range parts {
		nums[i], _ = strconv.Atoi(p)
	}
	return nums[0], nums[1], nums[2]
}

// SameRelease reports whether two versions share major and minor number.
// Output is only expected to be stable within one release line.
func SameRelease(a, b string) bool {
	aMaj, aMin, _ := ParseVersion(a)
	bMaj, bMin, _ := ParseVersion(b)
	return aMaj == bMaj && aMin == bMin
}
