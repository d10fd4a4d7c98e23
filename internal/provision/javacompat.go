package provision

import (
	"strconv"
	"strings"
)

// javaRequirement maps a Minecraft minor-version floor to the minimum Java
// major version known to run it.
type javaRequirement struct {
	minorFloor int // e.g. 17 for "1.17"
	javaMajor  int
}

// javaCompat holds the per-server-type minimum Java requirements, newest
// floor first. Types absent from the table are not checked.
var javaCompat = map[string][]javaRequirement{
	"VANILLA": {{21, 21}, {18, 17}, {17, 16}, {0, 8}},
	"PAPER":   {{21, 21}, {18, 17}, {17, 16}, {0, 8}},
	"SPIGOT":  {{21, 21}, {18, 17}, {17, 16}, {0, 8}},
	"FORGE":   {{21, 21}, {18, 17}, {17, 16}, {0, 8}},
	"FABRIC":  {{21, 21}, {18, 17}, {17, 16}, {0, 8}},
}

// RequiredJavaMajor returns the minimum Java major version for the given
// server type and Minecraft version. ok is false when no requirement is
// known, in which case the caller should skip the check.
func RequiredJavaMajor(serverType, mcVersion string) (int, bool) {
	reqs, ok := javaCompat[strings.ToUpper(strings.TrimSpace(serverType))]
	if !ok {
		return 0, false
	}

	minor, ok := minecraftMinor(mcVersion)
	if !ok {
		return 0, false
	}

	for _, r := range reqs {
		if minor >= r.minorFloor {
			return r.javaMajor, true
		}
	}
	return 0, false
}

// CheckJavaCompat reports whether javaMajor satisfies the requirement for
// the server type/version. The check is advisory: callers log a warning on
// mismatch and proceed.
func CheckJavaCompat(serverType, mcVersion string, javaMajor int) (ok bool, required int) {
	required, known := RequiredJavaMajor(serverType, mcVersion)
	if !known || javaMajor <= 0 {
		return true, required
	}
	return javaMajor >= required, required
}

// ParseJavaMajor extracts the major version from strings like "21",
// "17.0.9" or the legacy "1.8.0_392".
func ParseJavaMajor(version string) int {
	v := strings.TrimSpace(version)
	if v == "" {
		return 0
	}
	parts := strings.FieldsFunc(v, func(r rune) bool { return r == '.' || r == '_' || r == '-' || r == '+' })
	if len(parts) == 0 {
		return 0
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0
	}
	if major == 1 && len(parts) > 1 {
		// Legacy "1.8" style versioning.
		if m, err := strconv.Atoi(parts[1]); err == nil {
			return m
		}
	}
	return major
}

// minecraftMinor parses the minor component from "1.20.4" style versions.
func minecraftMinor(version string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(version), ".")
	if len(parts) < 2 || parts[0] != "1" {
		return 0, false
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	return minor, true
}
