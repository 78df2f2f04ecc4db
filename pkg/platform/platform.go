// Package platform names the operating systems a server bundle can target.
package platform

import "strings"

// Supported targets. Any renders launch scripts for every system.
const (
	Any     = "any"
	Linux   = "linux"
	MacOS   = "macos"
	Windows = "windows"
)

// Valid returns the accepted target names.
func Valid() []string {
	return []string{Any, Linux, MacOS, Windows}
}

// Normalize maps common spellings to a target name. An empty value is Any.
func Normalize(os string) string {
	os = strings.ToLower(strings.TrimSpace(os))
	switch os {
	case "":
		return Any
	case "darwin", "osx", "mac":
		return MacOS
	case "win", "win32", "win64":
		return Windows
	default:
		return os
	}
}

// IsValid reports whether os normalizes to a supported target.
func IsValid(os string) bool {
	os = Normalize(os)
	for _, v := range Valid() {
		if v == os {
			return true
		}
	}
	return false
}

// Matches reports whether a file meant for systems in want is needed when
// building for target.
func Matches(target string, want ...string) bool {
	target = Normalize(target)
	if target == Any {
		return true
	}
	for _, w := range want {
		if Normalize(w) == target {
			return true
		}
	}
	return false
}
