package vfs

import (
	"path"
	"strings"

	"go.uber.org/zap"
)

// Root is the sandbox root. The guest's current directory starts here.
const Root = "/"

// CurrentDir is the guest's name for its current directory.
const CurrentDir = "."

// IsAbs reports whether p is an absolute guest path.
func IsAbs(p string) bool {
	return strings.HasPrefix(p, "/")
}

// Remap converts a relative guest path into the absolute path it is mounted
// at. The guest starts in Root, so "." is Root and any other relative path is
// Root joined with it. Absolute paths are returned unchanged.
//
// The result is not cleaned, so ".." segments survive for the caller's
// canonicalization to reject.
func Remap(p string) string {
	if IsAbs(p) {
		return p
	}

	mapped := Root
	if p != CurrentDir && p != "" {
		mapped = Root + p
	}

	Logger().Debug("Remapping a relative path",
		zap.String("original_path", p),
		zap.String("remapped_path", mapped),
	)

	return mapped
}

// Absolute roots p at Root and cleans it. Unlike Remap it also normalizes
// absolute input.
func Absolute(p string) string {
	if p == CurrentDir || p == "" {
		return Root
	}
	return path.Join(Root, p)
}

// IsRoot reports whether p names Root once cleaned.
func IsRoot(p string) bool {
	return Absolute(p) == Root
}

// Split returns the components of p, ignoring empty and "." segments.
// ".." segments are kept; callers that need them resolved clean first.
func Split(p string) []string {
	raw := strings.Split(p, "/")
	parts := raw[:0]
	for _, s := range raw {
		if s == "" || s == "." {
			continue
		}
		parts = append(parts, s)
	}
	return parts
}
