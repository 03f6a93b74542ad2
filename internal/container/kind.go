// Package container describes the output container kinds the engine can
// target: their capability tables, the sink interface the mux driver writes
// through, and a file-backed writer that delegates the byte format to
// per-kind muxers.
package container

import (
	"path/filepath"
	"strings"
)

// Kind names an output container format.
type Kind string

const (
	Matroska Kind = "matroska"
	WebM     Kind = "webm"
	MPEGTS   Kind = "mpegts"
)

// Kinds lists the supported kinds in display order.
var Kinds = []Kind{Matroska, WebM, MPEGTS}

func (k Kind) String() string { return string(k) }

// Extension returns the conventional file extension for k, with the dot.
func (k Kind) Extension() string {
	switch k {
	case Matroska:
		return ".mkv"
	case WebM:
		return ".webm"
	case MPEGTS:
		return ".ts"
	}
	return ""
}

// ParseKind resolves a kind name or common alias. Unknown names are returned
// as-is with ok=false so callers can still report what was asked for.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "matroska", "mkv", "mka", "mks":
		return Matroska, true
	case "webm":
		return WebM, true
	case "mpegts", "ts", "m2ts", "mts":
		return MPEGTS, true
	}
	return Kind(s), false
}

// KindFromPath infers the kind from a file extension.
func KindFromPath(path string) (Kind, bool) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", false
	}
	return ParseKind(ext)
}
