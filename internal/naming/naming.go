package naming

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/backmassage/streammux/internal/container"
)

// IsDirTarget reports whether output names a directory: it ends with a path
// separator or is an existing directory.
func IsDirTarget(output string) bool {
	if output == "" {
		return false
	}
	if strings.HasSuffix(output, "/") || strings.HasSuffix(output, string(filepath.Separator)) {
		return true
	}
	fi, err := os.Stat(output)
	return err == nil && fi.IsDir()
}

// OutputPath returns the file an output argument resolves to. A file
// argument is returned unchanged. For a directory argument the name is
// <stem of firstInput><kind extension>, made unique against claimed paths.
func OutputPath(output, firstInput string, kind container.Kind, r *CollisionResolver) string {
	if !IsDirTarget(output) {
		return output
	}
	base := filepath.Base(firstInput)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return r.Resolve(filepath.Join(filepath.Clean(output), stem+kind.Extension()))
}

// CollisionResolver hands out output paths that are not claimed. Claims come
// from [CollisionResolver.Claim] and, unless overwriting is allowed, from
// files that already exist. All methods are goroutine-safe.
type CollisionResolver struct {
	mu        sync.Mutex
	overwrite bool
	claimed   map[string]bool
	counters  map[string]int // requested path → next dup counter
	exists    func(string) bool
}

// NewCollisionResolver creates a resolver. With overwrite set, existing
// files do not count as claims.
func NewCollisionResolver(overwrite bool) *CollisionResolver {
	return &CollisionResolver{
		overwrite: overwrite,
		claimed:   make(map[string]bool),
		counters:  make(map[string]int),
		exists:    fileExists,
	}
}

// Claim marks paths as taken, typically the run's inputs.
func (cr *CollisionResolver) Claim(paths ...string) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	for _, p := range paths {
		cr.claimed[filepath.Clean(p)] = true
	}
}

// Resolve returns requested if it is free, otherwise the first free
// "<stem> - dupN<ext>" variant. The returned path is claimed.
func (cr *CollisionResolver) Resolve(requested string) string {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	requested = filepath.Clean(requested)
	if !cr.taken(requested) {
		cr.claimed[requested] = true
		return requested
	}

	dir := filepath.Dir(requested)
	base := filepath.Base(requested)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	counter := max(cr.counters[requested], 1)
	for {
		candidate := filepath.Join(dir, fmt.Sprintf("%s - dup%d%s", stem, counter, ext))
		if !cr.taken(candidate) {
			cr.counters[requested] = counter + 1
			cr.claimed[candidate] = true
			return candidate
		}
		counter++
	}
}

func (cr *CollisionResolver) taken(p string) bool {
	if cr.claimed[p] {
		return true
	}
	return !cr.overwrite && cr.exists(p)
}

func fileExists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}
