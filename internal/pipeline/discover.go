package pipeline

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/backmassage/streammux/internal/config"
)

// Supported media file extensions (lowercase, with leading dot).
var mediaExtensions = map[string]bool{
	".mkv":  true,
	".mka":  true,
	".mks":  true,
	".webm": true,
	".mp4":  true,
	".m4v":  true,
	".m4a":  true,
	".mov":  true,
	".avi":  true,
	".ts":   true,
	".m2ts": true,
	".mts":  true,
	".trp":  true,
	".mpg":  true,
	".mpeg": true,
	".vob":  true,
	".ogv":  true,
	".ogg":  true,
	".flac": true,
	".srt":  true,
	".ass":  true,
	".vtt":  true,
	".sup":  true,
}

// Discover walks inputDir, collects files with media extensions, prunes
// directories named "extras" (case-insensitive), and returns the paths
// sorted lexicographically for deterministic source numbering.
func Discover(inputDir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != inputDir && strings.EqualFold(d.Name(), "extras") {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if mediaExtensions[ext] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ExpandInputs replaces every directory argument with the media files it
// contains, in place, so source numbering follows argument order. File
// arguments are kept as given, whatever their extension.
func ExpandInputs(args []string) ([]string, error) {
	var out []string
	for _, a := range args {
		fi, err := os.Stat(a)
		if err != nil || !fi.IsDir() {
			// Missing files surface as a source open error from the engine.
			out = append(out, a)
			continue
		}
		files, err := Discover(config.NormalizeDirArg(a))
		if err != nil {
			return nil, err
		}
		out = append(out, files...)
	}
	return out, nil
}
