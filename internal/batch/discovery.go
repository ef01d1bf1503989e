package batch

import (
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/MeKo-Tech/cardscan/internal/utils"
)

// DiscoverOptions controls how DiscoverFrames expands its arguments.
type DiscoverOptions struct {
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string
}

// DiscoverFrames expands files, directories and glob patterns into a sorted,
// de-duplicated list of supported image files. Files named explicitly must
// still be supported images; unsupported ones are skipped.
func DiscoverFrames(args []string, opts DiscoverOptions) ([]string, error) {
	seen := make(map[string]bool)
	var frames []string
	add := func(path string) {
		clean := filepath.Clean(path)
		if !seen[clean] {
			seen[clean] = true
			frames = append(frames, clean)
		}
	}

	for _, arg := range args {
		paths, err := expandArg(arg)
		if err != nil {
			return nil, err
		}
		for _, path := range paths {
			info, err := os.Stat(path)
			if err != nil {
				return nil, fmt.Errorf("cannot access %s: %w", path, err)
			}
			if !info.IsDir() {
				if shouldIncludeFile(path, opts) {
					add(path)
				}
				continue
			}
			files, err := discoverInDirectory(path, opts)
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				add(f)
			}
		}
	}

	slices.Sort(frames)
	return frames, nil
}

// expandArg resolves glob patterns; plain paths are returned unchanged.
func expandArg(arg string) ([]string, error) {
	if !strings.ContainsAny(arg, "*?[") {
		return []string{arg}, nil
	}
	matches, err := filepath.Glob(arg)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %s: %w", arg, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no files match %s", arg)
	}
	return matches, nil
}

// discoverInDirectory walks dir, descending into subdirectories only when
// recursive.
func discoverInDirectory(dir string, opts DiscoverOptions) ([]string, error) {
	var files []string

	walkFn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !opts.Recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if shouldIncludeFile(path, opts) {
			files = append(files, path)
		}
		return nil
	}

	return files, filepath.WalkDir(dir, walkFn)
}

// shouldIncludeFile applies the supported-extension check and the
// include/exclude patterns. Exclusion wins.
func shouldIncludeFile(path string, opts DiscoverOptions) bool {
	if !utils.IsSupportedImage(path) {
		return false
	}
	if matchesAnyPattern(path, opts.ExcludePatterns) {
		return false
	}
	if len(opts.IncludePatterns) == 0 {
		return true
	}
	return matchesAnyPattern(path, opts.IncludePatterns)
}

// matchesAnyPattern matches the base name against shell patterns.
func matchesAnyPattern(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// LoadFrames decodes every path. A frame that cannot be loaded is logged and
// left nil so positions still line up with paths; the aggregator skips it.
func LoadFrames(paths []string) []image.Image {
	frames := make([]image.Image, len(paths))
	cons := utils.DefaultImageConstraints()
	for i, path := range paths {
		img, _, err := utils.LoadImage(path)
		if err != nil {
			slog.Warn("Failed to load frame, skipping", "file", path, "error", err)
			continue
		}
		if err := utils.ValidateImageConstraints(img, cons); err != nil {
			slog.Warn("Frame does not meet constraints, skipping", "file", path, "error", err)
			continue
		}
		frames[i] = img
	}
	return frames
}
