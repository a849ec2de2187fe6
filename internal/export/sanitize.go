package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// DefaultVideoSuffix is appended to the source base name when the caller
// does not name the trimmed output.
const DefaultVideoSuffix = "_trimmed"

// SanitizeName drops control characters, replaces runes that are unsafe in
// file names with underscores, and bounds the result to maxLen runes.
func SanitizeName(s string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return -1
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return r
		case strings.ContainsRune(" -_.,()", r):
			return r
		default:
			return '_'
		}
	}, s)

	cleaned = strings.TrimSpace(cleaned)
	if runes := []rune(cleaned); maxLen > 0 && len(runes) > maxLen {
		cleaned = string(runes[:maxLen])
	}
	return cleaned
}

// VideoOutputName builds the trimmed file's name from the source media path
// and an optional requested name, keeping the source extension. An empty or
// fully-sanitized-away request falls back to "<base>_trimmed".
func VideoOutputName(mediaPath, requested string) string {
	ext := filepath.Ext(mediaPath)
	name := SanitizeName(requested, 160)
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(mediaPath), ext) + DefaultVideoSuffix
	}
	return name + ext
}

// TitleOrBase returns the sanitized requested title, falling back to the
// media file's base name without its extension. Used for EDL titles and
// default project names.
func TitleOrBase(mediaPath, requested string, maxLen int) string {
	if title := SanitizeName(requested, maxLen); title != "" {
		return title
	}
	base := filepath.Base(mediaPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ValidateOutputDir checks that dir is a clean, traversal-free path to an
// existing directory before any export writes into it.
func ValidateOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("output_dir is required")
	}
	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return fmt.Errorf("output_dir cannot contain path traversal")
		}
	}
	if filepath.Clean(dir) != dir {
		return fmt.Errorf("output_dir must be clean path")
	}

	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("output_dir does not exist")
	case err != nil:
		return fmt.Errorf("invalid output_dir: %w", err)
	case !info.IsDir():
		return fmt.Errorf("output_dir is not a directory")
	}
	return nil
}
