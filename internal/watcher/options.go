package watcher

import (
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Options configures the drop-folder watcher.
type Options struct {
	IgnorePatterns []string
	// Extensions lists the lowercase file extensions that produce events.
	Extensions   []string
	SettleDelay  time.Duration
	IgnoreHidden bool
}

// setDefaults applies default values to unset options.
func (o *Options) setDefaults() {
	if o.SettleDelay == 0 {
		o.SettleDelay = 500 * time.Millisecond
	}
	if len(o.Extensions) == 0 {
		o.Extensions = []string{".csv"}
	}

	// Set default ignore patterns if none specified (nil, not just empty).
	if o.IgnorePatterns == nil {
		o.IgnorePatterns = []string{
			".DS_Store",
			"*.tmp",
			"*.part",
			"~$*",
		}
		// If patterns were explicitly set (even to empty slice), respect the caller's IgnoreHidden choice.
		o.IgnoreHidden = true
	}
}

// shouldIgnore checks if a path matches ignore patterns.
func (o *Options) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	if o.IgnoreHidden && strings.HasPrefix(base, ".") {
		return true
	}

	for _, pattern := range o.IgnorePatterns {
		matched, err := filepath.Match(pattern, base)
		if err == nil && matched {
			return true
		}
	}

	return false
}

// accepts reports whether a file path should produce events.
func (o *Options) accepts(path string) bool {
	if o.shouldIgnore(path) {
		return false
	}
	return slices.Contains(o.Extensions, strings.ToLower(filepath.Ext(path)))
}
