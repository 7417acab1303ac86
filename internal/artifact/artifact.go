// Package artifact names, stores and publishes the diagnostic files a browser
// test leaves behind: screenshots, videos and traces.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kuitang/hellopet-e2e/internal/config"
)

const (
	ScreenshotsDir = "screenshots"
	VideosDir      = "videos"
	TracesDir      = "traces"
)

// Timestamp renders t as an ISO 8601 UTC instant with millisecond precision
// and every ':' and '.' replaced by '-', so it is safe in a file name.
func Timestamp(t time.Time) string {
	iso := t.UTC().Format("2006-01-02T15:04:05.000Z")
	return strings.NewReplacer(":", "-", ".", "-").Replace(iso)
}

// FailureName is the screenshot file name for a failed test.
func FailureName(testName string, t time.Time) string {
	return fmt.Sprintf("%s-failure-%s.png", Sanitize(testName), Timestamp(t))
}

// FinalName is the screenshot file name for a test that passed.
func FinalName(testName string, t time.Time) string {
	return fmt.Sprintf("%s-final-%s.png", Sanitize(testName), Timestamp(t))
}

// ScreenshotName names the end-of-test screenshot by outcome.
func ScreenshotName(testName string, failed bool, t time.Time) string {
	if failed {
		return FailureName(testName, t)
	}
	return FinalName(testName, t)
}

// FullPageName is the default name for an ad hoc full page screenshot.
func FullPageName(t time.Time) string {
	return "full-page-" + Timestamp(t) + ".png"
}

// ElementName is the default name for an element screenshot.
func ElementName(t time.Time) string {
	return "element-" + Timestamp(t) + ".png"
}

// TraceName is the trace archive name for one attempt of a test.
func TraceName(testName string, attempt int) string {
	return fmt.Sprintf("%s-attempt%d.zip", Sanitize(testName), attempt)
}

// Sanitize makes a Go subtest name usable as a file name. Slashes from
// subtests and path separators become dashes.
func Sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '-'
		}
		return r
	}, name)
}

// Store roots artifact files under a run's output directory.
type Store struct {
	Root string
}

// NewStore returns a store for cfg.OutputDir.
func NewStore(outputDir string) Store {
	return Store{Root: outputDir}
}

// ScreenshotPath returns where a screenshot named name is written.
func (s Store) ScreenshotPath(name string) string {
	return filepath.Join(s.Root, ScreenshotsDir, name)
}

// VideoDir returns the directory a browser context records into.
func (s Store) VideoDir() string {
	return filepath.Join(s.Root, VideosDir)
}

// TracePath returns where a test's trace is written.
func (s Store) TracePath(testName string, attempt int) string {
	return filepath.Join(s.Root, TracesDir, TraceName(testName, attempt))
}

// Ensure creates the store's directories.
func (s Store) Ensure() error {
	for _, dir := range []string{ScreenshotsDir, VideosDir, TracesDir} {
		if err := os.MkdirAll(filepath.Join(s.Root, dir), 0o755); err != nil {
			return fmt.Errorf("create %s dir: %w", dir, err)
		}
	}
	return nil
}

// Reset removes the artifacts a previous run left in the store. Other files
// under Root, such as reports, are kept.
func (s Store) Reset() error {
	for _, dir := range []string{ScreenshotsDir, VideosDir, TracesDir} {
		if err := os.RemoveAll(filepath.Join(s.Root, dir)); err != nil {
			return fmt.Errorf("clear %s dir: %w", dir, err)
		}
	}
	return nil
}

// Files lists every regular file in the store's artifact directories,
// relative to Root. Missing directories are skipped.
func (s Store) Files() ([]string, error) {
	var files []string
	for _, dir := range []string{ScreenshotsDir, VideosDir, TracesDir} {
		top := filepath.Join(s.Root, dir)
		err := filepath.WalkDir(top, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) && path == top {
					return filepath.SkipDir
				}
				return err
			}
			if d.Type().IsRegular() {
				rel, err := filepath.Rel(s.Root, path)
				if err != nil {
					return err
				}
				files = append(files, filepath.ToSlash(rel))
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

// ShouldCapture reports whether recording should start for an attempt.
// Attempts count from zero; attempt 1 is the first retry.
func ShouldCapture(mode config.Mode, attempt int) bool {
	switch mode {
	case config.ModeOn, config.ModeOnlyOnFailure, config.ModeRetainOnFailure:
		return true
	case config.ModeOnFirstRetry:
		return attempt == 1
	}
	return false
}

// ShouldRetain reports whether a recorded artifact is kept once the attempt
// has finished.
func ShouldRetain(mode config.Mode, failed bool, attempt int) bool {
	switch mode {
	case config.ModeOn:
		return true
	case config.ModeOnlyOnFailure, config.ModeRetainOnFailure:
		return failed
	case config.ModeOnFirstRetry:
		return attempt == 1
	}
	return false
}
