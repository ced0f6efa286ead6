// Package notes adapts a local notes directory (plain .md/.txt files)
// into timeline items.
package notes

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/luminalab/mindloom/pkg/sources"
	"github.com/luminalab/mindloom/pkg/timeline"
)

var noteExtensions = map[string]struct{}{
	".md": {}, ".txt": {},
}

type Adapter struct {
	dir    string
	logger *log.Logger
}

func New(dir string, logger *log.Logger) *Adapter {
	return &Adapter{dir: dir, logger: logger}
}

func (a *Adapter) Name() string { return "notes" }

// Fetch returns notes last modified inside [start, end]. Unreadable files
// are skipped with a warning.
func (a *Adapter) Fetch(ctx context.Context, start, end time.Time) ([]timeline.Item, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, err
	}

	var items []timeline.Item
	for _, entry := range entries {
		if ctx.Err() != nil {
			return items, ctx.Err()
		}
		if entry.IsDir() {
			continue
		}
		if _, ok := noteExtensions[strings.ToLower(filepath.Ext(entry.Name()))]; !ok {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			a.logger.Warn("Skipping unreadable note", "name", entry.Name(), "error", err)
			continue
		}
		if err := sources.ValidateRecord(entry.Name(), info.ModTime()); err != nil {
			a.logger.Warn("Skipping malformed note record", "name", entry.Name(), "error", err)
			continue
		}
		if !sources.InRange(info.ModTime(), start, end) {
			continue
		}

		body, err := os.ReadFile(filepath.Join(a.dir, entry.Name()))
		if err != nil {
			a.logger.Warn("Skipping unreadable note", "name", entry.Name(), "error", err)
			continue
		}

		items = append(items, a.convert(entry.Name(), string(body), info.ModTime()))
	}
	return items, nil
}

// Search returns notes whose name or body contains the query,
// case-insensitive.
func (a *Adapter) Search(ctx context.Context, query string) ([]timeline.Item, error) {
	all, err := a.Fetch(ctx, time.Time{}.Add(time.Nanosecond), time.Now().Add(24*time.Hour))
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	var matched []timeline.Item
	for _, item := range all {
		if strings.Contains(strings.ToLower(item.Title), needle) ||
			strings.Contains(strings.ToLower(item.Content), needle) {
			matched = append(matched, item)
		}
	}
	return matched, nil
}

func (a *Adapter) convert(name, body string, modTime time.Time) timeline.Item {
	title := strings.TrimSuffix(name, filepath.Ext(name))
	item := timeline.NewItem(timeline.SourceNote, name, title, body, modTime, modTime)
	item.Metadata = map[string]any{
		"folder": a.dir,
	}
	item.SourceMetadata = map[string]any{
		"filename": name,
	}
	return item
}
