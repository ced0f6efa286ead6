// Package screenshots adapts analyzed screenshot documents from the
// persistent store into timeline items, and runs the background batch that
// enriches raw screenshots through the vision model.
package screenshots

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/luminalab/mindloom/pkg/db"
	"github.com/luminalab/mindloom/pkg/sources"
	"github.com/luminalab/mindloom/pkg/timeline"
)

type Adapter struct {
	store  *db.Store
	logger *log.Logger
}

func New(store *db.Store, logger *log.Logger) *Adapter {
	return &Adapter{store: store, logger: logger}
}

func (a *Adapter) Name() string { return "screenshots" }

// Fetch returns analyzed screenshots captured inside [start, end].
func (a *Adapter) Fetch(ctx context.Context, start, end time.Time) ([]timeline.Item, error) {
	docs, err := a.store.GetAllScreenshots(ctx)
	if err != nil {
		return nil, err
	}

	var items []timeline.Item
	for _, doc := range docs {
		if err := sources.ValidateRecord(doc.ID, doc.CreatedTime); err != nil {
			a.logger.Warn("Skipping malformed screenshot record", "id", doc.ID, "error", err)
			continue
		}
		if !sources.InRange(doc.CreatedTime, start, end) {
			continue
		}
		items = append(items, a.convert(doc))
	}
	return items, nil
}

// Search matches stored analyses by content or filename substring.
func (a *Adapter) Search(ctx context.Context, query string) ([]timeline.Item, error) {
	docs, err := a.store.SearchScreenshots(ctx, query)
	if err != nil {
		return nil, err
	}

	var items []timeline.Item
	for _, doc := range docs {
		if err := sources.ValidateRecord(doc.ID, doc.CreatedTime); err != nil {
			a.logger.Warn("Skipping malformed screenshot record", "id", doc.ID, "error", err)
			continue
		}
		items = append(items, a.convert(doc))
	}
	return items, nil
}

func (a *Adapter) convert(doc db.ScreenshotDoc) timeline.Item {
	item := timeline.NewItem(timeline.SourceScreenshot, doc.ID, doc.Filename, doc.Content, doc.CreatedTime, doc.ModifiedTime)
	item.Metadata = map[string]any{
		"dimensions":    stringValue(doc.Metadata, "dimensions"),
		"device_type":   stringValue(doc.Metadata, "device_type"),
		"file_size":     doc.Metadata["file_size"],
		"original_path": stringValue(doc.Metadata, "original_path"),
	}
	item.SourceMetadata = doc.Metadata
	return item
}

func stringValue(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}
