package screenshots

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/luminalab/mindloom/pkg/ai"
	"github.com/luminalab/mindloom/pkg/db"
	"github.com/luminalab/mindloom/pkg/helpers"
)

// visionTimeout bounds a single vision-model call. A timed-out screenshot
// is counted failed and never retried automatically.
const visionTimeout = 60 * time.Second

// ProgressSubject is the NATS subject batch progress events are published
// on when a connection is configured.
const ProgressSubject = "mindloom.screenshots.progress"

var imageExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".bmp": {}, ".webp": {},
}

// Progress is one batch status update delivered to the observer.
type Progress struct {
	RunID     string  `json:"run_id"`
	Status    string  `json:"status"`
	Total     int     `json:"total"`
	Processed int     `json:"processed"`
	Failed    int     `json:"failed"`
	Current   string  `json:"current,omitempty"`
	Percent   float64 `json:"progress"`
}

// ProgressFunc observes batch progress. It is called from the processing
// goroutine; implementations should return quickly.
type ProgressFunc func(Progress)

const analysisPrompt = `Analyze this screenshot and provide a comprehensive markdown report with the following sections:

1. **Text Content**: Extract ALL visible text from the image
2. **Description**: Detailed description of what the image shows
3. **Categorization**: Categorize the content (e.g., website, app, document, code, chat, etc.)
4. **Summary**: Brief summary of the main content and purpose
5. **Key Elements**: List important UI elements, buttons, or features visible
6. **Context Clues**: Any URLs, app names, or identifying information

Please be thorough and extract as much information as possible.`

// BatchProcessor enriches raw screenshots through the vision model and
// persists the analyses. One batch runs at a time; Stop cancels
// cooperatively between items, leaving unprocessed screenshots untouched.
type BatchProcessor struct {
	store     *db.Store
	vision    ai.Vision
	logger    *log.Logger
	nc        *nats.Conn
	dir       string
	running   atomic.Bool
	lastState atomic.Pointer[Progress]
}

// NewBatchProcessor creates a batch processor. nc may be nil; progress is
// then only delivered to the callback.
func NewBatchProcessor(store *db.Store, vision ai.Vision, logger *log.Logger, nc *nats.Conn, screenshotsDir string) *BatchProcessor {
	return &BatchProcessor{
		store:  store,
		vision: vision,
		logger: logger,
		nc:     nc,
		dir:    screenshotsDir,
	}
}

// Unprocessed lists screenshots in the directory that have no stored
// analysis yet.
func (b *BatchProcessor) Unprocessed(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read screenshots directory: %w", err)
	}

	var pending []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := imageExtensions[ext]; !ok {
			continue
		}
		exists, err := b.store.HasFilename(ctx, entry.Name())
		if err != nil {
			return nil, err
		}
		if !exists {
			pending = append(pending, filepath.Join(b.dir, entry.Name()))
		}
	}
	return pending, nil
}

// Running reports whether a batch is currently in flight.
func (b *BatchProcessor) Running() bool { return b.running.Load() }

// Status returns the most recent progress update, nil before the first run.
func (b *BatchProcessor) Status() *Progress { return b.lastState.Load() }

// Stop requests cooperative cancellation of the current batch. The item in
// flight finishes (or times out) before the batch stops.
func (b *BatchProcessor) Stop() { b.running.Store(false) }

// Process runs the batch over all unprocessed screenshots. Per-item
// failures are counted and logged; they never abort the batch.
func (b *BatchProcessor) Process(ctx context.Context, observer ProgressFunc) (Progress, error) {
	if !b.running.CompareAndSwap(false, true) {
		return Progress{}, fmt.Errorf("batch already running")
	}
	defer b.running.Store(false)

	pending, err := b.Unprocessed(ctx)
	if err != nil {
		return Progress{}, err
	}

	state := Progress{RunID: uuid.NewString(), Status: "started", Total: len(pending)}
	b.report(state, observer)

	for i, path := range pending {
		if !b.running.Load() {
			b.logger.Info("Batch processing stopped", "processed", state.Processed)
			break
		}
		if ctx.Err() != nil {
			break
		}

		if err := b.processOne(ctx, path); err != nil {
			b.logger.Warn("Screenshot processing failed", "path", path, "error", err)
			state.Failed++
		} else {
			state.Processed++
		}

		state.Status = "processing"
		state.Current = filepath.Base(path)
		state.Percent = float64(i+1) / float64(len(pending)) * 100
		b.report(state, observer)
	}

	state.Status = "completed"
	if state.Processed+state.Failed < len(pending) {
		state.Status = "stopped"
	}
	state.Current = ""
	b.report(state, observer)
	return state, nil
}

func (b *BatchProcessor) processOne(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read screenshot: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, visionTimeout)
	defer cancel()

	content, err := b.vision.DescribeImage(callCtx, base64.StdEncoding.EncodeToString(raw), analysisPrompt)
	if err != nil {
		return fmt.Errorf("vision analysis failed: %w", err)
	}

	metadata := map[string]any{
		"filename":      filepath.Base(path),
		"file_size":     info.Size(),
		"original_path": path,
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(raw)); err == nil {
		metadata["dimensions"] = fmt.Sprintf("%dx%d", cfg.Width, cfg.Height)
		if cfg.Height > cfg.Width {
			metadata["device_type"] = "mobile"
		} else {
			metadata["device_type"] = "desktop"
		}
	}

	_, err = b.store.AddScreenshot(ctx, filepath.Base(path), content, metadata, info.ModTime(), info.ModTime())
	return err
}

func (b *BatchProcessor) report(p Progress, observer ProgressFunc) {
	snapshot := p
	b.lastState.Store(&snapshot)
	if observer != nil {
		observer(p)
	}
	if b.nc != nil {
		if err := helpers.NatsPublish(b.nc, ProgressSubject, p); err != nil {
			b.logger.Warn("Failed to publish batch progress", "error", err)
		}
	}
}
