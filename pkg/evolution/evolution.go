// Package evolution runs the month-over-month insight pipeline: items are
// batched by month, analyzed by the text-generation service with the
// previous month's cumulative snapshot as context, and folded into a new
// snapshot persisted per period.
package evolution

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/luminalab/mindloom/pkg/ai"
	"github.com/luminalab/mindloom/pkg/db"
	"github.com/luminalab/mindloom/pkg/timeline"
)

const (
	monthLayout = "2006-01"
	// transcriptCap truncates very long meeting transcripts in the batch
	// document to keep the prompt within context.
	transcriptCap = 5000
	// maxDetailedItems bounds how many meeting/email bodies a month batch
	// carries in full.
	maxDetailedItems = 10

	completionTimeout = 120 * time.Second
)

var jsonBlockRe = regexp.MustCompile("(?s)```json\n(.*?)\n```")

// GanttTask is one tracked task extracted by the model.
type GanttTask struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Start        string   `json:"start"`
	End          string   `json:"end"`
	Status       string   `json:"status"`
	Dependencies []string `json:"dependencies,omitempty"`
	People       []string `json:"people,omitempty"`
	Category     string   `json:"category,omitempty"`
}

// GanttChart is the model's task-tracking output for a month.
type GanttChart struct {
	Tasks []GanttTask `json:"tasks"`
}

// MonthResult is one month's parsed model output.
type MonthResult struct {
	Month         string         `json:"month"`
	Mindmap       map[string]any `json:"mindmap"`
	Gantt         GanttChart     `json:"gantt"`
	PeopleNetwork map[string]int `json:"people_network"`
	Concepts      map[string]int `json:"concepts"`
	Insights      string         `json:"insights"`
	Err           string         `json:"error,omitempty"`
}

// Processor drives the monthly pipeline.
type Processor struct {
	completions ai.Completion
	store       *db.Store
	logger      *log.Logger
}

func NewProcessor(logger *log.Logger, completions ai.Completion, store *db.Store) *Processor {
	return &Processor{
		completions: completions,
		store:       store,
		logger:      logger,
	}
}

// Run processes all items month by month in chronological order, carrying
// the cumulative snapshot forward. A month whose model call fails yields
// an error-annotated result and the run continues; the snapshot is only
// advanced by months that parsed.
func (p *Processor) Run(ctx context.Context, items []timeline.Item) ([]MonthResult, Snapshot, error) {
	byMonth := groupByMonth(items)

	months := make([]string, 0, len(byMonth))
	for month := range byMonth {
		months = append(months, month)
	}
	sort.Strings(months)

	snapshot, err := p.loadLatestSnapshot(ctx)
	if err != nil {
		return nil, Snapshot{}, err
	}

	var results []MonthResult
	for _, month := range months {
		result := p.processMonth(ctx, month, byMonth[month], snapshot)
		results = append(results, result)
		if result.Err != "" {
			p.logger.Warn("Month processing failed, snapshot not advanced", "month", month, "error", result.Err)
			continue
		}

		snapshot = Merge(snapshot, month, result)
		if err := p.persistSnapshot(ctx, snapshot); err != nil {
			return results, snapshot, err
		}
	}

	return results, snapshot, nil
}

func (p *Processor) loadLatestSnapshot(ctx context.Context) (Snapshot, error) {
	row, err := p.store.GetLatestSnapshot(ctx)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "failed to load latest snapshot")
	}
	if row == nil {
		return EmptySnapshot(), nil
	}
	return DecodeSnapshot(row.Payload)
}

func (p *Processor) persistSnapshot(ctx context.Context, snapshot Snapshot) error {
	payload, err := snapshot.Encode()
	if err != nil {
		return err
	}
	return p.store.PutSnapshot(ctx, snapshot.Period, payload)
}

func (p *Processor) processMonth(ctx context.Context, month string, items []timeline.Item, previous Snapshot) MonthResult {
	result := MonthResult{Month: month, Mindmap: map[string]any{}}

	batch := buildMonthBatch(month, items)
	prompt := buildPrompt(month, batch, previous)

	callCtx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	response, err := p.completions.Generate(callCtx, prompt, 4096, 0.3)
	if err != nil {
		result.Err = err.Error()
		return result
	}

	parseResponse(response, &result)
	return result
}

func groupByMonth(items []timeline.Item) map[string][]timeline.Item {
	byMonth := make(map[string][]timeline.Item)
	for _, item := range items {
		month := item.Timestamp.Format(monthLayout)
		byMonth[month] = append(byMonth[month], item)
	}
	for _, monthItems := range byMonth {
		sort.SliceStable(monthItems, func(i, j int) bool {
			return monthItems[i].Timestamp.Before(monthItems[j].Timestamp)
		})
	}
	return byMonth
}

// buildMonthBatch renders one month's items as a single document:
// summaries and action items first, then bounded meeting and email detail.
func buildMonthBatch(month string, items []timeline.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Monthly Data Batch: %s\n\n", month)
	fmt.Fprintf(&b, "Total items: %d\n\n", len(items))

	var meetings, emails, rest []timeline.Item
	for _, item := range items {
		switch item.SourceType {
		case timeline.SourceMeeting:
			meetings = append(meetings, item)
		case timeline.SourceEmail:
			emails = append(emails, item)
		default:
			rest = append(rest, item)
		}
	}

	b.WriteString("## Notes and Screenshots\n")
	for _, item := range rest {
		fmt.Fprintf(&b, "\n### %s\n%s\n---\n", item.Title, capText(item.Content, transcriptCap))
	}

	b.WriteString("\n## Meeting Details\n")
	for i, item := range meetings {
		if i == maxDetailedItems {
			break
		}
		fmt.Fprintf(&b, "\n### %s\n%s\n---\n", item.Title, capText(item.Content, transcriptCap))
		if actionItems, ok := item.Metadata["action_items"].(string); ok && actionItems != "" {
			fmt.Fprintf(&b, "Action items:\n%s\n", actionItems)
		}
	}

	b.WriteString("\n## Email Threads\n")
	for i, item := range emails {
		if i == maxDetailedItems {
			break
		}
		fmt.Fprintf(&b, "\n### %s\n%s\n---\n", item.Title, capText(item.Content, transcriptCap))
	}

	return b.String()
}

func capText(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "\n\n[Truncated...]"
}

func buildPrompt(month, batch string, previous Snapshot) string {
	previousJSON := "This is the first month being analyzed."
	if len(previous.PeopleNetwork) > 0 || len(previous.ConceptEvolution) > 0 || len(previous.TaskTracking) > 0 {
		if raw, err := json.MarshalIndent(previous, "", "  "); err == nil {
			previousJSON = string(raw)
		}
	}

	return fmt.Sprintf(`You are an expert at analyzing communication patterns and creating visual knowledge representations.

## Current Analysis Period: %s

## Previous Insights Summary:
%s

## Current Month's Data:
%s

## Your Task:

Provide the following sections, each clearly labeled:

### Mind Map
A JSON object in a fenced json block with "central_theme" and "branches"
(each branch: "name", "status", "sub_branches").

### Gantt
A JSON object in a fenced json block with "tasks" (each task: "id",
"name", "start" and "end" as YYYY-MM-DD, "status" one of completed,
in_progress, blocked, open, "dependencies", "people", "category").

### People Network
A JSON object in a fenced json block mapping person name to interaction count.

### Concepts
A JSON object in a fenced json block mapping concept to mention count.

### Insights
Plain-text observations: what needs attention, concerning patterns, what
is working well, predictions for next month.`, month, previousJSON, batch)
}

// parseResponse pulls the fenced JSON blocks (mind map, gantt, people,
// concepts, in order) and the trailing insights text out of the model's
// answer. Unparseable blocks are simply left empty.
func parseResponse(response string, result *MonthResult) {
	blocks := jsonBlockRe.FindAllStringSubmatch(response, -1)

	for i, block := range blocks {
		raw := []byte(block[1])
		switch i {
		case 0:
			_ = json.Unmarshal(raw, &result.Mindmap)
		case 1:
			_ = json.Unmarshal(raw, &result.Gantt)
		case 2:
			_ = json.Unmarshal(raw, &result.PeopleNetwork)
		case 3:
			_ = json.Unmarshal(raw, &result.Concepts)
		}
	}

	if idx := strings.LastIndex(response, "### Insights"); idx >= 0 {
		result.Insights = strings.TrimSpace(response[idx+len("### Insights"):])
	}
}
