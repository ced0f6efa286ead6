// Package timeline defines the canonical entity model every data source
// converts into, plus the derived aggregates (clusters, windows, statistics)
// produced by an analysis pass.
package timeline

import (
	"fmt"
	"time"
)

// SourceType identifies the origin of a timeline item.
type SourceType string

const (
	SourceScreenshot SourceType = "screenshot"
	SourceNote       SourceType = "note"
	SourceEmail      SourceType = "email"
	SourceMeeting    SourceType = "meeting"
)

// Category is a coarse content tag assigned during analysis.
type Category string

const (
	CategoryProject       Category = "project"
	CategoryMeeting       Category = "meeting"
	CategoryIdea          Category = "idea"
	CategoryTask          Category = "task"
	CategoryCommunication Category = "communication"
	CategoryResearch      Category = "research"
	CategoryPlanning      Category = "planning"
	CategoryReview        Category = "review"
	CategoryOther         Category = "other"
)

// Item is the unified record all sources produce. ID, SourceType and
// SourceID are fixed at creation; the analysis fields (ExtractedConcepts,
// ConceptCategories, RelatedItems, ImportanceScore) are written whole per
// analysis pass and never partially updated.
type Item struct {
	ID                string         `json:"id"`
	SourceType        SourceType     `json:"source_type"`
	Title             string         `json:"title"`
	Content           string         `json:"content"`
	Timestamp         time.Time      `json:"timestamp"`
	LastModified      time.Time      `json:"last_modified"`
	Metadata          map[string]any `json:"metadata"`
	ExtractedConcepts []string       `json:"extracted_concepts"`
	ConceptCategories []Category     `json:"concept_categories"`
	RelatedItems      []string       `json:"related_items"`
	ImportanceScore   float64        `json:"importance_score"`
	SourceID          string         `json:"source_id"`
	SourceMetadata    map[string]any `json:"source_metadata"`
}

// NewItem builds an item with its composite id derived from source type and
// source id, so ids stay unique across sources.
func NewItem(sourceType SourceType, sourceID, title, content string, timestamp, lastModified time.Time) Item {
	return Item{
		ID:           fmt.Sprintf("%s_%s", sourceType, sourceID),
		SourceType:   sourceType,
		Title:        title,
		Content:      content,
		Timestamp:    timestamp,
		LastModified: lastModified,
		Metadata:     map[string]any{},
		SourceID:     sourceID,
	}
}

// HasCategory reports whether the item carries the given category.
func (it Item) HasCategory(c Category) bool {
	for _, have := range it.ConceptCategories {
		if have == c {
			return true
		}
	}
	return false
}

// TimeRange is the inclusive span covered by a set of items.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ConceptCluster groups co-occurring concepts and the items containing them.
// Clusters are rebuilt from scratch on every analysis pass.
type ConceptCluster struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Concepts        []string  `json:"concepts"`
	TimelineItems   []string  `json:"timeline_items"`
	TimeRange       TimeRange `json:"time_range"`
	ImportanceScore float64   `json:"importance_score"`
}

// TimeWindow is a fixed-width bucket of chronologically adjacent items.
// End is fixed at creation (Start + width); an item belongs to the window
// when its timestamp is <= End.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Items []Item    `json:"items"`
}

// Concepts returns the deduplicated union of member concepts in first-seen
// order.
func (w TimeWindow) Concepts() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, it := range w.Items {
		for _, c := range it.ExtractedConcepts {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// SourceCounts counts member items by source type.
func (w TimeWindow) SourceCounts() map[SourceType]int {
	counts := make(map[SourceType]int)
	for _, it := range w.Items {
		counts[it.SourceType]++
	}
	return counts
}

// AverageImportance returns the mean importance score across member items,
// zero for an empty window.
func (w TimeWindow) AverageImportance() float64 {
	if len(w.Items) == 0 {
		return 0
	}
	var sum float64
	for _, it := range w.Items {
		sum += it.ImportanceScore
	}
	return sum / float64(len(w.Items))
}

// ConceptFrequency is one entry of a top-concepts ranking.
type ConceptFrequency struct {
	Concept   string `json:"concept"`
	Frequency int    `json:"frequency"`
}

// WindowSummary is the per-window activity rollup exposed in statistics.
type WindowSummary struct {
	Start           time.Time          `json:"start"`
	End             time.Time          `json:"end"`
	ItemCount       int                `json:"item_count"`
	Sources         map[SourceType]int `json:"sources"`
	TopConcepts     []string           `json:"top_concepts"`
	HasMeeting      bool               `json:"has_meeting"`
	ImportanceScore float64            `json:"importance_score"`
}

// Statistics summarizes one analysis pass.
type Statistics struct {
	BySource           map[SourceType]int `json:"by_source"`
	ByCategory         map[Category]int   `json:"by_category"`
	TotalConcepts      int                `json:"total_concepts"`
	AvgConceptsPerItem float64            `json:"avg_concepts_per_item"`
	TopConcepts        []ConceptFrequency `json:"top_concepts"`
	ActivitySummary    []WindowSummary    `json:"activity_summary"`
}

// AnalysisResult bundles everything a single aggregation run produces.
type AnalysisResult struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Items       []Item           `json:"timeline_items"`
	Clusters    []ConceptCluster `json:"concept_clusters"`
	Windows     []TimeWindow     `json:"time_windows"`
	Statistics  Statistics       `json:"statistics"`
}
