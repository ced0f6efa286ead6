// Package aggregator orchestrates a full analysis run: concurrent adapter
// fetches, then the serialized enrichment pipeline (extraction, linking,
// clustering, windowing) and summary statistics.
package aggregator

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"

	"github.com/luminalab/mindloom/pkg/analysis"
	"github.com/luminalab/mindloom/pkg/helpers"
	"github.com/luminalab/mindloom/pkg/sources"
	"github.com/luminalab/mindloom/pkg/timeline"
)

const (
	// relationWindowHours bounds time proximity for related items.
	relationWindowHours = 24
	// windowWidthHours is the activity bucket width.
	windowWidthHours = 24
	// topConceptLimit caps the ranked concept list in statistics.
	topConceptLimit = 20
	// analyzeBatchSize chunks enrichment for progress logging.
	analyzeBatchSize = 50
)

// Aggregator runs the analysis pipeline over all configured adapters and
// caches the latest result for the read accessors.
type Aggregator struct {
	extractor *analysis.Extractor
	adapters  []sources.Adapter
	logger    *log.Logger

	mu     sync.RWMutex
	latest *timeline.AnalysisResult
}

func New(logger *log.Logger, extractor *analysis.Extractor, adapters ...sources.Adapter) *Aggregator {
	return &Aggregator{
		extractor: extractor,
		adapters:  adapters,
		logger:    logger,
	}
}

// Aggregate fetches from every adapter concurrently, then runs the
// single-threaded analysis pipeline over the combined item set. An
// adapter failure degrades to an empty contribution with a warning; it
// never aborts the run.
func (a *Aggregator) Aggregate(ctx context.Context, start, end time.Time) (timeline.AnalysisResult, error) {
	items := a.fetchAll(ctx, start, end)

	// Chunks share the items backing array, so enrichment lands in place.
	for i, chunk := range helpers.Batch(items, analyzeBatchSize) {
		a.extractor.AnalyzeItems(ctx, chunk)
		a.logger.Debug("Analyzed batch", "batch", i+1, "items", len(chunk))
	}
	items = analysis.LinkRelated(items, relationWindowHours)
	clusters := analysis.BuildClusters(items)
	windows := analysis.BuildWindows(items, windowWidthHours)

	result := timeline.AnalysisResult{
		GeneratedAt: time.Now(),
		Items:       items,
		Clusters:    clusters,
		Windows:     windows,
		Statistics:  buildStatistics(items, windows),
	}

	a.mu.Lock()
	a.latest = &result
	a.mu.Unlock()

	return result, nil
}

func (a *Aggregator) fetchAll(ctx context.Context, start, end time.Time) []timeline.Item {
	perAdapter := make([][]timeline.Item, len(a.adapters))

	var wg sync.WaitGroup
	for i, adapter := range a.adapters {
		wg.Add(1)
		go func(i int, adapter sources.Adapter) {
			defer wg.Done()

			fetched, err := adapter.Fetch(ctx, start, end)
			if err != nil {
				a.logger.Warn("Source fetch failed, contributing no items", "source", adapter.Name(), "error", err)
				return
			}
			a.logger.Info("Fetched items", "source", adapter.Name(), "count", len(fetched))
			perAdapter[i] = fetched
		}(i, adapter)
	}
	wg.Wait()

	// Flatten in adapter order so the combined sequence is deterministic
	// for frozen adapter outputs.
	return lo.Flatten(perAdapter)
}

func buildStatistics(items []timeline.Item, windows []timeline.TimeWindow) timeline.Statistics {
	stats := timeline.Statistics{
		BySource:   make(map[timeline.SourceType]int),
		ByCategory: make(map[timeline.Category]int),
	}

	conceptFreq := make(map[string]int)
	var conceptOrder []string

	for _, item := range items {
		stats.BySource[item.SourceType]++
		for _, category := range item.ConceptCategories {
			stats.ByCategory[category]++
		}
		for _, concept := range item.ExtractedConcepts {
			if conceptFreq[concept] == 0 {
				conceptOrder = append(conceptOrder, concept)
			}
			conceptFreq[concept]++
			stats.TotalConcepts++
		}
	}

	if len(items) > 0 {
		stats.AvgConceptsPerItem = float64(stats.TotalConcepts) / float64(len(items))
	}

	// Frequency descending with discovery order breaking ties.
	firstSeen := make(map[string]int, len(conceptOrder))
	for i, c := range conceptOrder {
		firstSeen[c] = i
	}
	sort.SliceStable(conceptOrder, func(i, j int) bool {
		if conceptFreq[conceptOrder[i]] != conceptFreq[conceptOrder[j]] {
			return conceptFreq[conceptOrder[i]] > conceptFreq[conceptOrder[j]]
		}
		return firstSeen[conceptOrder[i]] < firstSeen[conceptOrder[j]]
	})
	if len(conceptOrder) > topConceptLimit {
		conceptOrder = conceptOrder[:topConceptLimit]
	}
	stats.TopConcepts = lo.Map(conceptOrder, func(c string, _ int) timeline.ConceptFrequency {
		return timeline.ConceptFrequency{Concept: c, Frequency: conceptFreq[c]}
	})

	stats.ActivitySummary = lo.Map(windows, func(w timeline.TimeWindow, _ int) timeline.WindowSummary {
		concepts := w.Concepts()
		if len(concepts) > 10 {
			concepts = concepts[:10]
		}
		counts := w.SourceCounts()
		return timeline.WindowSummary{
			Start:           w.Start,
			End:             w.End,
			ItemCount:       len(w.Items),
			Sources:         counts,
			TopConcepts:     concepts,
			HasMeeting:      counts[timeline.SourceMeeting] > 0,
			ImportanceScore: w.AverageImportance(),
		}
	})

	return stats
}

// Timeline returns the latest run's items sorted by timestamp descending.
func (a *Aggregator) Timeline() []timeline.Item {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.latest == nil {
		return nil
	}

	items := make([]timeline.Item, len(a.latest.Items))
	copy(items, a.latest.Items)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp.After(items[j].Timestamp)
	})
	return items
}

// Clusters returns the latest run's concept clusters.
func (a *Aggregator) Clusters() []timeline.ConceptCluster {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.latest == nil {
		return nil
	}
	return a.latest.Clusters
}

// Statistics returns the latest run's summary statistics, nil before the
// first run.
func (a *Aggregator) Statistics() *timeline.Statistics {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.latest == nil {
		return nil
	}
	stats := a.latest.Statistics
	return &stats
}

// Search filters the latest run's items by a case-insensitive substring
// match over title and content, then asks searchable adapters for matches
// the cached run does not cover. Results are deduplicated by item id.
func (a *Aggregator) Search(ctx context.Context, query string) []timeline.Item {
	needle := strings.ToLower(query)

	a.mu.RLock()
	var matched []timeline.Item
	if a.latest != nil {
		matched = lo.Filter(a.latest.Items, func(item timeline.Item, _ int) bool {
			return strings.Contains(strings.ToLower(item.Title), needle) ||
				strings.Contains(strings.ToLower(item.Content), needle)
		})
	}
	a.mu.RUnlock()

	seen := make(map[string]struct{}, len(matched))
	for _, item := range matched {
		seen[item.ID] = struct{}{}
	}

	for _, adapter := range a.adapters {
		searcher, ok := adapter.(sources.Searcher)
		if !ok {
			continue
		}
		extra, err := searcher.Search(ctx, query)
		if err != nil {
			a.logger.Warn("Source search failed", "source", adapter.Name(), "error", err)
			continue
		}
		for _, item := range extra {
			if _, dup := seen[item.ID]; dup {
				continue
			}
			seen[item.ID] = struct{}{}
			matched = append(matched, item)
		}
	}

	return matched
}
