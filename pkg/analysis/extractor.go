// Package analysis implements the concept analytics pipeline: concept
// extraction, categorization, importance scoring, relation linking,
// co-occurrence clustering and time windowing over timeline items.
package analysis

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"

	"github.com/luminalab/mindloom/pkg/ai"
	"github.com/luminalab/mindloom/pkg/timeline"
)

const (
	// maxConcepts caps extractor output per item.
	maxConcepts = 15
	// maxPromptChars bounds the text sent to the model.
	maxPromptChars = 2000
	// completionTimeout bounds a single concept extraction call.
	completionTimeout = 30 * time.Second
)

var (
	wordRe        = regexp.MustCompile(`[a-zA-Z]+`)
	capitalizedRe = regexp.MustCompile(`\b[A-Z][a-zA-Z]+\b`)
)

var stopWords = map[string]struct{}{
	"the": {}, "is": {}, "at": {}, "which": {}, "on": {}, "a": {}, "an": {},
	"and": {}, "or": {}, "but": {}, "in": {}, "with": {}, "to": {}, "for": {},
	"of": {}, "as": {}, "by": {}, "that": {}, "this": {}, "it": {}, "from": {},
	"be": {}, "are": {}, "been": {}, "was": {}, "were": {}, "being": {},
	"have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {},
	"will": {}, "would": {}, "could": {}, "should": {}, "may": {}, "might": {},
	"must": {}, "can": {}, "shall": {},
}

// categoryKeywords is iterated in this fixed order so categorization output
// is deterministic.
var categoryKeywords = []struct {
	category timeline.Category
	keywords []string
}{
	{timeline.CategoryProject, []string{"project", "initiative", "program", "development", "implementation"}},
	{timeline.CategoryMeeting, []string{"meeting", "discussion", "call", "conference", "presentation"}},
	{timeline.CategoryIdea, []string{"idea", "concept", "proposal", "suggestion", "innovation"}},
	{timeline.CategoryTask, []string{"task", "todo", "action", "assignment", "deadline"}},
	{timeline.CategoryCommunication, []string{"email", "message", "response", "question", "answer"}},
	{timeline.CategoryResearch, []string{"research", "analysis", "study", "investigation", "finding"}},
	{timeline.CategoryPlanning, []string{"plan", "strategy", "roadmap", "timeline", "milestone"}},
	{timeline.CategoryReview, []string{"review", "feedback", "evaluation", "assessment", "retrospective"}},
}

// Extractor pulls concepts out of free text and enriches timeline items.
// The model client is optional; without one (or on any model failure) the
// rule-based path is used.
type Extractor struct {
	completions ai.Completion
	logger      *log.Logger
	model       string
}

func NewExtractor(logger *log.Logger, completions ai.Completion, model string) *Extractor {
	return &Extractor{
		completions: completions,
		logger:      logger,
		model:       model,
	}
}

// ExtractConcepts returns the key concepts of a text. The model-backed
// path never propagates its failure; it falls back to rule-based
// extraction instead.
func (e *Extractor) ExtractConcepts(ctx context.Context, text string) []string {
	if e.completions != nil {
		concepts, err := e.llmExtract(ctx, text)
		if err == nil {
			return concepts
		}
		e.logger.Warn("Model concept extraction failed, falling back to rule-based", "error", err)
	}
	return e.ruleBasedExtract(text)
}

func (e *Extractor) llmExtract(ctx context.Context, text string) ([]string, error) {
	if len(text) > maxPromptChars {
		text = text[:maxPromptChars]
	}

	prompt := fmt.Sprintf(`Extract the main concepts, topics, and entities from the following text.
Return only the key concepts as a comma-separated list. Focus on:
- Project names
- Technology terms
- People names
- Company names
- Important topics
- Key actions or decisions

Text: %s

Concepts:`, text)

	callCtx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	message, err := e.completions.Completions(callCtx, []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage(prompt),
	}, e.model)
	if err != nil {
		return nil, err
	}
	response := message.Content

	var concepts []string
	for _, part := range strings.Split(response, ",") {
		concept := strings.TrimSpace(part)
		if concept == "" {
			continue
		}
		concepts = append(concepts, concept)
		if len(concepts) == maxConcepts {
			break
		}
	}

	if len(concepts) == 0 {
		return nil, fmt.Errorf("model returned no concepts")
	}
	return concepts, nil
}

// ruleBasedExtract is the deterministic fallback: frequent meaningful words
// ranked by count, then capitalized proper-noun candidates appended.
func (e *Extractor) ruleBasedExtract(text string) []string {
	words := wordRe.FindAllString(strings.ToLower(text), -1)

	counts := make(map[string]int)
	var order []string
	for _, w := range words {
		if len(w) <= 3 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}

	// Frequency descending, first occurrence breaking ties.
	firstSeen := make(map[string]int, len(order))
	for i, w := range order {
		firstSeen[w] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		if counts[order[i]] != counts[order[j]] {
			return counts[order[i]] > counts[order[j]]
		}
		return firstSeen[order[i]] < firstSeen[order[j]]
	})

	var concepts []string
	present := make(map[string]struct{})
	for _, w := range order {
		if counts[w] > 1 {
			concepts = append(concepts, w)
			present[w] = struct{}{}
		}
	}

	// Potential proper nouns, case preserved, first-seen order.
	for _, w := range capitalizedRe.FindAllString(text, -1) {
		lower := strings.ToLower(w)
		if _, stop := stopWords[lower]; stop {
			continue
		}
		if _, ok := present[lower]; ok {
			continue
		}
		present[lower] = struct{}{}
		concepts = append(concepts, w)
	}

	if len(concepts) > maxConcepts {
		concepts = concepts[:maxConcepts]
	}
	return concepts
}

// Categorize tags an item by keyword presence in title and content, with
// source-type defaults supplementing the keyword matches.
func (e *Extractor) Categorize(item timeline.Item) []timeline.Category {
	fullText := strings.ToLower(item.Title + " " + item.Content)

	var categories []timeline.Category
	for _, entry := range categoryKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(fullText, keyword) {
				categories = append(categories, entry.category)
				break
			}
		}
	}

	switch item.SourceType {
	case timeline.SourceMeeting:
		if !containsCategory(categories, timeline.CategoryMeeting) {
			categories = append(categories, timeline.CategoryMeeting)
		}
	case timeline.SourceEmail:
		if !containsCategory(categories, timeline.CategoryCommunication) {
			categories = append(categories, timeline.CategoryCommunication)
		}
	}

	if len(categories) == 0 {
		categories = append(categories, timeline.CategoryOther)
	}
	return categories
}

func containsCategory(categories []timeline.Category, c timeline.Category) bool {
	for _, have := range categories {
		if have == c {
			return true
		}
	}
	return false
}

var sourceWeights = map[timeline.SourceType]float64{
	timeline.SourceMeeting:    0.3,
	timeline.SourceEmail:      0.2,
	timeline.SourceNote:       0.25,
	timeline.SourceScreenshot: 0.15,
}

// Importance computes the item's weighted importance score in [0, 1].
func (e *Extractor) Importance(item timeline.Item) float64 {
	score := min(float64(len(item.ExtractedConcepts))*0.1, 0.5)

	if weight, ok := sourceWeights[item.SourceType]; ok {
		score += weight
	} else {
		score += 0.1
	}

	if hasActionItems, ok := item.Metadata["has_action_items"].(bool); ok && hasActionItems {
		score += 0.2
	}

	switch {
	case len(item.Content) > 1000:
		score += 0.1
	case len(item.Content) > 500:
		score += 0.05
	}

	return min(score, 1.0)
}

// AnalyzeItems runs extraction, categorization and importance scoring over
// every item, writing the enrichment fields whole.
func (e *Extractor) AnalyzeItems(ctx context.Context, items []timeline.Item) []timeline.Item {
	for i := range items {
		items[i].ExtractedConcepts = e.ExtractConcepts(ctx, items[i].Title+" "+items[i].Content)
		items[i].ConceptCategories = e.Categorize(items[i])
		items[i].ImportanceScore = e.Importance(items[i])
	}
	return items
}
