package analysis

import (
	"github.com/luminalab/mindloom/pkg/timeline"
)

// minSharedConcepts is the overlap required before two items count as
// related.
const minSharedConcepts = 2

// LinkRelated populates RelatedItems on every item: two items are related
// when their timestamps are within windowHours of each other and they share
// at least two extracted concepts. The relation is symmetric; each
// unordered pair is evaluated once and recorded on both sides.
//
// O(n^2) in item count, which is fine for runs bounded to a few thousand
// items.
func LinkRelated(items []timeline.Item, windowHours int) []timeline.Item {
	window := float64(windowHours)

	for i := range items {
		items[i].RelatedItems = nil
	}

	for i := range items {
		for j := i + 1; j < len(items); j++ {
			hours := items[i].Timestamp.Sub(items[j].Timestamp).Hours()
			if hours < 0 {
				hours = -hours
			}
			if hours > window {
				continue
			}
			if sharedConcepts(items[i].ExtractedConcepts, items[j].ExtractedConcepts) < minSharedConcepts {
				continue
			}
			items[i].RelatedItems = append(items[i].RelatedItems, items[j].ID)
			items[j].RelatedItems = append(items[j].RelatedItems, items[i].ID)
		}
	}

	return items
}

func sharedConcepts(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, c := range a {
		set[c] = struct{}{}
	}
	count := 0
	for _, c := range b {
		if _, ok := set[c]; ok {
			count++
			delete(set, c)
		}
	}
	return count
}
