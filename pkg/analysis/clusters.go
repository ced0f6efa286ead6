package analysis

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/luminalab/mindloom/pkg/timeline"
)

// maxNeighborConcepts bounds how many co-occurring concepts join a seed
// concept's cluster.
const maxNeighborConcepts = 5

// BuildClusters groups concepts by co-occurrence: each unconsumed concept
// seeds a cluster together with up to five of its co-occurring neighbors,
// every concept joining at most one cluster. Concepts and neighbors are
// visited in first-seen order, so the result is deterministic for a frozen
// item set. Clusters come back sorted by importance descending.
func BuildClusters(items []timeline.Item) []timeline.ConceptCluster {
	if len(items) == 0 {
		return nil
	}

	// Co-occurrence adjacency and reverse index, both order-preserving.
	adjacency := make(map[string][]string)
	adjacentSeen := make(map[string]map[string]struct{})
	conceptItems := make(map[string]map[string]struct{})
	var conceptOrder []string

	for _, item := range items {
		for _, concept := range item.ExtractedConcepts {
			if conceptItems[concept] == nil {
				conceptItems[concept] = make(map[string]struct{})
				adjacentSeen[concept] = make(map[string]struct{})
				conceptOrder = append(conceptOrder, concept)
			}
			conceptItems[concept][item.ID] = struct{}{}

			for _, other := range item.ExtractedConcepts {
				if other == concept {
					continue
				}
				if _, ok := adjacentSeen[concept][other]; ok {
					continue
				}
				adjacentSeen[concept][other] = struct{}{}
				adjacency[concept] = append(adjacency[concept], other)
			}
		}
	}

	itemsByID := make(map[string]timeline.Item, len(items))
	for _, item := range items {
		itemsByID[item.ID] = item
	}

	var clusters []timeline.ConceptCluster
	consumed := make(map[string]struct{})

	for _, concept := range conceptOrder {
		if _, done := consumed[concept]; done {
			continue
		}

		seed := []string{concept}
		for _, neighbor := range adjacency[concept] {
			if len(seed) > maxNeighborConcepts {
				break
			}
			if _, taken := consumed[neighbor]; taken {
				continue
			}
			seed = append(seed, neighbor)
		}

		memberIDs := make(map[string]struct{})
		for _, c := range seed {
			for id := range conceptItems[c] {
				memberIDs[id] = struct{}{}
			}
		}
		if len(memberIDs) == 0 {
			continue
		}

		ids := make([]string, 0, len(memberIDs))
		for id := range memberIDs {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		var earliest, latest time.Time
		for i, id := range ids {
			ts := itemsByID[id].Timestamp
			if i == 0 || ts.Before(earliest) {
				earliest = ts
			}
			if i == 0 || ts.After(latest) {
				latest = ts
			}
		}

		clusters = append(clusters, timeline.ConceptCluster{
			ID:            fmt.Sprintf("cluster_%s_%d", concept, len(clusters)),
			Name:          titleCase(concept),
			Description:   fmt.Sprintf("Cluster around %s and related concepts", concept),
			Concepts:      seed,
			TimelineItems: ids,
			TimeRange: timeline.TimeRange{
				Start: earliest,
				End:   latest,
			},
			ImportanceScore: float64(len(ids)) / float64(len(items)),
		})

		for _, c := range seed {
			consumed[c] = struct{}{}
		}
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].ImportanceScore > clusters[j].ImportanceScore
	})
	return clusters
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
