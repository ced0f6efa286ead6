package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminalab/mindloom/pkg/timeline"
)

func TestBuildClustersMergesCoOccurringConcepts(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	items := []timeline.Item{
		itemWithConcepts("x", base, "alpha", "beta"),
		itemWithConcepts("y", base.Add(time.Hour), "beta"),
		itemWithConcepts("w", base.Add(2*time.Hour), "gamma"),
	}

	clusters := BuildClusters(items)

	require.Len(t, clusters, 2)

	// alpha seeds first and pulls in beta, covering x and y.
	first := clusters[0]
	assert.Equal(t, []string{"alpha", "beta"}, first.Concepts)
	assert.Equal(t, []string{items[0].ID, items[1].ID}, first.TimelineItems)
	assert.Equal(t, "Alpha", first.Name)
	assert.InDelta(t, 2.0/3.0, first.ImportanceScore, 1e-9)
	assert.Equal(t, base, first.TimeRange.Start)
	assert.Equal(t, base.Add(time.Hour), first.TimeRange.End)

	second := clusters[1]
	assert.Equal(t, []string{"gamma"}, second.Concepts)
	assert.Equal(t, []string{items[2].ID}, second.TimelineItems)
}

func TestBuildClustersEachConceptInOneCluster(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	items := []timeline.Item{
		itemWithConcepts("a", base, "alpha", "beta"),
		itemWithConcepts("b", base, "beta", "gamma"),
		itemWithConcepts("c", base, "gamma", "delta"),
	}

	clusters := BuildClusters(items)

	seen := make(map[string]int)
	for _, cluster := range clusters {
		for _, concept := range cluster.Concepts {
			seen[concept]++
		}
	}
	for concept, count := range seen {
		assert.Equal(t, 1, count, "concept %s appears in %d clusters", concept, count)
	}

	// beta is claimed by alpha's cluster, so gamma seeds with delta only.
	require.Len(t, clusters, 2)
	assert.Equal(t, []string{"alpha", "beta"}, clusters[0].Concepts)
	assert.Equal(t, []string{"gamma", "delta"}, clusters[1].Concepts)
}

func TestBuildClustersNeighborCap(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	items := []timeline.Item{
		itemWithConcepts("a", base, "hub", "n1", "n2", "n3", "n4", "n5", "n6", "n7"),
	}

	clusters := BuildClusters(items)

	require.NotEmpty(t, clusters)
	// seed concept plus at most five neighbors
	assert.LessOrEqual(t, len(clusters[0].Concepts), 6)
	assert.Equal(t, "hub", clusters[0].Concepts[0])
}

func TestBuildClustersSortedByImportance(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	items := []timeline.Item{
		itemWithConcepts("a", base, "rare"),
		itemWithConcepts("b", base, "common"),
		itemWithConcepts("c", base, "common"),
		itemWithConcepts("d", base, "common"),
	}

	clusters := BuildClusters(items)

	require.Len(t, clusters, 2)
	assert.Equal(t, "Common", clusters[0].Name)
	for i := 1; i < len(clusters); i++ {
		assert.GreaterOrEqual(t, clusters[i-1].ImportanceScore, clusters[i].ImportanceScore)
	}
}

func TestBuildClustersDeterministic(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	items := []timeline.Item{
		itemWithConcepts("a", base, "alpha", "beta", "gamma"),
		itemWithConcepts("b", base.Add(time.Hour), "beta", "delta"),
		itemWithConcepts("c", base.Add(2*time.Hour), "epsilon", "zeta"),
	}

	first := BuildClusters(items)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, BuildClusters(items))
	}
}

func TestBuildClustersEmptyInput(t *testing.T) {
	assert.Nil(t, BuildClusters(nil))
	assert.Empty(t, BuildClusters([]timeline.Item{
		itemWithConcepts("a", time.Now()),
	}))
}
