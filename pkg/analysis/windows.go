package analysis

import (
	"sort"
	"time"

	"github.com/luminalab/mindloom/pkg/timeline"
)

// BuildWindows partitions items into fixed-width, non-overlapping time
// buckets. The first window opens at the earliest timestamp; an item whose
// timestamp is still <= the current window's end joins it, otherwise a new
// window opens at that item's timestamp. Every item lands in exactly one
// window.
func BuildWindows(items []timeline.Item, widthHours int) []timeline.TimeWindow {
	if len(items) == 0 {
		return nil
	}

	sorted := make([]timeline.Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	width := time.Duration(widthHours) * time.Hour

	windows := []timeline.TimeWindow{{
		Start: sorted[0].Timestamp,
		End:   sorted[0].Timestamp.Add(width),
		Items: []timeline.Item{sorted[0]},
	}}

	for _, item := range sorted[1:] {
		current := &windows[len(windows)-1]
		if !item.Timestamp.After(current.End) {
			current.Items = append(current.Items, item)
			continue
		}
		windows = append(windows, timeline.TimeWindow{
			Start: item.Timestamp,
			End:   item.Timestamp.Add(width),
			Items: []timeline.Item{item},
		})
	}

	return windows
}
