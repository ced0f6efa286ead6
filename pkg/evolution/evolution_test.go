package evolution

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminalab/mindloom/pkg/db"
	"github.com/luminalab/mindloom/pkg/timeline"
)

func createTestLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{
		Level: log.ErrorLevel,
	})
}

func newTestStore(t *testing.T) *db.Store {
	t.Helper()
	store, err := db.NewStore(filepath.Join(t.TempDir(), "test.db"), createTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type cannedCompletion struct {
	response string
	err      error
	calls    int
}

func (c *cannedCompletion) Completions(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, model string) (openai.ChatCompletionMessage, error) {
	return openai.ChatCompletionMessage{}, errors.New("not used")
}

func (c *cannedCompletion) Generate(ctx context.Context, prompt string, maxTokens int64, temperature float64) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.response, nil
}

const sampleResponse = "### Mind Map\n" +
	"```json\n{\"central_theme\": \"March Work\", \"branches\": []}\n```\n" +
	"### Gantt\n" +
	"```json\n{\"tasks\": [{\"id\": \"t1\", \"name\": \"ship v2\", \"start\": \"2025-03-01\", \"end\": \"2025-03-15\", \"status\": \"in_progress\", \"category\": \"engineering\"}]}\n```\n" +
	"### People Network\n" +
	"```json\n{\"marta\": 4}\n```\n" +
	"### Concepts\n" +
	"```json\n{\"rollout\": 6}\n```\n" +
	"### Insights\nRollout dominated the month."

func monthItem(id string, ts time.Time) timeline.Item {
	return timeline.NewItem(timeline.SourceNote, id, "note "+id, "content for "+id, ts, ts)
}

func TestRunProcessesMonthsInOrder(t *testing.T) {
	store := newTestStore(t)
	completions := &cannedCompletion{response: sampleResponse}
	processor := NewProcessor(createTestLogger(), completions, store)

	items := []timeline.Item{
		monthItem("feb", time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC)),
		monthItem("mar", time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)),
		monthItem("jan", time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC)),
	}

	results, final, err := processor.Run(context.Background(), items)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "2025-01", results[0].Month)
	assert.Equal(t, "2025-02", results[1].Month)
	assert.Equal(t, "2025-03", results[2].Month)
	assert.Equal(t, "2025-03", final.Period)
	assert.Equal(t, 3, completions.calls)

	// every advanced month left a persisted snapshot
	for _, period := range []string{"2025-01", "2025-02", "2025-03"} {
		row, err := store.GetSnapshot(context.Background(), period)
		require.NoError(t, err)
		assert.NotNil(t, row, period)
	}
}

func TestRunAccumulatesAcrossMonths(t *testing.T) {
	store := newTestStore(t)
	processor := NewProcessor(createTestLogger(), &cannedCompletion{response: sampleResponse}, store)

	items := []timeline.Item{
		monthItem("jan", time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC)),
		monthItem("feb", time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC)),
	}

	_, final, err := processor.Run(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, 8, final.PeopleNetwork["marta"].Interactions)
	assert.Equal(t, "2025-01", final.PeopleNetwork["marta"].FirstSeen)
	assert.Equal(t, "2025-02", final.ConceptEvolution["rollout"].LastSeen)
}

func TestRunFailedMonthDoesNotAdvanceSnapshot(t *testing.T) {
	store := newTestStore(t)
	completions := &cannedCompletion{err: errors.New("model unavailable")}
	processor := NewProcessor(createTestLogger(), completions, store)

	items := []timeline.Item{
		monthItem("jan", time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC)),
	}

	results, final, err := processor.Run(context.Background(), items)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.NotEmpty(t, results[0].Err)
	assert.Empty(t, final.Period)

	row, err := store.GetSnapshot(context.Background(), "2025-01")
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestRunResumesFromLatestSnapshot(t *testing.T) {
	store := newTestStore(t)

	seeded := EmptySnapshot()
	seeded.Period = "2025-01"
	seeded.PeopleNetwork["marta"] = PersonRecord{FirstSeen: "2025-01", Interactions: 10}
	payload, err := seeded.Encode()
	require.NoError(t, err)
	require.NoError(t, store.PutSnapshot(context.Background(), "2025-01", payload))

	processor := NewProcessor(createTestLogger(), &cannedCompletion{response: sampleResponse}, store)
	_, final, err := processor.Run(context.Background(), []timeline.Item{
		monthItem("feb", time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)

	assert.Equal(t, 14, final.PeopleNetwork["marta"].Interactions)
	assert.Equal(t, "2025-01", final.PeopleNetwork["marta"].FirstSeen)
}

func TestParseResponseBlocks(t *testing.T) {
	var result MonthResult
	parseResponse(sampleResponse, &result)

	assert.Equal(t, "March Work", result.Mindmap["central_theme"])
	require.Len(t, result.Gantt.Tasks, 1)
	assert.Equal(t, "ship v2", result.Gantt.Tasks[0].Name)
	assert.Equal(t, map[string]int{"marta": 4}, result.PeopleNetwork)
	assert.Equal(t, map[string]int{"rollout": 6}, result.Concepts)
	assert.Equal(t, "Rollout dominated the month.", result.Insights)
}

func TestParseResponseMalformedBlocksLeftEmpty(t *testing.T) {
	var result MonthResult
	result.Mindmap = map[string]any{}
	parseResponse("no fenced blocks at all\n### Insights\nstill extracted", &result)

	assert.Empty(t, result.Gantt.Tasks)
	assert.Nil(t, result.PeopleNetwork)
	assert.Equal(t, "still extracted", result.Insights)
}

func TestBuildMonthBatchSections(t *testing.T) {
	base := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)

	meeting := timeline.NewItem(timeline.SourceMeeting, "m1", "Planning sync", "Speaker: hello", base, base)
	meeting.Metadata["action_items"] = "- follow up with design"
	note := timeline.NewItem(timeline.SourceNote, "n1", "Scratchpad", "ideas", base, base)
	mail := timeline.NewItem(timeline.SourceEmail, "e1", "Re: contract", "see attached", base, base)

	batch := buildMonthBatch("2025-03", []timeline.Item{meeting, note, mail})

	assert.Contains(t, batch, "# Monthly Data Batch: 2025-03")
	assert.Contains(t, batch, "## Notes and Screenshots")
	assert.Contains(t, batch, "Scratchpad")
	assert.Contains(t, batch, "## Meeting Details")
	assert.Contains(t, batch, "- follow up with design")
	assert.Contains(t, batch, "## Email Threads")
	assert.Contains(t, batch, "Re: contract")
}

func TestCapText(t *testing.T) {
	assert.Equal(t, "short", capText("short", 100))
	capped := capText("abcdefghij", 4)
	assert.Contains(t, capped, "abcd")
	assert.Contains(t, capped, "[Truncated...]")
}
