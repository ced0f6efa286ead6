package email

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminalab/mindloom/pkg/timeline"
)

func createTestLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{
		Level: log.ErrorLevel,
	})
}

func writeArchive(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const mboxSample = `From alice@example.com Mon Mar  3 10:00:00 2025
From: Alice <alice@example.com>
To: Bob <bob@example.com>
Subject: Deployment plan
Date: Mon, 03 Mar 2025 10:00:00 +0000
Message-ID: <plan-1@example.com>

Rolling out on Thursday.
From carol@example.com Tue Mar  4 11:00:00 2025
From: Carol <carol@example.com>
To: Bob <bob@example.com>
Subject: Missing date header
Message-ID: <broken-1@example.com>

This one has no Date header.
From dave@example.com Wed Mar  5 12:00:00 2025
From: Dave <dave@example.com>
To: Bob <bob@example.com>
Subject: Retro notes
Date: Wed, 05 Mar 2025 12:00:00 +0000
Message-ID: <retro-1@example.com>

Retro went fine.
`

func TestFetchSkipsMessagesWithoutDate(t *testing.T) {
	path := writeArchive(t, "inbox.mbox", mboxSample)
	adapter := New(path, createTestLogger())

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)

	items, err := adapter.Fetch(context.Background(), start, end)
	require.NoError(t, err)

	// the message missing its Date header is dropped, the rest survive
	require.Len(t, items, 2)
	assert.Equal(t, "Deployment plan", items[0].Title)
	assert.Equal(t, "Retro notes", items[1].Title)
}

func TestFetchPopulatesItem(t *testing.T) {
	path := writeArchive(t, "inbox.mbox", mboxSample)
	adapter := New(path, createTestLogger())

	items, err := adapter.Fetch(context.Background(),
		time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotEmpty(t, items)

	item := items[0]
	assert.Equal(t, timeline.SourceEmail, item.SourceType)
	assert.Equal(t, "Rolling out on Thursday.", item.Content)
	assert.Equal(t, "Alice <alice@example.com>", item.Metadata["from"])
	assert.Equal(t, "inbox.mbox", item.Metadata["folder"])
	assert.Equal(t, time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC).Unix(), item.Timestamp.Unix())
	assert.NotEmpty(t, item.SourceID)
}

func TestFetchFiltersByRange(t *testing.T) {
	path := writeArchive(t, "inbox.mbox", mboxSample)
	adapter := New(path, createTestLogger())

	items, err := adapter.Fetch(context.Background(),
		time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, "Retro notes", items[0].Title)
}

func TestFetchSingleEml(t *testing.T) {
	eml := `From: Alice <alice@example.com>
To: Bob <bob@example.com>
Subject: Single message
Date: Mon, 03 Mar 2025 10:00:00 +0000
Message-ID: <single-1@example.com>

Just one message.
`
	path := writeArchive(t, "message.eml", eml)
	adapter := New(path, createTestLogger())

	items, err := adapter.Fetch(context.Background(),
		time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, "Single message", items[0].Title)
}

func TestFetchMultipartPrefersPlainText(t *testing.T) {
	eml := `From: Alice <alice@example.com>
To: Bob <bob@example.com>
Subject: Multipart
Date: Mon, 03 Mar 2025 10:00:00 +0000
Message-ID: <multi-1@example.com>
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="sep"

--sep
Content-Type: text/plain; charset="utf-8"

plain body
--sep
Content-Type: text/html; charset="utf-8"

<p>html body</p>
--sep--
`
	path := writeArchive(t, "multi.eml", eml)
	adapter := New(path, createTestLogger())

	items, err := adapter.Fetch(context.Background(),
		time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, "plain body", items[0].Content)
}

func TestFetchFlagsFirefliesNotifications(t *testing.T) {
	eml := `From: Fireflies.ai <no-reply@fireflies.ai>
To: Bob <bob@example.com>
Subject: Your meeting recap
Date: Mon, 03 Mar 2025 10:00:00 +0000
Message-ID: <recap-1@example.com>

Recap inside.
`
	path := writeArchive(t, "recap.eml", eml)
	adapter := New(path, createTestLogger())

	items, err := adapter.Fetch(context.Background(),
		time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, true, items[0].Metadata["fireflies_notification"])
}

func TestFetchMissingFile(t *testing.T) {
	adapter := New(filepath.Join(t.TempDir(), "nope.mbox"), createTestLogger())

	_, err := adapter.Fetch(context.Background(), time.Time{}, time.Now())
	assert.Error(t, err)
}
