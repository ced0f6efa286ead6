// Package meetings adapts Fireflies meeting transcripts, fetched over the
// Fireflies GraphQL API, into timeline items.
package meetings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/luminalab/mindloom/pkg/sources"
	"github.com/luminalab/mindloom/pkg/timeline"
)

const (
	defaultAPIURL  = "https://api.fireflies.ai/graphql"
	requestTimeout = 30 * time.Second
	fetchLimit     = 50
)

const transcriptsQuery = `
query GetTranscripts($dateMin: DateTime, $dateMax: DateTime, $limit: Int, $skip: Int) {
	transcripts(date_min: $dateMin, date_max: $dateMax, limit: $limit, skip: $skip) {
		id
		title
		date
		duration
		meeting_url
		participants
		organizer_email
		summary {
			overview
			keywords
			action_items
		}
		sentences {
			text
			speaker_name
		}
	}
}`

type transcript struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Date           string   `json:"date"`
	Duration       float64  `json:"duration"`
	MeetingURL     string   `json:"meeting_url"`
	Participants   []string `json:"participants"`
	OrganizerEmail string   `json:"organizer_email"`
	Summary        struct {
		Overview    string   `json:"overview"`
		Keywords    []string `json:"keywords"`
		ActionItems string   `json:"action_items"`
	} `json:"summary"`
	Sentences []struct {
		Text        string `json:"text"`
		SpeakerName string `json:"speaker_name"`
	} `json:"sentences"`
}

type graphqlResponse struct {
	Data struct {
		Transcripts []transcript `json:"transcripts"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type Adapter struct {
	apiKey     string
	apiURL     string
	httpClient *http.Client
	logger     *log.Logger
}

func New(apiKey, apiURL string, logger *log.Logger) *Adapter {
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	return &Adapter{
		apiKey:     apiKey,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}
}

func (a *Adapter) Name() string { return "meetings" }

// Fetch pages through transcripts in the date window and converts them.
// A transcript with unusable fields is skipped with a warning.
func (a *Adapter) Fetch(ctx context.Context, start, end time.Time) ([]timeline.Item, error) {
	var items []timeline.Item
	skip := 0

	for {
		transcripts, err := a.queryTranscripts(ctx, start, end, skip)
		if err != nil {
			return nil, err
		}
		if len(transcripts) == 0 {
			break
		}

		for _, tr := range transcripts {
			item, err := a.convert(tr)
			if err != nil {
				a.logger.Warn("Skipping malformed transcript record", "id", tr.ID, "error", err)
				continue
			}
			items = append(items, item)
		}

		if len(transcripts) < fetchLimit {
			break
		}
		skip += fetchLimit
	}

	return items, nil
}

func (a *Adapter) queryTranscripts(ctx context.Context, start, end time.Time, skip int) ([]transcript, error) {
	payload := map[string]any{
		"query": transcriptsQuery,
		"variables": map[string]any{
			"dateMin": start.UTC().Format(time.RFC3339),
			"dateMax": end.UTC().Format(time.RFC3339),
			"limit":   fetchLimit,
			"skip":    skip,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fireflies request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fireflies API returned status %d", resp.StatusCode)
	}

	var decoded graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, "failed to decode fireflies response")
	}
	if len(decoded.Errors) > 0 {
		return nil, errors.Errorf("fireflies query failed: %s", decoded.Errors[0].Message)
	}

	return decoded.Data.Transcripts, nil
}

func (a *Adapter) convert(tr transcript) (timeline.Item, error) {
	meetingDate, err := time.Parse(time.RFC3339, tr.Date)
	if err != nil {
		return timeline.Item{}, sources.ErrMalformedRecord
	}
	if err := sources.ValidateRecord(tr.ID, meetingDate); err != nil {
		return timeline.Item{}, err
	}

	var contentParts []string
	for _, sentence := range tr.Sentences {
		speaker := sentence.SpeakerName
		if speaker == "" {
			speaker = "Unknown"
		}
		contentParts = append(contentParts, fmt.Sprintf("%s: %s", speaker, sentence.Text))
	}
	content := strings.Join(contentParts, "\n")
	if content == "" {
		content = tr.Summary.Overview
	}

	item := timeline.NewItem(timeline.SourceMeeting, tr.ID, tr.Title, content, meetingDate, meetingDate)
	item.Metadata = map[string]any{
		"duration_minutes": tr.Duration / 60,
		"participants":     tr.Participants,
		"organizer":        tr.OrganizerEmail,
		"meeting_url":      tr.MeetingURL,
		"has_action_items": tr.Summary.ActionItems != "",
		"keywords":         tr.Summary.Keywords,
	}
	if tr.Summary.ActionItems != "" {
		item.Metadata["action_items"] = tr.Summary.ActionItems
	}
	item.SourceMetadata = map[string]any{
		"id":    tr.ID,
		"date":  tr.Date,
		"title": tr.Title,
	}
	return item, nil
}
