// Package email adapts exported email archives (mbox or single .eml
// files) into timeline items. Authentication and mailbox sync are out of
// scope; the adapter consumes already-exported messages.
package email

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jaytaylor/html2text"

	"github.com/luminalab/mindloom/pkg/sources"
	"github.com/luminalab/mindloom/pkg/timeline"
)

type Adapter struct {
	path   string
	logger *log.Logger
}

// New creates an adapter over an mbox file or a single .eml file.
func New(path string, logger *log.Logger) *Adapter {
	return &Adapter{path: path, logger: logger}
}

func (a *Adapter) Name() string { return "email" }

// Fetch parses the archive and returns messages dated inside [start, end].
// A message missing its date or sender is skipped with a warning; the rest
// of the batch proceeds.
func (a *Adapter) Fetch(ctx context.Context, start, end time.Time) ([]timeline.Item, error) {
	raws, err := a.readMessages()
	if err != nil {
		return nil, err
	}

	var items []timeline.Item
	for _, raw := range raws {
		if ctx.Err() != nil {
			return items, ctx.Err()
		}

		item, err := a.convert(raw)
		if err != nil {
			a.logger.Warn("Skipping malformed email record", "error", err)
			continue
		}
		if !sources.InRange(item.Timestamp, start, end) {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// readMessages splits an mbox on "From " separator lines; a .eml file is
// treated as a single message.
func (a *Adapter) readMessages() ([]string, error) {
	f, err := os.Open(a.path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	if strings.ToLower(filepath.Ext(a.path)) == ".eml" {
		raw, err := io.ReadAll(f)
		if err != nil {
			return nil, err
		}
		return []string{string(raw)}, nil
	}

	const maxCap = 1024 * 1024
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, maxCap), maxCap)

	var messages []string
	var current strings.Builder
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "From ") {
			if current.Len() > 0 {
				messages = append(messages, current.String())
				current.Reset()
			}
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if current.Len() > 0 {
		messages = append(messages, current.String())
	}
	return messages, nil
}

func (a *Adapter) convert(raw string) (timeline.Item, error) {
	msg, err := mail.ReadMessage(strings.NewReader(raw))
	if err != nil {
		return timeline.Item{}, err
	}

	date, err := msg.Header.Date()
	if err != nil {
		return timeline.Item{}, sources.ErrMalformedRecord
	}

	sourceID := msg.Header.Get("Message-ID")
	if sourceID == "" {
		sum := sha256.Sum256([]byte(raw))
		sourceID = hex.EncodeToString(sum[:])
	} else {
		sum := sha256.Sum256([]byte(sourceID))
		sourceID = hex.EncodeToString(sum[:])
	}

	if err := sources.ValidateRecord(sourceID, date); err != nil {
		return timeline.Item{}, err
	}

	subject := decodeHeader(msg.Header.Get("Subject"))
	from := decodeHeader(msg.Header.Get("From"))
	to := decodeHeader(msg.Header.Get("To"))

	body := extractBody(msg)

	item := timeline.NewItem(timeline.SourceEmail, sourceID, subject, body, date, date)
	item.Metadata = map[string]any{
		"from":   from,
		"to":     to,
		"folder": filepath.Base(a.path),
	}
	if strings.Contains(strings.ToLower(from), "fireflies") {
		item.Metadata["fireflies_notification"] = true
	}
	item.SourceMetadata = map[string]any{
		"message_id": msg.Header.Get("Message-ID"),
		"date":       msg.Header.Get("Date"),
	}
	return item, nil
}

func decodeHeader(value string) string {
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

// extractBody prefers text/plain parts; html parts are converted to text.
func extractBody(msg *mail.Message) string {
	contentType := msg.Header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		raw, _ := io.ReadAll(msg.Body)
		return strings.TrimSpace(string(raw))
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		return extractMultipart(msg.Body, params["boundary"])
	}

	raw, _ := io.ReadAll(decodeTransfer(msg.Body, msg.Header.Get("Content-Transfer-Encoding")))
	if mediaType == "text/html" {
		if text, err := html2text.FromString(string(raw)); err == nil {
			return strings.TrimSpace(text)
		}
	}
	return strings.TrimSpace(string(raw))
}

func extractMultipart(body io.Reader, boundary string) string {
	if boundary == "" {
		raw, _ := io.ReadAll(body)
		return strings.TrimSpace(string(raw))
	}

	var plain, html string
	mr := multipart.NewReader(body, boundary)
	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}

		partType, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
		raw, _ := io.ReadAll(decodeTransfer(part, part.Header.Get("Content-Transfer-Encoding")))

		switch partType {
		case "text/plain":
			if plain == "" {
				plain = string(raw)
			}
		case "text/html":
			if html == "" {
				html = string(raw)
			}
		}
	}

	if plain != "" {
		return strings.TrimSpace(plain)
	}
	if html != "" {
		if text, err := html2text.FromString(html); err == nil {
			return strings.TrimSpace(text)
		}
	}
	return ""
}

func decodeTransfer(r io.Reader, encoding string) io.Reader {
	if strings.EqualFold(strings.TrimSpace(encoding), "quoted-printable") {
		return quotedprintable.NewReader(r)
	}
	return r
}
