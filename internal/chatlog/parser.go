// Package chatlog turns uploaded chat exports into individual messages.
package chatlog

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spacesedan/feedbackflow/internal/models"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatText Format = "txt"
)

var (
	ErrInvalidJSON     = errors.New("invalid JSON format: expected an array of messages")
	ErrNoContentColumn = errors.New("no message content column found")
	ErrEmptyUpload     = errors.New("upload is empty")
)

var (
	contentFields  = []string{"message", "content", "text", "feedback"}
	spectrumFields = []string{"spectrum", "politicalSpectrum"}

	contentHeaders   = []string{"message", "content", "text", "feedback"}
	timestampHeaders = []string{"time", "date", "timestamp"}
	spectrumHeaders  = []string{"spectrum", "political", "party", "affiliation"}
)

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
	"Jan 2, 2006",
	"Jan 2, 2006 3:04 PM",
	time.RFC1123Z,
	time.RFC1123,
}

// Parser holds the clock used for messages without a timestamp.
type Parser struct {
	Now func() time.Time
}

func Parse(content string) ([]models.ChatMessage, error) {
	return Parser{Now: time.Now}.Parse(content)
}

// DetectFormat prefers JSON when the whole document parses, then CSV when
// the first line has a comma, otherwise plain text.
func DetectFormat(content string) Format {
	if json.Valid([]byte(content)) {
		return FormatJSON
	}
	firstLine, _, _ := strings.Cut(content, "\n")
	if strings.Contains(firstLine, ",") {
		return FormatCSV
	}
	return FormatText
}

// Parse drops messages whose content is blank.
func (p Parser) Parse(content string) ([]models.ChatMessage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyUpload
	}
	if p.Now == nil {
		p.Now = time.Now
	}

	var (
		messages []models.ChatMessage
		err      error
	)
	switch DetectFormat(content) {
	case FormatJSON:
		messages, err = p.parseJSON(content)
	case FormatCSV:
		messages, err = p.parseCSV(content)
	default:
		messages = p.parseText(content)
	}
	if err != nil {
		return nil, err
	}

	out := messages[:0]
	for _, m := range messages {
		if strings.TrimSpace(m.Content) != "" {
			out = append(out, m)
		}
	}
	return out, nil
}

func (p Parser) parseJSON(content string) ([]models.ChatMessage, error) {
	var raw []any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, ErrInvalidJSON
	}

	messages := make([]models.ChatMessage, 0, len(raw))
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			if s, isString := item.(string); isString {
				messages = append(messages, models.ChatMessage{
					Content:   strings.TrimSpace(s),
					Timestamp: p.Now(),
					Spectrum:  models.UnspecifiedSpectrum,
				})
			}
			continue
		}
		messages = append(messages, models.ChatMessage{
			Content:   strings.TrimSpace(firstString(entry, contentFields)),
			Timestamp: p.timestamp(entry["timestamp"]),
			Spectrum:  orUnspecified(firstString(entry, spectrumFields)),
		})
	}
	return messages, nil
}

func (p Parser) parseCSV(content string) ([]models.ChatMessage, error) {
	r := csv.NewReader(strings.NewReader(content))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	contentIdx := findHeader(header, contentHeaders)
	if contentIdx == -1 {
		return nil, ErrNoContentColumn
	}
	timestampIdx := findHeader(header, timestampHeaders)
	spectrumIdx := findHeader(header, spectrumHeaders)

	var messages []models.ChatMessage
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		msg := models.ChatMessage{
			Content:   strings.TrimSpace(column(row, contentIdx)),
			Timestamp: p.timestamp(column(row, timestampIdx)),
			Spectrum:  models.UnspecifiedSpectrum,
		}
		if spectrumIdx != -1 {
			msg.Spectrum = strings.TrimSpace(column(row, spectrumIdx))
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (p Parser) parseText(content string) []models.ChatMessage {
	var messages []models.ChatMessage
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		messages = append(messages, models.ChatMessage{
			Content:   line,
			Timestamp: p.Now(),
			Spectrum:  models.UnspecifiedSpectrum,
		})
	}
	return messages
}

// timestamp accepts epoch numbers (milliseconds above 1e11, else seconds) and
// common date layouts. Anything else is stamped with the current time.
func (p Parser) timestamp(v any) time.Time {
	switch t := v.(type) {
	case float64:
		return fromEpoch(t)
	case string:
		t = strings.TrimSpace(t)
		if t == "" {
			break
		}
		if n, err := strconv.ParseFloat(t, 64); err == nil {
			return fromEpoch(n)
		}
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts
			}
		}
	}
	return p.Now()
}

func fromEpoch(n float64) time.Time {
	if n > 1e11 {
		return time.UnixMilli(int64(n)).UTC()
	}
	return time.Unix(int64(n), 0).UTC()
}

func firstString(entry map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := entry[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func findHeader(header []string, candidates []string) int {
	for i, h := range header {
		for _, c := range candidates {
			if strings.Contains(h, c) {
				return i
			}
		}
	}
	return -1
}

func column(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func orUnspecified(s string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return models.UnspecifiedSpectrum
}
