package feed

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-shiori/go-readability"
	"github.com/lysyi3m/feedkit/app/logger"
	"github.com/lysyi3m/feedkit/app/model"
)

const maxSummaryLength = 500

type ContentExtractor struct{}

func NewContentExtractor() *ContentExtractor {
	return &ContentExtractor{}
}

// Run returns the readable plain text of an HTML document or fragment.
func (e *ContentExtractor) Run(data []byte) (string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return "", fmt.Errorf("HTML data is empty")
	}

	article, err := readability.FromReader(bytes.NewReader(data), nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}

	text := strings.Join(strings.Fields(article.TextContent), " ")
	if text == "" {
		return "", fmt.Errorf("no content extracted from HTML data")
	}

	logger.Log.WithField("content_length", len(text)).Debug("Content extracted successfully")

	return text, nil
}

// Summarize fills Summary from inline content for entries that have none.
// Entries whose content cannot be extracted are left untouched.
func (e *ContentExtractor) Summarize(entries []model.Entry) int {
	filled := 0
	for i := range entries {
		entry := &entries[i]
		if entry.Summary != nil || entry.Content == nil || entry.Content.Inline == nil {
			continue
		}

		text, err := e.Run([]byte(*entry.Content.Inline))
		if err != nil {
			logger.Log.WithField("entry", entry.ID).WithError(err).Debug("Summary not derived")
			continue
		}

		entry.Summary = model.Ptr(truncate(text, maxSummaryLength))
		filled++
	}
	return filled
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max])) + "…"
}
