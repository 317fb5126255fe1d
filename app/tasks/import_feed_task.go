package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/lysyi3m/feedkit/app/database"
	"github.com/lysyi3m/feedkit/app/feed"
	"github.com/lysyi3m/feedkit/app/logger"
	"github.com/lysyi3m/feedkit/app/metrics"
	"github.com/lysyi3m/feedkit/app/model"
)

// ImportFeedTask fetches a configured source, converts it to the unified model
// and replaces the stored copy.
type ImportFeedTask struct {
	Task
	FeedConfig       *feed.Config
	fetcher          *Fetcher
	parser           *feed.Parser
	filterer         *feed.Filterer
	contentExtractor *feed.ContentExtractor
	feedRepo         database.FeedStore
}

func NewImportFeedTask(feedName string, feedConfig *feed.Config, fetcher *Fetcher, parser *feed.Parser,
	filterer *feed.Filterer, contentExtractor *feed.ContentExtractor, feedRepo database.FeedStore) *ImportFeedTask {
	return &ImportFeedTask{
		Task:             NewTask(TaskTypeImportFeed, feedName),
		FeedConfig:       feedConfig,
		fetcher:          fetcher,
		parser:           parser,
		filterer:         filterer,
		contentExtractor: contentExtractor,
		feedRepo:         feedRepo,
	}
}

func (t *ImportFeedTask) Execute(ctx context.Context) (err error) {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.FeedConfig.Settings.Enabled {
		logger.WithFeed(t.FeedName).Debug("Feed disabled, skipping")
		return nil
	}

	started := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "failure"
		}
		metrics.ImportDuration.WithLabelValues(status).Observe(time.Since(started).Seconds())
	}()

	timeout := time.Duration(t.FeedConfig.Settings.Timeout) * time.Second
	data, err := t.fetcher.Fetch(ctx, t.FeedConfig.URL, timeout)
	if err != nil {
		return fmt.Errorf("failed to fetch feed: %w", err)
	}

	f, format, err := t.parser.Run(data)
	if err != nil {
		return fmt.Errorf("failed to parse feed: %w", err)
	}

	total := len(f.Entries)
	filtered, derived := t.prepare(f)

	if err := t.feedRepo.SaveFeed(t.FeedName, f); err != nil {
		return fmt.Errorf("failed to store feed: %w", err)
	}

	metrics.EntriesImported.WithLabelValues(t.FeedName).Add(float64(len(f.Entries)))
	metrics.EntriesFiltered.WithLabelValues(t.FeedName).Add(float64(filtered))

	logger.WithFeed(t.FeedName).WithFields(logger.Fields{
		"type":      string(t.Type),
		"format":    string(format),
		"duration":  t.GetDuration().String(),
		"total":     total,
		"filtered":  filtered,
		"summaries": derived,
		"stored":    len(f.Entries),
	}).Info("Task completed")

	return nil
}

// prepare applies the per-feed settings to a parsed feed in place.
func (t *ImportFeedTask) prepare(f *model.Feed) (filtered int, derived int) {
	settings := t.FeedConfig.Settings

	if f.Language == nil && settings.Language != "" {
		f.Language = model.Ptr(settings.Language)
	}

	if settings.DeriveSummary && t.contentExtractor != nil {
		derived = t.contentExtractor.Summarize(f.Entries)
	}

	f.Entries, filtered = t.filterer.Run(f.Entries, t.FeedConfig)

	if settings.MaxItems > 0 && len(f.Entries) > settings.MaxItems {
		f.Entries = f.Entries[:settings.MaxItems]
	}

	return filtered, derived
}
