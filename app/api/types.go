package api

import (
	"context"

	"github.com/lysyi3m/feedkit/app/database"
	"github.com/lysyi3m/feedkit/app/feed"
	"github.com/lysyi3m/feedkit/app/model"
	"github.com/lysyi3m/feedkit/app/tasks"
)

type ParserInterface interface {
	Run(data []byte) (*model.Feed, feed.Format, error)
}

type GeneratorInterface interface {
	Run(f *model.Feed, format feed.Format, opts ...feed.RenderOption) (string, error)
}

type RunnerInterface interface {
	NewImportTask(feedConfig *feed.Config) *tasks.ImportFeedTask
	RunOnce(ctx context.Context, taskList []tasks.TaskInterface) error
}

var (
	_ ParserInterface    = (*feed.Parser)(nil)
	_ GeneratorInterface = (*feed.Generator)(nil)
	_ RunnerInterface    = (*tasks.Runner)(nil)
)

type Handler struct {
	feedRepo    database.FeedStore
	parser      ParserInterface
	generator   GeneratorInterface
	configCache *feed.ConfigCache
	runner      RunnerInterface
	baseURL     string
}
