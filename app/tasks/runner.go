package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lysyi3m/feedkit/app/database"
	"github.com/lysyi3m/feedkit/app/feed"
	"github.com/lysyi3m/feedkit/app/logger"
)

var _ TaskRunnerInterface = (*Runner)(nil)

const (
	taskQueueSize = 300
	taskTimeout   = 5 * time.Minute
	maxRetryDelay = 30 * time.Second
)

// Runner executes tasks on a fixed pool of workers. Feeds are imported on
// startup and on demand; nothing is polled.
type Runner struct {
	configCache      *feed.ConfigCache
	feedRepo         database.FeedStore
	fetcher          *Fetcher
	parser           *feed.Parser
	filterer         *feed.Filterer
	contentExtractor *feed.ContentExtractor
	workerCount      int
	ctx              context.Context
	cancel           context.CancelFunc
	wg               sync.WaitGroup
	taskQueue        chan TaskInterface
}

func NewRunner(configCache *feed.ConfigCache, feedRepo database.FeedStore, fetcher *Fetcher, parser *feed.Parser,
	filterer *feed.Filterer, contentExtractor *feed.ContentExtractor, workerCount int) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	if workerCount < 1 {
		workerCount = 1
	}

	return &Runner{
		configCache:      configCache,
		feedRepo:         feedRepo,
		fetcher:          fetcher,
		parser:           parser,
		filterer:         filterer,
		contentExtractor: contentExtractor,
		workerCount:      workerCount,
		ctx:              ctx,
		cancel:           cancel,
		taskQueue:        make(chan TaskInterface, taskQueueSize),
	}
}

func (r *Runner) Start() {
	for i := 0; i < r.workerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.enqueueStartupTasks()
}

func (r *Runner) Stop() {
	r.cancel()
	r.wg.Wait()
}

func (r *Runner) EnqueueTask(task TaskInterface) error {
	select {
	case <-r.ctx.Done():
		return r.ctx.Err()
	default:
	}

	select {
	case r.taskQueue <- task:
		return nil
	case <-r.ctx.Done():
		return r.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// NewImportTask builds an import task wired to the runner's collaborators.
func (r *Runner) NewImportTask(feedConfig *feed.Config) *ImportFeedTask {
	return NewImportFeedTask(feedConfig.Name, feedConfig, r.fetcher, r.parser, r.filterer, r.contentExtractor, r.feedRepo)
}

// RunOnce executes tasks concurrently, bounded by the worker count, and waits
// for all of them. Failures are joined into the returned error.
func (r *Runner) RunOnce(ctx context.Context, tasks []TaskInterface) error {
	sem := make(chan struct{}, r.workerCount)
	errs := make([]error, len(tasks))

	var wg sync.WaitGroup
	for i, task := range tasks {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			errs[i] = ctx.Err()
			continue
		}

		wg.Add(1)
		go func(i int, task TaskInterface) {
			defer wg.Done()
			defer func() { <-sem }()

			task.Start()
			taskCtx, cancel := context.WithTimeout(ctx, taskTimeout)
			defer cancel()

			if err := task.Execute(taskCtx); err != nil {
				errs[i] = fmt.Errorf("%s %s: %w", task.GetType(), task.GetFeedName(), err)
			}
		}(i, task)
	}
	wg.Wait()

	return errors.Join(errs...)
}

func (r *Runner) enqueueStartupTasks() {
	feedConfigs := r.configCache.GetEnabledConfigs()
	if len(feedConfigs) == 0 {
		logger.Log.Debug("No enabled feed configurations found")
		return
	}

	logger.Log.WithField("count", len(feedConfigs)).Debug("Enqueueing startup imports")

	for _, feedConfig := range feedConfigs {
		if err := r.EnqueueTask(r.NewImportTask(feedConfig)); err != nil {
			logger.WithFeed(feedConfig.Name).WithError(err).Warn("Failed to enqueue ImportFeedTask")
		}
	}
}

func (r *Runner) worker(id int) {
	defer r.wg.Done()

	for {
		select {
		case task := <-r.taskQueue:
			r.executeTask(id, task)
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *Runner) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(r.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	log := logger.WithFeed(task.GetFeedName()).WithFields(logger.Fields{
		"worker_id":   workerID,
		"type":        string(task.GetType()),
		"id":          task.GetID(),
		"retry_count": task.GetRetryCount(),
	})
	log.WithError(err).Error("Worker task execution failed")

	if !task.CanRetry() {
		log.WithField("max_retries", task.GetMaxRetries()).Error("Task failed after maximum retries")
		return
	}

	task.IncrementRetryCount()
	retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
	if retryDelay > maxRetryDelay {
		retryDelay = maxRetryDelay
	}

	log.WithField("delay", retryDelay.String()).Warn("Task retry scheduled")

	go func() {
		select {
		case <-time.After(retryDelay):
		case <-r.ctx.Done():
			return
		}
		if retryErr := r.EnqueueTask(task); retryErr != nil {
			log.WithError(retryErr).Error("Failed to re-enqueue task for retry")
		}
	}()
}
