package api

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/feedkit/app/database"
	"github.com/lysyi3m/feedkit/app/feed"
	"github.com/lysyi3m/feedkit/app/logger"
	"github.com/lysyi3m/feedkit/app/tasks"
)

const maxDocumentSize = 10 << 20

// NewHandler builds the HTTP handlers. baseURL is the public address used for self
// links in served feeds; leave it empty to omit them.
func NewHandler(configCache *feed.ConfigCache, feedRepo database.FeedStore, parser ParserInterface,
	generator GeneratorInterface, runner RunnerInterface, baseURL string) *Handler {
	return &Handler{
		feedRepo:    feedRepo,
		parser:      parser,
		generator:   generator,
		configCache: configCache,
		runner:      runner,
		baseURL:     strings.TrimRight(baseURL, "/"),
	}
}

func (h *Handler) GetFeed(c *gin.Context) {
	name := c.Param("name")

	format, err := feed.ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f, err := h.feedRepo.GetFeed(name)
	if err != nil {
		logger.WithFeed(name).WithError(err).Error("Database error")
		c.Status(http.StatusInternalServerError)
		return
	}
	if f == nil {
		logger.WithFeed(name).Debug("Feed not found in database")
		c.JSON(http.StatusNotFound, gin.H{"error": database.ErrFeedNotFound.Error()})
		return
	}

	var opts []feed.RenderOption
	if h.baseURL != "" {
		opts = append(opts, feed.WithSelfLink(h.selfLink(name, format)))
	}

	out, err := h.generator.Run(f, format, opts...)
	if err != nil {
		logger.WithFeed(name).WithError(err).Error("Feed generation error")
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("X-Feed-Entries", strconv.Itoa(len(f.Entries)))
	c.Header("X-Feed-Name", name)
	c.Header("X-Last-Updated", f.Updated.Format(time.RFC3339))

	c.Data(http.StatusOK, format.ContentType(), []byte(out))
}

func (h *Handler) selfLink(name string, format feed.Format) string {
	link := h.baseURL + "/feeds/" + url.PathEscape(name)
	if format != feed.FormatAtom {
		link += "?format=" + url.QueryEscape(string(format))
	}
	return link
}

// Convert parses the request body as a feed document and renders it in the requested format.
func (h *Handler) Convert(c *gin.Context) {
	format, err := feed.ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxDocumentSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}
	if len(data) > maxDocumentSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Document too large"})
		return
	}

	f, source, err := h.parser.Run(data)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, feed.ErrUnsupportedFormat) {
			status = http.StatusUnsupportedMediaType
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	out, err := h.generator.Run(f, format)
	if err != nil {
		logger.Log.WithError(err).Error("Feed generation error")
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("X-Source-Format", string(source))
	c.Data(http.StatusOK, format.ContentType(), []byte(out))
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if feedCount, err := h.feedRepo.GetFeedCount(); err == nil {
		health["feeds"] = feedCount
	}

	health["loaded_configurations"] = h.configCache.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIListFeeds(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	stored := make(map[string]database.FeedSummary)
	if summaries, err := h.feedRepo.ListFeeds(); err == nil {
		for _, summary := range summaries {
			stored[summary.Name] = summary
		}
	} else {
		logger.Log.WithError(err).Error("Database error")
	}

	feeds := make([]map[string]interface{}, 0, len(configs))

	for _, feedConfig := range configs {
		feedInfo := map[string]interface{}{
			"name":      feedConfig.Name,
			"url":       feedConfig.URL,
			"title":     "",
			"enabled":   feedConfig.Settings.Enabled,
			"max_items": feedConfig.Settings.MaxItems,
			"filters":   len(feedConfig.Filters),
		}

		if summary, ok := stored[feedConfig.Name]; ok {
			feedInfo["title"] = summary.Title
			feedInfo["updated"] = summary.Updated
			feedInfo["imported_at"] = summary.ImportedAt
			feedInfo["entry_count"] = summary.EntryCount
		}

		feeds = append(feeds, feedInfo)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"feeds": feeds,
		"total": len(feeds),
	})
}

// APIImportFeed reloads the feed's configuration and imports it synchronously.
func (h *Handler) APIImportFeed(c *gin.Context) {
	name := c.Param("name")

	if _, err := h.configCache.GetConfig(name); err != nil {
		logger.WithFeed(name).WithError(err).Debug("Feed configuration not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed configuration not found"})
		return
	}

	feedConfig, err := h.configCache.LoadConfig(name)
	if err != nil {
		logger.WithFeed(name).WithError(err).Error("Error reloading configuration")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	task := h.runner.NewImportTask(feedConfig)
	if err := h.runner.RunOnce(c.Request.Context(), []tasks.TaskInterface{task}); err != nil {
		logger.WithFeed(name).WithError(err).Error("Import failed")
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Import failed",
			"details": err.Error(),
		})
		return
	}

	entryCount, _ := h.feedRepo.GetEntryCount(name)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"feed": gin.H{
			"name":        name,
			"url":         feedConfig.URL,
			"enabled":     feedConfig.Settings.Enabled,
			"entry_count": entryCount,
		},
		"task": gin.H{
			"id":       task.ID,
			"type":     task.Type,
			"duration": task.GetDuration().String(),
		},
	})
}
