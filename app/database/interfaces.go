package database

import "github.com/lysyi3m/feedkit/app/model"

// FeedStore is implemented by FeedRepository.
type FeedStore interface {
	SaveFeed(name string, f *model.Feed) error
	GetFeed(name string) (*model.Feed, error)
	GetFeedCount() (int, error)
	GetEntryCount(name string) (int, error)
	ListFeeds() ([]FeedSummary, error)
}

var _ FeedStore = (*FeedRepository)(nil)
