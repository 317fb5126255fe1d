package model

import (
	"time"

	"github.com/google/uuid"
)

// IDGenerator returns a globally unique string on every call.
// Implementations must be safe for concurrent use.
type IDGenerator interface {
	NewID() string
}

// Clock returns the current civil time. Implementations must be safe for concurrent use.
type Clock interface {
	Now() time.Time
}

type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// Factory binds the identifier and clock services used to build feeds and entries.
type Factory struct {
	IDs   IDGenerator
	Clock Clock
}

var DefaultFactory = Factory{IDs: UUIDGenerator{}, Clock: SystemClock{}}

func NewFactory(ids IDGenerator, clock Clock) Factory {
	return Factory{IDs: ids, Clock: clock}
}

func (f Factory) NewFeed() *Feed {
	id := f.IDs.NewID()

	return &Feed{
		ID:      id,
		Title:   feedTitlePrefix + id,
		Updated: f.Clock.Now(),
	}
}

func (f Factory) NewEntry() *Entry {
	id := f.IDs.NewID()

	return &Entry{
		ID:      id,
		Title:   entryTitlePrefix + id,
		Updated: f.Clock.Now(),
	}
}

func NewFeed() *Feed {
	return DefaultFactory.NewFeed()
}

func NewEntry() *Entry {
	return DefaultFactory.NewEntry()
}
