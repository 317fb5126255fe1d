// Package model holds the format-neutral representation of a syndication feed.
//
// The schema is based on Atom with RSS 1.0 and RSS 2.0 mapped onto it:
//
//	Atom feed    -> Feed    Atom entry -> Entry
//	RSS channel  -> Feed    RSS item   -> Entry
//
// Fields are the union of what the three formats carry. A field is optional here when any
// of the formats treats it as optional. Only ID, Title and Updated on Feed and Entry are
// required by the model, and their constructors always populate them.
package model

import (
	"strings"
	"time"
)

const (
	feedTitlePrefix  = "feed: "
	entryTitlePrefix = "entry: "
)

type Feed struct {
	// Atom id. RSS channels have none, so one is generated.
	ID string `json:"id"`
	// Atom title, RSS title.
	Title string `json:"title"`
	// Atom updated, RSS 2.0 lastBuildDate.
	Updated time.Time `json:"updated"`

	// Atom author, RSS 2.0 managingEditor.
	Authors []Person `json:"authors,omitempty"`
	// RSS description.
	Description *string `json:"description,omitempty"`
	Link        *Link   `json:"link,omitempty"`

	Categories []Category `json:"categories,omitempty"`
	// Atom contributor, RSS 2.0 webMaster.
	Contributors []Person   `json:"contributors,omitempty"`
	Generator    *Generator `json:"generator,omitempty"`
	// Atom icon URI.
	Icon     *string `json:"icon,omitempty"`
	Language *string `json:"language,omitempty"`
	// Atom logo, RSS image.
	Logo *Image `json:"logo,omitempty"`
	// RSS 2.0 pubDate.
	PubDate *time.Time `json:"pub_date,omitempty"`
	// Atom rights, RSS 2.0 copyright.
	Rights   *string `json:"rights,omitempty"`
	Subtitle *string `json:"subtitle,omitempty"`
	// RSS 2.0 ttl, in minutes.
	TTL *uint32 `json:"ttl,omitempty"`

	Entries []Entry `json:"entries,omitempty"`
}

// AddEntry appends a copy of e, keeping declaration order.
func (f *Feed) AddEntry(e Entry) {
	f.Entries = append(f.Entries, e)
}

// HasSyntheticTitle reports whether Title is still the fallback built from ID.
func (f *Feed) HasSyntheticTitle() bool {
	return f.Title == feedTitlePrefix+f.ID
}

// SetID replaces the identifier. A synthetic title is rebuilt from the new ID.
func (f *Feed) SetID(id string) {
	synthetic := f.HasSyntheticTitle()
	f.ID = id
	if synthetic {
		f.Title = feedTitlePrefix + id
	}
}

type Entry struct {
	// Atom id, RSS 2.0 guid.
	ID    string `json:"id"`
	Title string `json:"title"`
	// Last significant modification. Never filled from RSS pubDate.
	Updated time.Time `json:"updated"`

	// Atom author, RSS 2.0 author, RSS 1.0 dc:creator.
	Authors []Person `json:"authors,omitempty"`
	// Atom content, RSS 2.0 enclosure and content:encoded.
	Content *Content `json:"content,omitempty"`
	Link    *Link    `json:"link,omitempty"`
	// Atom summary, RSS description.
	Summary *string `json:"summary,omitempty"`

	Categories   []Category `json:"categories,omitempty"`
	Contributors []Person   `json:"contributors,omitempty"`
	// Original creation time: Atom published, RSS 2.0 pubDate, RSS 1.0 dc:date.
	Published *time.Time `json:"published,omitempty"`
	// Free-text provenance note, e.g. the title of the feed an entry was copied from.
	Source *string `json:"source,omitempty"`
	Rights *string `json:"rights,omitempty"`
}

// HasSyntheticTitle reports whether Title is still the fallback built from ID.
func (e *Entry) HasSyntheticTitle() bool {
	return e.Title == entryTitlePrefix+e.ID
}

// SetID replaces the identifier. A synthetic title is rebuilt from the new ID.
func (e *Entry) SetID(id string) {
	synthetic := e.HasSyntheticTitle()
	e.ID = id
	if synthetic {
		e.Title = entryTitlePrefix + id
	}
}

// Ptr returns a pointer to a copy of v. Handy for populating optional fields.
func Ptr[T any](v T) *T {
	return &v
}

// StringPtr is like Ptr but returns nil for blank strings, so that absence in a
// source document stays absence in the model.
func StringPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
