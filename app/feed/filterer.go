package feed

import (
	"strings"

	"github.com/lysyi3m/feedkit/app/model"
	"github.com/samber/lo"
)

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run returns the entries that pass every filter, in their original order,
// and the number of entries dropped.
func (f *Filterer) Run(entries []model.Entry, feedConfig *Config) ([]model.Entry, int) {
	if feedConfig == nil || len(feedConfig.Filters) == 0 {
		return entries, 0
	}

	kept := lo.Filter(entries, func(entry model.Entry, _ int) bool {
		return !f.isFiltered(entry, feedConfig.Filters)
	})

	return kept, len(entries) - len(kept)
}

func (f *Filterer) isFiltered(entry model.Entry, filters []ConfigFilter) bool {
	for _, filter := range filters {
		value := f.getFieldValue(entry, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true
			}
		}

		if len(filter.Includes) > 0 {
			matched := lo.SomeBy(filter.Includes, func(include string) bool {
				return f.matchesFilter(value, include)
			})
			if !matched {
				return true
			}
		}
	}

	return false
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(entry model.Entry, field string) string {
	switch field {
	case "title":
		return entry.Title
	case "summary":
		return deref(entry.Summary)
	case "content":
		if entry.Content == nil {
			return ""
		}
		return deref(entry.Content.Inline)
	case "authors":
		return strings.Join(lo.Map(entry.Authors, func(p model.Person, _ int) string {
			return strings.TrimSpace(p.Name + " " + deref(p.Email))
		}), " ")
	case "link":
		if entry.Link == nil {
			return ""
		}
		return entry.Link.Href
	case "categories":
		return strings.Join(lo.Map(entry.Categories, func(c model.Category, _ int) string {
			return strings.TrimSpace(c.Term + " " + deref(c.Label))
		}), " ")
	default:
		return ""
	}
}
