package feed

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/lysyi3m/feedkit/app/metrics"
	"github.com/lysyi3m/feedkit/app/model"
	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/atom"
	ext "github.com/mmcdole/gofeed/extensions"
	"github.com/mmcdole/gofeed/rss"
)

type Parser struct {
	atomParser *atom.Parser
	rssParser  *rss.Parser
	factory    model.Factory
}

type ParserOption func(*Parser)

// WithFactory sets the services used to synthesize ids and timestamps.
func WithFactory(factory model.Factory) ParserOption {
	return func(p *Parser) {
		p.factory = factory
	}
}

func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{
		atomParser: &atom.Parser{},
		rssParser:  &rss.Parser{},
		factory:    model.DefaultFactory,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run parses an Atom, RSS 1.0 or RSS 2.0 document. No feed is returned on error.
func (p *Parser) Run(data []byte) (*model.Feed, Format, error) {
	f, format, err := p.parse(data)
	if err != nil {
		metrics.ParseFailures.Inc()
		return nil, "", err
	}

	metrics.FeedsParsed.WithLabelValues(string(format)).Inc()
	return f, format, nil
}

func (p *Parser) parse(data []byte) (*model.Feed, Format, error) {
	switch gofeed.DetectFeedType(bytes.NewReader(data)) {
	case gofeed.FeedTypeAtom:
		source, err := p.atomParser.Parse(bytes.NewReader(data))
		if err != nil {
			return nil, "", fmt.Errorf("failed to parse atom feed: %w", err)
		}
		return p.fromAtom(source), FormatAtom, nil

	case gofeed.FeedTypeRSS:
		source, err := p.rssParser.Parse(bytes.NewReader(data))
		if err != nil {
			return nil, "", fmt.Errorf("failed to parse rss feed: %w", err)
		}
		if source.Version == "1.0" {
			return p.fromRSS1(source), FormatRSS1, nil
		}
		return p.fromRSS2(source), FormatRSS2, nil

	default:
		return nil, "", fmt.Errorf("failed to parse feed: %w", ErrUnsupportedFormat)
	}
}

// Atom

func (p *Parser) fromAtom(source *atom.Feed) *model.Feed {
	f := p.factory.NewFeed()

	if strings.TrimSpace(source.ID) != "" {
		f.SetID(source.ID)
	}
	setString(&f.Title, source.Title)
	if t := p.parseDate(source.UpdatedParsed, source.Updated); t != nil {
		f.Updated = *t
	}

	f.Authors = p.atomPersons(source.Authors)
	f.Contributors = p.atomPersons(source.Contributors)
	f.Categories = p.atomCategories(source.Categories)
	f.Link = p.atomLink(source.Links)

	if source.Generator != nil {
		generator := model.NewGenerator()
		generator.URI = model.StringPtr(source.Generator.URI)
		generator.Version = model.StringPtr(source.Generator.Version)
		generator.Inline = model.StringPtr(source.Generator.Value)
		f.Generator = &generator
	}

	f.Icon = model.StringPtr(source.Icon)
	f.Language = model.StringPtr(source.Language)
	f.Rights = model.StringPtr(source.Rights)
	f.Subtitle = model.StringPtr(source.Subtitle)

	if strings.TrimSpace(source.Logo) != "" {
		link := model.NewLink("")
		if f.Link != nil {
			link = model.NewLink(f.Link.Href)
		}
		logo := model.NewImage(source.Logo, source.Title, link)
		f.Logo = &logo
	}

	for _, item := range source.Entries {
		if item == nil {
			continue
		}
		f.AddEntry(p.fromAtomEntry(item))
	}

	return f
}

func (p *Parser) fromAtomEntry(item *atom.Entry) model.Entry {
	e := p.factory.NewEntry()

	if strings.TrimSpace(item.ID) != "" {
		e.SetID(item.ID)
	}
	setString(&e.Title, item.Title)
	if t := p.parseDate(item.UpdatedParsed, item.Updated); t != nil {
		e.Updated = *t
	}
	e.Published = p.parseDate(item.PublishedParsed, item.Published)

	e.Authors = p.atomPersons(item.Authors)
	e.Contributors = p.atomPersons(item.Contributors)
	e.Categories = p.atomCategories(item.Categories)
	e.Link = p.atomLink(item.Links)
	e.Summary = model.StringPtr(item.Summary)
	e.Rights = model.StringPtr(item.Rights)

	if item.Content != nil {
		content := model.NewContent()
		content.ContentType = model.StringPtr(item.Content.Type)
		content.Src = model.StringPtr(item.Content.Src)
		content.Inline = atomInline(item.Content.Type, item.Content.Value)
		e.Content = &content
	}

	if item.Source != nil {
		e.Source = model.StringPtr(firstNonBlank(item.Source.Title, item.Source.ID))
	}

	return *e
}

// atomInline restores the payload form the document carried: gofeed strips the xhtml
// wrapper div and decodes base64 for non-text media types.
func atomInline(contentType, value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}

	t := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case t == "", t == "text", t == "html", strings.HasPrefix(t, "text/"):
		return &value
	case isXHTMLType(t):
		if !strings.HasPrefix(value, "<div") {
			value = `<div xmlns="` + xhtmlNamespace + `">` + value + "</div>"
		}
		return &value
	case isXMLType(t):
		return &value
	default:
		encoded := base64.StdEncoding.EncodeToString([]byte(value))
		return &encoded
	}
}

func (p *Parser) atomPersons(people []*atom.Person) []model.Person {
	var persons []model.Person
	for _, person := range people {
		if person == nil {
			continue
		}
		converted := model.NewPerson(strings.TrimSpace(person.Name))
		converted.URI = model.StringPtr(person.URI)
		converted.Email = model.StringPtr(person.Email)
		persons = append(persons, converted)
	}
	return persons
}

func (p *Parser) atomCategories(categories []*atom.Category) []model.Category {
	var converted []model.Category
	for _, category := range categories {
		if category == nil {
			continue
		}
		c := model.NewCategory(category.Term)
		c.Scheme = model.StringPtr(category.Scheme)
		c.Label = model.StringPtr(category.Label)
		converted = append(converted, c)
	}
	return converted
}

// atomLink picks the alternate link, falling back to the first one.
func (p *Parser) atomLink(links []*atom.Link) *model.Link {
	var chosen *atom.Link
	for _, link := range links {
		if link == nil || strings.TrimSpace(link.Href) == "" {
			continue
		}
		if link.Rel == "" || link.Rel == "alternate" {
			chosen = link
			break
		}
		if chosen == nil {
			chosen = link
		}
	}
	if chosen == nil {
		return nil
	}

	link := model.NewLink(chosen.Href)
	link.Rel = model.StringPtr(chosen.Rel)
	link.MediaType = model.StringPtr(chosen.Type)
	link.Hreflang = model.StringPtr(chosen.Hreflang)
	link.Title = model.StringPtr(chosen.Title)
	link.Length = parseUint64(chosen.Length)
	return &link
}

// RSS 2.0

func (p *Parser) fromRSS2(source *rss.Feed) *model.Feed {
	f := p.factory.NewFeed()

	setString(&f.Title, source.Title)
	if t := p.parseDate(source.LastBuildDateParsed, source.LastBuildDate); t != nil {
		f.Updated = *t
	}
	f.PubDate = p.parseDate(source.PubDateParsed, source.PubDate)

	if person := parseRSSPerson(source.ManagingEditor); person != nil {
		f.Authors = append(f.Authors, *person)
	}
	if person := parseRSSPerson(source.WebMaster); person != nil {
		f.Contributors = append(f.Contributors, *person)
	}

	f.Description = model.StringPtr(source.Description)
	if strings.TrimSpace(source.Link) != "" {
		link := model.NewLink(source.Link)
		f.Link = &link
	}
	f.Categories = p.rssCategories(source.Categories)

	if strings.TrimSpace(source.Generator) != "" {
		generator := model.NewGenerator()
		generator.Inline = model.StringPtr(source.Generator)
		f.Generator = &generator
	}

	f.Language = model.StringPtr(source.Language)
	f.Rights = model.StringPtr(source.Copyright)
	f.Logo = p.rssImage(source.Image)

	if ttl, err := strconv.ParseUint(strings.TrimSpace(source.TTL), 10, 32); err == nil {
		f.TTL = model.Ptr(uint32(ttl))
	}

	for _, item := range source.Items {
		if item == nil {
			continue
		}
		f.AddEntry(p.fromRSS2Item(item))
	}

	return f
}

func (p *Parser) fromRSS2Item(item *rss.Item) model.Entry {
	e := p.factory.NewEntry()

	if item.GUID != nil && strings.TrimSpace(item.GUID.Value) != "" {
		e.SetID(item.GUID.Value)
	}
	setString(&e.Title, item.Title)
	// pubDate is a publication time; only atom:updated moves Updated.
	e.Published = p.parseDate(item.PubDateParsed, item.PubDate)
	if t := p.parseDate(nil, extensionValue(item.Extensions, "atom", "updated")); t != nil {
		e.Updated = *t
	}

	if person := parseRSSPerson(item.Author); person != nil {
		e.Authors = append(e.Authors, *person)
	} else {
		e.Authors = dcCreators(item.DublinCoreExt)
	}
	if strings.TrimSpace(item.Link) != "" {
		link := model.NewLink(item.Link)
		e.Link = &link
	}
	e.Summary = model.StringPtr(item.Description)
	e.Categories = p.rssCategories(item.Categories)

	if item.Enclosure != nil && strings.TrimSpace(item.Enclosure.URL) != "" {
		content := model.NewContent()
		content.Src = model.StringPtr(item.Enclosure.URL)
		content.ContentType = model.StringPtr(item.Enclosure.Type)
		e.Content = &content
	}
	// content:encoded sits next to an enclosure rather than replacing it.
	if inline := model.StringPtr(item.Content); inline != nil {
		if e.Content == nil {
			content := model.NewContent()
			content.ContentType = model.Ptr("html")
			e.Content = &content
		}
		e.Content.Inline = inline
	}

	if item.Source != nil {
		e.Source = model.StringPtr(firstNonBlank(item.Source.Title, item.Source.URL))
	}

	return *e
}

func (p *Parser) rssCategories(categories []*rss.Category) []model.Category {
	var converted []model.Category
	for _, category := range categories {
		if category == nil || strings.TrimSpace(category.Value) == "" {
			continue
		}
		c := model.NewCategory(category.Value)
		c.Scheme = model.StringPtr(category.Domain)
		converted = append(converted, c)
	}
	return converted
}

func (p *Parser) rssImage(image *rss.Image) *model.Image {
	if image == nil || strings.TrimSpace(image.URL) == "" {
		return nil
	}

	logo := model.NewImage(image.URL, image.Title, model.NewLink(image.Link))
	if width, err := strconv.ParseUint(strings.TrimSpace(image.Width), 10, 32); err == nil {
		logo.Width = uint32(width)
	}
	if height, err := strconv.ParseUint(strings.TrimSpace(image.Height), 10, 32); err == nil {
		logo.Height = uint32(height)
	}
	logo.Description = model.StringPtr(image.Description)
	return &logo
}

// RSS 1.0 carries no dates, authors or categories outside extension modules.

func (p *Parser) fromRSS1(source *rss.Feed) *model.Feed {
	f := p.factory.NewFeed()

	setString(&f.Title, source.Title)
	f.Description = model.StringPtr(source.Description)
	if strings.TrimSpace(source.Link) != "" {
		link := model.NewLink(source.Link)
		f.Link = &link
	}
	f.Logo = p.rssImage(source.Image)

	if dc := source.DublinCoreExt; dc != nil {
		f.Authors = dcCreators(dc)
		if len(dc.Date) > 0 {
			f.PubDate = p.parseDate(nil, dc.Date[0])
		}
		if len(dc.Language) > 0 {
			f.Language = model.StringPtr(dc.Language[0])
		}
		if len(dc.Rights) > 0 {
			f.Rights = model.StringPtr(dc.Rights[0])
		}
	}

	for _, item := range source.Items {
		if item == nil {
			continue
		}

		e := p.factory.NewEntry()
		setString(&e.Title, item.Title)
		if strings.TrimSpace(item.Link) != "" {
			link := model.NewLink(item.Link)
			e.Link = &link
		}
		e.Summary = model.StringPtr(item.Description)
		e.Authors = dcCreators(item.DublinCoreExt)
		if item.DublinCoreExt != nil && len(item.DublinCoreExt.Date) > 0 {
			e.Published = p.parseDate(nil, item.DublinCoreExt.Date[0])
		}
		f.AddEntry(*e)
	}

	return f
}

// parseDate prefers the value gofeed already parsed, then RFC 3339 (extension
// elements such as dc:date), then dateparse. Zone-less values are read as UTC.
func (p *Parser) parseDate(parsed *time.Time, raw string) *time.Time {
	if parsed != nil {
		t := parsed.UTC()
		return &t
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		t, err = dateparse.ParseIn(raw, time.UTC)
		if err != nil {
			return nil
		}
	}
	t = t.UTC()
	return &t
}

// parseRSSPerson splits the RSS "email (name)" convention into a Person.
func parseRSSPerson(value string) *model.Person {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	if open := strings.Index(value, "("); open > 0 && strings.HasSuffix(value, ")") {
		email := strings.TrimSpace(value[:open])
		name := strings.TrimSpace(value[open+1 : len(value)-1])
		if strings.Contains(email, "@") && name != "" {
			person := model.NewPerson(name)
			person.Email = model.StringPtr(email)
			return &person
		}
	}

	person := model.NewPerson(value)
	if strings.Contains(value, "@") && !strings.ContainsAny(value, " \t") {
		person.Email = model.StringPtr(value)
	}
	return &person
}

func dcCreators(dc *ext.DublinCoreExtension) []model.Person {
	if dc == nil {
		return nil
	}
	var people []model.Person
	for _, creator := range dc.Creator {
		if strings.TrimSpace(creator) != "" {
			people = append(people, model.NewPerson(creator))
		}
	}
	return people
}

func extensionValue(extensions ext.Extensions, prefix, name string) string {
	values := extensions[prefix][name]
	if len(values) == 0 {
		return ""
	}
	return values[0].Value
}

func parseUint64(value string) *uint64 {
	n, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// setString overwrites a required field only when the source supplies a value.
func setString(dst *string, value string) {
	if strings.TrimSpace(value) != "" {
		*dst = value
	}
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
