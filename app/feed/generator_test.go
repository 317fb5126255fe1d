package feed

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/feedkit/app/model"
)

func sampleFeed() *model.Feed {
	factory := model.NewFactory(&counterIDs{}, staticClock{t: testNow})

	f := factory.NewFeed()
	f.SetID("urn:feed:sample")
	f.Title = "Sample & Co"
	f.Subtitle = model.Ptr("Things <worth> reading")
	f.Description = model.Ptr("A sample feed")
	link := model.NewLink("https://example.com/")
	link.Rel = model.Ptr("alternate")
	link.MediaType = model.Ptr("text/html")
	link.Hreflang = model.Ptr("en")
	link.Title = model.Ptr("Home")
	link.Length = model.Ptr(uint64(512))
	f.Link = &link
	f.Icon = model.Ptr("https://example.com/favicon.ico")
	f.Language = model.Ptr("en")
	f.Rights = model.Ptr("CC0")
	f.TTL = model.Ptr(uint32(30))
	f.PubDate = model.Ptr(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	f.Updated = time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)

	author := model.NewPerson("Jane Doe")
	author.Email = model.Ptr("jane@example.com")
	f.Authors = []model.Person{author}
	contributor := model.NewPerson("Max Power")
	contributor.URI = model.Ptr("https://example.com/max")
	f.Contributors = []model.Person{contributor}

	category := model.NewCategory("go")
	category.Scheme = model.Ptr("https://example.com/tags")
	category.Label = model.Ptr("Go")
	f.Categories = []model.Category{category}

	generator := model.NewGenerator()
	generator.Inline = model.Ptr("feedkit")
	generator.URI = model.Ptr("https://example.com/feedkit")
	generator.Version = model.Ptr("1.0")
	f.Generator = &generator

	logo := model.NewImage("https://example.com/logo.png", "Sample & Co", model.NewLink("https://example.com/"))
	f.Logo = &logo

	first := factory.NewEntry()
	first.SetID("https://example.com/posts/1")
	first.Title = "First post"
	first.Updated = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	first.Published = model.Ptr(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	firstLink := model.NewLink("https://example.com/posts/1")
	firstLink.Rel = model.Ptr("alternate")
	firstLink.MediaType = model.Ptr("text/html")
	firstLink.Hreflang = model.Ptr("en-GB")
	firstLink.Title = model.Ptr("Read on")
	firstLink.Length = model.Ptr(uint64(2048))
	first.Link = &firstLink
	first.Summary = model.Ptr("Summary with <b>markup</b>")
	first.Authors = []model.Person{author}
	first.Contributors = []model.Person{contributor}
	first.Categories = []model.Category{model.NewCategory("intro")}
	content := model.NewContent()
	content.ContentType = model.Ptr("text")
	content.Inline = model.Ptr("Body text")
	first.Content = &content
	first.Source = model.Ptr("Upstream")
	first.Rights = model.Ptr("All rights reserved")
	f.AddEntry(*first)

	second := factory.NewEntry()
	second.SetID("guid-2")
	second.Updated = time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	enclosure := model.NewContent()
	enclosure.Src = model.Ptr("https://example.com/audio.mp3")
	enclosure.ContentType = model.Ptr("audio/mpeg")
	second.Content = &enclosure
	f.AddEntry(*second)

	return f
}

func TestGenerateAtom(t *testing.T) {
	generator := NewGenerator()
	out, err := generator.Run(sampleFeed(), FormatAtom)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	expected := []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<feed xmlns="http://www.w3.org/2005/Atom" xml:lang="en">`,
		`<id>urn:feed:sample</id>`,
		`<title>Sample &amp; Co</title>`,
		`<updated>2024-05-02T09:30:00Z</updated>`,
		`<subtitle>Things &lt;worth&gt; reading</subtitle>`,
		`<link href="https://example.com/" rel="alternate" type="text/html" hreflang="en" title="Home" length="512"/>`,
		`<icon>https://example.com/favicon.ico</icon>`,
		`<category term="go" scheme="https://example.com/tags" label="Go"/>`,
		`<generator uri="https://example.com/feedkit" version="1.0">feedkit</generator>`,
		`<logo>https://example.com/logo.png</logo>`,
		`<published>2024-05-01T09:00:00Z</published>`,
		`<content type="text">Body text</content>`,
		`<content type="audio/mpeg" src="https://example.com/audio.mp3"></content>`,
		`<title>entry: guid-2</title>`,
	}
	for _, want := range expected {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q\n%s", want, out)
		}
	}
}

func TestGenerateRSS2(t *testing.T) {
	generator := NewGenerator()
	out, err := generator.Run(sampleFeed(), FormatRSS2)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	expected := []string{
		`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:atom="http://www.w3.org/2005/Atom">`,
		`<atom:updated>2024-05-01T10:00:00Z</atom:updated>`,
		`<content:encoded>Body text</content:encoded>`,
		`<title>Sample &amp; Co</title>`,
		`<description>A sample feed</description>`,
		`<managingEditor>jane@example.com (Jane Doe)</managingEditor>`,
		`<pubDate>Wed, 01 May 2024 08:00:00 +0000</pubDate>`,
		`<lastBuildDate>Thu, 02 May 2024 09:30:00 +0000</lastBuildDate>`,
		`<category domain="https://example.com/tags">go</category>`,
		`<ttl>30</ttl>`,
		`<width>88</width>`,
		`<height>31</height>`,
		`<guid isPermaLink="true">https://example.com/posts/1</guid>`,
		`<guid isPermaLink="false">guid-2</guid>`,
		`<description>Summary with &lt;b&gt;markup&lt;/b&gt;</description>`,
		`<enclosure url="https://example.com/audio.mp3" length="0" type="audio/mpeg" />`,
		`<source>Upstream</source>`,
	}
	for _, want := range expected {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q\n%s", want, out)
		}
	}

	if strings.Contains(out, "entry: guid-2") {
		t.Errorf("Expected synthetic entry title to be omitted\n%s", out)
	}
}

func TestGenerateRSS2DescriptionFallback(t *testing.T) {
	f := model.NewFeed()
	f.Title = "Only a title"

	out, err := NewGenerator().Run(f, FormatRSS2)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "<description>Only a title</description>") {
		t.Errorf("Expected description to fall back to the title\n%s", out)
	}
}

func TestGenerateRSS1(t *testing.T) {
	generator := NewGenerator()
	out, err := generator.Run(sampleFeed(), FormatRSS1)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	expected := []string{
		`<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#" xmlns="http://purl.org/rss/1.0/" xmlns:dc="http://purl.org/dc/elements/1.1/">`,
		`<dc:creator>Jane Doe</dc:creator>`,
		`<dc:date>2024-05-01T08:00:00Z</dc:date>`,
		`<dc:date>2024-05-01T09:00:00Z</dc:date>`,
		`<dc:language>en</dc:language>`,
		`<dc:rights>CC0</dc:rights>`,
		`<channel rdf:about="https://example.com/">`,
		`<rdf:li resource="https://example.com/posts/1" />`,
		`<rdf:li resource="guid-2" />`,
		`<item rdf:about="https://example.com/posts/1">`,
		`<image rdf:about="https://example.com/logo.png">`,
	}
	for _, want := range expected {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q\n%s", want, out)
		}
	}
}

func TestGenerateJSON(t *testing.T) {
	generator := NewGenerator()
	out, err := generator.Run(sampleFeed(), FormatJSON)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	var decoded model.Feed
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("Expected valid JSON, got: %v", err)
	}
	if decoded.ID != "urn:feed:sample" || decoded.Title != "Sample & Co" {
		t.Errorf("Unexpected feed identity: %s / %s", decoded.ID, decoded.Title)
	}
	if len(decoded.Entries) != 2 || decoded.Entries[1].ID != "guid-2" {
		t.Errorf("Unexpected entries: %+v", decoded.Entries)
	}
	if !strings.Contains(out, `"pub_date"`) {
		t.Errorf("Expected snake_case keys\n%s", out)
	}
}

func TestGenerateUnsupportedFormat(t *testing.T) {
	generator := NewGenerator()

	if _, err := generator.Run(sampleFeed(), Format("yaml")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got: %v", err)
	}
	if _, err := generator.Run(nil, FormatAtom); err == nil {
		t.Error("Expected error for nil feed")
	}
}

func TestAtomRoundTrip(t *testing.T) {
	original := sampleFeed()

	out, err := NewGenerator().Run(original, FormatAtom)
	if err != nil {
		t.Fatal(err)
	}

	parsed, format, err := newTestParser().Run([]byte(out))
	if err != nil {
		t.Fatalf("Expected generated Atom to parse, got: %v\n%s", err, out)
	}
	if format != FormatAtom {
		t.Errorf("Expected atom, got: %s", format)
	}

	if parsed.ID != original.ID || parsed.Title != original.Title {
		t.Errorf("Identity lost: %s / %s", parsed.ID, parsed.Title)
	}
	if !parsed.Updated.Equal(original.Updated) {
		t.Errorf("Updated lost: %v vs %v", parsed.Updated, original.Updated)
	}
	for name, pair := range map[string][2]*string{
		"subtitle": {parsed.Subtitle, original.Subtitle},
		"rights":   {parsed.Rights, original.Rights},
		"icon":     {parsed.Icon, original.Icon},
		"language": {parsed.Language, original.Language},
	} {
		if pair[0] == nil || *pair[0] != *pair[1] {
			t.Errorf("Feed %s lost: %v", name, pair[0])
		}
	}
	if !reflect.DeepEqual(parsed.Link, original.Link) {
		t.Errorf("Link lost: %+v", parsed.Link)
	}
	if !reflect.DeepEqual(parsed.Authors, original.Authors) {
		t.Errorf("Authors lost: %+v", parsed.Authors)
	}
	if !reflect.DeepEqual(parsed.Contributors, original.Contributors) {
		t.Errorf("Contributors lost: %+v", parsed.Contributors)
	}
	if !reflect.DeepEqual(parsed.Categories, original.Categories) {
		t.Errorf("Categories lost: %+v", parsed.Categories)
	}
	if !reflect.DeepEqual(parsed.Generator, original.Generator) {
		t.Errorf("Generator lost: %+v", parsed.Generator)
	}
	if parsed.Logo == nil || parsed.Logo.URL != original.Logo.URL || parsed.Logo.Title != original.Logo.Title ||
		parsed.Logo.Link.Href != original.Logo.Link.Href || parsed.Logo.Width != 88 || parsed.Logo.Height != 31 {
		t.Errorf("Logo lost: %+v", parsed.Logo)
	}

	if len(parsed.Entries) != len(original.Entries) {
		t.Fatalf("Expected %d entries, got: %d", len(original.Entries), len(parsed.Entries))
	}
	for i := range original.Entries {
		want, got := original.Entries[i], parsed.Entries[i]
		if got.ID != want.ID || got.Title != want.Title {
			t.Errorf("Entry %d identity lost: %s / %s", i, got.ID, got.Title)
		}
		if !got.Updated.Equal(want.Updated) {
			t.Errorf("Entry %d updated lost: %v vs %v", i, got.Updated, want.Updated)
		}
		if (got.Published == nil) != (want.Published == nil) ||
			(got.Published != nil && !got.Published.Equal(*want.Published)) {
			t.Errorf("Entry %d published lost: %v", i, got.Published)
		}
		if !reflect.DeepEqual(got.Authors, want.Authors) || !reflect.DeepEqual(got.Contributors, want.Contributors) {
			t.Errorf("Entry %d people lost: %+v / %+v", i, got.Authors, got.Contributors)
		}
		if !reflect.DeepEqual(got.Categories, want.Categories) {
			t.Errorf("Entry %d categories lost: %+v", i, got.Categories)
		}
		if !reflect.DeepEqual(got.Link, want.Link) {
			t.Errorf("Entry %d link lost: %+v", i, got.Link)
		}
		if !reflect.DeepEqual(got.Content, want.Content) {
			t.Errorf("Entry %d content lost: %+v", i, got.Content)
		}
		if deref(got.Summary) != deref(want.Summary) || deref(got.Source) != deref(want.Source) ||
			deref(got.Rights) != deref(want.Rights) {
			t.Errorf("Entry %d text lost: %s / %s / %s", i, deref(got.Summary), deref(got.Source), deref(got.Rights))
		}
	}
	if !parsed.Entries[1].HasSyntheticTitle() {
		t.Errorf("Expected synthetic title to survive, got: %s", parsed.Entries[1].Title)
	}
}

func TestAtomRoundTripKeepsClockPrecision(t *testing.T) {
	original := model.NewFeed()
	entry := model.NewEntry()
	entry.Published = model.Ptr(time.Date(2024, 5, 1, 9, 0, 0, 123456789, time.UTC))
	original.AddEntry(*entry)

	out, err := NewGenerator().Run(original, FormatAtom)
	if err != nil {
		t.Fatal(err)
	}
	parsed, _, err := NewParser().Run([]byte(out))
	if err != nil {
		t.Fatalf("Expected generated Atom to parse, got: %v\n%s", err, out)
	}

	if !parsed.Updated.Equal(original.Updated) {
		t.Errorf("Feed updated changed: %v vs %v", parsed.Updated, original.Updated)
	}
	if len(parsed.Entries) != 1 {
		t.Fatalf("Expected 1 entry, got: %d", len(parsed.Entries))
	}
	got := parsed.Entries[0]
	if !got.Updated.Equal(entry.Updated) {
		t.Errorf("Entry updated changed: %v vs %v", got.Updated, entry.Updated)
	}
	if got.Published == nil || !got.Published.Equal(*entry.Published) {
		t.Errorf("Entry published changed: %v", got.Published)
	}
}

func TestAtomContentPayloads(t *testing.T) {
	xhtml := `<div xmlns="http://www.w3.org/1999/xhtml"><p>Hello <b>world</b></p></div>`

	tests := []struct {
		contentType string
		inline      string
		want        string
	}{
		{"text", "1 < 2 & 3", "1 < 2 & 3"},
		{"html", "<p>Tom &amp; Jerry</p>", "<p>Tom &amp; Jerry</p>"},
		{"xhtml", xhtml, xhtml},
		{"xhtml", "<p>Hello <b>world</b></p>", xhtml},
		{"application/xml", "<note><to>Ann</to></note>", "<note><to>Ann</to></note>"},
		{"image/png", "aGVsbG8=", "aGVsbG8="},
	}

	for _, tt := range tests {
		f := model.NewFeed()
		entry := model.NewEntry()
		content := model.NewContent()
		content.ContentType = model.Ptr(tt.contentType)
		content.Inline = model.Ptr(tt.inline)
		entry.Content = &content
		f.AddEntry(*entry)

		out, err := NewGenerator().Run(f, FormatAtom)
		if err != nil {
			t.Fatal(err)
		}
		parsed, _, err := NewParser().Run([]byte(out))
		if err != nil {
			t.Errorf("%s: expected generated Atom to parse, got: %v\n%s", tt.contentType, err, out)
			continue
		}

		got := parsed.Entries[0].Content
		if got == nil || deref(got.ContentType) != tt.contentType || deref(got.Inline) != tt.want {
			t.Errorf("%s: expected inline %q, got: %+v\n%s", tt.contentType, tt.want, got, out)
		}
	}
}

func TestRSS1RoundTrip(t *testing.T) {
	original := sampleFeed()

	out, err := NewGenerator().Run(original, FormatRSS1)
	if err != nil {
		t.Fatal(err)
	}

	parsed, format, err := newTestParser().Run([]byte(out))
	if err != nil {
		t.Fatalf("Expected generated RSS 1.0 to parse, got: %v\n%s", err, out)
	}
	if format != FormatRSS1 {
		t.Errorf("Expected rss1, got: %s", format)
	}

	if parsed.Title != original.Title || deref(parsed.Description) != deref(original.Description) {
		t.Errorf("Channel text lost: %s / %s", parsed.Title, deref(parsed.Description))
	}
	if parsed.Link == nil || parsed.Link.Href != original.Link.Href {
		t.Errorf("Link lost: %+v", parsed.Link)
	}
	if deref(parsed.Language) != "en" || deref(parsed.Rights) != "CC0" {
		t.Errorf("dc:language or dc:rights lost: %s / %s", deref(parsed.Language), deref(parsed.Rights))
	}
	if len(parsed.Authors) != 1 || parsed.Authors[0].Name != "Jane Doe" {
		t.Errorf("dc:creator lost: %+v", parsed.Authors)
	}
	if parsed.PubDate == nil || !parsed.PubDate.Equal(*original.PubDate) {
		t.Errorf("dc:date lost: %v", parsed.PubDate)
	}
	if parsed.Logo == nil || parsed.Logo.URL != original.Logo.URL {
		t.Errorf("Logo lost: %+v", parsed.Logo)
	}

	if len(parsed.Entries) != 2 {
		t.Fatalf("Expected 2 entries, got: %d", len(parsed.Entries))
	}
	first := parsed.Entries[0]
	if first.Title != "First post" || first.Link == nil || first.Link.Href != "https://example.com/posts/1" {
		t.Errorf("Entry identity lost: %s / %+v", first.Title, first.Link)
	}
	if deref(first.Summary) != deref(original.Entries[0].Summary) {
		t.Errorf("Summary lost: %s", deref(first.Summary))
	}
	if len(first.Authors) != 1 || first.Authors[0].Name != "Jane Doe" {
		t.Errorf("Entry dc:creator lost: %+v", first.Authors)
	}
	if first.Published == nil || !first.Published.Equal(*original.Entries[0].Published) {
		t.Errorf("Entry dc:date lost: %v", first.Published)
	}
	if parsed.Entries[1].Published != nil || len(parsed.Entries[1].Authors) != 0 {
		t.Errorf("Expected second entry without dc fields, got: %+v", parsed.Entries[1])
	}
}

func TestRSS2RoundTrip(t *testing.T) {
	original := sampleFeed()

	out, err := NewGenerator().Run(original, FormatRSS2)
	if err != nil {
		t.Fatal(err)
	}

	parsed, format, err := newTestParser().Run([]byte(out))
	if err != nil {
		t.Fatalf("Expected generated RSS to parse, got: %v\n%s", err, out)
	}
	if format != FormatRSS2 {
		t.Errorf("Expected rss2, got: %s", format)
	}

	if parsed.Title != original.Title || deref(parsed.Description) != deref(original.Description) {
		t.Errorf("Channel text lost: %s / %s", parsed.Title, deref(parsed.Description))
	}
	if !parsed.Updated.Equal(original.Updated) {
		t.Errorf("lastBuildDate lost: %v vs %v", parsed.Updated, original.Updated)
	}
	if parsed.PubDate == nil || !parsed.PubDate.Equal(*original.PubDate) {
		t.Errorf("pubDate lost: %v", parsed.PubDate)
	}
	if parsed.TTL == nil || *parsed.TTL != 30 {
		t.Errorf("ttl lost: %v", parsed.TTL)
	}
	if parsed.Logo == nil || parsed.Logo.URL != original.Logo.URL || parsed.Logo.Width != 88 {
		t.Errorf("Logo lost: %+v", parsed.Logo)
	}

	if len(parsed.Entries) != 2 {
		t.Fatalf("Expected 2 entries, got: %d", len(parsed.Entries))
	}

	first := parsed.Entries[0]
	if first.ID != "https://example.com/posts/1" || first.Title != "First post" {
		t.Errorf("Entry identity lost: %s / %s", first.ID, first.Title)
	}
	if first.Published == nil || !first.Published.Equal(*original.Entries[0].Published) {
		t.Errorf("Published lost: %v", first.Published)
	}
	if len(first.Authors) != 1 || first.Authors[0].Name != "Jane Doe" {
		t.Errorf("Author lost: %+v", first.Authors)
	}
	if first.Content == nil || deref(first.Content.Inline) != "Body text" {
		t.Errorf("content:encoded lost: %+v", first.Content)
	}
	for i := range original.Entries {
		if !parsed.Entries[i].Updated.Equal(original.Entries[i].Updated) {
			t.Errorf("Entry %d atom:updated lost: %v vs %v", i, parsed.Entries[i].Updated, original.Entries[i].Updated)
		}
	}

	second := parsed.Entries[1]
	if second.ID != "guid-2" || second.Title != "entry: guid-2" {
		t.Errorf("Synthetic entry identity lost: %s / %s", second.ID, second.Title)
	}
	if second.Content == nil || deref(second.Content.Src) != "https://example.com/audio.mp3" {
		t.Errorf("Enclosure lost: %+v", second.Content)
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"":      FormatAtom,
		"atom":  FormatAtom,
		"RSS":   FormatRSS2,
		"rss2":  FormatRSS2,
		"rdf":   FormatRSS1,
		"rss1":  FormatRSS1,
		" json": FormatJSON,
	}
	for input, want := range tests {
		got, err := ParseFormat(input)
		if err != nil {
			t.Errorf("%q: unexpected error: %v", input, err)
		}
		if got != want {
			t.Errorf("%q: expected %s, got %s", input, want, got)
		}
	}

	if _, err := ParseFormat("yaml"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got: %v", err)
	}
}
