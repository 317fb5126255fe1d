package feed

import (
	"bytes"
	"cmp"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lysyi3m/feedkit/app/metrics"
	"github.com/lysyi3m/feedkit/app/model"
)

const (
	atomNamespace  = "http://www.w3.org/2005/Atom"
	xhtmlNamespace = "http://www.w3.org/1999/xhtml"
)

type Generator struct{}

// RenderOption adjusts a single Run call.
type RenderOption func(*renderOptions)

type renderOptions struct {
	selfLink string
}

// WithSelfLink adds a rel="self" link pointing at the URL the document is served from.
func WithSelfLink(href string) RenderOption {
	return func(o *renderOptions) {
		o.selfLink = href
	}
}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Run(f *model.Feed, format Format, opts ...RenderOption) (string, error) {
	if f == nil {
		return "", fmt.Errorf("feed is nil")
	}

	var o renderOptions
	for _, opt := range opts {
		opt(&o)
	}

	var out string
	var err error
	switch format {
	case FormatAtom:
		out = g.atom(f, o)
	case FormatRSS2:
		out = g.rss2(f, o)
	case FormatRSS1:
		out = g.rss1(f)
	case FormatJSON:
		out, err = g.json(f)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return "", err
	}

	metrics.FeedsRendered.WithLabelValues(string(format)).Inc()
	return out, nil
}

// Atom 1.0

func (g *Generator) atom(f *model.Feed, o renderOptions) string {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<feed xmlns="` + atomNamespace + `"`)
	if f.Language != nil {
		g.writeAttr(&buf, "xml:lang", *f.Language)
	}
	buf.WriteString(">\n")

	g.writeElement(&buf, "id", f.ID, 2)
	g.writeElement(&buf, "title", f.Title, 2)
	g.writeElement(&buf, "updated", formatAtomDate(f.Updated), 2)
	g.writeOptional(&buf, "subtitle", f.Subtitle, 2)
	if f.Link != nil {
		g.writeAtomLink(&buf, *f.Link, 2)
	}
	if o.selfLink != "" {
		self := model.NewLink(o.selfLink)
		self.Rel = model.Ptr("self")
		self.MediaType = model.Ptr("application/atom+xml")
		g.writeAtomLink(&buf, self, 2)
	}
	for _, author := range f.Authors {
		g.writeAtomPerson(&buf, "author", author, 2)
	}
	for _, contributor := range f.Contributors {
		g.writeAtomPerson(&buf, "contributor", contributor, 2)
	}
	for _, category := range f.Categories {
		g.writeAtomCategory(&buf, category, 2)
	}
	if f.Generator != nil {
		g.indent(&buf, 2)
		buf.WriteString("<generator")
		if f.Generator.URI != nil {
			g.writeAttr(&buf, "uri", *f.Generator.URI)
		}
		if f.Generator.Version != nil {
			g.writeAttr(&buf, "version", *f.Generator.Version)
		}
		buf.WriteString(">")
		if f.Generator.Inline != nil {
			xml.EscapeText(&buf, []byte(*f.Generator.Inline))
		}
		buf.WriteString("</generator>\n")
	}
	g.writeOptional(&buf, "icon", f.Icon, 2)
	if f.Logo != nil {
		g.writeElement(&buf, "logo", f.Logo.URL, 2)
	}
	g.writeOptional(&buf, "rights", f.Rights, 2)

	for _, entry := range f.Entries {
		g.writeAtomEntry(&buf, entry)
	}

	buf.WriteString("</feed>")

	return buf.String()
}

func (g *Generator) writeAtomEntry(buf *bytes.Buffer, e model.Entry) {
	buf.WriteString("  <entry>\n")

	g.writeElement(buf, "id", e.ID, 4)
	g.writeElement(buf, "title", e.Title, 4)
	g.writeElement(buf, "updated", formatAtomDate(e.Updated), 4)
	if e.Published != nil {
		g.writeElement(buf, "published", formatAtomDate(*e.Published), 4)
	}
	for _, author := range e.Authors {
		g.writeAtomPerson(buf, "author", author, 4)
	}
	for _, contributor := range e.Contributors {
		g.writeAtomPerson(buf, "contributor", contributor, 4)
	}
	if e.Link != nil {
		g.writeAtomLink(buf, *e.Link, 4)
	}
	for _, category := range e.Categories {
		g.writeAtomCategory(buf, category, 4)
	}
	g.writeOptional(buf, "summary", e.Summary, 4)

	if e.Content != nil {
		g.writeAtomContent(buf, *e.Content)
	}

	if e.Source != nil {
		buf.WriteString("    <source>\n")
		g.writeElement(buf, "title", *e.Source, 6)
		buf.WriteString("    </source>\n")
	}
	g.writeOptional(buf, "rights", e.Rights, 4)

	buf.WriteString("  </entry>\n")
}

// writeAtomContent escapes text and html payloads. XML payloads are written as markup;
// xhtml gets the wrapping div Atom requires when the payload does not carry one.
func (g *Generator) writeAtomContent(buf *bytes.Buffer, content model.Content) {
	contentType := deref(content.ContentType)

	g.indent(buf, 4)
	buf.WriteString("<content")
	if content.ContentType != nil {
		g.writeAttr(buf, "type", contentType)
	}
	if content.Src != nil {
		g.writeAttr(buf, "src", *content.Src)
	}
	buf.WriteString(">")
	if content.Inline != nil {
		inline := *content.Inline
		switch {
		case isXHTMLType(contentType):
			if !strings.HasPrefix(strings.TrimSpace(inline), "<div") {
				inline = `<div xmlns="` + xhtmlNamespace + `">` + inline + "</div>"
			}
			buf.WriteString(inline)
		case isXMLType(contentType):
			buf.WriteString(inline)
		default:
			xml.EscapeText(buf, []byte(inline))
		}
	}
	buf.WriteString("</content>\n")
}

func (g *Generator) writeAtomLink(buf *bytes.Buffer, link model.Link, indent int) {
	g.indent(buf, indent)
	buf.WriteString("<link")
	g.writeAttr(buf, "href", link.Href)
	if link.Rel != nil {
		g.writeAttr(buf, "rel", *link.Rel)
	}
	if link.MediaType != nil {
		g.writeAttr(buf, "type", *link.MediaType)
	}
	if link.Hreflang != nil {
		g.writeAttr(buf, "hreflang", *link.Hreflang)
	}
	if link.Title != nil {
		g.writeAttr(buf, "title", *link.Title)
	}
	if link.Length != nil {
		g.writeAttr(buf, "length", strconv.FormatUint(*link.Length, 10))
	}
	buf.WriteString("/>\n")
}

func (g *Generator) writeAtomPerson(buf *bytes.Buffer, tag string, person model.Person, indent int) {
	g.indent(buf, indent)
	buf.WriteString("<" + tag + ">\n")
	g.indent(buf, indent+2)
	buf.WriteString("<name>")
	xml.EscapeText(buf, []byte(person.Name))
	buf.WriteString("</name>\n")
	g.writeOptional(buf, "uri", person.URI, indent+2)
	g.writeOptional(buf, "email", person.Email, indent+2)
	g.indent(buf, indent)
	buf.WriteString("</" + tag + ">\n")
}

func (g *Generator) writeAtomCategory(buf *bytes.Buffer, category model.Category, indent int) {
	g.indent(buf, indent)
	buf.WriteString("<category")
	g.writeAttr(buf, "term", category.Term)
	if category.Scheme != nil {
		g.writeAttr(buf, "scheme", *category.Scheme)
	}
	if category.Label != nil {
		g.writeAttr(buf, "label", *category.Label)
	}
	buf.WriteString("/>\n")
}

// RSS 2.0

func (g *Generator) rss2(f *model.Feed, o renderOptions) string {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:atom="` + atomNamespace + `">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", f.Title, 4)
	if f.Link != nil {
		g.writeElement(&buf, "link", f.Link.Href, 4)
	}
	g.writeElement(&buf, "description", cmp.Or(deref(f.Description), deref(f.Subtitle), f.Title), 4)
	if o.selfLink != "" {
		g.indent(&buf, 4)
		buf.WriteString("<atom:link")
		g.writeAttr(&buf, "href", o.selfLink)
		g.writeAttr(&buf, "rel", "self")
		g.writeAttr(&buf, "type", "application/rss+xml")
		buf.WriteString(" />\n")
	}
	g.writeOptional(&buf, "language", f.Language, 4)
	g.writeOptional(&buf, "copyright", f.Rights, 4)
	if len(f.Authors) > 0 {
		g.writeElement(&buf, "managingEditor", formatRSSPerson(f.Authors[0]), 4)
	}
	if len(f.Contributors) > 0 {
		g.writeElement(&buf, "webMaster", formatRSSPerson(f.Contributors[0]), 4)
	}
	if f.PubDate != nil {
		g.writeElement(&buf, "pubDate", f.PubDate.Format(time.RFC1123Z), 4)
	}
	g.writeElement(&buf, "lastBuildDate", f.Updated.Format(time.RFC1123Z), 4)
	for _, category := range f.Categories {
		g.writeRSSCategory(&buf, category, 4)
	}
	if f.Generator != nil {
		g.writeElement(&buf, "generator", cmp.Or(deref(f.Generator.Inline), deref(f.Generator.URI)), 4)
	}
	if f.TTL != nil {
		g.writeElement(&buf, "ttl", strconv.FormatUint(uint64(*f.TTL), 10), 4)
	}

	if f.Logo != nil {
		buf.WriteString("    <image>\n")
		g.writeElement(&buf, "url", f.Logo.URL, 6)
		g.writeElement(&buf, "title", f.Logo.Title, 6)
		g.writeElement(&buf, "link", f.Logo.Link.Href, 6)
		g.writeElement(&buf, "width", strconv.FormatUint(uint64(f.Logo.Width), 10), 6)
		g.writeElement(&buf, "height", strconv.FormatUint(uint64(f.Logo.Height), 10), 6)
		g.writeOptional(&buf, "description", f.Logo.Description, 6)
		buf.WriteString("    </image>\n")
	}

	for _, entry := range f.Entries {
		g.writeRSS2Item(&buf, entry)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String()
}

func (g *Generator) writeRSS2Item(buf *bytes.Buffer, e model.Entry) {
	buf.WriteString("    <item>\n")

	buf.WriteString(fmt.Sprintf("      <guid isPermaLink=\"%t\">", g.isURL(e.ID)))
	xml.EscapeText(buf, []byte(e.ID))
	buf.WriteString("</guid>\n")

	if !e.HasSyntheticTitle() {
		g.writeElement(buf, "title", e.Title, 6)
	}
	if e.Link != nil {
		g.writeElement(buf, "link", e.Link.Href, 6)
	}
	g.writeOptional(buf, "description", e.Summary, 6)
	if len(e.Authors) > 0 {
		g.writeElement(buf, "author", formatRSSPerson(e.Authors[0]), 6)
	}
	for _, category := range e.Categories {
		g.writeRSSCategory(buf, category, 6)
	}

	// RSS 2.0 requires url, length and type on an enclosure.
	if e.Content != nil && e.Content.Src != nil && e.Content.ContentType != nil {
		g.indent(buf, 6)
		buf.WriteString("<enclosure")
		g.writeAttr(buf, "url", *e.Content.Src)
		g.writeAttr(buf, "length", "0")
		g.writeAttr(buf, "type", *e.Content.ContentType)
		buf.WriteString(" />\n")
	}

	if e.Content != nil {
		g.writeOptional(buf, "content:encoded", e.Content.Inline, 6)
	}

	if e.Published != nil {
		g.writeElement(buf, "pubDate", e.Published.Format(time.RFC1123Z), 6)
	}
	// pubDate is a creation time, so the modification time travels as atom:updated.
	g.writeElement(buf, "atom:updated", formatAtomDate(e.Updated), 6)
	g.writeOptional(buf, "source", e.Source, 6)

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeRSSCategory(buf *bytes.Buffer, category model.Category, indent int) {
	if category.Term == "" {
		return
	}
	g.indent(buf, indent)
	buf.WriteString("<category")
	if category.Scheme != nil {
		g.writeAttr(buf, "domain", *category.Scheme)
	}
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(category.Term))
	buf.WriteString("</category>\n")
}

// RSS 1.0

func (g *Generator) rss1(f *model.Feed) string {
	var buf bytes.Buffer

	about := f.ID
	if f.Link != nil {
		about = f.Link.Href
	}

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#" xmlns="http://purl.org/rss/1.0/" xmlns:dc="http://purl.org/dc/elements/1.1/">`)
	buf.WriteString("\n")

	buf.WriteString("  <channel")
	g.writeAttr(&buf, "rdf:about", about)
	buf.WriteString(">\n")
	g.writeElement(&buf, "title", f.Title, 4)
	if f.Link != nil {
		g.writeElement(&buf, "link", f.Link.Href, 4)
	}
	g.writeElement(&buf, "description", cmp.Or(deref(f.Description), deref(f.Subtitle), f.Title), 4)
	g.writeDublinCore(&buf, f.Authors, f.PubDate, 4)
	g.writeOptional(&buf, "dc:language", f.Language, 4)
	g.writeOptional(&buf, "dc:rights", f.Rights, 4)
	if f.Logo != nil {
		buf.WriteString("    <image")
		g.writeAttr(&buf, "rdf:resource", f.Logo.URL)
		buf.WriteString(" />\n")
	}
	if len(f.Entries) > 0 {
		buf.WriteString("    <items>\n      <rdf:Seq>\n")
		for _, entry := range f.Entries {
			buf.WriteString("        <rdf:li")
			g.writeAttr(&buf, "resource", rss1About(entry))
			buf.WriteString(" />\n")
		}
		buf.WriteString("      </rdf:Seq>\n    </items>\n")
	}
	buf.WriteString("  </channel>\n")

	if f.Logo != nil {
		buf.WriteString("  <image")
		g.writeAttr(&buf, "rdf:about", f.Logo.URL)
		buf.WriteString(">\n")
		g.writeElement(&buf, "title", f.Logo.Title, 4)
		g.writeElement(&buf, "url", f.Logo.URL, 4)
		g.writeElement(&buf, "link", f.Logo.Link.Href, 4)
		buf.WriteString("  </image>\n")
	}

	for _, entry := range f.Entries {
		buf.WriteString("  <item")
		g.writeAttr(&buf, "rdf:about", rss1About(entry))
		buf.WriteString(">\n")
		g.writeElement(&buf, "title", entry.Title, 4)
		if entry.Link != nil {
			g.writeElement(&buf, "link", entry.Link.Href, 4)
		}
		g.writeOptional(&buf, "description", entry.Summary, 4)
		g.writeDublinCore(&buf, entry.Authors, entry.Published, 4)
		buf.WriteString("  </item>\n")
	}

	buf.WriteString("</rdf:RDF>")

	return buf.String()
}

func (g *Generator) writeDublinCore(buf *bytes.Buffer, creators []model.Person, date *time.Time, indent int) {
	for _, creator := range creators {
		g.writeElement(buf, "dc:creator", creator.Name, indent)
	}
	if date != nil {
		g.writeElement(buf, "dc:date", formatAtomDate(*date), indent)
	}
}

func rss1About(e model.Entry) string {
	if e.Link != nil {
		return e.Link.Href
	}
	return e.ID
}

func (g *Generator) json(f *model.Feed) (string, error) {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode feed: %w", err)
	}
	return string(data), nil
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	g.indent(buf, indent)

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func (g *Generator) writeOptional(buf *bytes.Buffer, tag string, content *string, indent int) {
	if content == nil {
		return
	}
	g.writeElement(buf, tag, *content, indent)
}

func (g *Generator) writeAttr(buf *bytes.Buffer, name, value string) {
	buf.WriteString(" ")
	buf.WriteString(name)
	buf.WriteString(`="`)
	xml.EscapeText(buf, []byte(value))
	buf.WriteString(`"`)
}

func (g *Generator) indent(buf *bytes.Buffer, indent int) {
	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}
}

func (g *Generator) isURL(s string) bool {
	return (len(s) > 7 && s[:7] == "http://") || (len(s) > 8 && s[:8] == "https://")
}

func formatAtomDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func isXHTMLType(contentType string) bool {
	return strings.EqualFold(strings.TrimSpace(contentType), "xhtml")
}

// isXMLType matches the media types whose inline payload is markup rather than text.
func isXMLType(contentType string) bool {
	t := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(t, ";"); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return strings.HasSuffix(t, "+xml") || strings.HasSuffix(t, "/xml")
}

func formatRSSPerson(person model.Person) string {
	email := deref(person.Email)
	if email != "" && person.Name != "" && person.Name != email {
		return fmt.Sprintf("%s (%s)", email, person.Name)
	}
	return cmp.Or(person.Name, email)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
