package model

const (
	DefaultImageWidth  = 88
	DefaultImageHeight = 31

	// RSS 2.0 maxima. The model never clamps; callers that care enforce them.
	MaxImageWidth  = 144
	MaxImageHeight = 400
)

type Category struct {
	Term   string  `json:"term"`
	Scheme *string `json:"scheme,omitempty"`
	Label  *string `json:"label,omitempty"`
}

func NewCategory(term string) Category {
	return Category{Term: term}
}

// Content is the body of an entry, inline or referenced by Src.
// Src and Inline may both be set; consumers should prefer Src.
type Content struct {
	// Atom: text, html, xhtml or a media type.
	ContentType *string `json:"content_type,omitempty"`
	Src         *string `json:"src,omitempty"`
	// Escaped text, inline xml or base64, depending on ContentType.
	Inline *string `json:"inline,omitempty"`
}

func NewContent() Content {
	return Content{}
}

// IsExternal reports whether the payload lives at Src.
func (c Content) IsExternal() bool {
	return c.Src != nil
}

type Generator struct {
	URI     *string `json:"uri,omitempty"`
	Version *string `json:"version,omitempty"`
	Inline  *string `json:"inline,omitempty"`
}

func NewGenerator() Generator {
	return Generator{}
}

type Image struct {
	URL string `json:"url"`
	// Used as alt text.
	Title string `json:"title"`
	// Click-through target.
	Link Link `json:"link"`

	Width       uint32  `json:"width"`
	Height      uint32  `json:"height"`
	Description *string `json:"description,omitempty"`
}

func NewImage(url, title string, link Link) Image {
	return Image{
		URL:    url,
		Title:  title,
		Link:   link,
		Width:  DefaultImageWidth,
		Height: DefaultImageHeight,
	}
}

type Link struct {
	Href      string  `json:"href"`
	Rel       *string `json:"rel,omitempty"`
	MediaType *string `json:"media_type,omitempty"`
	Hreflang  *string `json:"hreflang,omitempty"`
	Title     *string `json:"title,omitempty"`
	// Size of the resource in bytes.
	Length *uint64 `json:"length,omitempty"`
}

func NewLink(href string) Link {
	return Link{Href: href}
}

// Person is an author or contributor. Name is not validated; an empty name is accepted.
type Person struct {
	Name  string  `json:"name"`
	URI   *string `json:"uri,omitempty"`
	Email *string `json:"email,omitempty"`
}

func NewPerson(name string) Person {
	return Person{Name: name}
}
