package feed

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnsupportedFormat = errors.New("unsupported feed format")

type Format string

const (
	FormatAtom Format = "atom"
	FormatRSS2 Format = "rss2"
	FormatRSS1 Format = "rss1"
	FormatJSON Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "atom":
		return FormatAtom, nil
	case "rss", "rss2", "rss20":
		return FormatRSS2, nil
	case "rss1", "rss10", "rdf":
		return FormatRSS1, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatAtom:
		return "application/atom+xml; charset=utf-8"
	case FormatRSS2:
		return "application/rss+xml; charset=utf-8"
	case FormatRSS1:
		return "application/rdf+xml; charset=utf-8"
	case FormatJSON:
		return "application/json; charset=utf-8"
	default:
		return "application/xml; charset=utf-8"
	}
}

// Configuration types

type Config struct {
	Name     string         `validate:"required"` // Derived from filename (without .yml extension)
	URL      string         `yaml:"url" validate:"required,url"`
	Settings ConfigSettings `yaml:"settings"`
	Filters  []ConfigFilter `yaml:"filters" validate:"dive"`
}

type ConfigSettings struct {
	Enabled       bool   `yaml:"enabled"`
	MaxItems      int    `yaml:"max_items" validate:"gte=0"`
	Timeout       int    `yaml:"timeout" validate:"gte=0"` // seconds
	Language      string `yaml:"language"`                 // default when the source declares none
	DeriveSummary bool   `yaml:"derive_summary"`           // fill missing summaries from inline HTML content
}

type ConfigFilter struct {
	Field    string   `yaml:"field" validate:"oneof=title summary content authors link categories"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}
