// Package htmltomarkdown implements docrag.Converter with html-to-markdown.
package htmltomarkdown

import (
	"net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/fwojciec/docrag"
)

var _ docrag.Converter = (*Converter)(nil)

// Converter wraps html-to-markdown to convert HTML to Markdown.
type Converter struct {
	conv *converter.Converter
}

// NewConverter creates a new Converter with CommonMark and table support.
func NewConverter() *Converter {
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	return &Converter{conv: conv}
}

// Convert transforms HTML content into Markdown. Root-relative links and
// images are made absolute using the scheme and host of pageURL.
func (c *Converter) Convert(html string, pageURL string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", docrag.Errorf(docrag.EINVALID, "empty HTML input")
	}

	var md string
	var err error
	if u, perr := url.Parse(pageURL); perr == nil && u.Scheme != "" && u.Host != "" {
		md, err = c.conv.ConvertString(html, converter.WithDomain(u.Scheme+"://"+u.Host))
	} else {
		md, err = c.conv.ConvertString(html)
	}
	if err != nil {
		return "", docrag.Errorf(docrag.ECRAWL, "convert %s: %v", pageURL, err)
	}
	return strings.TrimSpace(md), nil
}
