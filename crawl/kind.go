package crawl

import (
	"net/url"
	"strings"
)

// Kind classifies a URL for smart crawling.
type Kind string

const (
	KindSitemap  Kind = "sitemap"
	KindTextFile Kind = "text_file"
	KindWebpage  Kind = "webpage"
)

// DetectKind reports how a URL should be crawled. A path mentioning
// "sitemap" is a sitemap; a .txt or .md path is a text file; anything
// else is a webpage. Only the path is inspected.
func DetectKind(rawURL string) Kind {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	p = strings.ToLower(p)

	switch {
	case strings.Contains(p, "sitemap"):
		return KindSitemap
	case strings.HasSuffix(p, ".txt"), strings.HasSuffix(p, ".md"):
		return KindTextFile
	}
	return KindWebpage
}
