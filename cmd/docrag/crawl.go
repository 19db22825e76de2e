package main

import (
	"fmt"
	"regexp"

	"github.com/fwojciec/docrag"
	"github.com/fwojciec/docrag/crawl"
	"github.com/fwojciec/docrag/ingest"
)

// Run executes the crawl command.
func (c *CrawlCmd) Run(deps *Dependencies) error {
	kind := crawl.DetectKind(c.URL)
	if kind != crawl.KindSitemap {
		if c.Preview {
			fmt.Fprintln(deps.Stdout, c.URL)
			return nil
		}
		o := deps.Ingester.IngestPage(deps.Ctx, c.URL)
		fmt.Fprintln(deps.Stdout, ingest.Describe(o))
		if o.Status() == docrag.StatusFailure {
			return o.Err
		}
		return nil
	}

	filter, err := compileFilter(c.Filter, c.Exclude)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", errorText(err))
		return err
	}

	urls, err := deps.Sitemaps.ParseSitemap(deps.Ctx, c.URL, filter)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", errorText(err))
		return err
	}
	if len(urls) == 0 {
		fmt.Fprintf(deps.Stderr, "error: no URLs found in sitemap %s\n", c.URL)
		return docrag.Errorf(docrag.ENOTFOUND, "no URLs found in sitemap %s", c.URL)
	}

	if c.Preview {
		for _, u := range urls {
			fmt.Fprintln(deps.Stdout, u)
		}
		return nil
	}

	fmt.Fprintf(deps.Stderr, "Ingesting %d pages from %s\n", len(urls), c.URL)
	result, err := deps.Ingester.IngestPages(deps.Ctx, urls, docrag.IngestOptions{Concurrency: c.MaxConcurrent})
	if result != nil {
		printBatch(deps, result)
	}
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", errorText(err))
		return err
	}
	if result.Status() == docrag.StatusFailure {
		return docrag.Errorf(docrag.EINTERNAL, "no pages ingested from %s", c.URL)
	}
	return nil
}

func compileFilter(include, exclude []string) (*docrag.URLFilter, error) {
	if len(include) == 0 && len(exclude) == 0 {
		return nil, nil
	}
	filter := &docrag.URLFilter{}
	for _, p := range include {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, docrag.Errorf(docrag.EINVALID, "invalid filter %q: %v", p, err)
		}
		filter.Include = append(filter.Include, re)
	}
	for _, p := range exclude {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, docrag.Errorf(docrag.EINVALID, "invalid exclude %q: %v", p, err)
		}
		filter.Exclude = append(filter.Exclude, re)
	}
	return filter, nil
}
