package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fwojciec/docrag"
	"github.com/fwojciec/docrag/ingest"
)

// Run executes the import command.
func (c *ImportCmd) Run(deps *Dependencies) error {
	content, err := os.ReadFile(c.Path)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", err)
		return err
	}

	title := c.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(c.Path), filepath.Ext(c.Path))
	}

	o := deps.Ingester.IngestContent(deps.Ctx, &docrag.Page{
		URL:       c.URL,
		Title:     title,
		Content:   string(content),
		CrawledAt: time.Now().UTC(),
	})
	fmt.Fprintln(deps.Stdout, ingest.Describe(o))
	if o.Status() == docrag.StatusFailure {
		return o.Err
	}
	return nil
}
